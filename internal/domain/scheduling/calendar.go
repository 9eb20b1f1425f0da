package scheduling

import "time"

// GridCells is the fixed size of a month grid: six weeks of seven days.
const GridCells = 42

// CalendarDayCell is one day of a month grid.
type CalendarDayCell struct {
	Date            Date     `json:"date"`
	DayNumber       int      `json:"day_number"`
	IsCurrentMonth  bool     `json:"is_current_month"`
	IsToday         bool     `json:"is_today"`
	IsSelected      bool     `json:"is_selected"`
	HasAppointments bool     `json:"has_appointments"`
	AppointmentRefs []string `json:"appointment_refs,omitempty"`
}

// GridOptions tunes BuildMonthGrid.
type GridOptions struct {
	Selected *Date
	Today    Date
	// WeekStart is the weekday of the first column. Monday when nil.
	WeekStart *time.Weekday
	// HasEvents is called once per cell.
	HasEvents func(Date) bool
	// Refs, when set, lists the references shown in a cell that has events.
	Refs func(Date) []string
}

// BuildMonthGrid lays out month as 42 contiguous days. The leading cells are
// taken from the end of the previous month so the first cell falls on the
// configured week start; trailing cells come from the following month.
func BuildMonthGrid(year int, month time.Month, opts GridOptions) []CalendarDayCell {
	weekStart := time.Monday
	if opts.WeekStart != nil {
		weekStart = *opts.WeekStart
	}

	first := Date{Year: year, Month: month, Day: 1}
	// Normalise out-of-range months such as 13 or 0.
	first = first.AddDays(0)
	lead := (int(first.Weekday()) - int(weekStart) + 7) % 7

	cells := make([]CalendarDayCell, 0, GridCells)
	day := first.AddDays(-lead)
	for i := 0; i < GridCells; i++ {
		cell := CalendarDayCell{
			Date:           day,
			DayNumber:      day.Day,
			IsCurrentMonth: day.Year == first.Year && day.Month == first.Month,
			IsToday:        !opts.Today.IsZero() && day.Equal(opts.Today),
			IsSelected:     opts.Selected != nil && day.Equal(*opts.Selected),
		}
		if opts.HasEvents != nil && opts.HasEvents(day) {
			cell.HasAppointments = true
			if opts.Refs != nil {
				cell.AppointmentRefs = opts.Refs(day)
			}
		}
		cells = append(cells, cell)
		day = day.AddDays(1)
	}
	return cells
}
