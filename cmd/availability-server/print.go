package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/carebook/availability/internal/domain/scheduling"
)

func printSlots(w io.Writer, slots []scheduling.TimeSlot) {
	if len(slots) == 0 {
		fmt.Fprintln(w, "no slots")
		return
	}
	for _, s := range slots {
		fmt.Fprintf(w, "%s  %s-%s\n", s.ID, s.Start.Format("15:04"), s.End.Format("15:04"))
	}
	fmt.Fprintf(w, "%d slot(s)\n", len(slots))
}

// printCalendar renders cells as six rows of seven. Days outside the month
// are dimmed with parentheses, the selected day is bracketed and today is
// starred.
func printCalendar(w io.Writer, year int, month time.Month, cells []scheduling.CalendarDayCell) {
	fmt.Fprintf(w, "%s %d\n", month, year)
	if len(cells) > 0 {
		var head []string
		for i := 0; i < 7; i++ {
			head = append(head, fmt.Sprintf("%4s", cells[i].Date.Weekday().String()[:2]))
		}
		fmt.Fprintln(w, strings.Join(head, ""))
	}
	for row := 0; row*7 < len(cells); row++ {
		var b strings.Builder
		for _, c := range cells[row*7 : row*7+7] {
			b.WriteString(formatCell(c))
		}
		fmt.Fprintln(w, b.String())
	}
}

func formatCell(c scheduling.CalendarDayCell) string {
	var s string
	switch {
	case c.IsSelected:
		s = fmt.Sprintf("[%d]", c.DayNumber)
	case !c.IsCurrentMonth:
		s = fmt.Sprintf("(%d)", c.DayNumber)
	case c.IsToday:
		s = fmt.Sprintf("%d*", c.DayNumber)
	default:
		s = fmt.Sprintf("%d", c.DayNumber)
	}
	return fmt.Sprintf("%4s", s)
}
