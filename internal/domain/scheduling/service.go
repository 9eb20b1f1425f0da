package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/carebook/availability/internal/domain/scheduling"

// DefaultStoreTimeout bounds each store call when Options.Timeout is zero.
const DefaultStoreTimeout = 10 * time.Second

// Options configures a Service.
type Options struct {
	// Timeout bounds every store call.
	Timeout time.Duration
	// OldRange selects how a bulk edit derives the range it replaces.
	OldRange RangePolicy
	// DisableEmptyDayFallback sends an empty old range for a day with no
	// slots instead of reusing the new range.
	DisableEmptyDayFallback bool
	// Location is used for zoneless timestamps and generated slots.
	Location *time.Location
	Now      func() time.Time
}

// Service is the schedule mutation service. It holds no per-day state:
// DayViews belong to callers and are only changed after the store accepts a
// mutation.
type Service struct {
	store  SlotStore
	logger zerolog.Logger
	tracer trace.Tracer
	opts   Options
}

func NewService(store SlotStore, logger zerolog.Logger, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultStoreTimeout
	}
	if opts.OldRange == "" {
		opts.OldRange = RangeStarts
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "scheduling").Logger(),
		tracer: otel.Tracer(tracerName),
		opts:   opts,
	}
}

// Location returns the zone used for zoneless timestamps.
func (s *Service) Location() *time.Location { return s.opts.Location }

// call runs one store operation under the configured timeout and a span, and
// classifies its error.
func (s *Service) call(ctx context.Context, op string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "SlotStore."+op, trace.WithAttributes(attrs...))
	defer span.End()

	err := fn(ctx)
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	err = classify(op, err)
	ev := s.logger.Warn()
	if errors.Is(err, ErrOperationFailed) {
		ev = s.logger.Error()
	}
	ev.Err(err).Str("op", op).Msg("slot store call failed")
	return err
}

func (s *Service) fetch(ctx context.Context, doctorID uuid.UUID, institutionID *uuid.UUID) ([]RawScheduleRecord, error) {
	attrs := []attribute.KeyValue{attribute.String("doctor_id", doctorID.String())}
	if institutionID != nil {
		attrs = append(attrs, attribute.String("institution_id", institutionID.String()))
	}
	var recs []RawScheduleRecord
	err := s.call(ctx, "FetchSlots", func(ctx context.Context) error {
		var err error
		recs, err = s.store.FetchSlots(ctx, doctorID, institutionID)
		return err
	}, attrs...)
	return recs, err
}

func (s *Service) logIssues(issues []ParseIssue) {
	for _, issue := range issues {
		s.logger.Warn().
			Str("record_id", issue.RecordID).
			Str("field", issue.Field).
			Str("value", issue.Value).
			Str("reason", issue.Reason).
			Msg("skipping unparsable schedule record")
	}
}

// -- Read paths --

// LoadDay fetches the slots of one doctor at one institution on date.
func (s *Service) LoadDay(ctx context.Context, doctorID, institutionID uuid.UUID, date Date) (*DayView, error) {
	recs, err := s.fetch(ctx, doctorID, &institutionID)
	if err != nil {
		return nil, err
	}
	g := GroupByDate(recs, s.opts.Location)
	s.logIssues(g.Issues)

	view := &DayView{DoctorID: doctorID, InstitutionID: institutionID, Date: date, Slots: []ScheduleRecord{}}
	if b := g.Day(date); b != nil {
		view.Slots = append(view.Slots, b.Slots...)
	}
	return view, nil
}

// MonthView is a month grid with the schedule it was built from.
type MonthView struct {
	Year     int               `json:"year"`
	Month    time.Month        `json:"month"`
	Cells    []CalendarDayCell `json:"cells"`
	Schedule Grouping          `json:"schedule"`
}

// LoadMonth builds the 42-cell grid of a doctor's month, marking days that
// have slots. institutionID may be nil to include every institution.
func (s *Service) LoadMonth(ctx context.Context, doctorID uuid.UUID, institutionID *uuid.UUID, year int, month time.Month, selected *Date) (*MonthView, error) {
	recs, err := s.fetch(ctx, doctorID, institutionID)
	if err != nil {
		return nil, err
	}
	g := GroupByDate(recs, s.opts.Location)
	s.logIssues(g.Issues)

	cells := BuildMonthGrid(year, month, GridOptions{
		Selected:  selected,
		Today:     DateOf(s.opts.Now().In(s.opts.Location)),
		HasEvents: g.HasEvents,
		Refs:      g.Refs,
	})
	return &MonthView{Year: year, Month: month, Cells: cells, Schedule: g}, nil
}

// Schedule returns a doctor's slots grouped by institution and date.
func (s *Service) Schedule(ctx context.Context, doctorID uuid.UUID, institutionID *uuid.UUID) (InstitutionGrouping, error) {
	recs, err := s.fetch(ctx, doctorID, institutionID)
	if err != nil {
		return InstitutionGrouping{}, err
	}
	ig := GroupByDateAndInstitution(recs, s.opts.Location)
	s.logIssues(ig.Issues)
	return ig, nil
}

// -- Single slot edits --

// EditSlot moves a slot to [start, end), keeping its state and visit. The
// view is updated only after the store accepts the change.
func (s *Service) EditSlot(ctx context.Context, view *DayView, slotID string, start, end time.Time) error {
	idx, ok := view.Find(slotID)
	if !ok {
		return fmt.Errorf("edit slot %s: %w", slotID, ErrSlotNotFound)
	}
	if !start.Before(end) {
		return ErrInvalidTimeRange
	}
	cur := view.Slots[idx]
	if cur.State != SlotAvailable && cur.State != SlotBooked {
		return fmt.Errorf("edit slot %s in state %s: %w", slotID, cur.State, ErrInvalidTransition)
	}

	r := TimeRange{Start: start, End: end}
	for i, o := range view.Slots {
		if i != idx && occupies(o.State) && r.Overlaps(o.Range()) {
			return fmt.Errorf("edit slot %s: %w", slotID, ErrSlotOverlap)
		}
	}

	err := s.call(ctx, "UpdateSlot", func(ctx context.Context) error {
		return s.store.UpdateSlot(ctx, slotID, start, end)
	}, attribute.String("slot_id", slotID))
	if err != nil {
		return err
	}

	view.Slots[idx].Start = start
	view.Slots[idx].End = end
	return nil
}

// -- Bulk edit --

// BulkEditPlan is what a bulk edit sends to the store.
type BulkEditPlan struct {
	OldRange        TimeRange  `json:"old_range"`
	NewRange        TimeRange  `json:"new_range"`
	IntervalMinutes int        `json:"interval_minutes"`
	Candidates      []TimeSlot `json:"candidates"`
}

// PreviewBulkEdit computes the candidate slots and replace ranges of spec
// against view without touching the store. view may be nil for a day that has
// not been loaded.
func (s *Service) PreviewBulkEdit(view *DayView, spec BulkEditSpec) (*BulkEditPlan, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if view != nil && (view.DoctorID != spec.DoctorID || view.InstitutionID != spec.InstitutionID || !view.Date.Equal(spec.Date)) {
		return nil, ErrDayMismatch
	}

	plan := &BulkEditPlan{
		NewRange:        spec.NewRange(s.opts.Location),
		IntervalMinutes: spec.IntervalMinutes,
		Candidates:      GenerateSlots(spec.Date, spec.StartTime, spec.EndTime, spec.IntervalMinutes, s.opts.Location),
	}

	var (
		old TimeRange
		ok  bool
	)
	if view != nil {
		old, ok = view.OldRange(s.opts.OldRange)
	}
	switch {
	case ok:
		plan.OldRange = old
	case s.opts.DisableEmptyDayFallback:
		plan.OldRange = TimeRange{Start: plan.NewRange.Start, End: plan.NewRange.Start}
	default:
		plan.OldRange = plan.NewRange
	}
	return plan, nil
}

// BulkEdit replaces the day's slots with the set described by spec in one
// store call, then reloads the day. The view takes the reloaded slots, never
// the locally generated candidates. When spec yields no candidates nothing is
// sent.
func (s *Service) BulkEdit(ctx context.Context, view *DayView, spec BulkEditSpec) (*BulkEditPlan, error) {
	plan, err := s.PreviewBulkEdit(view, spec)
	if err != nil {
		return nil, err
	}
	if len(plan.Candidates) == 0 {
		return plan, nil
	}

	err = s.call(ctx, "ReplaceSlotRange", func(ctx context.Context) error {
		return s.store.ReplaceSlotRange(ctx, spec.DoctorID, spec.InstitutionID, plan.OldRange, plan.NewRange, plan.IntervalMinutes)
	},
		attribute.String("doctor_id", spec.DoctorID.String()),
		attribute.String("institution_id", spec.InstitutionID.String()),
		attribute.String("date", spec.Date.String()),
		attribute.Int("interval_minutes", spec.IntervalMinutes),
	)
	if err != nil {
		return nil, err
	}

	fresh, err := s.LoadDay(ctx, spec.DoctorID, spec.InstitutionID, spec.Date)
	if err != nil {
		return nil, fmt.Errorf("reload after bulk edit: %w", err)
	}
	if view != nil {
		view.Slots = fresh.Slots
	}
	return plan, nil
}

// -- Deletion and booking lifecycle --

// DeleteSlot removes an available slot and evicts it from the view.
func (s *Service) DeleteSlot(ctx context.Context, view *DayView, slotID string) error {
	idx, ok := view.Find(slotID)
	if !ok {
		return fmt.Errorf("delete slot %s: %w", slotID, ErrSlotNotFound)
	}
	if err := checkTransition(view.Slots[idx], SlotDeleted); err != nil {
		return err
	}

	err := s.call(ctx, "DeleteSlot", func(ctx context.Context) error {
		return s.store.DeleteSlot(ctx, slotID)
	}, attribute.String("slot_id", slotID))
	if err != nil {
		return err
	}

	view.Slots = append(view.Slots[:idx:idx], view.Slots[idx+1:]...)
	return nil
}

// BookSlot links visitID to an available slot.
func (s *Service) BookSlot(ctx context.Context, view *DayView, slotID string, visitID uuid.UUID) error {
	idx, ok := view.Find(slotID)
	if !ok {
		return fmt.Errorf("book slot %s: %w", slotID, ErrSlotNotFound)
	}
	if err := checkTransition(view.Slots[idx], SlotBooked); err != nil {
		return err
	}

	err := s.call(ctx, "BookSlot", func(ctx context.Context) error {
		return s.store.BookSlot(ctx, slotID, visitID)
	}, attribute.String("slot_id", slotID), attribute.String("visit_id", visitID.String()))
	if err != nil {
		return err
	}

	v := visitID
	view.Slots[idx].VisitID = &v
	view.Slots[idx].State = SlotBooked
	view.Slots[idx].Booked = true
	return nil
}

// CancelSlot marks a booked slot cancelled.
func (s *Service) CancelSlot(ctx context.Context, view *DayView, slotID string) error {
	return s.setState(ctx, view, slotID, SlotCancelled)
}

// CompleteSlot marks a booked slot completed.
func (s *Service) CompleteSlot(ctx context.Context, view *DayView, slotID string) error {
	return s.setState(ctx, view, slotID, SlotCompleted)
}

func (s *Service) setState(ctx context.Context, view *DayView, slotID string, to SlotState) error {
	idx, ok := view.Find(slotID)
	if !ok {
		return fmt.Errorf("set slot %s %s: %w", slotID, to, ErrSlotNotFound)
	}
	if err := checkTransition(view.Slots[idx], to); err != nil {
		return err
	}

	err := s.call(ctx, "SetSlotState", func(ctx context.Context) error {
		return s.store.SetSlotState(ctx, slotID, to)
	}, attribute.String("slot_id", slotID), attribute.String("state", string(to)))
	if err != nil {
		return err
	}

	view.Slots[idx].State = to
	view.Slots[idx].Booked = to == SlotCompleted
	return nil
}

// Reschedule moves the visit booked on fromSlotID to toSlotID. The target
// may lie outside the view; it is updated locally only when present.
func (s *Service) Reschedule(ctx context.Context, view *DayView, fromSlotID, toSlotID string) error {
	from, ok := view.Find(fromSlotID)
	if !ok {
		return fmt.Errorf("reschedule from %s: %w", fromSlotID, ErrSlotNotFound)
	}
	src := view.Slots[from]
	if src.State != SlotBooked || src.VisitID == nil {
		return fmt.Errorf("reschedule from %s in state %s: %w", fromSlotID, src.State, ErrInvalidTransition)
	}
	to, toInView := view.Find(toSlotID)
	if toInView {
		if err := checkTransition(view.Slots[to], SlotBooked); err != nil {
			return err
		}
	}
	visitID := *src.VisitID

	err := s.call(ctx, "Reschedule", func(ctx context.Context) error {
		return s.store.Reschedule(ctx, visitID, fromSlotID, toSlotID)
	},
		attribute.String("visit_id", visitID.String()),
		attribute.String("from_slot_id", fromSlotID),
		attribute.String("to_slot_id", toSlotID),
	)
	if err != nil {
		return err
	}

	view.Slots[from].VisitID = nil
	view.Slots[from].State = SlotAvailable
	view.Slots[from].Booked = false
	if toInView {
		v := visitID
		view.Slots[to].VisitID = &v
		view.Slots[to].State = SlotBooked
		view.Slots[to].Booked = true
	}
	return nil
}

func checkTransition(rec ScheduleRecord, to SlotState) error {
	if err := transitionError(rec.State, to); err != nil {
		return fmt.Errorf("slot %s: %w", rec.ID, err)
	}
	return nil
}
