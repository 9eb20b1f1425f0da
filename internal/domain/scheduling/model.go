package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SlotState is the lifecycle state of a persisted slot.
type SlotState string

const (
	SlotAvailable SlotState = "available"
	SlotBooked    SlotState = "booked"
	SlotCompleted SlotState = "completed"
	SlotCancelled SlotState = "cancelled"
	SlotDeleted   SlotState = "deleted"
)

var validSlotStates = map[SlotState]bool{
	SlotAvailable: true, SlotBooked: true, SlotCompleted: true,
	SlotCancelled: true, SlotDeleted: true,
}

// Booked slots only leave the booked state through completion, cancellation
// or Reschedule, which frees the slot as part of an atomic move.
var slotTransitions = map[SlotState][]SlotState{
	SlotAvailable: {SlotBooked, SlotDeleted},
	SlotBooked:    {SlotCompleted, SlotCancelled},
}

// Spellings seen from upstream endpoints, folded into the canonical states.
var slotStateAliases = map[string]SlotState{
	"canceled":  SlotCancelled,
	"free":      SlotAvailable,
	"busy":      SlotBooked,
	"fulfilled": SlotCompleted,
}

// Valid reports whether s is a known state.
func (s SlotState) Valid() bool { return validSlotStates[s] }

// CanTransition reports whether a slot in state s may move to state to.
func (s SlotState) CanTransition(to SlotState) bool {
	for _, next := range slotTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseSlotState normalises a state string from the boundary.
func ParseSlotState(s string) (SlotState, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := slotStateAliases[v]; ok {
		return alias, nil
	}
	st := SlotState(v)
	if !st.Valid() {
		return "", fmt.Errorf("unknown slot state %q", s)
	}
	return st, nil
}

const generatedIDPrefix = "generated-"

// GeneratedSlotID returns the synthetic id of a candidate slot starting
// offsetMinutes after midnight.
func GeneratedSlotID(offsetMinutes int) string {
	return fmt.Sprintf("%s%d", generatedIDPrefix, offsetMinutes)
}

// TimeSlot is a half-open bookable interval.
type TimeSlot struct {
	ID     string    `json:"id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Booked bool      `json:"booked"`
}

// IsGenerated reports whether the slot is an unsaved candidate.
func (s TimeSlot) IsGenerated() bool {
	return strings.HasPrefix(s.ID, generatedIDPrefix)
}

func (s TimeSlot) Duration() time.Duration { return s.End.Sub(s.Start) }

func (s TimeSlot) Range() TimeRange { return TimeRange{Start: s.Start, End: s.End} }

// ScheduleRecord is a persisted slot bound to one doctor at one institution.
type ScheduleRecord struct {
	TimeSlot
	DoctorID      uuid.UUID  `json:"doctor_id"`
	InstitutionID uuid.UUID  `json:"institution_id"`
	VisitID       *uuid.UUID `json:"visit_id,omitempty"`
	State         SlotState  `json:"state"`
}

// RawScheduleRecord is a slot as it crosses the store boundary. Timestamps are
// either the legacy "yyyy-MM-dd HH:mm:ss" form or ISO-8601; State may be empty
// or use an upstream spelling.
type RawScheduleRecord struct {
	ID            string     `json:"id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	InstitutionID uuid.UUID  `json:"institution_id"`
	VisitID       *uuid.UUID `json:"visit_id,omitempty"`
	Start         string     `json:"start"`
	End           string     `json:"end"`
	State         string     `json:"state,omitempty"`
}

// ParseIssue describes a raw record that could not be normalised.
type ParseIssue struct {
	RecordID string `json:"record_id"`
	Field    string `json:"field"`
	Value    string `json:"value"`
	Reason   string `json:"reason"`
}

func (p ParseIssue) Error() string {
	return fmt.Sprintf("record %s: %s %q: %s", p.RecordID, p.Field, p.Value, p.Reason)
}

// Normalize converts r into its canonical in-memory shape. Zoneless
// timestamps are read in loc.
func (r RawScheduleRecord) Normalize(loc *time.Location) (ScheduleRecord, *ParseIssue) {
	start, err := ParseTimestamp(r.Start, loc)
	if err != nil {
		return ScheduleRecord{}, &ParseIssue{RecordID: r.ID, Field: "start", Value: r.Start, Reason: err.Error()}
	}
	end, err := ParseTimestamp(r.End, loc)
	if err != nil {
		return ScheduleRecord{}, &ParseIssue{RecordID: r.ID, Field: "end", Value: r.End, Reason: err.Error()}
	}
	if !start.Before(end) {
		return ScheduleRecord{}, &ParseIssue{RecordID: r.ID, Field: "end", Value: r.End, Reason: ErrInvalidTimeRange.Error()}
	}

	state := SlotAvailable
	if r.VisitID != nil {
		state = SlotBooked
	}
	if r.State != "" {
		st, err := ParseSlotState(r.State)
		if err != nil {
			return ScheduleRecord{}, &ParseIssue{RecordID: r.ID, Field: "state", Value: r.State, Reason: err.Error()}
		}
		state = st
	}

	return ScheduleRecord{
		TimeSlot: TimeSlot{
			ID:     r.ID,
			Start:  start,
			End:    end,
			Booked: state == SlotBooked || state == SlotCompleted,
		},
		DoctorID:      r.DoctorID,
		InstitutionID: r.InstitutionID,
		VisitID:       r.VisitID,
		State:         state,
	}, nil
}

// MaxIntervalMinutes is the longest slot a day can hold.
const MaxIntervalMinutes = 24 * 60

// BulkEditSpec describes the replacement slot set for one doctor, institution and day.
type BulkEditSpec struct {
	DoctorID        uuid.UUID `json:"doctor_id"`
	InstitutionID   uuid.UUID `json:"institution_id"`
	Date            Date      `json:"date"`
	StartTime       TimeOfDay `json:"start_time"`
	EndTime         TimeOfDay `json:"end_time"`
	IntervalMinutes int       `json:"interval_minutes"`
}

// Validate checks the invariants of a bulk edit.
func (b BulkEditSpec) Validate() error {
	if b.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id: %w", ErrMissingField)
	}
	if b.InstitutionID == uuid.Nil {
		return fmt.Errorf("institution_id: %w", ErrMissingField)
	}
	if b.Date.IsZero() {
		return fmt.Errorf("date: %w", ErrMissingField)
	}
	if b.IntervalMinutes <= 0 || b.IntervalMinutes > MaxIntervalMinutes {
		return ErrInvalidInterval
	}
	if b.StartTime.Minutes() >= b.EndTime.Minutes() {
		return ErrInvalidTimeRange
	}
	return nil
}

// NewRange is the span the generated slots are drawn from.
func (b BulkEditSpec) NewRange(loc *time.Location) TimeRange {
	return TimeRange{Start: b.StartTime.On(b.Date, loc), End: b.EndTime.On(b.Date, loc)}
}

// RangePolicy selects how the old range of a bulk edit is derived from the
// slots currently displayed for the day.
type RangePolicy string

const (
	// RangeStarts spans the earliest slot start to the latest slot start.
	RangeStarts RangePolicy = "starts"
	// RangeCovered spans the earliest slot start to the latest slot end.
	RangeCovered RangePolicy = "covered"
)

// ParseRangePolicy accepts "starts" or "covered"; empty means RangeStarts.
func ParseRangePolicy(s string) (RangePolicy, error) {
	switch RangePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RangeStarts:
		return RangeStarts, nil
	case RangeCovered:
		return RangeCovered, nil
	default:
		return "", fmt.Errorf("unknown bulk edit range policy %q", s)
	}
}

// DayView is the slot list of one doctor at one institution on one day, as
// shown to a caller. It is owned by the caller; the service only mutates it
// after the store acknowledges a change.
type DayView struct {
	DoctorID      uuid.UUID        `json:"doctor_id"`
	InstitutionID uuid.UUID        `json:"institution_id"`
	Date          Date             `json:"date"`
	Slots         []ScheduleRecord `json:"slots"`
}

// Find returns the index of the slot with the given id.
func (v *DayView) Find(slotID string) (int, bool) {
	for i := range v.Slots {
		if v.Slots[i].ID == slotID {
			return i, true
		}
	}
	return -1, false
}

// OldRange derives the span currently covered by the view's slots. ok is false
// when the view holds no slots.
func (v *DayView) OldRange(policy RangePolicy) (r TimeRange, ok bool) {
	for i, s := range v.Slots {
		end := s.Start
		if policy == RangeCovered {
			end = s.End
		}
		if i == 0 {
			r = TimeRange{Start: s.Start, End: end}
			continue
		}
		if s.Start.Before(r.Start) {
			r.Start = s.Start
		}
		if end.After(r.End) {
			r.End = end
		}
	}
	return r, len(v.Slots) > 0
}
