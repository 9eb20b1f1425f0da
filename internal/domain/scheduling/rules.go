package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Conflict rules shared by the SlotStore implementations.

// transitionError returns nil when a slot may move from one state to another.
// Booking or deleting a booked slot is a conflict; any other illegal move is
// ErrInvalidTransition.
func transitionError(from, to SlotState) error {
	if from == SlotBooked && (to == SlotBooked || to == SlotDeleted) {
		return ErrSlotAlreadyBooked
	}
	if !from.CanTransition(to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}

// planReplace decides which of a doctor's live slots a range replacement
// drops and which new slots it creates.
//
// Available slots at institutionID that start inside oldRange (both ends
// inclusive, since the old range may end on the last slot's start) or overlap
// a new slot are dropped. A booked slot in either position refuses the whole
// replacement. Other slots that overlap a new slot are kept and the new slot
// is skipped.
func planReplace(existing []ScheduleRecord, institutionID uuid.UUID, oldRange, newRange TimeRange, intervalMinutes int) (drop []string, create []TimeRange, err error) {
	if intervalMinutes <= 0 || intervalMinutes > MaxIntervalMinutes {
		return nil, nil, ErrInvalidInterval
	}
	if !newRange.Valid() || oldRange.End.Before(oldRange.Start) {
		return nil, nil, ErrInvalidTimeRange
	}

	candidates := sliceRange(newRange, intervalMinutes)

	var keep []TimeRange
	for _, s := range existing {
		if s.State == SlotDeleted {
			continue
		}
		sameInstitution := s.InstitutionID == institutionID
		inOld := sameInstitution && startsWithin(s.Start, oldRange)
		overlapsNew := overlapsAny(s.Range(), candidates)

		switch {
		case s.State == SlotBooked && (inOld || overlapsNew):
			return nil, nil, fmt.Errorf("slot %s: %w", s.ID, ErrSlotAlreadyBooked)
		case s.State == SlotAvailable && sameInstitution && (inOld || overlapsNew):
			drop = append(drop, s.ID)
		case overlapsNew && occupies(s.State):
			keep = append(keep, s.Range())
		}
	}

	for _, c := range candidates {
		if !overlapsAny(c, keep) {
			create = append(create, c)
		}
	}
	return drop, create, nil
}

// sliceRange cuts r into whole slots of intervalMinutes.
func sliceRange(r TimeRange, intervalMinutes int) []TimeRange {
	if intervalMinutes <= 0 || intervalMinutes > MaxIntervalMinutes {
		return nil
	}
	step := time.Duration(intervalMinutes) * time.Minute
	var out []TimeRange
	for t := r.Start; !t.Add(step).After(r.End); t = t.Add(step) {
		out = append(out, TimeRange{Start: t, End: t.Add(step)})
	}
	return out
}

func startsWithin(t time.Time, r TimeRange) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

func overlapsAny(r TimeRange, ranges []TimeRange) bool {
	for _, o := range ranges {
		if r.Overlaps(o) {
			return true
		}
	}
	return false
}

// occupies reports whether a slot in state st holds its time.
func occupies(st SlotState) bool {
	return st != SlotDeleted && st != SlotCancelled
}
