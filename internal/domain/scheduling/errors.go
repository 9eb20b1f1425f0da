package scheduling

import (
	"context"
	"errors"
	"fmt"
)

// Errors surfaced by the mutation service. Store implementations return (or wrap)
// ErrSlotConflict and ErrSlotNotFound; anything else is reported as ErrOperationFailed.
var (
	ErrSlotConflict      = errors.New("slot conflicts with an existing booking")
	ErrSlotAlreadyBooked = fmt.Errorf("%w: slot is already booked", ErrSlotConflict)
	ErrSlotOverlap       = fmt.Errorf("%w: slot overlaps another slot on the same day", ErrSlotConflict)
	ErrSlotNotFound      = errors.New("slot not found")
	ErrVisitNotFound     = errors.New("visit not found")
	ErrOperationFailed   = errors.New("operation failed")
	ErrInvalidTimeRange  = errors.New("start must be before end")
	ErrInvalidInterval   = errors.New("interval_minutes must be between 1 and 1440")
	ErrInvalidTransition = errors.New("invalid slot state transition")
	ErrDayMismatch       = errors.New("day view does not match the requested doctor, institution and date")
	ErrMissingField      = errors.New("required field missing")
)

// IsConflict reports whether err signals a double booking.
func IsConflict(err error) bool { return errors.Is(err, ErrSlotConflict) }

// IsNotFound reports whether err signals a slot or visit that no longer exists.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSlotNotFound) || errors.Is(err, ErrVisitNotFound)
}

// IsInvalid reports whether err was caused by the caller's input.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidTimeRange) || errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrDayMismatch) ||
		errors.Is(err, ErrMissingField)
}

// classify maps a store error onto the service taxonomy. Conflicts, missing
// records and rejected input keep their identity; every other failure,
// including timeouts, becomes ErrOperationFailed so callers can offer a
// manual retry.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case IsConflict(err), IsNotFound(err), IsInvalid(err), errors.Is(err, ErrOperationFailed):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: timed out", op, ErrOperationFailed)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrOperationFailed, err)
	}
}
