package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SlotStore is the persistence collaborator. It is the final arbiter of
// booking conflicts: implementations return (or wrap) ErrSlotConflict when a
// change would drop or overlap a booked slot, and ErrSlotNotFound when the
// referenced slot or visit no longer exists.
type SlotStore interface {
	// ReplaceSlotRange drops the unbooked slots of doctorID at institutionID
	// that start inside oldRange and creates slots of intervalMinutes across
	// newRange, in one transaction.
	ReplaceSlotRange(ctx context.Context, doctorID, institutionID uuid.UUID, oldRange, newRange TimeRange, intervalMinutes int) error
	UpdateSlot(ctx context.Context, slotID string, start, end time.Time) error
	DeleteSlot(ctx context.Context, slotID string) error
	// FetchSlots lists every live slot of a doctor, optionally limited to one institution.
	FetchSlots(ctx context.Context, doctorID uuid.UUID, institutionID *uuid.UUID) ([]RawScheduleRecord, error)

	BookSlot(ctx context.Context, slotID string, visitID uuid.UUID) error
	SetSlotState(ctx context.Context, slotID string, state SlotState) error
	// Reschedule moves visitID from one slot to another atomically.
	Reschedule(ctx context.Context, visitID uuid.UUID, fromSlotID, toSlotID string) error
}
