package records

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository loads a patient's records. Lists are returned unfiltered;
// narrowing and ordering happen in the service.
type Repository interface {
	ListVisits(ctx context.Context, patientID uuid.UUID) ([]*Visit, error)
	ListReminders(ctx context.Context, patientID uuid.UUID) ([]*Reminder, error)
	ListCodes(ctx context.Context, patientID uuid.UUID) ([]*Code, error)
	MarkReminderRead(ctx context.Context, patientID, reminderID uuid.UUID, at time.Time) error
}
