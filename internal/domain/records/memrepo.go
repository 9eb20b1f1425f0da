package records

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository for dev mode and tests.
type MemoryRepo struct {
	mu        sync.RWMutex
	visits    []*Visit
	reminders []*Reminder
	codes     []*Code
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (m *MemoryRepo) AddVisit(v *Visit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	m.visits = append(m.visits, v)
}

func (m *MemoryRepo) AddReminder(r *Reminder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.reminders = append(m.reminders, r)
}

func (m *MemoryRepo) AddCode(c *Code) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.codes = append(m.codes, c)
}

// ofPatient copies the records of patientID. Copies keep callers from racing
// with MarkReminderRead.
func ofPatient[T any](items []*T, patientID uuid.UUID, owner func(*T) uuid.UUID) []*T {
	var out []*T
	for _, it := range items {
		if owner(it) == patientID {
			c := *it
			out = append(out, &c)
		}
	}
	return out
}

func (m *MemoryRepo) ListVisits(ctx context.Context, patientID uuid.UUID) ([]*Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ofPatient(m.visits, patientID, func(v *Visit) uuid.UUID { return v.PatientID }), ctx.Err()
}

func (m *MemoryRepo) ListReminders(ctx context.Context, patientID uuid.UUID) ([]*Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ofPatient(m.reminders, patientID, func(r *Reminder) uuid.UUID { return r.PatientID }), ctx.Err()
}

func (m *MemoryRepo) ListCodes(ctx context.Context, patientID uuid.UUID) ([]*Code, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ofPatient(m.codes, patientID, func(c *Code) uuid.UUID { return c.PatientID }), ctx.Err()
}

func (m *MemoryRepo) MarkReminderRead(ctx context.Context, patientID, reminderID uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reminders {
		if r.ID == reminderID && r.PatientID == patientID {
			if r.ReadAt == nil {
				t := at
				r.ReadAt = &t
			}
			return nil
		}
	}
	return ErrReminderNotFound
}
