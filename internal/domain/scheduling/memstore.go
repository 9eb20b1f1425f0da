package scheduling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory SlotStore. It enforces the same conflict rules
// as the Postgres store and backs dev mode and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]*ScheduleRecord
	// visit ID -> slot ID, prevents a visit holding two slots.
	visits map[uuid.UUID]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots:  make(map[string]*ScheduleRecord),
		visits: make(map[uuid.UUID]string),
	}
}

// AddSlot inserts rec as-is, assigning an id when it has none. Used for
// seeding and test setup.
func (m *MemoryStore) AddSlot(rec ScheduleRecord) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.ID == "" || rec.IsGenerated() {
		rec.ID = uuid.New().String()
	}
	if rec.State == "" {
		rec.State = SlotAvailable
	}
	if rec.VisitID != nil {
		m.visits[*rec.VisitID] = rec.ID
	}
	r := rec
	m.slots[rec.ID] = &r
	return rec.ID
}

// Slot returns a copy of the slot with the given id, including deleted ones.
func (m *MemoryStore) Slot(slotID string) (ScheduleRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[slotID]
	if !ok {
		return ScheduleRecord{}, false
	}
	return *s, true
}

func (m *MemoryStore) ReplaceSlotRange(ctx context.Context, doctorID, institutionID uuid.UUID, oldRange, newRange TimeRange, intervalMinutes int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var existing []ScheduleRecord
	for _, sl := range m.slots {
		if sl.DoctorID == doctorID && sl.State != SlotDeleted {
			existing = append(existing, *sl)
		}
	}
	drop, create, err := planReplace(existing, institutionID, oldRange, newRange, intervalMinutes)
	if err != nil {
		return err
	}

	for _, id := range drop {
		delete(m.slots, id)
	}
	for _, r := range create {
		id := uuid.New().String()
		m.slots[id] = &ScheduleRecord{
			TimeSlot:      TimeSlot{ID: id, Start: r.Start, End: r.End},
			DoctorID:      doctorID,
			InstitutionID: institutionID,
			State:         SlotAvailable,
		}
	}
	return nil
}

func (m *MemoryStore) UpdateSlot(ctx context.Context, slotID string, start, end time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !start.Before(end) {
		return ErrInvalidTimeRange
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.live(slotID)
	if err != nil {
		return err
	}
	r := TimeRange{Start: start, End: end}
	for id, o := range m.slots {
		if id == slotID || o.DoctorID != s.DoctorID || !occupies(o.State) {
			continue
		}
		if r.Overlaps(o.Range()) {
			return ErrSlotOverlap
		}
	}
	s.Start, s.End = start, end
	return nil
}

func (m *MemoryStore) DeleteSlot(ctx context.Context, slotID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.live(slotID)
	if err != nil {
		return err
	}
	if err := transitionError(s.State, SlotDeleted); err != nil {
		return err
	}
	s.State = SlotDeleted
	return nil
}

func (m *MemoryStore) FetchSlots(ctx context.Context, doctorID uuid.UUID, institutionID *uuid.UUID) ([]RawScheduleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var recs []*ScheduleRecord
	for _, s := range m.slots {
		if s.DoctorID != doctorID || s.State == SlotDeleted {
			continue
		}
		if institutionID != nil && s.InstitutionID != *institutionID {
			continue
		}
		recs = append(recs, s)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Start.Equal(recs[j].Start) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].Start.Before(recs[j].Start)
	})

	out := make([]RawScheduleRecord, 0, len(recs))
	for _, s := range recs {
		out = append(out, RawScheduleRecord{
			ID:            s.ID,
			DoctorID:      s.DoctorID,
			InstitutionID: s.InstitutionID,
			VisitID:       s.VisitID,
			Start:         s.Start.Format(time.RFC3339),
			End:           s.End.Format(time.RFC3339),
			State:         string(s.State),
		})
	}
	return out, nil
}

func (m *MemoryStore) BookSlot(ctx context.Context, slotID string, visitID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.live(slotID)
	if err != nil {
		return err
	}
	if err := transitionError(s.State, SlotBooked); err != nil {
		return err
	}
	if held, ok := m.visits[visitID]; ok && held != slotID {
		if other := m.slots[held]; other != nil && other.State == SlotBooked {
			return ErrSlotConflict
		}
	}
	v := visitID
	s.VisitID = &v
	s.State = SlotBooked
	s.Booked = true
	m.visits[visitID] = slotID
	return nil
}

func (m *MemoryStore) SetSlotState(ctx context.Context, slotID string, state SlotState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.live(slotID)
	if err != nil {
		return err
	}
	if state == SlotBooked {
		return fmt.Errorf("book through BookSlot: %w", ErrInvalidTransition)
	}
	if err := transitionError(s.State, state); err != nil {
		return err
	}
	s.State = state
	if state == SlotCancelled && s.VisitID != nil {
		delete(m.visits, *s.VisitID)
	}
	return nil
}

func (m *MemoryStore) Reschedule(ctx context.Context, visitID uuid.UUID, fromSlotID, toSlotID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from, err := m.live(fromSlotID)
	if err != nil {
		return err
	}
	if from.State != SlotBooked || from.VisitID == nil || *from.VisitID != visitID {
		return ErrVisitNotFound
	}
	to, err := m.live(toSlotID)
	if err != nil {
		return err
	}
	if err := transitionError(to.State, SlotBooked); err != nil {
		return err
	}

	v := visitID
	to.VisitID, to.State, to.Booked = &v, SlotBooked, true
	from.VisitID, from.State, from.Booked = nil, SlotAvailable, false
	m.visits[visitID] = toSlotID
	return nil
}

// live returns the slot unless it is missing or deleted. Callers hold mu.
func (m *MemoryStore) live(slotID string) (*ScheduleRecord, error) {
	s, ok := m.slots[slotID]
	if !ok || s.State == SlotDeleted {
		return nil, ErrSlotNotFound
	}
	return s, nil
}
