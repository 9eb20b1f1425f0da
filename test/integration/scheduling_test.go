package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/availability/internal/domain/scheduling"
)

func at(h, m int) time.Time {
	return time.Date(2024, 6, 10, h, m, 0, 0, time.UTC)
}

// seedSlots creates a window of available slots and returns their ids in
// start order.
func seedSlots(t *testing.T, store scheduling.SlotStore, doctorID, institutionID uuid.UUID, from, to time.Time, interval int) []string {
	t.Helper()
	ctx := context.Background()
	err := store.ReplaceSlotRange(ctx, doctorID, institutionID,
		scheduling.TimeRange{Start: from, End: from},
		scheduling.TimeRange{Start: from, End: to}, interval)
	if err != nil {
		t.Fatalf("seed slots: %v", err)
	}
	recs, err := store.FetchSlots(ctx, doctorID, &institutionID)
	if err != nil {
		t.Fatalf("fetch slots: %v", err)
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

func TestSlotStorePG_ReplaceSlotRange(t *testing.T) {
	pool := newSchemaPool(t)
	ctx := context.Background()
	store := scheduling.NewSlotStorePG(pool, time.UTC)
	doc, inst := uuid.New(), uuid.New()

	ids := seedSlots(t, store, doc, inst, at(9, 0), at(11, 0), 30)
	if len(ids) != 4 {
		t.Fatalf("expected 4 seeded slots, got %d", len(ids))
	}

	t.Run("ReplaceWithShorterInterval", func(t *testing.T) {
		err := store.ReplaceSlotRange(ctx, doc, inst,
			scheduling.TimeRange{Start: at(9, 0), End: at(10, 30)},
			scheduling.TimeRange{Start: at(9, 0), End: at(10, 0)}, 20)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		recs, err := store.FetchSlots(ctx, doc, &inst)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if len(recs) != 3 {
			t.Fatalf("expected 3 slots, got %d", len(recs))
		}
		if recs[0].Start != "2024-06-10T09:00:00Z" || recs[2].End != "2024-06-10T10:00:00Z" {
			t.Errorf("unexpected bounds %s - %s", recs[0].Start, recs[2].End)
		}
		for _, r := range recs {
			if r.State != string(scheduling.SlotAvailable) {
				t.Errorf("expected available, got %s", r.State)
			}
		}
	})

	t.Run("RefusesBookedSlot", func(t *testing.T) {
		recs, _ := store.FetchSlots(ctx, doc, &inst)
		if err := store.BookSlot(ctx, recs[1].ID, uuid.New()); err != nil {
			t.Fatalf("book: %v", err)
		}
		err := store.ReplaceSlotRange(ctx, doc, inst,
			scheduling.TimeRange{Start: at(9, 0), End: at(9, 40)},
			scheduling.TimeRange{Start: at(9, 0), End: at(10, 0)}, 15)
		if !errors.Is(err, scheduling.ErrSlotAlreadyBooked) {
			t.Fatalf("expected ErrSlotAlreadyBooked, got %v", err)
		}
		after, _ := store.FetchSlots(ctx, doc, &inst)
		if len(after) != len(recs) {
			t.Errorf("expected the refused replacement to roll back, got %d slots", len(after))
		}
	})

	t.Run("SkipsSlotsAtAnotherInstitution", func(t *testing.T) {
		other := uuid.New()
		seedSlots(t, store, doc, other, at(14, 0), at(15, 0), 60)
		err := store.ReplaceSlotRange(ctx, doc, inst,
			scheduling.TimeRange{Start: at(13, 0), End: at(13, 0)},
			scheduling.TimeRange{Start: at(13, 0), End: at(16, 0)}, 60)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		held, _ := store.FetchSlots(ctx, doc, &other)
		if len(held) != 1 {
			t.Errorf("expected the other institution to keep its slot, got %d", len(held))
		}
		all, _ := store.FetchSlots(ctx, doc, nil)
		var afternoon int
		for _, r := range all {
			if r.InstitutionID == inst && r.Start >= "2024-06-10T13:00:00Z" {
				afternoon++
			}
		}
		if afternoon != 2 {
			t.Errorf("expected 13:00 and 15:00 to be created, got %d", afternoon)
		}
	})
}

func TestSlotStorePG_UpdateAndDelete(t *testing.T) {
	pool := newSchemaPool(t)
	ctx := context.Background()
	store := scheduling.NewSlotStorePG(pool, time.UTC)
	doc, inst := uuid.New(), uuid.New()
	ids := seedSlots(t, store, doc, inst, at(9, 0), at(10, 0), 30)

	if err := store.UpdateSlot(ctx, ids[0], at(8, 30), at(9, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.UpdateSlot(ctx, ids[0], at(9, 15), at(9, 45)); !errors.Is(err, scheduling.ErrSlotOverlap) {
		t.Errorf("expected ErrSlotOverlap, got %v", err)
	}
	if err := store.UpdateSlot(ctx, uuid.NewString(), at(7, 0), at(7, 30)); !errors.Is(err, scheduling.ErrSlotNotFound) {
		t.Errorf("expected ErrSlotNotFound, got %v", err)
	}
	if err := store.UpdateSlot(ctx, "generated-0", at(7, 0), at(7, 30)); !errors.Is(err, scheduling.ErrSlotNotFound) {
		t.Errorf("expected a generated id to be unknown, got %v", err)
	}

	if err := store.DeleteSlot(ctx, ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteSlot(ctx, ids[0]); !errors.Is(err, scheduling.ErrSlotNotFound) {
		t.Errorf("expected a deleted slot to be gone, got %v", err)
	}
	recs, _ := store.FetchSlots(ctx, doc, nil)
	if len(recs) != 1 || recs[0].ID != ids[1] {
		t.Errorf("expected only %s to remain, got %+v", ids[1], recs)
	}

	// The freed time can be taken again.
	if err := store.UpdateSlot(ctx, ids[1], at(8, 30), at(9, 0)); err != nil {
		t.Errorf("expected the deleted slot's time to be free, got %v", err)
	}
}

func TestSlotStorePG_BookingLifecycle(t *testing.T) {
	pool := newSchemaPool(t)
	ctx := context.Background()
	store := scheduling.NewSlotStorePG(pool, time.UTC)
	doc, inst := uuid.New(), uuid.New()
	ids := seedSlots(t, store, doc, inst, at(9, 0), at(10, 30), 30)
	visit := uuid.New()

	if err := store.BookSlot(ctx, ids[0], visit); err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := store.BookSlot(ctx, ids[0], uuid.New()); !errors.Is(err, scheduling.ErrSlotAlreadyBooked) {
		t.Errorf("expected double booking to conflict, got %v", err)
	}
	if err := store.BookSlot(ctx, ids[1], visit); !scheduling.IsConflict(err) {
		t.Errorf("expected one visit holding two slots to conflict, got %v", err)
	}
	if err := store.DeleteSlot(ctx, ids[0]); !errors.Is(err, scheduling.ErrSlotAlreadyBooked) {
		t.Errorf("expected a booked slot to refuse deletion, got %v", err)
	}

	if err := store.Reschedule(ctx, visit, ids[0], ids[2]); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	recs, _ := store.FetchSlots(ctx, doc, &inst)
	byID := map[string]scheduling.RawScheduleRecord{}
	for _, r := range recs {
		byID[r.ID] = r
	}
	if byID[ids[0]].State != "available" || byID[ids[0]].VisitID != nil {
		t.Errorf("expected the source slot to be freed, got %+v", byID[ids[0]])
	}
	if byID[ids[2]].State != "booked" || byID[ids[2]].VisitID == nil || *byID[ids[2]].VisitID != visit {
		t.Errorf("expected the target slot to hold the visit, got %+v", byID[ids[2]])
	}
	if err := store.Reschedule(ctx, visit, ids[0], ids[1]); !errors.Is(err, scheduling.ErrVisitNotFound) {
		t.Errorf("expected ErrVisitNotFound, got %v", err)
	}

	if err := store.SetSlotState(ctx, ids[2], scheduling.SlotCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.SetSlotState(ctx, ids[2], scheduling.SlotCancelled); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Errorf("expected completed to be final, got %v", err)
	}
	if err := store.SetSlotState(ctx, ids[1], scheduling.SlotBooked); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Errorf("expected booking through SetSlotState to be refused, got %v", err)
	}
}

func TestSlotStorePG_ConcurrentBooking(t *testing.T) {
	pool := newSchemaPool(t)
	ctx := context.Background()
	store := scheduling.NewSlotStorePG(pool, time.UTC)
	doc, inst := uuid.New(), uuid.New()
	ids := seedSlots(t, store, doc, inst, at(9, 0), at(9, 30), 30)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.BookSlot(ctx, ids[0], uuid.New())
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !scheduling.IsConflict(err) {
				t.Errorf("expected a conflict, got %v", err)
			}
		}()
	}
	wg.Wait()
	if succeeded != 1 {
		t.Errorf("expected exactly one booking to win, got %d", succeeded)
	}
}

func TestSlotStorePG_ServiceBulkEdit(t *testing.T) {
	pool := newSchemaPool(t)
	ctx := context.Background()
	store := scheduling.NewSlotStorePG(pool, time.UTC)
	doc, inst := uuid.New(), uuid.New()
	seedSlots(t, store, doc, inst, at(9, 0), at(10, 0), 30)

	svc := scheduling.NewService(store, zerolog.Nop(), scheduling.Options{Location: time.UTC})
	day := scheduling.Date{Year: 2024, Month: time.June, Day: 10}
	view, err := svc.LoadDay(ctx, doc, inst, day)
	if err != nil {
		t.Fatalf("load day: %v", err)
	}
	if len(view.Slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(view.Slots))
	}

	start, _ := scheduling.ParseTimeOfDay("09:00")
	end, _ := scheduling.ParseTimeOfDay("10:30")
	plan, err := svc.BulkEdit(ctx, view, scheduling.BulkEditSpec{
		DoctorID:        doc,
		InstitutionID:   inst,
		Date:            day,
		StartTime:       start,
		EndTime:         end,
		IntervalMinutes: 15,
	})
	if err != nil {
		t.Fatalf("bulk edit: %v", err)
	}
	if len(plan.Candidates) != 6 {
		t.Errorf("expected 6 candidates, got %d", len(plan.Candidates))
	}
	if len(view.Slots) != 6 {
		t.Fatalf("expected the view to hold the 6 reloaded slots, got %d", len(view.Slots))
	}
	for _, s := range view.Slots {
		if s.IsGenerated() {
			t.Errorf("expected stored ids after reload, got %s", s.ID)
		}
	}
}
