package scheduling

import (
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

func raw(id, start, end string) RawScheduleRecord {
	return RawScheduleRecord{ID: id, Start: start, End: end}
}

func TestGroupByDate_MixedFormats(t *testing.T) {
	recs := []RawScheduleRecord{
		raw("a", "2024-06-10 09:00:00", "2024-06-10 09:30:00"),
		raw("b", "2024-06-11T10:00:00Z", "2024-06-11T10:30:00Z"),
		raw("c", "2024-06-10T09:30:00", "2024-06-10T10:00:00"),
	}
	g := GroupByDate(recs, time.UTC)

	if len(g.Issues) != 0 {
		t.Fatalf("unexpected issues: %v", g.Issues)
	}
	if len(g.Order) != 2 || g.Order[0] != "2024-06-10" || g.Order[1] != "2024-06-11" {
		t.Fatalf("unexpected order %v", g.Order)
	}
	day := g.Days["2024-06-10"]
	if day.DayName != "Monday" || day.DayNumber != 10 {
		t.Errorf("unexpected bucket header %s %d", day.DayName, day.DayNumber)
	}
	if len(day.Slots) != 2 || day.Slots[0].ID != "a" || day.Slots[1].ID != "c" {
		t.Errorf("expected input order a, c; got %+v", day.Slots)
	}
}

func TestGroupByDate_ReportsUnparsable(t *testing.T) {
	recs := []RawScheduleRecord{
		raw("ok", "2024-06-10 09:00:00", "2024-06-10 09:30:00"),
		raw("bad", "10/06/2024 09:00", "2024-06-10 09:30:00"),
	}
	g := GroupByDate(recs, time.UTC)
	if len(g.Issues) != 1 || g.Issues[0].RecordID != "bad" || g.Issues[0].Field != "start" {
		t.Fatalf("expected one issue for record bad, got %v", g.Issues)
	}
	total := 0
	for _, b := range g.Days {
		total += len(b.Slots)
	}
	if total != 1 {
		t.Errorf("expected the bad record to be excluded, got %d slots", total)
	}
}

func TestGroupByDate_OrderIndependentContents(t *testing.T) {
	recs := []RawScheduleRecord{
		raw("1", "2024-06-10 09:00:00", "2024-06-10 09:30:00"),
		raw("2", "2024-06-12 09:00:00", "2024-06-12 09:30:00"),
		raw("3", "2024-06-10 11:00:00", "2024-06-10 11:30:00"),
		raw("4", "2024-06-11T08:00:00Z", "2024-06-11T08:30:00Z"),
		raw("5", "2024-06-10 07:00:00", "2024-06-10 07:30:00"),
	}
	reversed := make([]RawScheduleRecord, len(recs))
	for i := range recs {
		reversed[len(recs)-1-i] = recs[i]
	}

	a := GroupByDate(recs, time.UTC)
	b := GroupByDate(reversed, time.UTC)

	ids := func(g Grouping, key string) []string {
		var out []string
		for _, s := range g.Days[key].Slots {
			out = append(out, s.ID)
		}
		sort.Strings(out)
		return out
	}
	if len(a.Order) != len(b.Order) {
		t.Fatalf("bucket counts differ: %v vs %v", a.Order, b.Order)
	}
	for i, key := range a.Order {
		if b.Order[i] != key {
			t.Fatalf("bucket order differs: %v vs %v", a.Order, b.Order)
		}
		x, y := ids(a, key), ids(b, key)
		if len(x) != len(y) {
			t.Fatalf("%s: %v vs %v", key, x, y)
		}
		for j := range x {
			if x[j] != y[j] {
				t.Errorf("%s: %v vs %v", key, x, y)
			}
		}
	}
}

func TestGrouping_HasEventsAndRefs(t *testing.T) {
	g := GroupByDate([]RawScheduleRecord{
		raw("s1", "2024-06-10 09:00:00", "2024-06-10 09:30:00"),
		raw("s2", "2024-06-10 09:30:00", "2024-06-10 10:00:00"),
	}, time.UTC)

	if !g.HasEvents(Date{2024, time.June, 10}) {
		t.Error("expected events on 2024-06-10")
	}
	if g.HasEvents(Date{2024, time.June, 11}) {
		t.Error("expected no events on 2024-06-11")
	}
	refs := g.Refs(Date{2024, time.June, 10})
	if len(refs) != 2 || refs[0] != "s1" || refs[1] != "s2" {
		t.Errorf("unexpected refs %v", refs)
	}
	if g.Refs(Date{2024, time.June, 11}) != nil {
		t.Error("expected nil refs on an empty day")
	}
}

func TestGroupByDate_Empty(t *testing.T) {
	g := GroupByDate(nil, nil)
	if g.Days == nil || len(g.Days) != 0 || len(g.Order) != 0 {
		t.Errorf("expected empty grouping, got %+v", g)
	}
}

func TestGroupByDateAndInstitution(t *testing.T) {
	instA, instB := uuid.New(), uuid.New()
	recs := []RawScheduleRecord{
		{ID: "1", InstitutionID: instB, Start: "2024-06-10 09:00:00", End: "2024-06-10 09:30:00"},
		{ID: "2", InstitutionID: instA, Start: "2024-06-10 10:00:00", End: "2024-06-10 10:30:00"},
		{ID: "3", InstitutionID: instB, Start: "2024-06-11T09:00:00", End: "2024-06-11T09:30:00"},
		{ID: "4", InstitutionID: instA, Start: "garbage", End: "2024-06-10 10:30:00"},
	}
	ig := GroupByDateAndInstitution(recs, time.UTC)

	if len(ig.Order) != 2 || ig.Order[0] != instB || ig.Order[1] != instA {
		t.Fatalf("expected institutions in first-seen order, got %v", ig.Order)
	}
	if len(ig.Issues) != 1 || ig.Issues[0].RecordID != "4" {
		t.Errorf("expected one issue for record 4, got %v", ig.Issues)
	}
	b := ig.Institutions[instB]
	if len(b.Order) != 2 || len(b.Days["2024-06-10"].Slots) != 1 || len(b.Days["2024-06-11"].Slots) != 1 {
		t.Errorf("unexpected grouping for institution B: %+v", b)
	}
	a := ig.Institutions[instA]
	if len(a.Order) != 1 || a.Days["2024-06-10"].Slots[0].ID != "2" {
		t.Errorf("unexpected grouping for institution A: %+v", a)
	}
}
