package scheduling

import (
	"math"
	"testing"
	"time"
)

var june10 = Date{Year: 2024, Month: time.June, Day: 10}

func TestGenerateSlots_Basic(t *testing.T) {
	slots := GenerateSlots(june10, TimeOfDay{9, 0}, TimeOfDay{11, 0}, 20, time.UTC)
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	if slots[0].ID != "generated-540" {
		t.Errorf("expected first id generated-540, got %s", slots[0].ID)
	}
	if !slots[5].End.Equal(time.Date(2024, 6, 10, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("expected last slot to end at 11:00, got %v", slots[5].End)
	}
	for _, s := range slots {
		if !s.IsGenerated() || s.Booked {
			t.Errorf("expected unbooked candidate, got %+v", s)
		}
	}
}

func TestGenerateSlots_DropsTrailingShortSlot(t *testing.T) {
	slots := GenerateSlots(june10, TimeOfDay{9, 0}, TimeOfDay{10, 10}, 30, time.UTC)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if got := TimeOfDayOf(slots[1].End); got != (TimeOfDay{10, 0}) {
		t.Errorf("expected second slot to end at 10:00, got %s", got)
	}

	// 09:00-17:00 at 30 minutes with a 25 minute remainder.
	slots = GenerateSlots(june10, TimeOfDay{9, 0}, TimeOfDay{16, 55}, 30, time.UTC)
	if len(slots) != 15 {
		t.Errorf("expected 15 slots, got %d", len(slots))
	}
}

func TestGenerateSlots_EmptyOnInvalidInput(t *testing.T) {
	cases := []struct {
		name       string
		start, end TimeOfDay
		interval   int
	}{
		{"equal bounds", TimeOfDay{9, 0}, TimeOfDay{9, 0}, 30},
		{"inverted", TimeOfDay{10, 0}, TimeOfDay{9, 0}, 30},
		{"zero interval", TimeOfDay{9, 0}, TimeOfDay{10, 0}, 0},
		{"negative interval", TimeOfDay{9, 0}, TimeOfDay{10, 0}, -15},
		{"interval longer than range", TimeOfDay{9, 0}, TimeOfDay{9, 20}, 30},
		{"interval near MaxInt", TimeOfDay{9, 0}, TimeOfDay{9, 1}, math.MaxInt - 100},
		{"interval of MaxInt", TimeOfDay{0, 0}, TimeOfDay{23, 59}, math.MaxInt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slots := GenerateSlots(june10, tc.start, tc.end, tc.interval, time.UTC)
			if slots == nil || len(slots) != 0 {
				t.Errorf("expected an empty, non-nil result, got %v", slots)
			}
		})
	}
}

func TestSliceRange_Bounds(t *testing.T) {
	r := TimeRange{Start: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC), End: time.Date(2024, 6, 10, 9, 1, 0, 0, time.UTC)}
	for _, n := range []int{0, -5, 2, MaxIntervalMinutes + 1, math.MaxInt - 100} {
		if got := sliceRange(r, n); len(got) != 0 {
			t.Errorf("interval %d: expected no slots, got %v", n, got)
		}
	}
	if got := sliceRange(r, 1); len(got) != 1 {
		t.Errorf("expected one minute slot, got %v", got)
	}
}

func TestGenerateSlots_Properties(t *testing.T) {
	for start := 0; start < 24*60; start += 37 {
		for end := start + 1; end <= 24*60-1; end += 101 {
			for _, interval := range []int{1, 5, 7, 15, 20, 30, 45, 60, 90} {
				s := TimeOfDay{start / 60, start % 60}
				e := TimeOfDay{end / 60, end % 60}
				slots := GenerateSlots(june10, s, e, interval, time.UTC)

				endAt := e.On(june10, time.UTC)
				if want := (end - start) / interval; len(slots) != want {
					t.Fatalf("%s-%s/%d: expected %d slots, got %d", s, e, interval, want, len(slots))
				}
				for i, slot := range slots {
					if slot.Duration() != time.Duration(interval)*time.Minute {
						t.Fatalf("%s-%s/%d: slot %d lasts %v", s, e, interval, i, slot.Duration())
					}
					if slot.End.After(endAt) {
						t.Fatalf("%s-%s/%d: slot %d ends after %s", s, e, interval, i, e)
					}
					if i > 0 && !slots[i-1].End.Equal(slot.Start) {
						t.Fatalf("%s-%s/%d: slots %d and %d are not contiguous", s, e, interval, i-1, i)
					}
				}
			}
		}
	}
}

func TestGenerateSlots_Location(t *testing.T) {
	loc := time.FixedZone("UTC-4", -4*60*60)
	slots := GenerateSlots(june10, TimeOfDay{9, 0}, TimeOfDay{10, 0}, 60, loc)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if !slots[0].Start.Equal(time.Date(2024, 6, 10, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("expected 09:00 UTC-4, got %v", slots[0].Start)
	}
}
