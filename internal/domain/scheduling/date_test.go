package scheduling

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year != 2024 || d.Month != time.February || d.Day != 29 {
		t.Errorf("unexpected date %+v", d)
	}
	if d.String() != "2024-02-29" {
		t.Errorf("expected round trip, got %s", d)
	}

	for _, bad := range []string{"", "2023-02-29", "2024/06/10", "10-06-2024"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestDate_AddDaysRollsOver(t *testing.T) {
	d := Date{Year: 2024, Month: time.December, Day: 31}
	if got := d.AddDays(1); got.String() != "2025-01-01" {
		t.Errorf("expected 2025-01-01, got %s", got)
	}
	if got := d.AddDays(-366); got.String() != "2023-12-31" {
		t.Errorf("expected 2023-12-31, got %s", got)
	}
}

func TestSameDay_IgnoresTimeOfDay(t *testing.T) {
	a := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, 6, 10, 23, 59, 59, 999, time.UTC)
	c := time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
	if !SameDay(a, b) {
		t.Error("expected same day")
	}
	if SameDay(b, c) {
		t.Error("expected different days")
	}
}

func TestDaysIn(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tc := range cases {
		if got := DaysIn(tc.year, tc.month); got != tc.want {
			t.Errorf("DaysIn(%d, %s) = %d, want %d", tc.year, tc.month, got, tc.want)
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tod.Minutes() != 570 {
		t.Errorf("expected 570 minutes, got %d", tod.Minutes())
	}
	for _, bad := range []string{"9:30", "24:00", "12:60", "ab:cd", "12-30"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestTimeOfDay_On(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	got := TimeOfDay{Hour: 9, Minute: 15}.On(Date{Year: 2024, Month: time.June, Day: 10}, loc)
	want := time.Date(2024, 6, 10, 9, 15, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDateAndTimeOfDay_JSON(t *testing.T) {
	in := struct {
		Date Date      `json:"date"`
		At   TimeOfDay `json:"at"`
	}{Date{2024, time.June, 10}, TimeOfDay{9, 5}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"date":"2024-06-10","at":"09:05"}` {
		t.Errorf("unexpected json %s", data)
	}
	if err := json.Unmarshal([]byte(`{"date":"2024-13-01","at":"09:05"}`), &in); err == nil {
		t.Error("expected error for invalid month")
	}
}

func TestTimeRange_Overlaps(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2024, 6, 10, h, m, 0, 0, time.UTC) }
	r := TimeRange{Start: at(9, 0), End: at(10, 0)}

	tests := []struct {
		name string
		o    TimeRange
		want bool
	}{
		{"inside", TimeRange{at(9, 15), at(9, 45)}, true},
		{"straddles start", TimeRange{at(8, 30), at(9, 30)}, true},
		{"adjacent before", TimeRange{at(8, 0), at(9, 0)}, false},
		{"adjacent after", TimeRange{at(10, 0), at(11, 0)}, false},
		{"zero length", TimeRange{at(9, 30), at(9, 30)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Overlaps(tt.o); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

// -- Timestamps --

func TestParseTimestamp_BothForms(t *testing.T) {
	want := time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)
	for _, s := range []string{
		"2024-06-10 09:30:00",
		"2024-06-10 09:30",
		"2024-06-10T09:30:00",
		"2024-06-10T09:30",
		"2024-06-10T09:30:00Z",
		"2024-06-10T09:30:00.000Z",
		" 2024-06-10T09:30:00Z ",
	} {
		got, err := ParseTimestamp(s, nil)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", s, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("%q: expected %v, got %v", s, want, got)
		}
	}
}

func TestParseTimestamp_ZonedKeepsWrittenDate(t *testing.T) {
	got, err := ParseTimestamp("2024-06-10T23:30:00-05:00", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if DateOf(got).String() != "2024-06-10" {
		t.Errorf("expected written date 2024-06-10, got %s", DateOf(got))
	}
}

func TestParseTimestamp_OffsetForms(t *testing.T) {
	tests := []struct {
		in     string
		hour   int
		minute int
		offset int
	}{
		{"2024-06-10T09:00:00+0200", 9, 0, 2 * 3600},
		{"2024-06-10T09:00:00.5-0530", 9, 0, -(5*3600 + 30*60)},
		{"2024-06-10T09:00Z", 9, 0, 0},
		{"2024-06-10T09:15+02:00", 9, 15, 2 * 3600},
		{"2024-06-10T09:15+0200", 9, 15, 2 * 3600},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in, time.FixedZone("UTC+3", 3*3600))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, off := got.Zone(); off != tt.offset {
				t.Errorf("expected offset %d, got %d", tt.offset, off)
			}
			if got.Hour() != tt.hour || got.Minute() != tt.minute || DateOf(got).String() != "2024-06-10" {
				t.Errorf("unexpected wall clock %v", got)
			}
		})
	}
}

func TestParseTimestamp_ZonelessUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	got, err := ParseTimestamp("2024-06-10 09:00:00", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Location() != loc || got.Hour() != 9 {
		t.Errorf("expected 09:00 in %s, got %v", loc, got)
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, s := range []string{"", "   ", "yesterday", "2024-06-10", "10/06/2024 09:00:00", "2024-06-10X09:00:00"} {
		if _, err := ParseTimestamp(s, nil); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestFormatLegacy(t *testing.T) {
	ts := time.Date(2024, 6, 10, 9, 5, 7, 0, time.UTC)
	if got := FormatLegacy(ts); got != "2024-06-10 09:05:07" {
		t.Errorf("unexpected legacy form %q", got)
	}
}
