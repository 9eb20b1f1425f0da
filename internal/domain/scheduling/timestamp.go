package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// LegacyTimestampLayout is the space-separated form still emitted by older endpoints.
const LegacyTimestampLayout = "2006-01-02 15:04:05"

var legacyLayouts = []string{
	LegacyTimestampLayout,
	"2006-01-02 15:04",
}

// isoZonedLayouts carry their own offset; isoLocalLayouts are read in the caller's location.
var (
	isoZonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02T15:04Z07:00",
		"2006-01-02T15:04Z0700",
	}
	isoLocalLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}
)

// ParseTimestamp parses a boundary timestamp in either the legacy
// "yyyy-MM-dd HH:mm:ss" form or ISO-8601 with a T separator. The form suggested
// by the separator is tried first and the other one second. Values without an
// offset are read in loc (UTC when nil); zoned values keep their own offset so
// the calendar date always matches the written yyyy-MM-dd prefix.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if loc == nil {
		loc = time.UTC
	}

	if len(s) > 10 && s[10] == 'T' {
		if t, ok := parseISO(s, loc); ok {
			return t, nil
		}
		if t, ok := parseLegacy(s, loc); ok {
			return t, nil
		}
	} else {
		if t, ok := parseLegacy(s, loc); ok {
			return t, nil
		}
		if t, ok := parseISO(s, loc); ok {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", s)
}

func parseLegacy(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseISO(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range isoZonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range isoLocalLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatLegacy renders t in the legacy space-separated form.
func FormatLegacy(t time.Time) string {
	return t.Format(LegacyTimestampLayout)
}
