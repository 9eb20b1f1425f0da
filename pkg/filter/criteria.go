// Package filter narrows and orders in-memory record lists by free-text
// search, status, date range and caller-supplied predicates.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// SortOrder is the direction of a sort.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// StatusAll disables the status filter, in any case.
const StatusAll = "all"

// Criteria is one query against a record list. The zero value matches
// everything and keeps input order.
type Criteria struct {
	SearchTerm string     `json:"search_term,omitempty"`
	Status     string     `json:"status,omitempty"`
	DateFrom   *time.Time `json:"date_from,omitempty"`
	DateTo     *time.Time `json:"date_to,omitempty"`
	SortField  string     `json:"sort_field,omitempty"`
	SortOrder  SortOrder  `json:"sort_order,omitempty"`
}

func (c Criteria) term() string {
	return strings.ToLower(strings.TrimSpace(c.SearchTerm))
}

func (c Criteria) statusActive() bool {
	s := strings.TrimSpace(c.Status)
	return s != "" && !strings.EqualFold(s, StatusAll)
}

// dayBounds returns the inclusive lower bound and the exclusive upper bound of
// the date range. DateFrom is moved to midnight of its day; DateTo covers its
// whole day, so a record at 23:59:59.999 on that day is inside.
func (c Criteria) dayBounds() (from, until time.Time) {
	if c.DateFrom != nil {
		from = startOfDay(*c.DateFrom)
	}
	if c.DateTo != nil {
		until = startOfDay(*c.DateTo).AddDate(0, 0, 1)
	}
	return from, until
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseSortOrder accepts asc or desc in any case; empty means Asc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	}
	return "", fmt.Errorf("invalid sort order %q", s)
}

// FromContext reads criteria from the query string:
//
//	q, status, date_from, date_to (yyyy-MM-dd, read in loc), sort, order
//
// sort takes a leading "-" as a shorthand for descending order.
func FromContext(c echo.Context, loc *time.Location) (Criteria, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := Criteria{
		SearchTerm: c.QueryParam("q"),
		Status:     c.QueryParam("status"),
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"date_from", &cr.DateFrom}, {"date_to", &cr.DateTo}} {
		raw := c.QueryParam(p.name)
		if raw == "" {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return Criteria{}, fmt.Errorf("invalid %s %q", p.name, raw)
		}
		*p.dst = &t
	}

	order, err := ParseSortOrder(c.QueryParam("order"))
	if err != nil {
		return Criteria{}, err
	}
	field := strings.TrimSpace(c.QueryParam("sort"))
	if strings.HasPrefix(field, "-") {
		field, order = field[1:], Desc
	}
	cr.SortField, cr.SortOrder = field, order
	return cr, nil
}
