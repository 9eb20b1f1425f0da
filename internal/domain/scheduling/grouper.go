package scheduling

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DayBucket holds the slots that start on one calendar date, in input order.
type DayBucket struct {
	Date      Date             `json:"date"`
	DayName   string           `json:"day_name"`
	DayNumber int              `json:"day_number"`
	Slots     []ScheduleRecord `json:"slots"`
}

// Grouping is the result of GroupByDate. Days is keyed by yyyy-MM-dd and
// Order lists the keys chronologically. Records that could not be parsed are
// left out of Days and listed in Issues.
type Grouping struct {
	Days   map[string]*DayBucket `json:"days"`
	Order  []string              `json:"order"`
	Issues []ParseIssue          `json:"issues,omitempty"`
}

// Day returns the bucket for d, or nil.
func (g Grouping) Day(d Date) *DayBucket {
	return g.Days[d.String()]
}

// HasEvents reports whether any slot starts on d.
func (g Grouping) HasEvents(d Date) bool {
	b := g.Days[d.String()]
	return b != nil && len(b.Slots) > 0
}

// Refs returns the slot ids on d.
func (g Grouping) Refs(d Date) []string {
	b := g.Days[d.String()]
	if b == nil {
		return nil
	}
	refs := make([]string, 0, len(b.Slots))
	for _, s := range b.Slots {
		refs = append(refs, s.ID)
	}
	return refs
}

// GroupByDate normalises records and buckets them by the calendar date of
// their start instant. Zoneless timestamps are read in loc.
func GroupByDate(records []RawScheduleRecord, loc *time.Location) Grouping {
	g := Grouping{Days: make(map[string]*DayBucket)}
	for _, raw := range records {
		rec, issue := raw.Normalize(loc)
		if issue != nil {
			g.Issues = append(g.Issues, *issue)
			continue
		}
		g.add(rec)
	}
	sort.Strings(g.Order)
	return g
}

func (g *Grouping) add(rec ScheduleRecord) {
	d := DateOf(rec.Start)
	key := d.String()
	b, ok := g.Days[key]
	if !ok {
		b = &DayBucket{
			Date:      d,
			DayName:   d.Weekday().String(),
			DayNumber: d.Day,
			Slots:     []ScheduleRecord{},
		}
		g.Days[key] = b
		g.Order = append(g.Order, key)
	}
	b.Slots = append(b.Slots, rec)
}

// InstitutionGrouping partitions a doctor's schedule by institution, each
// partition grouped by date.
type InstitutionGrouping struct {
	Institutions map[uuid.UUID]*Grouping `json:"institutions"`
	Order        []uuid.UUID             `json:"order"`
	Issues       []ParseIssue            `json:"issues,omitempty"`
}

// GroupByDateAndInstitution is GroupByDate partitioned by institution id.
// Institutions are ordered by first appearance.
func GroupByDateAndInstitution(records []RawScheduleRecord, loc *time.Location) InstitutionGrouping {
	ig := InstitutionGrouping{Institutions: make(map[uuid.UUID]*Grouping)}
	for _, raw := range records {
		rec, issue := raw.Normalize(loc)
		if issue != nil {
			ig.Issues = append(ig.Issues, *issue)
			continue
		}
		g, ok := ig.Institutions[rec.InstitutionID]
		if !ok {
			g = &Grouping{Days: make(map[string]*DayBucket)}
			ig.Institutions[rec.InstitutionID] = g
			ig.Order = append(ig.Order, rec.InstitutionID)
		}
		g.add(rec)
	}
	for _, g := range ig.Institutions {
		sort.Strings(g.Order)
	}
	return ig
}
