package records

import (
	"strings"
	"time"

	"github.com/carebook/availability/pkg/filter"
)

func optTime(t *time.Time) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

func status(s string) (string, bool) { return s, s != "" }

func byString[T any](get func(T) string) filter.Compare[T] {
	return func(a, b T) int {
		return strings.Compare(strings.ToLower(get(a)), strings.ToLower(get(b)))
	}
}

// VisitFilter searches doctor, institution, reason and status and dates
// visits by their scheduled time.
func VisitFilter(aliases filter.StatusAliases) filter.Config[*Visit] {
	return filter.Config[*Visit]{
		SearchFields: []filter.Field[*Visit]{
			filter.Text("doctor", func(v *Visit) string { return v.DoctorName }),
			filter.Text("institution", func(v *Visit) string { return v.InstitutionName }),
			filter.OptionalText("reason", func(v *Visit) *string { return v.Reason }),
			filter.Text("status", func(v *Visit) string { return v.Status }),
		},
		Status: func(v *Visit) (string, bool) { return status(v.Status) },
		Date:   func(v *Visit) (time.Time, bool) { return optTime(v.ScheduledAt) },
		SortKeys: map[string]filter.Compare[*Visit]{
			"doctor":      byString(func(v *Visit) string { return v.DoctorName }),
			"institution": byString(func(v *Visit) string { return v.InstitutionName }),
			"status":      byString(func(v *Visit) string { return v.Status }),
		},
		Aliases: aliases,
	}
}

// ReminderFilter searches title and body and dates reminders by due time,
// falling back to creation.
func ReminderFilter(aliases filter.StatusAliases) filter.Config[*Reminder] {
	return filter.Config[*Reminder]{
		SearchFields: []filter.Field[*Reminder]{
			filter.Text("title", func(r *Reminder) string { return r.Title }),
			filter.OptionalText("body", func(r *Reminder) *string { return r.Body }),
		},
		Status: func(r *Reminder) (string, bool) { return status(r.Status) },
		Date: func(r *Reminder) (time.Time, bool) {
			if r.DueAt != nil {
				return *r.DueAt, true
			}
			return r.CreatedAt, !r.CreatedAt.IsZero()
		},
		SortKeys: map[string]filter.Compare[*Reminder]{
			"title":  byString(func(r *Reminder) string { return r.Title }),
			"status": byString(func(r *Reminder) string { return r.Status }),
		},
		Aliases: aliases,
	}
}

// OnlyUnread keeps reminders that have not been read.
func OnlyUnread(r *Reminder) bool { return r.Unread() }

// CodeFilter searches code, description and issuer and dates codes by issue
// time.
func CodeFilter(aliases filter.StatusAliases) filter.Config[*Code] {
	return filter.Config[*Code]{
		SearchFields: []filter.Field[*Code]{
			filter.Text("code", func(c *Code) string { return c.Code }),
			filter.OptionalText("description", func(c *Code) *string { return c.Description }),
			filter.Text("issued_by", func(c *Code) string { return c.IssuedBy }),
		},
		Status: func(c *Code) (string, bool) { return status(c.Status) },
		Date:   func(c *Code) (time.Time, bool) { return c.IssuedAt, !c.IssuedAt.IsZero() },
		SortKeys: map[string]filter.Compare[*Code]{
			"kind":   byString(func(c *Code) string { return string(c.Kind) }),
			"code":   byString(func(c *Code) string { return c.Code }),
			"status": byString(func(c *Code) string { return c.Status }),
		},
		Aliases: aliases,
	}
}

// OfKind keeps codes of kind k.
func OfKind(k CodeKind) func(*Code) bool {
	return func(c *Code) bool { return c.Kind == k }
}

// NotExpired keeps codes without an expiry or expiring after now.
func NotExpired(now time.Time) func(*Code) bool {
	return func(c *Code) bool { return c.ExpiresAt == nil || c.ExpiresAt.After(now) }
}
