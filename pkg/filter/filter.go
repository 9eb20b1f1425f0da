package filter

import (
	"sort"
	"strings"
)

// Filter returns the items matching every active part of cr, in input order.
// Sorting is left to Sort; see Apply for both.
func Filter[T any](items []T, cr Criteria, cfg Config[T]) []T {
	term := cr.term()
	statusActive := cr.statusActive() && cfg.Status != nil
	from, until := cr.dayBounds()
	dateActive := !from.IsZero() || !until.IsZero()
	aliases := cfg.aliases()

	out := make([]T, 0, len(items))
	for _, it := range items {
		if term != "" && !matchesTerm(it, term, cfg.SearchFields) {
			continue
		}
		if statusActive {
			st, ok := cfg.Status(it)
			if !ok || !aliases.Equal(st, cr.Status) {
				continue
			}
		}
		if dateActive {
			if cfg.Date == nil {
				continue
			}
			t, ok := cfg.Date(it)
			if !ok || (!from.IsZero() && t.Before(from)) || (!until.IsZero() && !t.Before(until)) {
				continue
			}
		}
		if !allOf(it, cfg.Predicates) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func matchesTerm[T any](it T, term string, fields []Field[T]) bool {
	for _, f := range fields {
		v, ok := f.Get(it)
		if ok && strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

func allOf[T any](it T, preds []func(T) bool) bool {
	for _, p := range preds {
		if p != nil && !p(it) {
			return false
		}
	}
	return true
}

// Sort returns a stably sorted copy of items. Unknown fields sort by date.
func Sort[T any](items []T, field string, order SortOrder, cfg Config[T]) []T {
	out := append([]T(nil), items...)
	cmp := cfg.compare(field)
	if cmp == nil {
		return out
	}
	desc := order == Desc
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return cmp(out[j], out[i]) < 0
		}
		return cmp(out[i], out[j]) < 0
	})
	return out
}

// Apply filters items and, when cr names a sort field, sorts the result.
func Apply[T any](items []T, cr Criteria, cfg Config[T]) []T {
	out := Filter(items, cr, cfg)
	if cr.SortField == "" {
		return out
	}
	return Sort(out, cr.SortField, cr.SortOrder, cfg)
}
