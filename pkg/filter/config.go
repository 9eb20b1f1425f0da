package filter

import "time"

// DefaultSortField is used when a criteria names no sort field or one the
// config does not know.
const DefaultSortField = "date"

// Field is a searchable text field. Get returns false when the record has no
// value for it; such a field never matches a search.
type Field[T any] struct {
	Name string
	Get  func(T) (string, bool)
}

// Compare orders two records: negative when a sorts first.
type Compare[T any] func(a, b T) int

// Config tells the engine how to read a record type T.
type Config[T any] struct {
	SearchFields []Field[T]
	// Status returns the record's status; false means it has none.
	Status func(T) (string, bool)
	// Date returns the record's date; false means missing or unparsable.
	Date func(T) (time.Time, bool)
	// Predicates are ANDed with the built-in filters, in order.
	Predicates []func(T) bool
	SortKeys   map[string]Compare[T]
	// Aliases defaults to DefaultStatusAliases.
	Aliases StatusAliases
}

// Text builds a Field over a plain string; empty strings count as missing.
func Text[T any](name string, get func(T) string) Field[T] {
	return Field[T]{Name: name, Get: func(v T) (string, bool) {
		s := get(v)
		return s, s != ""
	}}
}

// OptionalText builds a Field over a string pointer.
func OptionalText[T any](name string, get func(T) *string) Field[T] {
	return Field[T]{Name: name, Get: func(v T) (string, bool) {
		p := get(v)
		if p == nil {
			return "", false
		}
		return *p, true
	}}
}

// Merge combines two partial configs. Search fields and predicates are
// concatenated; sort keys and aliases are unioned with other winning on a
// clash; Status and Date are taken from c unless it has none.
func (c Config[T]) Merge(other Config[T]) Config[T] {
	out := Config[T]{
		SearchFields: append(append([]Field[T]{}, c.SearchFields...), other.SearchFields...),
		Predicates:   append(append([]func(T) bool{}, c.Predicates...), other.Predicates...),
		Status:       c.Status,
		Date:         c.Date,
	}
	if out.Status == nil {
		out.Status = other.Status
	}
	if out.Date == nil {
		out.Date = other.Date
	}
	if len(c.SortKeys)+len(other.SortKeys) > 0 {
		out.SortKeys = make(map[string]Compare[T], len(c.SortKeys)+len(other.SortKeys))
		for k, v := range c.SortKeys {
			out.SortKeys[k] = v
		}
		for k, v := range other.SortKeys {
			out.SortKeys[k] = v
		}
	}
	switch {
	case c.Aliases != nil && other.Aliases != nil:
		out.Aliases = c.Aliases.Merge(other.Aliases)
	case c.Aliases != nil:
		out.Aliases = c.Aliases
	default:
		out.Aliases = other.Aliases
	}
	return out
}

// With returns a copy of c with extra predicates appended.
func (c Config[T]) With(preds ...func(T) bool) Config[T] {
	return c.Merge(Config[T]{Predicates: preds})
}

func (c Config[T]) aliases() StatusAliases {
	if c.Aliases == nil {
		return DefaultStatusAliases()
	}
	return c.Aliases
}

// compare returns the comparator for field, falling back to the date.
func (c Config[T]) compare(field string) Compare[T] {
	if cmp, ok := c.SortKeys[field]; ok && field != "" {
		return cmp
	}
	if cmp, ok := c.SortKeys[DefaultSortField]; ok {
		return cmp
	}
	if c.Date == nil {
		return nil
	}
	return func(a, b T) int {
		ta, okA := c.Date(a)
		tb, okB := c.Date(b)
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return 1
		case !okB:
			return -1
		}
		return ta.Compare(tb)
	}
}
