package filter

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// StatusAliases maps status spellings onto a canonical form. Keys and values
// are lower-case. Every value is a canonical status and never a key, so a
// single lookup resolves any spelling; Add and Merge keep it that way by
// joining classes that share a spelling.
type StatusAliases map[string]string

// DefaultStatusAliases treats "canceled" and "cancelled" as the same status.
func DefaultStatusAliases() StatusAliases {
	return StatusAliases{"canceled": "cancelled"}
}

func normStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Canonical lower-cases s and resolves it through the table.
func (a StatusAliases) Canonical(s string) string {
	s = normStatus(s)
	if c, ok := a[s]; ok {
		return c
	}
	return s
}

// Equal reports whether two statuses match after alias resolution.
func (a StatusAliases) Equal(x, y string) bool {
	return a.Canonical(x) == a.Canonical(y)
}

// Add registers variants as spellings of canonical. A variant that already
// belongs to another class pulls that whole class under canonical's.
func (a StatusAliases) Add(canonical string, variants ...string) {
	for _, v := range variants {
		a.join(a.Canonical(canonical), a.Canonical(v))
	}
}

// join repoints every member of class from onto class into.
func (a StatusAliases) join(into, from string) {
	if from == "" || into == "" || from == into {
		return
	}
	for k, c := range a {
		if c == from {
			a[k] = into
		}
	}
	a[from] = into
	delete(a, into)
}

// Merge returns a table holding both sets of aliases. Classes that share a
// spelling become one; a's canonical names win.
func (a StatusAliases) Merge(other StatusAliases) StatusAliases {
	out := make(StatusAliases, len(a)+len(other))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range other {
		out.Add(v, k)
	}
	return out
}

// ParseStatusAliases reads a YAML document mapping each canonical status to
// its other spellings:
//
//	cancelled: [canceled]
//	completed: [done, finished]
//
// A spelling listed under two canonical statuses is an error. An entry whose
// canonical is itself listed as a spelling elsewhere chains into that class.
func ParseStatusAliases(data []byte) (StatusAliases, error) {
	var doc map[string][]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse status aliases: %w", err)
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	owner := map[string]string{}
	out := StatusAliases{}
	for _, canonical := range keys {
		c := normStatus(canonical)
		for _, v := range doc[canonical] {
			v = normStatus(v)
			if v == "" || v == c {
				continue
			}
			if prev, ok := owner[v]; ok && prev != c {
				return nil, fmt.Errorf("status %q is an alias of both %q and %q", v, prev, c)
			}
			owner[v] = c
		}
		out.Add(c, doc[canonical]...)
	}
	return out, nil
}

// LoadStatusAliases reads path and merges it over the default table. An
// empty path returns the defaults.
func LoadStatusAliases(path string) (StatusAliases, error) {
	if path == "" {
		return DefaultStatusAliases(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read status aliases: %w", err)
	}
	extra, err := ParseStatusAliases(data)
	if err != nil {
		return nil, err
	}
	return DefaultStatusAliases().Merge(extra), nil
}
