package export

import (
	"slices"
	"sort"
)

// FieldSet holds the names of the fields modified by a save.
type FieldSet map[string]struct{}

func NewFieldSet(fields ...string) FieldSet {
	set := make(FieldSet, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

func (s FieldSet) Has(field string) bool {
	_, ok := s[field]
	return ok
}

func (s FieldSet) Intersects(watch ...string) bool {
	return slices.ContainsFunc(watch, s.Has)
}

func (s FieldSet) Slice() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
