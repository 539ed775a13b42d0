package prune

import "sort"

// Set is a set of normalized part paths.
type Set map[string]struct{}

func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, it := range items {
		s.Add(it)
	}
	return s
}

func (s Set) Add(item string) { s[item] = struct{}{} }

func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
