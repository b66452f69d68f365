// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package join orders heterogeneously keyed sources so that dependent
// sources follow the parent that maps their secondary key to a person
// identifier, and applies an identifier filter across such a plan.
package join

import "sort"

// KeyFilter is an immutable set of person identifiers.
type KeyFilter struct {
	ids    map[string]struct{}
	sorted []string
}

// NewKeyFilter returns a filter holding ids. Empty strings and duplicates
// are dropped.
func NewKeyFilter(ids ...string) *KeyFilter {
	f := &KeyFilter{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := f.ids[id]; ok {
			continue
		}
		f.ids[id] = struct{}{}
		f.sorted = append(f.sorted, id)
	}
	sort.Strings(f.sorted)
	return f
}

// Contains reports whether id is in the filter.
func (f *KeyFilter) Contains(id string) bool {
	_, ok := f.ids[id]
	return ok
}

// Len returns the number of identifiers.
func (f *KeyFilter) Len() int { return len(f.sorted) }

// Sorted returns the identifiers in ascending order.
func (f *KeyFilter) Sorted() []string {
	return append([]string(nil), f.sorted...)
}

// Equal reports whether f and o hold the same identifiers.
func (f *KeyFilter) Equal(o *KeyFilter) bool {
	if f.Len() != o.Len() {
		return false
	}
	for i, id := range f.sorted {
		if o.sorted[i] != id {
			return false
		}
	}
	return true
}
