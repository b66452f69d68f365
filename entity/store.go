// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package entity

import (
	"sort"
	"time"

	"github.com/featurebasedb/cohort/errors"
)

// Store holds one merged entity per identifier. Stores are built by a
// single goroutine. Stores handed out by the registry manager are shared
// through its cache and must be treated as read-only; Clone one to modify
// it.
type Store struct {
	policy   Policy
	entities map[string]*Entity
	// fingerprints of every input merged so far
	merged map[string]struct{}
}

// NewStore returns an empty store that merges with policy p.
func NewStore(p Policy) *Store {
	return &Store{
		policy:   p,
		entities: make(map[string]*Entity),
		merged:   make(map[string]struct{}),
	}
}

// Policy returns the store's merge policy.
func (s *Store) Policy() Policy { return s.policy }

// Merge adds e to the store. The first entity for an identifier is copied
// in, later ones are merged into that copy. An input identical to one
// already merged, provenance included, is skipped, so merging the same
// batch twice leaves the store as merging it once. e is never retained or
// modified. Entities without an identifier fail with ErrValidation.
func (s *Store) Merge(e *Entity) error {
	if e.id == "" {
		return errors.New(errors.ErrValidation, "entity has no identifier")
	}
	fp := e.fingerprint()
	if _, ok := s.merged[fp]; ok {
		return nil
	}
	have, ok := s.entities[e.id]
	if !ok {
		s.entities[e.id] = e.Clone()
	} else if err := Merge(have, e, s.policy); err != nil {
		return err
	}
	s.merged[fp] = struct{}{}
	return nil
}

// MergeAll merges es in order and stops at the first error.
func (s *Store) MergeAll(es []*Entity) error {
	for _, e := range es {
		if err := s.Merge(e); err != nil {
			return err
		}
	}
	return nil
}

// MergeStore merges every entity of o, in identifier order. Each of o's
// entities counts as one input, so merging o twice changes s once.
func (s *Store) MergeStore(o *Store) error {
	for _, id := range o.IDs() {
		if err := s.Merge(o.entities[id]); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the entity for id.
func (s *Store) Get(id string) (*Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// Len returns the number of entities.
func (s *Store) Len() int { return len(s.entities) }

// IDs returns the identifiers in sorted order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Each calls fn for every entity in identifier order until fn returns
// false.
func (s *Store) Each(fn func(e *Entity) bool) {
	for _, id := range s.IDs() {
		if !fn(s.entities[id]) {
			return
		}
	}
}

// Select returns the entities matching pred in identifier order.
func (s *Store) Select(pred func(e *Entity) bool) []*Entity {
	var out []*Entity
	s.Each(func(e *Entity) bool {
		if pred(e) {
			out = append(out, e)
		}
		return true
	})
	return out
}

// Entities returns all entities in identifier order.
func (s *Store) Entities() []*Entity {
	return s.Select(func(*Entity) bool { return true })
}

// ValidAt returns the entities alive on date.
func (s *Store) ValidAt(date time.Time) []*Entity {
	return s.Select(func(e *Entity) bool { return e.WasValidAt(date) })
}

// Clone returns a deep copy of the store.
func (s *Store) Clone() *Store {
	c := NewStore(s.policy)
	for id, e := range s.entities {
		c.entities[id] = e.Clone()
	}
	for fp := range s.merged {
		c.merged[fp] = struct{}{}
	}
	return c
}
