// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package longitudinal assembles entity histories from registry extracts
// that are split into one file per period.
package longitudinal

import (
	"sort"

	"github.com/featurebasedb/cohort/entity"
	"github.com/featurebasedb/cohort/period"
)

// Entry is an entity read from the extract of one period.
type Entry struct {
	Period period.Period
	Entity *entity.Entity
}

// Group holds the entities of one period.
type Group struct {
	Period   period.Period
	Entities []*entity.Entity
}

// GroupByPeriod groups entries by period, oldest period first. Entities
// keep their input order within a group.
func GroupByPeriod(entries []Entry) []Group {
	index := make(map[period.Period]int)
	var groups []Group
	for _, e := range entries {
		i, ok := index[e.Period]
		if !ok {
			i = len(groups)
			index[e.Period] = i
			groups = append(groups, Group{Period: e.Period})
		}
		groups[i].Entities = append(groups[i].Entities, e.Entity)
	}
	sortGroups(groups)
	return groups
}

// Groups turns a period map into period-sorted groups.
func Groups(byPeriod map[period.Period][]*entity.Entity) []Group {
	groups := make([]Group, 0, len(byPeriod))
	for p, es := range byPeriod {
		groups = append(groups, Group{Period: p, Entities: es})
	}
	sortGroups(groups)
	return groups
}

func sortGroups(groups []Group) {
	sort.Slice(groups, func(i, j int) bool { return groups[i].Period.Before(groups[j].Period) })
}

// MergeAcrossPeriods merges the entities of every period into one store,
// oldest period first. The first occurrence of an identifier is inserted;
// later ones overwrite scalars they carry and append to lists. The result
// depends only on the contents of byPeriod, never on map order.
func MergeAcrossPeriods(byPeriod map[period.Period][]*entity.Entity) (*entity.Store, error) {
	return MergeGroups(Groups(byPeriod))
}

// MergeGroups merges period-sorted groups into a new store with the
// last-wins policy.
func MergeGroups(groups []Group) (*entity.Store, error) {
	store := entity.NewStore(entity.LastWins)
	for _, g := range groups {
		if err := store.MergeAll(g.Entities); err != nil {
			return nil, err
		}
	}
	return store, nil
}
