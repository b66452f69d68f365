// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package join

import (
	"sort"
	"strings"

	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/schema"
)

// Join declares that the rows of Child are resolved through Parent: the
// value of ChildColumn in a child row matches the value of ParentColumn in
// a parent row, whose person identifier the child row belongs to.
type Join struct {
	Child        string `toml:"child"`
	Parent       string `toml:"parent"`
	ParentColumn string `toml:"parent-column"`
	ChildColumn  string `toml:"child-column"`
}

func (j Join) String() string {
	return j.Child + "." + j.ChildColumn + " -> " + j.Parent + "." + j.ParentColumn
}

// Lookup resolves a source name to its schema.
type Lookup func(name string) (*schema.RegistrySchema, bool)

// Step is one source in a plan.
type Step struct {
	Name   string
	Schema *schema.RegistrySchema
	// Column is the identifier column of a direct source, or the secondary
	// key column of a dependent one.
	Column string
	// Parent and ParentColumn are set for dependent sources.
	Parent       string
	ParentColumn string
	// Emit is false for parents planned only to resolve a dependent's keys.
	Emit bool
}

// Dependent reports whether the step resolves its rows through a parent.
func (s Step) Dependent() bool { return s.Parent != "" }

// Plan lists sources so that every dependent source follows its parent.
type Plan struct {
	Steps []Step
}

// Names returns the emitted source names in plan order.
func (p *Plan) Names() []string {
	var out []string
	for _, s := range p.Steps {
		if s.Emit {
			out = append(out, s.Name)
		}
	}
	return out
}

// Step returns the step for name.
func (p *Plan) Step(name string) (Step, bool) {
	for _, s := range p.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

// BuildPlan orders names and the parents they depend on. Parents not in
// names are added with Emit false. Ties are broken by the order of names,
// then by the order parents were discovered. keyColumns optionally
// overrides the identifier column of direct sources.
//
// A name lookup cannot resolve fails with ErrNotRegistered. A join naming
// an unknown parent, a source keyed by a secondary key with no join, a
// source with two joins, and a cycle fail with ErrValidation.
func BuildPlan(names []string, lookup Lookup, joins []Join, keyColumns map[string]string) (*Plan, error) {
	byChild := make(map[string]Join, len(joins))
	for _, j := range joins {
		if _, ok := byChild[j.Child]; ok {
			return nil, errors.Newf(errors.ErrValidation, "source %s has more than one join", j.Child)
		}
		byChild[j.Child] = j
	}

	var steps []Step
	index := make(map[string]int)
	emit := make(map[string]bool, len(names))
	for _, n := range names {
		emit[n] = true
	}

	// Collect the requested sources and, transitively, their parents.
	queue := append([]string(nil), names...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, ok := index[name]; ok {
			continue
		}
		s, ok := lookup(name)
		if !ok {
			if emit[name] {
				return nil, errors.Newf(errors.ErrNotRegistered, "source %s is not registered", name)
			}
			return nil, errors.Newf(errors.ErrValidation, "join references unknown source %s", name)
		}
		step := Step{Name: name, Schema: s, Emit: emit[name]}
		j, joined := byChild[name]
		switch {
		case s.JoinKeyKind() == schema.PrimaryIdentifier:
			step.Column = s.IdentifierColumn()
			if c, ok := keyColumns[name]; ok && c != "" {
				step.Column = c
			}
		case !joined:
			return nil, errors.Newf(errors.ErrValidation, "source %s is keyed by %s and has no join", name, s.JoinKeyKind())
		default:
			step.Column = j.ChildColumn
			if step.Column == "" {
				step.Column = s.KeyColumn()
			}
			step.Parent = j.Parent
			step.ParentColumn = j.ParentColumn
		}
		index[name] = len(steps)
		steps = append(steps, step)
		if step.Dependent() {
			queue = append(queue, step.Parent)
		}
	}

	order, err := topoSort(len(steps), func(i int) []int {
		if !steps[i].Dependent() {
			return nil
		}
		return []int{index[steps[i].Parent]}
	})
	if err != nil {
		cyc := make([]string, 0, len(steps))
		for _, s := range steps {
			cyc = append(cyc, s.Name)
		}
		return nil, errors.WithCode(errors.Wrapf(err, "planning %s", strings.Join(cyc, ", ")), errors.ErrValidation)
	}
	p := &Plan{Steps: make([]Step, len(order))}
	for i, j := range order {
		p.Steps[i] = steps[j]
	}
	return p, nil
}

// topoSort returns node indices in execution order. deps(i) yields the
// nodes that must precede i. When several nodes are ready the smallest
// index goes first.
func topoSort(n int, deps func(i int) []int) ([]int, error) {
	indeg := make([]int, n)
	out := make([][]int, n)
	for i := 0; i < n; i++ {
		for _, d := range deps(i) {
			indeg[i]++
			out[d] = append(out[d], i)
		}
	}
	var ready []int
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]int, 0, n)
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, i)
		for _, j := range out[i] {
			indeg[j]--
			if indeg[j] == 0 {
				k := sort.SearchInts(ready, j)
				ready = append(ready, 0)
				copy(ready[k+1:], ready[k:])
				ready[k] = j
			}
		}
	}
	if len(order) != n {
		return nil, errors.New(errors.ErrValidation, "cycle detected in joins")
	}
	return order, nil
}
