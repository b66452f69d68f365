// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package join

import (
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/featurebasedb/cohort/batch"
	"github.com/featurebasedb/cohort/entity"
	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/logger"
	"github.com/featurebasedb/cohort/schema"
)

// Stats counts what happened to one source's rows.
type Stats struct {
	// Rows is the number of rows scanned.
	Rows int
	// Matched rows passed the filter or resolved through their parent.
	Matched int
	// Orphans are dependent rows whose key did not resolve.
	Orphans int
}

// Result is the outcome of applying a plan. Batches and Stats hold emitted
// sources only.
type Result struct {
	Batches map[string][]arrow.Record
	Store   *entity.Store
	Stats   map[string]Stats
}

// Release releases the filtered batches.
func (r *Result) Release() {
	for _, recs := range r.Batches {
		batch.Release(recs)
	}
	r.Batches = nil
}

// Executor applies plans. It holds no state between calls.
type Executor struct {
	log logger.Logger
	mem memory.Allocator
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// OptExecutorLogger sets the executor's logger.
func OptExecutorLogger(log logger.Logger) ExecutorOption {
	return func(e *Executor) { e.log = log }
}

// OptExecutorAllocator sets the allocator filtered batches are built with.
func OptExecutorAllocator(mem memory.Allocator) ExecutorOption {
	return func(e *Executor) { e.mem = mem }
}

// NewExecutor returns an executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{log: logger.NopLogger}
	for _, o := range opts {
		o(e)
	}
	e.mem = batch.Allocator(e.mem)
	return e
}

// resolved is a step's filtered batches plus the person identifier of
// every kept row.
type resolved struct {
	recs []arrow.Record
	ids  [][]string
}

func (r resolved) release() { batch.Release(r.recs) }

// Apply filters the batches of every step to the identifiers in filter.
// Direct sources keep rows whose identifier is in the filter. Dependent
// sources keep rows whose key matches a kept parent row and take that
// row's identifier; other rows are dropped as orphans. Kept rows of
// emitted sources are merged into the result's store in plan order,
// filling absent attributes. A resolved identifier that conflicts with one
// carried by the row fails with ErrValidation. batches is not modified.
func (e *Executor) Apply(plan *Plan, batches map[string][]arrow.Record, filter *KeyFilter) (*Result, error) {
	res := &Result{
		Batches: make(map[string][]arrow.Record),
		Store:   entity.NewStore(entity.FillAbsent),
		Stats:   make(map[string]Stats),
	}
	done := make(map[string]resolved, len(plan.Steps))
	defer func() {
		for _, r := range done {
			r.release()
		}
	}()

	for _, step := range plan.Steps {
		var keep func(key string) (string, bool)
		if step.Dependent() {
			lookup, err := e.lookup(step, done[step.Parent])
			if err != nil {
				res.Release()
				return nil, err
			}
			keep = func(key string) (string, bool) {
				id, ok := lookup[key]
				return id, ok
			}
		} else {
			keep = func(key string) (string, bool) { return key, filter.Contains(key) }
		}

		r, st, err := e.filter(step, batches[step.Name], keep)
		if err != nil {
			res.Release()
			return nil, err
		}
		done[step.Name] = r
		if !step.Emit {
			continue
		}
		if err := e.merge(res.Store, step, r); err != nil {
			res.Release()
			return nil, err
		}
		for _, rec := range r.recs {
			rec.Retain()
		}
		res.Batches[step.Name] = append([]arrow.Record(nil), r.recs...)
		res.Stats[step.Name] = st
		if st.Orphans > 0 {
			e.log.Debugf("join: %s: dropped %d orphan rows of %d", step.Name, st.Orphans, st.Rows)
		}
	}
	return res, nil
}

// lookup maps the parent key column of every kept parent row to the row's
// identifier.
func (e *Executor) lookup(step Step, parent resolved) (map[string]string, error) {
	out := make(map[string]string)
	for i, rec := range parent.recs {
		col := batch.Column(rec, step.ParentColumn)
		if col == nil {
			return nil, errors.Newf(errors.ErrSchema, "join %s: parent %s has no column %s", step.Name, step.Parent, step.ParentColumn)
		}
		for row, id := range parent.ids[i] {
			if key, ok := batch.KeyAt(col, row); ok {
				out[key] = id
			}
		}
	}
	return out, nil
}

// filter keeps the rows of recs whose key column passes keep.
func (e *Executor) filter(step Step, recs []arrow.Record, keep func(key string) (string, bool)) (resolved, Stats, error) {
	var (
		r  resolved
		st Stats
	)
	for _, rec := range recs {
		st.Rows += int(rec.NumRows())
		col := batch.Column(rec, step.Column)
		if col == nil {
			e.log.Warnf("join: %s: batch has no key column %s, skipping %d rows", step.Name, step.Column, rec.NumRows())
			if step.Dependent() {
				st.Orphans += int(rec.NumRows())
			}
			continue
		}
		var ids []string
		rows := batch.Select(rec, func(row int) bool {
			key, ok := batch.KeyAt(col, row)
			if !ok {
				return false
			}
			id, ok := keep(key)
			if ok {
				ids = append(ids, id)
			}
			return ok
		})
		kept := int(rows.GetCardinality())
		st.Matched += kept
		if step.Dependent() {
			st.Orphans += int(rec.NumRows()) - kept
		}
		if kept == 0 {
			continue
		}
		out, err := batch.Take(e.mem, rec, rows)
		if err != nil {
			r.release()
			return resolved{}, Stats{}, errors.Wrapf(err, "filtering %s", step.Name)
		}
		r.recs = append(r.recs, out)
		r.ids = append(r.ids, ids)
	}
	return r, st, nil
}

// merge deserializes the kept rows of a step into store.
func (e *Executor) merge(store *entity.Store, step Step, r resolved) error {
	d := schema.NewDeserializer(step.Schema, e.log)
	for i, rec := range r.recs {
		b := d.Bind(rec)
		for row := 0; row < b.Len(); row++ {
			ent, ok := b.Row(row)
			if !ok {
				continue
			}
			if step.Dependent() || ent.ID() == "" {
				if err := ent.SetID(r.ids[i][row]); err != nil {
					return errors.Wrapf(err, "resolving %s row %d", step.Name, row)
				}
			}
			if err := store.Merge(ent); err != nil {
				return errors.Wrapf(err, "merging %s", step.Name)
			}
		}
	}
	return nil
}
