// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package join_test

import (
	"testing"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/featurebasedb/cohort/batch"
	"github.com/featurebasedb/cohort/entity"
	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/field"
	"github.com/featurebasedb/cohort/join"
	"github.com/featurebasedb/cohort/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pnr(name string) schema.Mapping {
	return schema.Attr(field.Define(name, entity.AttrID, field.Identifier))
}

func recnum() schema.Mapping {
	return schema.Attr(field.Define("RECNUM", entity.AttrRecordNumber, field.Identifier))
}

type registry map[string]*schema.RegistrySchema

func (r registry) lookup(name string) (*schema.RegistrySchema, bool) {
	s, ok := r[name]
	return s, ok
}

func lprRegistry() registry {
	return registry{
		"ADM": schema.MustNew("ADM", "admissions", schema.PrimaryIdentifier,
			pnr("PNR"), recnum(),
			schema.Attr(field.Define("SGH", "hospital", field.Category)),
		),
		"DIAG": schema.MustNew("DIAG", "diagnoses", schema.RecordNumber,
			recnum(),
			schema.Attr(field.Define("DIAG", "diagnoses", field.String)),
		),
		"DOD": schema.MustNew("DOD", "deaths", schema.PrimaryIdentifier,
			pnr("PNR"),
			schema.Attr(field.Define("DODDATO", "death_date", field.Date)),
		),
	}
}

var lprJoins = []join.Join{{Child: "DIAG", Parent: "ADM", ParentColumn: "RECNUM", ChildColumn: "RECNUM"}}

func stepNames(p *join.Plan) []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Name
	}
	return out
}

func TestKeyFilter(t *testing.T) {
	f := join.NewKeyFilter("b", "a", "", "b", "c")
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, []string{"a", "b", "c"}, f.Sorted())
	assert.True(t, f.Contains("a"))
	assert.False(t, f.Contains(""))
	assert.True(t, f.Equal(join.NewKeyFilter("c", "b", "a")))
	assert.False(t, f.Equal(join.NewKeyFilter("a", "b", "d")))
	assert.False(t, f.Equal(join.NewKeyFilter("a")))
	assert.Equal(t, 0, join.NewKeyFilter().Len())
}

func TestBuildPlan(t *testing.T) {
	reg := lprRegistry()

	t.Run("parents first", func(t *testing.T) {
		p, err := join.BuildPlan([]string{"DIAG", "ADM"}, reg.lookup, lprJoins, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"ADM", "DIAG"}, stepNames(p))
		assert.Equal(t, []string{"ADM", "DIAG"}, p.Names())
		s, ok := p.Step("DIAG")
		require.True(t, ok)
		assert.True(t, s.Dependent())
		assert.Equal(t, "RECNUM", s.Column)
		assert.Equal(t, "ADM", s.Parent)
	})

	t.Run("ties keep request order", func(t *testing.T) {
		p, err := join.BuildPlan([]string{"DOD", "ADM", "DIAG"}, reg.lookup, lprJoins, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"DOD", "ADM", "DIAG"}, stepNames(p))
	})

	t.Run("parent included silently", func(t *testing.T) {
		p, err := join.BuildPlan([]string{"DIAG"}, reg.lookup, lprJoins, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"ADM", "DIAG"}, stepNames(p))
		assert.Equal(t, []string{"DIAG"}, p.Names())
		s, _ := p.Step("ADM")
		assert.False(t, s.Emit)
	})

	t.Run("key column override", func(t *testing.T) {
		p, err := join.BuildPlan([]string{"DOD"}, reg.lookup, nil, map[string]string{"DOD": "CPR"})
		require.NoError(t, err)
		assert.Equal(t, "CPR", p.Steps[0].Column)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := join.BuildPlan([]string{"NOPE"}, reg.lookup, lprJoins, nil)
		assert.True(t, errors.Is(err, errors.ErrNotRegistered))

		_, err = join.BuildPlan([]string{"DIAG"}, reg.lookup, nil, nil)
		assert.True(t, errors.Is(err, errors.ErrValidation), "dependent without join")

		_, err = join.BuildPlan([]string{"DIAG"}, reg.lookup,
			[]join.Join{{Child: "DIAG", Parent: "LPR", ParentColumn: "RECNUM", ChildColumn: "RECNUM"}}, nil)
		assert.True(t, errors.Is(err, errors.ErrValidation), "unknown parent")

		_, err = join.BuildPlan([]string{"DIAG"}, reg.lookup, append(lprJoins, lprJoins[0]), nil)
		assert.True(t, errors.Is(err, errors.ErrValidation), "two joins")
	})

	t.Run("cycle", func(t *testing.T) {
		reg := registry{
			"X": schema.MustNew("X", "", schema.RecordNumber, recnum()),
			"Y": schema.MustNew("Y", "", schema.RecordNumber, recnum()),
		}
		joins := []join.Join{
			{Child: "X", Parent: "Y", ParentColumn: "RECNUM", ChildColumn: "RECNUM"},
			{Child: "Y", Parent: "X", ParentColumn: "RECNUM", ChildColumn: "RECNUM"},
		}
		_, err := join.BuildPlan([]string{"X"}, reg.lookup, joins, nil)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})
}

func diagnoses(e *entity.Entity) []string {
	return append([]string(nil), e.Diagnoses...)
}

func TestApply(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	reg := lprRegistry()
	adm := batch.MustRecord(
		batch.Strings("PNR", "A", "B"),
		batch.Strings("RECNUM", "K1", "K3"),
		batch.Strings("SGH", "h1", "h2"),
	)
	diag := batch.MustRecord(
		batch.Strings("RECNUM", "K1", "K2", "K3", "K1"),
		batch.Strings("DIAG", "X", "Y", "Z", "W"),
	)
	defer adm.Release()
	defer diag.Release()
	batches := map[string][]arrow.Record{"ADM": {adm}, "DIAG": {diag}}
	ex := join.NewExecutor(join.OptExecutorAllocator(mem))

	t.Run("dependent rows resolve through parent", func(t *testing.T) {
		p, err := join.BuildPlan([]string{"ADM", "DIAG"}, reg.lookup, lprJoins, nil)
		require.NoError(t, err)
		res, err := ex.Apply(p, batches, join.NewKeyFilter("A"))
		require.NoError(t, err)
		defer res.Release()

		require.Equal(t, 1, res.Store.Len())
		a, ok := res.Store.Get("A")
		require.True(t, ok)
		assert.Equal(t, []string{"X", "W"}, diagnoses(a))
		require.NotNil(t, a.Hospital)
		assert.Equal(t, "h1", *a.Hospital)
		assert.Equal(t, "K1", a.RecordNumber)

		assert.Equal(t, join.Stats{Rows: 2, Matched: 1}, res.Stats["ADM"])
		assert.Equal(t, join.Stats{Rows: 4, Matched: 2, Orphans: 2}, res.Stats["DIAG"])
		require.Len(t, res.Batches["DIAG"], 1)
		assert.Equal(t, int64(2), res.Batches["DIAG"][0].NumRows())
	})

	t.Run("hidden parent", func(t *testing.T) {
		p, err := join.BuildPlan([]string{"DIAG"}, reg.lookup, lprJoins, nil)
		require.NoError(t, err)
		res, err := ex.Apply(p, batches, join.NewKeyFilter("A", "B"))
		require.NoError(t, err)
		defer res.Release()

		assert.Equal(t, []string{"A", "B"}, res.Store.IDs())
		a, _ := res.Store.Get("A")
		assert.Nil(t, a.Hospital)
		b, _ := res.Store.Get("B")
		assert.Equal(t, []string{"Z"}, diagnoses(b))
		_, ok := res.Batches["ADM"]
		assert.False(t, ok)
	})

	t.Run("empty filter", func(t *testing.T) {
		p, err := join.BuildPlan([]string{"ADM", "DIAG"}, reg.lookup, lprJoins, nil)
		require.NoError(t, err)
		res, err := ex.Apply(p, batches, join.NewKeyFilter())
		require.NoError(t, err)
		defer res.Release()
		assert.Equal(t, 0, res.Store.Len())
		assert.Equal(t, 4, res.Stats["DIAG"].Orphans)
	})

	t.Run("missing batches", func(t *testing.T) {
		p, err := join.BuildPlan([]string{"ADM", "DIAG"}, reg.lookup, lprJoins, nil)
		require.NoError(t, err)
		res, err := ex.Apply(p, map[string][]arrow.Record{"ADM": {adm}}, join.NewKeyFilter("A"))
		require.NoError(t, err)
		defer res.Release()
		assert.Equal(t, 1, res.Store.Len())
		assert.Equal(t, join.Stats{}, res.Stats["DIAG"])
	})
}

func TestApplyChain(t *testing.T) {
	reg := registry{
		"KONTAKT": schema.MustNew("KONTAKT", "", schema.PrimaryIdentifier,
			pnr("PNR"),
			schema.Attr(field.Define("DW", entity.AttrContactID, field.Identifier)),
		),
		"FORLOEB": schema.MustNew("FORLOEB", "", schema.ContactID,
			schema.Attr(field.Define("DW", entity.AttrContactID, field.Identifier)),
			recnum(),
		),
		"PROC": schema.MustNew("PROC", "", schema.RecordNumber,
			recnum(),
			schema.Attr(field.Define("OPR", "procedures", field.String)),
		),
	}
	joins := []join.Join{
		{Child: "PROC", Parent: "FORLOEB", ParentColumn: "RECNUM", ChildColumn: "RECNUM"},
		{Child: "FORLOEB", Parent: "KONTAKT", ParentColumn: "DW", ChildColumn: "DW"},
	}
	kontakt := batch.MustRecord(batch.Strings("PNR", "A", "B"), batch.Strings("DW", "c1", "c2"))
	forloeb := batch.MustRecord(batch.Strings("DW", "c1", "c2"), batch.Strings("RECNUM", "r1", "r2"))
	proc := batch.MustRecord(batch.Strings("RECNUM", "r2", "r1", "r9"), batch.Strings("OPR", "KAA", "KBB", "KCC"))
	defer kontakt.Release()
	defer forloeb.Release()
	defer proc.Release()

	p, err := join.BuildPlan([]string{"PROC"}, reg.lookup, joins, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"KONTAKT", "FORLOEB", "PROC"}, stepNames(p))

	res, err := join.NewExecutor().Apply(p, map[string][]arrow.Record{
		"KONTAKT": {kontakt}, "FORLOEB": {forloeb}, "PROC": {proc},
	}, join.NewKeyFilter("B"))
	require.NoError(t, err)
	defer res.Release()
	require.Equal(t, []string{"B"}, res.Store.IDs())
	b, _ := res.Store.Get("B")
	assert.Equal(t, []string{"KAA"}, b.Procedures)
	assert.Equal(t, join.Stats{Rows: 3, Matched: 1, Orphans: 2}, res.Stats["PROC"])
}

func TestApplyConflictingIdentifier(t *testing.T) {
	reg := registry{
		"ADM": schema.MustNew("ADM", "", schema.PrimaryIdentifier, pnr("PNR"), recnum()),
		"DIAG": schema.MustNew("DIAG", "", schema.RecordNumber,
			recnum(), pnr("CPR"),
		),
	}
	adm := batch.MustRecord(batch.Strings("PNR", "A"), batch.Strings("RECNUM", "K1"))
	diag := batch.MustRecord(batch.Strings("RECNUM", "K1"), batch.Strings("CPR", "B"))
	defer adm.Release()
	defer diag.Release()

	p, err := join.BuildPlan([]string{"ADM", "DIAG"}, reg.lookup, lprJoins, nil)
	require.NoError(t, err)
	_, err = join.NewExecutor().Apply(p, map[string][]arrow.Record{"ADM": {adm}, "DIAG": {diag}}, join.NewKeyFilter("A"))
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
