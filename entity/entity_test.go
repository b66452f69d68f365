// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package entity_test

import (
	"testing"
	"time"

	"github.com/featurebasedb/cohort/entity"
	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func str(s string) *string { return &s }

func set(t *testing.T, e *entity.Entity, name string, v field.Value) {
	t.Helper()
	a, ok := entity.Lookup(name)
	require.True(t, ok, name)
	require.NoError(t, a.Set(e, v), name)
}

func TestSetID(t *testing.T) {
	e := entity.New("")
	require.NoError(t, e.SetID("p1"))
	require.NoError(t, e.SetID("p1"))
	err := e.SetID("p2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Equal(t, "p1", e.ID())
}

func TestSetIdentifierAttribute(t *testing.T) {
	id, ok := entity.Lookup(entity.AttrID)
	require.True(t, ok)

	e := entity.New("")
	require.NoError(t, id.Set(e, field.StringValue("p1")))
	require.NoError(t, id.Set(e, field.StringValue("p1")))

	err := id.Set(e, field.StringValue("p2"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Equal(t, "p1", e.ID())

	assert.True(t, errors.Is(id.Set(e, field.StringValue("")), errors.ErrValidation))
	assert.True(t, errors.Is(id.Set(e, field.IntValue(7)), errors.ErrValidation))
	assert.Equal(t, "p1", e.ID())
}

func TestAttributes(t *testing.T) {
	e := entity.New("")
	set(t, e, entity.AttrID, field.StringValue("p1"))
	set(t, e, "gender", field.StringValue("F"))
	set(t, e, "birth_date", field.DateValue(day(1990, 1, 2)))
	set(t, e, "employment_income", field.IntValue(1000))
	set(t, e, "diagnoses", field.StringValue("DA01"))
	set(t, e, "diagnoses", field.StringValue("DA01"))
	set(t, e, "diagnoses", field.StringValue("DB02"))

	assert.Equal(t, "p1", e.ID())
	assert.Equal(t, "F", *e.Gender)
	assert.Equal(t, day(1990, 1, 2), *e.BirthDate)
	assert.Equal(t, 1000.0, *e.EmploymentIncome)
	assert.Equal(t, []string{"DA01", "DA01", "DB02"}, e.Diagnoses)

	a, _ := entity.Lookup("age")
	err := a.Set(e, field.StringValue("forty"))
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Nil(t, e.Age)
	assert.Empty(t, a.Get(e))

	d, _ := entity.Lookup("diagnoses")
	assert.True(t, d.List)
	assert.Len(t, d.Get(e), 3)

	names := map[string]bool{}
	for _, a := range entity.Attributes() {
		assert.False(t, names[a.Name], "duplicate attribute %s", a.Name)
		names[a.Name] = true
	}
	assert.Greater(t, len(names), 70)
}

func TestMergePolicies(t *testing.T) {
	older := entity.New("p1")
	older.Gender = str("M")
	older.MaritalStatus = str("U")
	older.Diagnoses = []string{"DA01"}

	newer := entity.New("p1")
	newer.MaritalStatus = str("G")
	newer.MunicipalityCode = str("101")
	newer.Diagnoses = []string{"DA01", "DC03"}

	t.Run("FillAbsent", func(t *testing.T) {
		out, err := entity.Merged(older, newer, entity.FillAbsent)
		require.NoError(t, err)
		assert.Equal(t, "U", *out.MaritalStatus)
		assert.Equal(t, "101", *out.MunicipalityCode)
		assert.Equal(t, "M", *out.Gender)
		assert.Equal(t, []string{"DA01", "DA01", "DC03"}, out.Diagnoses)
		// inputs untouched
		assert.Nil(t, older.MunicipalityCode)
		assert.Equal(t, []string{"DA01"}, older.Diagnoses)
	})

	t.Run("LastWins", func(t *testing.T) {
		out, err := entity.Merged(older, newer, entity.LastWins)
		require.NoError(t, err)
		assert.Equal(t, "G", *out.MaritalStatus)
		assert.Equal(t, "M", *out.Gender)
	})

	t.Run("Identifier", func(t *testing.T) {
		err := entity.Merge(entity.New("p1"), entity.New("p2"), entity.FillAbsent)
		assert.True(t, errors.Is(err, errors.ErrValidation))

		anon := entity.New("")
		require.NoError(t, entity.Merge(anon, older, entity.FillAbsent))
		assert.Equal(t, "p1", anon.ID())
	})

	t.Run("Self", func(t *testing.T) {
		e := older.Clone()
		e.AppendExtension("codes", field.StringValue("x"), false)
		require.NoError(t, entity.Merge(e, e, entity.LastWins))
		x, ok := e.Extension("codes")
		require.True(t, ok)
		assert.Len(t, x.List, 1)
	})
}

func TestMergeExtensions(t *testing.T) {
	a := entity.New("p1")
	a.SetExtension("version", field.StringValue("v1"))
	a.AppendExtension("codes", field.StringValue("x"), false)
	a.AppendExtension("tags", field.StringValue("t"), true)

	b := entity.New("p1")
	b.SetExtension("version", field.StringValue("v2"))
	b.AppendExtension("codes", field.StringValue("x"), false)
	b.AppendExtension("tags", field.StringValue("t"), true)
	b.AppendExtension("tags", field.StringValue("u"), true)

	require.NoError(t, entity.Merge(a, b, entity.FillAbsent))
	v, _ := a.Extension("version")
	assert.Equal(t, "v1", v.Scalar.String())
	codes, _ := a.Extension("codes")
	assert.Len(t, codes.List, 2)
	tags, _ := a.Extension("tags")
	assert.Len(t, tags.List, 2)
	assert.Equal(t, []string{"codes", "tags", "version"}, a.ExtensionKeys())

	require.NoError(t, entity.Merge(a, b, entity.LastWins))
	v, _ = a.Extension("version")
	assert.Equal(t, "v2", v.Scalar.String())
}

func TestStoreIdempotent(t *testing.T) {
	batch := []*entity.Entity{entity.New("p1"), entity.New("p2"), entity.New("p1")}
	batch[0].Gender = str("F")
	batch[0].Diagnoses = []string{"DA01"}
	batch[1].BirthDate = &[]time.Time{day(2001, 3, 4)}[0]
	batch[2].Procedures = []string{"KAA"}
	batch[2].Diagnoses = []string{"DB02"}
	batch[2].AddProvenance(entity.Provenance{Registry: "LPR", Period: "2020"})

	once := entity.NewStore(entity.FillAbsent)
	require.NoError(t, once.MergeAll(batch))

	twice := entity.NewStore(entity.FillAbsent)
	require.NoError(t, twice.MergeAll(batch))
	require.NoError(t, twice.MergeAll(batch))

	assert.Equal(t, once.IDs(), twice.IDs())
	for _, id := range once.IDs() {
		a, _ := once.Get(id)
		b, _ := twice.Get(id)
		assert.Equal(t, a, b, id)
	}
	p1, _ := once.Get("p1")
	assert.Equal(t, []string{"DA01", "DB02"}, p1.Diagnoses)
	assert.Len(t, p1.Provenance(), 1)

	// the store copied the inputs
	batch[0].Gender = str("M")
	assert.Equal(t, "F", *p1.Gender)

	err := once.Merge(entity.New(""))
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestStorePairedLists(t *testing.T) {
	visit := func(period, diag, typ string, adm, dis time.Time) *entity.Entity {
		e := entity.New("p1")
		e.Diagnoses = []string{diag}
		e.DiagnosisTypes = []string{typ}
		e.AdmissionDates = []time.Time{adm}
		e.DischargeDates = []time.Time{dis}
		e.AddProvenance(entity.Provenance{Registry: "LPR_DIAG", Period: period})
		return e
	}
	d := day(2020, 5, 1)
	visits := []*entity.Entity{
		visit("2019", "DA01", "A", d, d.AddDate(0, 0, 2)),
		visit("2020", "DB02", "A", d, d.AddDate(0, 0, 9)),
		visit("2021", "DA01", "B", d.AddDate(1, 0, 0), d.AddDate(1, 0, 1)),
	}

	s := entity.NewStore(entity.LastWins)
	require.NoError(t, s.MergeAll(visits))
	require.NoError(t, s.MergeAll(visits))

	p1, ok := s.Get("p1")
	require.True(t, ok)
	assert.Equal(t, []string{"DA01", "DB02", "DA01"}, p1.Diagnoses)
	assert.Equal(t, []string{"A", "A", "B"}, p1.DiagnosisTypes)
	assert.Equal(t, []time.Time{d, d, d.AddDate(1, 0, 0)}, p1.AdmissionDates)
	assert.Equal(t, []time.Time{d.AddDate(0, 0, 2), d.AddDate(0, 0, 9), d.AddDate(1, 0, 1)}, p1.DischargeDates)
	assert.Len(t, p1.Provenance(), 3)

	// the same row from another extract is a new input
	again := visit("2022", "DA01", "B", d.AddDate(1, 0, 0), d.AddDate(1, 0, 1))
	require.NoError(t, s.Merge(again))
	assert.Equal(t, []string{"DA01", "DB02", "DA01", "DA01"}, p1.Diagnoses)
	assert.Len(t, p1.DischargeDates, 4)
}

func TestStoreMergeStore(t *testing.T) {
	a := entity.NewStore(entity.FillAbsent)
	require.NoError(t, a.Merge(person("p1", "101", "DA01")))

	b := entity.NewStore(entity.FillAbsent)
	require.NoError(t, b.MergeAll([]*entity.Entity{
		person("p1", "147", "DB02"),
		person("p2", "", "DC03"),
	}))

	require.NoError(t, a.MergeStore(b))
	require.NoError(t, a.MergeStore(b))
	assert.Equal(t, []string{"p1", "p2"}, a.IDs())
	p1, _ := a.Get("p1")
	assert.Equal(t, "101", *p1.MunicipalityCode)
	assert.Equal(t, []string{"DA01", "DB02"}, p1.Diagnoses)
	p2, _ := a.Get("p2")
	assert.Equal(t, []string{"DC03"}, p2.Diagnoses)

	// o is left alone
	bp1, _ := b.Get("p1")
	assert.Equal(t, []string{"DB02"}, bp1.Diagnoses)
	assert.Equal(t, 2, b.Len())

	// a clone remembers what was merged
	c := a.Clone()
	require.NoError(t, c.MergeStore(b))
	cp1, _ := c.Get("p1")
	assert.Equal(t, []string{"DA01", "DB02"}, cp1.Diagnoses)
}

func person(id, kom string, diags ...string) *entity.Entity {
	e := entity.New(id)
	if kom != "" {
		e.MunicipalityCode = &kom
	}
	e.Diagnoses = diags
	return e
}

func TestStoreQueries(t *testing.T) {
	s := entity.NewStore(entity.FillAbsent)
	alive := entity.New("a")
	alive.BirthDate = &[]time.Time{day(1950, 1, 1)}[0]
	dead := entity.New("b")
	dead.BirthDate = &[]time.Time{day(1940, 1, 1)}[0]
	dead.DeathDate = &[]time.Time{day(2000, 1, 1)}[0]
	unborn := entity.New("c")
	unborn.BirthDate = &[]time.Time{day(2010, 1, 1)}[0]
	unknown := entity.New("d")
	require.NoError(t, s.MergeAll([]*entity.Entity{unknown, unborn, dead, alive}))

	ids := func(es []*entity.Entity) []string {
		var out []string
		for _, e := range es {
			out = append(out, e.ID())
		}
		return out
	}
	assert.Equal(t, []string{"a", "b"}, ids(s.ValidAt(day(2000, 1, 1))))
	assert.Equal(t, []string{"a"}, ids(s.ValidAt(day(2005, 1, 1))))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(s.Entities()))
	assert.Equal(t, []string{"d"}, ids(s.Select(func(e *entity.Entity) bool { return e.BirthDate == nil })))

	c := s.Clone()
	e, _ := c.Get("a")
	e.Gender = str("F")
	orig, _ := s.Get("a")
	assert.Nil(t, orig.Gender)
}

func TestRuralStatus(t *testing.T) {
	e := entity.New("p")
	_, ok := e.RuralStatus()
	assert.False(t, ok)
	e.MunicipalityCode = str("450")
	rural, ok := e.RuralStatus()
	assert.True(t, ok)
	assert.False(t, rural)
	e.MunicipalityCode = str("851")
	rural, _ = e.RuralStatus()
	assert.True(t, rural)
}
