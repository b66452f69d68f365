// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package schema_test

import (
	"testing"
	"time"

	"github.com/featurebasedb/cohort/batch"
	"github.com/featurebasedb/cohort/entity"
	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/field"
	"github.com/featurebasedb/cohort/logger"
	"github.com/featurebasedb/cohort/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func diagSchema(t *testing.T) *schema.RegistrySchema {
	t.Helper()
	s, err := schema.New("LPR_DIAG", "diagnoses", schema.RecordNumber,
		schema.Attr(field.Define("RECNUM", entity.AttrRecordNumber, field.Identifier).Required()),
		schema.Attr(field.Define("C_DIAG", "diagnoses", field.String, "DIAG")),
		schema.Attr(field.Define("C_TILDIAG", "diagnoses", field.String)),
		schema.AppendExtension(field.Define("C_DIAGTYPE", "diag_type", field.Category), false),
	)
	require.NoError(t, err)
	return s
}

func TestNewValidation(t *testing.T) {
	id := schema.Attr(field.Define("PNR", entity.AttrID, field.Identifier))

	_, err := schema.New("X", "", schema.PrimaryIdentifier, id, schema.Attr(field.Define("pnr", "mother_pnr", field.Identifier)))
	assert.True(t, errors.Is(err, errors.ErrValidation), "duplicate column")

	_, err = schema.New("X", "", schema.PrimaryIdentifier, id, schema.Attr(field.Define("MOR", "mother", field.Identifier, "PNR")))
	assert.True(t, errors.Is(err, errors.ErrValidation), "alias collides")

	_, err = schema.New("X", "", schema.PrimaryIdentifier, id, schema.Attr(field.Define("KOEN", "sex", field.String)))
	assert.True(t, errors.Is(err, errors.ErrValidation), "unknown attribute")

	_, err = schema.New("X", "", schema.RecordNumber, id)
	assert.True(t, errors.Is(err, errors.ErrValidation), "no key column")

	_, err = schema.New("X", "", schema.PrimaryIdentifier, id, schema.Attr(field.Define("CPR", entity.AttrID, field.Identifier)))
	assert.True(t, errors.Is(err, errors.ErrValidation), "two identifier columns")

	_, err = schema.New("X", "", schema.PrimaryIdentifier, id, schema.NewMapping(field.Define("A", "a", field.String), nil, nil))
	assert.True(t, errors.Is(err, errors.ErrValidation), "no setter")

	assert.Panics(t, func() { schema.MustNew("X", "", schema.ContactID, id) })
}

func TestSchemaAccessors(t *testing.T) {
	s := diagSchema(t)
	assert.Equal(t, "LPR_DIAG", s.Name())
	assert.Equal(t, schema.RecordNumber, s.JoinKeyKind())
	assert.Equal(t, "", s.IdentifierColumn())
	assert.Equal(t, "RECNUM", s.KeyColumn())
	assert.True(t, s.Has("diag"))
	assert.False(t, s.Has("PNR"))
	m, ok := s.Mapping("c_tildiag")
	require.True(t, ok)
	assert.Equal(t, "diagnoses", m.Definition().Canonical)
	assert.Equal(t, []string{"RECNUM", "C_DIAG", "C_TILDIAG", "C_DIAGTYPE"}, s.Columns())
	assert.Equal(t, 4, len(s.ArrowSchema().Fields()))
	assert.Equal(t, "record-number", s.JoinKeyKind().String())
}

func TestDeserializeBatch(t *testing.T) {
	s := diagSchema(t)
	rec := batch.MustRecord(
		batch.Strings("RECNUM", "r1", "", "r3"),
		batch.Strings("DIAG", "DA01", "DB02", "DC03"),
		batch.Strings("C_TILDIAG", "DZ99", "", "DC03"),
		batch.Int64s("C_DIAGTYPE", 1, 2, 3),
	)
	defer rec.Release()

	buf := logger.NewBufferLogger()
	d := schema.NewDeserializer(s, buf)

	got := d.DeserializeBatch(rec)
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].RecordNumber)
	assert.Equal(t, []string{"DA01", "DZ99"}, got[0].Diagnoses)
	assert.Equal(t, "r3", got[1].RecordNumber)
	assert.Equal(t, []string{"DC03", "DC03"}, got[1].Diagnoses)
	_, ok := got[0].Extension("diag_type")
	assert.False(t, ok, "integer column cannot be read as a category")

	// warnings are bounded to one per column per schema
	d.DeserializeBatch(rec)
	schema.NewDeserializer(s, buf).DeserializeBatch(rec)
	assert.Equal(t, 1, buf.Count("C_DIAGTYPE"))
	assert.Equal(t, 1, buf.Count("WARN"))

	e, ok := d.DeserializeRow(rec, 2)
	require.True(t, ok)
	assert.Equal(t, "r3", e.RecordNumber)
	_, ok = d.DeserializeRow(rec, 1)
	assert.False(t, ok)
	_, ok = d.DeserializeRow(rec, 9)
	assert.False(t, ok)
}

func TestDeserializeRejectedValue(t *testing.T) {
	// A custom setter that reassigns the identifier from a second column.
	s := schema.MustNew("BEF", "", schema.PrimaryIdentifier,
		schema.Attr(field.Define("PNR", entity.AttrID, field.Identifier)),
		schema.NewMapping(field.Define("CPR_ALT", "cpr_alt", field.Identifier),
			func(e *entity.Entity, v field.Value) error {
				id, _ := v.Str()
				return e.SetID(id)
			}, nil),
	)
	rec := batch.MustRecord(
		batch.Strings("PNR", "p1", "p2", "p3"),
		batch.Strings("CPR_ALT", "p1", "x2", "x3"),
	)
	defer rec.Release()

	buf := logger.NewBufferLogger()
	got := schema.NewDeserializer(s, buf).DeserializeBatch(rec)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID())
	assert.Equal(t, 1, buf.Count("CPR_ALT"))
	assert.Equal(t, 1, buf.Count("cannot be reassigned"))

	m, _ := s.Mapping("CPR_ALT")
	e := entity.New("")
	ok, err := m.Apply(rec, 0, e)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = m.Apply(rec, 1, e)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestDeserializeMissingColumns(t *testing.T) {
	s := schema.MustNew("BEF", "", schema.PrimaryIdentifier,
		schema.Attr(field.Define("PNR", entity.AttrID, field.Identifier)),
		schema.Attr(field.Define("KOEN", "gender", field.Category)),
	)
	rec := batch.MustRecord(batch.Strings("PNR", "p1", "p2"))
	defer rec.Release()

	got := schema.NewDeserializer(s, nil).DeserializeBatch(rec)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Gender)
	assert.Equal(t, "p2", got[1].ID())
}

// A schema whose mappings cover every canonical attribute survives a trip
// through Encode and DeserializeBatch.
func TestRoundTrip(t *testing.T) {
	var mappings []schema.Mapping
	for _, a := range entity.Attributes() {
		mappings = append(mappings, schema.Attr(field.Define("col_"+a.Name, a.Name, a.Type)))
	}
	mappings = append(mappings, schema.Extension(field.Define("col_version", "version", field.String)))
	s := schema.MustNew("ALL", "", schema.PrimaryIdentifier, mappings...)

	e := entity.New("p1")
	gender, income, year, rural := "F", 1234.5, int64(2020), true
	born := day(1980, 2, 29)
	e.Gender = &gender
	e.AnnualIncome = &income
	e.IncomeYear = &year
	e.IsRural = &rural
	e.BirthDate = &born
	e.RecordNumber = "r9"
	e.Diagnoses = []string{"DA01", "DB02"}
	e.AdmissionDates = []time.Time{day(2019, 1, 1)}
	e.SetExtension("version", field.StringValue("v1"))

	other := entity.New("p2")
	other.Age = &year

	rec := s.Encode(nil, []*entity.Entity{e, other})
	defer rec.Release()
	assert.Equal(t, int64(3), rec.NumRows())

	store := entity.NewStore(entity.FillAbsent)
	require.NoError(t, store.MergeAll(schema.NewDeserializer(s, nil).DeserializeBatch(rec)))
	require.Equal(t, 2, store.Len())

	got, _ := store.Get("p1")
	for _, a := range entity.Attributes() {
		assert.Equal(t, a.Get(e), a.Get(got), a.Name)
	}
	v, ok := got.Extension("version")
	require.True(t, ok)
	assert.Equal(t, "v1", v.Scalar.String())

	got2, _ := store.Get("p2")
	assert.Equal(t, year, *got2.Age)
}
