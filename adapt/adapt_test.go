// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package adapt_test

import (
	"testing"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/featurebasedb/cohort/adapt"
	"github.com/featurebasedb/cohort/batch"
	"github.com/featurebasedb/cohort/entity"
	"github.com/featurebasedb/cohort/field"
	"github.com/featurebasedb/cohort/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func befSchema() *schema.RegistrySchema {
	return schema.MustNew("BEF", "", schema.PrimaryIdentifier,
		schema.Attr(field.Define("PNR", entity.AttrID, field.Identifier)),
		schema.Attr(field.Define("KOEN", "gender", field.Category)),
		schema.Attr(field.Define("FOED_DAG", "birth_date", field.Date)),
		schema.Attr(field.Define("ALDER", "age", field.Integer)),
		schema.Attr(field.Define("KOM", "municipality_code", field.Category, "KOMMUNE")),
		schema.Attr(field.Define("HUSTANT", "household_size", field.Integer)),
		schema.Attr(field.Define("INDKOMST", "annual_income", field.Decimal)),
		schema.Attr(field.Define("LAND", "is_rural", field.Boolean)),
	)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	a := adapt.New()
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2020-03-15", day(2020, 3, 15), true},
		{"15-03-2020", day(2020, 3, 15), true},
		{"03/15/2020", day(2020, 3, 15), true},
		{"15/03/2020", day(2020, 3, 15), true},
		{"15.03.2020", day(2020, 3, 15), true},
		{"20200315", day(2020, 3, 15), true},
		{"15 Mar 2020", day(2020, 3, 15), true},
		{"15 March 2020", day(2020, 3, 15), true},
		// month-first wins when both readings are valid
		{"03/04/2020", day(2020, 3, 4), true},
		{" 2020-02-29 ", day(2020, 2, 29), true},
		{"2019-02-29", time.Time{}, false},
		{"not a date", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := a.ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	custom := adapt.New(adapt.WithDateFormats("2006/01/02"))
	_, ok := custom.ParseDate("2020-03-15")
	assert.False(t, ok)
	got, ok := custom.ParseDate("2020/03/15")
	assert.True(t, ok)
	assert.Equal(t, day(2020, 3, 15), got)
	assert.Equal(t, adapt.DefaultDateFormats, adapt.New(adapt.WithDateFormats()).Formats())
}

func TestCheck(t *testing.T) {
	sc := arrow.NewSchema([]arrow.Field{
		{Name: "PNR", Type: arrow.BinaryTypes.String},
		{Name: "KOEN", Type: arrow.PrimitiveTypes.Int32},
		{Name: "FOED_DAG", Type: arrow.BinaryTypes.String},
		{Name: "ALDER", Type: arrow.PrimitiveTypes.Int64},
		{Name: "kommune", Type: arrow.BinaryTypes.String},
		{Name: "INDKOMST", Type: arrow.PrimitiveTypes.Int32},
		{Name: "LAND", Type: arrow.PrimitiveTypes.Float64},
	}, nil)

	r := adapt.Check(sc, befSchema())
	assert.Equal(t, []string{"HUSTANT"}, r.Missing)
	assert.Equal(t, adapt.Incompatible, r.Compatibility())
	assert.Equal(t, []string{"LAND"}, r.Incompatible())

	tests := []struct {
		col  string
		c    adapt.Compatibility
		s    adapt.Strategy
		from string
	}{
		{"PNR", adapt.Exact, adapt.NoConversion, "PNR"},
		{"KOEN", adapt.Compatible, adapt.StringConversion, "KOEN"},
		{"FOED_DAG", adapt.Compatible, adapt.DateParsing, "FOED_DAG"},
		{"ALDER", adapt.Exact, adapt.NoConversion, "ALDER"},
		{"KOM", adapt.Exact, adapt.NoConversion, "kommune"},
		{"INDKOMST", adapt.Compatible, adapt.NumericConversion, "INDKOMST"},
		{"LAND", adapt.Incompatible, adapt.NoConversion, "LAND"},
	}
	for _, tt := range tests {
		c, ok := r.Column(tt.col)
		require.True(t, ok, tt.col)
		assert.Equal(t, tt.c, c.Compatibility, tt.col)
		assert.Equal(t, tt.s, c.Strategy, tt.col)
		assert.Equal(t, tt.from, c.Source, tt.col)
	}
	assert.Contains(t, r.String(), "missing=HUSTANT")
}

func TestAdapt(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec, err := batch.NewRecord(mem,
		batch.Strings("PNR", "p1", "p2", "p3"),
		batch.Int32s("KOEN", 1, 2, 1),
		batch.Strings("FOED_DAG", "2001-05-17", "17.05.2001", "garbage"),
		batch.Int32s("ALDER", 19, 20, 21),
		batch.Strings("kommune", "101", "", "751"),
		batch.Strings("HUSTANT", "3", "x", " 4 "),
		batch.Strings("INDKOMST", "1234,5", "99.25", ""),
		batch.Strings("LAND", "ja", "nej", "maybe"),
		batch.Strings("EXTRA", "a", "b", "c"),
	)
	require.NoError(t, err)
	defer rec.Release()

	out, r := adapt.New(adapt.WithAllocator(mem)).Adapt(rec, befSchema())
	defer out.Release()

	assert.Equal(t, adapt.Compatible, r.Compatibility())
	assert.Empty(t, r.Missing)
	assert.Equal(t, 3, r.Nulled())
	assert.Equal(t, rec.NumCols(), out.NumCols())
	assert.Equal(t, rec.NumRows(), out.NumRows())

	for _, m := range befSchema().Mappings() {
		def := m.Definition()
		i := batch.ColumnIndex(out.Schema(), def.Name)
		require.GreaterOrEqual(t, i, 0, def.Name)
		assert.Equal(t, def.Name, out.Schema().Field(i).Name)
		assert.True(t, arrow.TypeEqual(def.Type.ArrowType(), out.Column(i).DataType()), def.Name)
	}
	assert.Equal(t, "EXTRA", out.Schema().Field(8).Name)

	es := schema.NewDeserializer(befSchema(), nil).DeserializeBatch(out)
	require.Len(t, es, 3)

	assert.Equal(t, "1", *es[0].Gender)
	assert.Equal(t, day(2001, 5, 17), *es[0].BirthDate)
	assert.Equal(t, day(2001, 5, 17), *es[1].BirthDate)
	assert.Nil(t, es[2].BirthDate)
	assert.Equal(t, int64(21), *es[2].Age)
	assert.Equal(t, "101", *es[0].MunicipalityCode)
	assert.Nil(t, es[1].MunicipalityCode)
	assert.Equal(t, int64(3), *es[0].HouseholdSize)
	assert.Nil(t, es[1].HouseholdSize)
	assert.Equal(t, int64(4), *es[2].HouseholdSize)
	assert.Equal(t, 1234.5, *es[0].AnnualIncome)
	assert.Equal(t, 99.25, *es[1].AnnualIncome)
	assert.Nil(t, es[2].AnnualIncome)
	assert.True(t, *es[0].IsRural)
	assert.False(t, *es[1].IsRural)
	assert.Nil(t, es[2].IsRural)

	c, _ := r.Column("FOED_DAG")
	assert.Equal(t, 1, c.Nulled)
}

func TestAdaptTemporal(t *testing.T) {
	s := schema.MustNew("T", "", schema.PrimaryIdentifier,
		schema.Attr(field.Define("PNR", entity.AttrID, field.Identifier)),
		schema.Attr(field.Define("D64", "death_date", field.Date)),
		schema.Attr(field.Define("TS", "event_date", field.Date)),
		schema.Attr(field.Define("AGE", "age", field.Integer)),
		schema.Extension(field.Define("KL", "time", field.Time)),
	)

	mem := memory.NewGoAllocator()
	d64 := array.NewDate64Builder(mem)
	d64.Append(arrow.Date64(day(2020, 2, 29).UnixMilli() + 3600*1000))
	ts := array.NewTimestampBuilder(mem, &arrow.TimestampType{Unit: arrow.Microsecond})
	ts.Append(arrow.Timestamp(day(1999, 12, 31).Add(23 * time.Hour).UnixMicro()))
	defer d64.Release()
	defer ts.Release()
	d64a, tsa := d64.NewArray(), ts.NewArray()
	defer d64a.Release()
	defer tsa.Release()

	rec := batch.MustRecord(
		batch.Strings("PNR", "p1"),
		batch.Array(arrow.Field{Name: "D64", Type: d64a.DataType(), Nullable: true}, d64a),
		batch.Array(arrow.Field{Name: "TS", Type: tsa.DataType(), Nullable: true}, tsa),
		batch.Bools("AGE", true),
		batch.Strings("KL", "13:45"),
	)
	defer rec.Release()

	out, r := adapt.New().Adapt(rec, s)
	defer out.Release()
	assert.Equal(t, adapt.Compatible, r.Compatibility())

	es := schema.NewDeserializer(s, nil).DeserializeBatch(out)
	require.Len(t, es, 1)
	assert.Equal(t, day(2020, 2, 29), *es[0].DeathDate)
	assert.Equal(t, day(1999, 12, 31), *es[0].EventDate)
	assert.Equal(t, int64(1), *es[0].Age)
	x, ok := es[0].Extension("time")
	require.True(t, ok)
	d, _ := x.Scalar.TimeOfDay()
	assert.Equal(t, 13*time.Hour+45*time.Minute, d)
}
