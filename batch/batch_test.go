// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package batch_test

import (
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/featurebasedb/cohort/batch"
	"github.com/featurebasedb/cohort/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) arrow.Record {
	t.Helper()
	rec, err := batch.NewRecord(nil,
		batch.Strings("PNR", "a", "b", "c", "d", "e"),
		batch.Int64s("ALDER", 10, 20, 30, 40, 50),
		batch.Dates("FOED_DAG",
			time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Time{},
			time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC),
			time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC),
		),
	)
	require.NoError(t, err)
	return rec
}

func TestNewRecordLengthMismatch(t *testing.T) {
	_, err := batch.NewRecord(nil, batch.Strings("A", "x"), batch.Int64s("B", 1, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchema))
}

func TestColumnLookup(t *testing.T) {
	rec := sample(t)
	defer rec.Release()

	assert.Equal(t, 0, batch.ColumnIndex(rec.Schema(), "pnr"))
	assert.Equal(t, 1, batch.ColumnIndex(rec.Schema(), "AGE", "alder"))
	assert.Equal(t, -1, batch.ColumnIndex(rec.Schema(), "KOEN"))
	assert.Nil(t, batch.Column(rec, "KOEN"))

	p := batch.Project(rec, []string{"FOED_DAG", "missing", "PNR"})
	defer p.Release()
	require.Equal(t, int64(2), p.NumCols())
	assert.Equal(t, "FOED_DAG", p.ColumnName(0))
	assert.Equal(t, "PNR", p.ColumnName(1))
	assert.Equal(t, int64(5), p.NumRows())
}

func TestTake(t *testing.T) {
	rec := sample(t)
	defer rec.Release()

	t.Run("Runs", func(t *testing.T) {
		out, err := batch.Take(nil, rec, roaring.BitmapOf(0, 1, 3, 4, 99))
		require.NoError(t, err)
		defer out.Release()

		require.Equal(t, int64(4), out.NumRows())
		ids := out.Column(0).(*array.String)
		assert.Equal(t, []string{"a", "b", "d", "e"}, []string{ids.Value(0), ids.Value(1), ids.Value(2), ids.Value(3)})
		ages := out.Column(1).(*array.Int64)
		assert.Equal(t, int64(40), ages.Value(2))
		assert.True(t, out.Column(2).IsNull(1))
	})

	t.Run("All", func(t *testing.T) {
		out, err := batch.Take(nil, rec, roaring.BitmapOf(0, 1, 2, 3, 4))
		require.NoError(t, err)
		defer out.Release()
		assert.Equal(t, int64(5), out.NumRows())
	})

	t.Run("None", func(t *testing.T) {
		out, err := batch.Take(nil, rec, roaring.New())
		require.NoError(t, err)
		defer out.Release()
		assert.Equal(t, int64(0), out.NumRows())
		assert.Equal(t, int64(3), out.NumCols())
	})

	t.Run("Filter", func(t *testing.T) {
		ages := rec.Column(1).(*array.Int64)
		out, err := batch.Filter(nil, rec, func(i int) bool { return ages.Value(i) > 25 })
		require.NoError(t, err)
		defer out.Release()
		assert.Equal(t, int64(3), out.NumRows())
		assert.Equal(t, "c", out.Column(0).(*array.String).Value(0))
	})
}

func TestDates(t *testing.T) {
	for _, d := range []time.Time{
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(1890, 7, 4, 0, 0, 0, 0, time.UTC),
	} {
		assert.Equal(t, d, batch.DaysToDate(batch.DateToDays(d)))
	}
	assert.Equal(t, arrow.Date32(-1), batch.DateToDays(time.Date(1969, 12, 31, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), batch.MillisToDate(arrow.Date64(1583020800000+3600000)))
}

func TestKeyAt(t *testing.T) {
	rec := batch.MustRecord(
		batch.Strings("RECNUM", "r1", ""),
		batch.Int32s("CODE", 7, 8),
		batch.Bools("FLAG", true, false),
	)
	defer rec.Release()

	k, ok := batch.KeyAt(rec.Column(0), 0)
	assert.True(t, ok)
	assert.Equal(t, "r1", k)
	_, ok = batch.KeyAt(rec.Column(0), 1)
	assert.False(t, ok)
	k, ok = batch.KeyAt(rec.Column(1), 1)
	assert.True(t, ok)
	assert.Equal(t, "8", k)
	_, ok = batch.KeyAt(rec.Column(2), 0)
	assert.False(t, ok)
}
