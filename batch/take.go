// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package batch

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/featurebasedb/cohort/errors"
)

type span struct {
	start, end int64
}

// spans collapses the set bits of rows into half-open runs of consecutive
// row numbers.
func spans(rows *roaring.Bitmap) []span {
	var out []span
	it := rows.Iterator()
	for it.HasNext() {
		r := int64(it.Next())
		if n := len(out); n > 0 && out[n-1].end == r {
			out[n-1].end++
			continue
		}
		out = append(out, span{start: r, end: r + 1})
	}
	return out
}

// Select returns the rows of rec for which keep returns true.
func Select(rec arrow.Record, keep func(row int) bool) *roaring.Bitmap {
	rows := roaring.New()
	for i := 0; i < int(rec.NumRows()); i++ {
		if keep(i) {
			rows.Add(uint32(i))
		}
	}
	return rows
}

// Take returns a record holding the rows of rec selected by rows, in
// ascending row order. Row numbers at or past rec.NumRows() are ignored.
// The caller owns the result.
func Take(mem memory.Allocator, rec arrow.Record, rows *roaring.Bitmap) (arrow.Record, error) {
	mem = Allocator(mem)
	nrows := rec.NumRows()
	if !rows.IsEmpty() && uint64(rows.Maximum()) >= uint64(nrows) {
		rows = rows.Clone()
		rows.RemoveRange(uint64(nrows), uint64(rows.Maximum())+1)
	}
	n := int64(rows.GetCardinality())
	if n == nrows {
		rec.Retain()
		return rec, nil
	}
	if n == 0 {
		return rec.NewSlice(0, 0), nil
	}

	runs := spans(rows)
	cols := make([]arrow.Array, 0, rec.NumCols())
	release := func() {
		for _, c := range cols {
			c.Release()
		}
	}
	for i := 0; i < int(rec.NumCols()); i++ {
		col := rec.Column(i)
		parts := make([]arrow.Array, 0, len(runs))
		for _, r := range runs {
			parts = append(parts, array.NewSlice(col, r.start, r.end))
		}
		if len(parts) == 1 {
			cols = append(cols, parts[0])
			continue
		}
		out, err := array.Concatenate(parts, mem)
		for _, p := range parts {
			p.Release()
		}
		if err != nil {
			release()
			return nil, errors.WithCode(errors.Wrapf(err, "selecting rows of column %s", rec.ColumnName(i)), errors.ErrSchema)
		}
		cols = append(cols, out)
	}
	out := array.NewRecord(rec.Schema(), cols, n)
	release()
	return out, nil
}

// Filter returns the rows of rec for which keep returns true.
func Filter(mem memory.Allocator, rec arrow.Record, keep func(row int) bool) (arrow.Record, error) {
	return Take(mem, rec, Select(rec, keep))
}
