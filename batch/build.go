// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package batch

import (
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/featurebasedb/cohort/errors"
)

// ColumnSpec describes a named column and how to build its values. It is
// mostly used to assemble small records by hand.
type ColumnSpec struct {
	Field arrow.Field
	Len   int
	build func(mem memory.Allocator) arrow.Array
}

// Strings describes a utf8 column. Empty strings are stored as nulls.
func Strings(name string, vals ...string) ColumnSpec {
	return ColumnSpec{
		Field: arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true},
		Len:   len(vals),
		build: func(mem memory.Allocator) arrow.Array {
			b := array.NewStringBuilder(mem)
			defer b.Release()
			for _, v := range vals {
				if v == "" {
					b.AppendNull()
					continue
				}
				b.Append(v)
			}
			return b.NewArray()
		},
	}
}

// Int64s describes an int64 column without nulls.
func Int64s(name string, vals ...int64) ColumnSpec {
	return ColumnSpec{
		Field: arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		Len:   len(vals),
		build: func(mem memory.Allocator) arrow.Array {
			b := array.NewInt64Builder(mem)
			defer b.Release()
			b.AppendValues(vals, nil)
			return b.NewArray()
		},
	}
}

// Int32s describes an int32 column without nulls.
func Int32s(name string, vals ...int32) ColumnSpec {
	return ColumnSpec{
		Field: arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		Len:   len(vals),
		build: func(mem memory.Allocator) arrow.Array {
			b := array.NewInt32Builder(mem)
			defer b.Release()
			b.AppendValues(vals, nil)
			return b.NewArray()
		},
	}
}

// Float64s describes a float64 column without nulls.
func Float64s(name string, vals ...float64) ColumnSpec {
	return ColumnSpec{
		Field: arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		Len:   len(vals),
		build: func(mem memory.Allocator) arrow.Array {
			b := array.NewFloat64Builder(mem)
			defer b.Release()
			b.AppendValues(vals, nil)
			return b.NewArray()
		},
	}
}

// Bools describes a boolean column without nulls.
func Bools(name string, vals ...bool) ColumnSpec {
	return ColumnSpec{
		Field: arrow.Field{Name: name, Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		Len:   len(vals),
		build: func(mem memory.Allocator) arrow.Array {
			b := array.NewBooleanBuilder(mem)
			defer b.Release()
			b.AppendValues(vals, nil)
			return b.NewArray()
		},
	}
}

// Dates describes a date32 column. Zero times are stored as nulls.
func Dates(name string, vals ...time.Time) ColumnSpec {
	return ColumnSpec{
		Field: arrow.Field{Name: name, Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		Len:   len(vals),
		build: func(mem memory.Allocator) arrow.Array {
			b := array.NewDate32Builder(mem)
			defer b.Release()
			for _, v := range vals {
				if v.IsZero() {
					b.AppendNull()
					continue
				}
				b.Append(DateToDays(v))
			}
			return b.NewArray()
		},
	}
}

// Nulls describes a column of n nulls of type dt.
func Nulls(name string, dt arrow.DataType, n int) ColumnSpec {
	return ColumnSpec{
		Field: arrow.Field{Name: name, Type: dt, Nullable: true},
		Len:   n,
		build: func(mem memory.Allocator) arrow.Array {
			b := array.NewBuilder(mem, dt)
			defer b.Release()
			for i := 0; i < n; i++ {
				b.AppendNull()
			}
			return b.NewArray()
		},
	}
}

// Array describes a column backed by an existing array.
func Array(f arrow.Field, arr arrow.Array) ColumnSpec {
	return ColumnSpec{
		Field: f,
		Len:   arr.Len(),
		build: func(memory.Allocator) arrow.Array {
			arr.Retain()
			return arr
		},
	}
}

// NewRecord builds a record from cols, which must all have the same length.
// The caller owns the result.
func NewRecord(mem memory.Allocator, cols ...ColumnSpec) (arrow.Record, error) {
	mem = Allocator(mem)
	fields := make([]arrow.Field, len(cols))
	arrs := make([]arrow.Array, len(cols))
	defer func() {
		for _, a := range arrs {
			if a != nil {
				a.Release()
			}
		}
	}()
	n := -1
	for i, c := range cols {
		if n >= 0 && c.Len != n {
			return nil, errors.Newf(errors.ErrSchema, "column %s has %d values, want %d", c.Field.Name, c.Len, n)
		}
		n = c.Len
		fields[i] = c.Field
		arrs[i] = c.build(mem)
	}
	if n < 0 {
		n = 0
	}
	return array.NewRecord(arrow.NewSchema(fields, nil), arrs, int64(n)), nil
}

// MustRecord is like NewRecord but panics on error. It is meant for tests
// and fixed fixtures.
func MustRecord(cols ...ColumnSpec) arrow.Record {
	rec, err := NewRecord(nil, cols...)
	if err != nil {
		panic(err)
	}
	return rec
}
