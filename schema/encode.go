// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package schema

import (
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/featurebasedb/cohort/batch"
	"github.com/featurebasedb/cohort/entity"
	"github.com/featurebasedb/cohort/field"
)

// Encode writes entities back into a record with one column per mapping
// that has a getter. An entity holding several values for a list column
// spans as many rows; its other columns repeat on each of them. The caller
// owns the result.
func (s *RegistrySchema) Encode(mem memory.Allocator, entities []*entity.Entity) arrow.Record {
	mem = batch.Allocator(mem)
	var cols []Mapping
	for _, m := range s.mappings {
		if m.get != nil {
			cols = append(cols, m)
		}
	}

	builders := make([]array.Builder, len(cols))
	fields := make([]arrow.Field, len(cols))
	for i, m := range cols {
		dt := m.def.Type.ArrowType()
		builders[i] = array.NewBuilder(mem, dt)
		fields[i] = arrow.Field{Name: m.def.Name, Type: dt, Nullable: true}
	}
	defer func() {
		for _, b := range builders {
			b.Release()
		}
	}()

	var rows int64
	vals := make([][]field.Value, len(cols))
	for _, e := range entities {
		span := 1
		for i, m := range cols {
			vals[i] = m.get(e)
			if len(vals[i]) > span {
				span = len(vals[i])
			}
		}
		for r := 0; r < span; r++ {
			for i := range cols {
				v := pick(vals[i], r, cols[i].list)
				appendValue(builders[i], v)
			}
		}
		rows += int64(span)
	}

	arrs := make([]arrow.Array, len(builders))
	for i, b := range builders {
		arrs[i] = b.NewArray()
	}
	out := array.NewRecord(arrow.NewSchema(fields, nil), arrs, rows)
	for _, a := range arrs {
		a.Release()
	}
	return out
}

// pick returns the value for row r of an entity's span. Scalars repeat,
// list elements go one per row and run out into nulls.
func pick(vs []field.Value, r int, list bool) field.Value {
	switch {
	case list:
		if r < len(vs) {
			return vs[r]
		}
	case len(vs) == 1:
		return vs[0]
	case r < len(vs):
		return vs[r]
	}
	return field.Value{}
}

func appendValue(b array.Builder, v field.Value) {
	if !v.Valid() {
		b.AppendNull()
		return
	}
	ok := false
	switch bb := b.(type) {
	case *array.StringBuilder:
		var s string
		if s, ok = v.Str(); ok {
			bb.Append(s)
		}
	case *array.Int64Builder:
		var n int64
		if n, ok = v.Int(); ok {
			bb.Append(n)
		}
	case *array.Float64Builder:
		var f float64
		if f, ok = v.Decimal(); ok {
			bb.Append(f)
		}
	case *array.BooleanBuilder:
		var x bool
		if x, ok = v.Bool(); ok {
			bb.Append(x)
		}
	case *array.Date32Builder:
		var t time.Time
		if t, ok = v.Date(); ok {
			bb.Append(batch.DateToDays(t))
		}
	case *array.Time32Builder:
		var d time.Duration
		if d, ok = v.TimeOfDay(); ok {
			bb.Append(arrow.Time32(d / time.Second))
		}
	}
	if !ok {
		b.AppendNull()
	}
}
