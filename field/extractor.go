// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package field

import (
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/featurebasedb/cohort/batch"
	"github.com/featurebasedb/cohort/errors"
)

// Getter reads the value at a row of a column an Extractor has bound.
type Getter func(row int) (Value, bool)

// Extractor reads one field from record batch rows. Extractors are
// created by ForField and are safe for concurrent use.
type Extractor struct {
	def  Definition
	bind func(arr arrow.Array) (Getter, bool)
}

// ForField returns the extractor for def, chosen by its declared type.
func ForField(def Definition) Extractor {
	e := Extractor{def: def}
	switch def.Type.Kind() {
	case KindString:
		e.bind = stringColumn
	case KindInteger:
		e.bind = integerColumn
	case KindDecimal:
		e.bind = decimalColumn
	case KindBoolean:
		e.bind = booleanColumn
	case KindDate:
		e.bind = dateColumn
	case KindTime:
		e.bind = timeColumn
	default:
		e.bind = func(arrow.Array) (Getter, bool) { return nil, false }
	}
	return e
}

// Definition returns the field the extractor reads.
func (e Extractor) Definition() Definition { return e.def }

// Bind resolves the extractor's column in rec by name or alias. It fails
// with an ErrSchema error when the column is absent or its physical type
// cannot be read as the declared field type.
func (e Extractor) Bind(rec arrow.Record) (Getter, error) {
	i := batch.ColumnIndex(rec.Schema(), e.def.Names()...)
	if i < 0 {
		return nil, errors.Newf(errors.ErrSchema, "column %s not found", e.def.Name)
	}
	col := rec.Column(i)
	g, ok := e.bind(col)
	if !ok {
		return nil, errors.Newf(errors.ErrSchema, "column %s has type %s, cannot read as %s", e.def.Name, col.DataType(), e.def.Type)
	}
	return g, nil
}

// Extract returns the value at row of rec. Nulls, absent columns and
// columns of the wrong physical type all report false.
func (e Extractor) Extract(rec arrow.Record, row int) (Value, bool) {
	if row < 0 || int64(row) >= rec.NumRows() {
		return Value{}, false
	}
	g, err := e.Bind(rec)
	if err != nil {
		return Value{}, false
	}
	return g(row)
}

type valuer[T any] interface {
	IsNull(i int) bool
	Value(i int) T
}

// getter adapts a typed array to a Getter through conv.
func getter[T any](a valuer[T], conv func(T) Value) Getter {
	return func(i int) (Value, bool) {
		if a.IsNull(i) {
			return Value{}, false
		}
		return conv(a.Value(i)), true
	}
}

func stringColumn(arr arrow.Array) (Getter, bool) {
	if a, ok := arr.(*array.String); ok {
		return getter[string](a, StringValue), true
	}
	return nil, false
}

func integerColumn(arr arrow.Array) (Getter, bool) {
	switch a := arr.(type) {
	case *array.Int8:
		return getter[int8](a, func(v int8) Value { return IntValue(int64(v)) }), true
	case *array.Int16:
		return getter[int16](a, func(v int16) Value { return IntValue(int64(v)) }), true
	case *array.Int32:
		return getter[int32](a, func(v int32) Value { return IntValue(int64(v)) }), true
	case *array.Int64:
		return getter[int64](a, IntValue), true
	case *array.Uint8:
		return getter[uint8](a, func(v uint8) Value { return IntValue(int64(v)) }), true
	case *array.Uint16:
		return getter[uint16](a, func(v uint16) Value { return IntValue(int64(v)) }), true
	case *array.Uint32:
		return getter[uint32](a, func(v uint32) Value { return IntValue(int64(v)) }), true
	case *array.Uint64:
		return getter[uint64](a, func(v uint64) Value { return IntValue(int64(v)) }), true
	}
	return nil, false
}

func decimalColumn(arr arrow.Array) (Getter, bool) {
	switch a := arr.(type) {
	case *array.Float64:
		return getter[float64](a, DecimalValue), true
	case *array.Float32:
		return getter[float32](a, func(v float32) Value { return DecimalValue(float64(v)) }), true
	}
	g, ok := integerColumn(arr)
	if !ok {
		return nil, false
	}
	return func(i int) (Value, bool) {
		v, ok := g(i)
		if !ok {
			return Value{}, false
		}
		f, _ := v.Decimal()
		return DecimalValue(f), true
	}, true
}

func booleanColumn(arr arrow.Array) (Getter, bool) {
	if a, ok := arr.(*array.Boolean); ok {
		return getter[bool](a, BoolValue), true
	}
	return nil, false
}

func dateColumn(arr arrow.Array) (Getter, bool) {
	switch a := arr.(type) {
	case *array.Date32:
		return getter[arrow.Date32](a, func(v arrow.Date32) Value { return DateValue(batch.DaysToDate(v)) }), true
	case *array.Date64:
		return getter[arrow.Date64](a, func(v arrow.Date64) Value { return DateValue(batch.MillisToDate(v)) }), true
	case *array.Timestamp:
		tt, ok := a.DataType().(*arrow.TimestampType)
		if !ok {
			return nil, false
		}
		unit := batch.UnitDuration(tt.Unit)
		return getter[arrow.Timestamp](a, func(v arrow.Timestamp) Value {
			return DateValue(time.Unix(0, 0).UTC().Add(time.Duration(v) * unit))
		}), true
	}
	return nil, false
}

func timeColumn(arr arrow.Array) (Getter, bool) {
	switch a := arr.(type) {
	case *array.Time32:
		tt, ok := a.DataType().(*arrow.Time32Type)
		if !ok {
			return nil, false
		}
		unit := batch.UnitDuration(tt.Unit)
		return getter[arrow.Time32](a, func(v arrow.Time32) Value { return TimeValue(time.Duration(v) * unit) }), true
	case *array.Time64:
		tt, ok := a.DataType().(*arrow.Time64Type)
		if !ok {
			return nil, false
		}
		unit := batch.UnitDuration(tt.Unit)
		return getter[arrow.Time64](a, func(v arrow.Time64) Value { return TimeValue(time.Duration(v) * unit) }), true
	}
	return nil, false
}
