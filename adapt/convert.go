// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package adapt

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/featurebasedb/cohort/batch"
	"github.com/featurebasedb/cohort/field"
)

type outcome int

const (
	appended outcome = iota
	blank
	failed
)

// fill walks arr and lets f append the converted value for each non-null
// row. Rows f leaves blank or fails on become null; failures are counted.
func fill(b array.Builder, arr arrow.Array, f func(i int) outcome) int {
	b.Reserve(arr.Len())
	nulled := 0
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			b.AppendNull()
			continue
		}
		switch f(i) {
		case blank:
			b.AppendNull()
		case failed:
			b.AppendNull()
			nulled++
		}
	}
	return nulled
}

// convert builds the column of type typ from arr. The caller owns the
// result.
func (a *Adapter) convert(mem memory.Allocator, arr arrow.Array, typ field.Type) (arrow.Array, int) {
	switch typ.Kind() {
	case field.KindString:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		n := fill(b, arr, func(i int) outcome {
			s, ok := batch.KeyAt(arr, i)
			if !ok {
				return failed
			}
			b.Append(s)
			return appended
		})
		return b.NewArray(), n

	case field.KindInteger:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		n := fill(b, arr, func(i int) outcome {
			v, o := integerAt(arr, i)
			if o == appended {
				b.Append(v)
			}
			return o
		})
		return b.NewArray(), n

	case field.KindDecimal:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		n := fill(b, arr, func(i int) outcome {
			v, o := decimalAt(arr, i)
			if o == appended {
				b.Append(v)
			}
			return o
		})
		return b.NewArray(), n

	case field.KindBoolean:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		n := fill(b, arr, func(i int) outcome {
			v, o := booleanAt(arr, i)
			if o == appended {
				b.Append(v)
			}
			return o
		})
		return b.NewArray(), n

	case field.KindDate:
		b := array.NewDate32Builder(mem)
		defer b.Release()
		n := fill(b, arr, func(i int) outcome {
			v, o := a.dateAt(arr, i)
			if o == appended {
				b.Append(batch.DateToDays(v))
			}
			return o
		})
		return b.NewArray(), n

	case field.KindTime:
		b := array.NewTime32Builder(mem, arrow.FixedWidthTypes.Time32s.(*arrow.Time32Type))
		defer b.Release()
		n := fill(b, arr, func(i int) outcome {
			v, o := timeAt(arr, i)
			if o == appended {
				b.Append(arrow.Time32(v / time.Second))
			}
			return o
		})
		return b.NewArray(), n
	}
	arr.Retain()
	return arr, 0
}

func text(arr arrow.Array, i int) (string, outcome) {
	s := strings.TrimSpace(arr.(*array.String).Value(i))
	if s == "" {
		return "", blank
	}
	return s, appended
}

func integerAt(arr arrow.Array, i int) (int64, outcome) {
	switch a := arr.(type) {
	case *array.String:
		s, o := text(a, i)
		if o != appended {
			return 0, o
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, failed
		}
		return n, appended
	case *array.Boolean:
		if a.Value(i) {
			return 1, appended
		}
		return 0, appended
	case *array.Int8:
		return int64(a.Value(i)), appended
	case *array.Int16:
		return int64(a.Value(i)), appended
	case *array.Int32:
		return int64(a.Value(i)), appended
	case *array.Int64:
		return a.Value(i), appended
	case *array.Uint8:
		return int64(a.Value(i)), appended
	case *array.Uint16:
		return int64(a.Value(i)), appended
	case *array.Uint32:
		return int64(a.Value(i)), appended
	case *array.Uint64:
		v := a.Value(i)
		if v > math.MaxInt64 {
			return 0, failed
		}
		return int64(v), appended
	}
	return 0, failed
}

func decimalAt(arr arrow.Array, i int) (float64, outcome) {
	switch a := arr.(type) {
	case *array.Float32:
		return float64(a.Value(i)), appended
	case *array.Float64:
		return a.Value(i), appended
	case *array.String:
		s, o := text(a, i)
		if o != appended {
			return 0, o
		}
		// Danish extracts write decimal commas.
		if !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, failed
		}
		return f, appended
	}
	n, o := integerAt(arr, i)
	return float64(n), o
}

func booleanAt(arr arrow.Array, i int) (bool, outcome) {
	if a, ok := arr.(*array.String); ok {
		s, o := text(a, i)
		if o != appended {
			return false, o
		}
		switch strings.ToLower(s) {
		case "1", "t", "true", "y", "yes", "j", "ja":
			return true, appended
		case "0", "f", "false", "n", "no", "nej":
			return false, appended
		}
		return false, failed
	}
	n, o := integerAt(arr, i)
	return n != 0, o
}

// dateAt reads a calendar date from date, timestamp or text columns. Text is
// tried against each configured format in order.
func (a *Adapter) dateAt(arr arrow.Array, i int) (time.Time, outcome) {
	switch c := arr.(type) {
	case *array.Date32:
		return batch.DaysToDate(c.Value(i)), appended
	case *array.Date64:
		return batch.MillisToDate(c.Value(i)), appended
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return batch.Midnight(timestamp(int64(c.Value(i)), unit)), appended
	case *array.String:
		s, o := text(c, i)
		if o != appended {
			return time.Time{}, o
		}
		if t, ok := a.ParseDate(s); ok {
			return t, appended
		}
	}
	return time.Time{}, failed
}

func timestamp(v int64, u arrow.TimeUnit) time.Time {
	switch u {
	case arrow.Second:
		return time.Unix(v, 0).UTC()
	case arrow.Millisecond:
		return time.UnixMilli(v).UTC()
	case arrow.Microsecond:
		return time.UnixMicro(v).UTC()
	}
	return time.Unix(0, v).UTC()
}

var timeFormats = []string{"15:04:05", "15:04", "1504"}

func timeAt(arr arrow.Array, i int) (time.Duration, outcome) {
	switch c := arr.(type) {
	case *array.Time32:
		unit := c.DataType().(*arrow.Time32Type).Unit
		return time.Duration(c.Value(i)) * batch.UnitDuration(unit), appended
	case *array.Time64:
		unit := c.DataType().(*arrow.Time64Type).Unit
		return time.Duration(c.Value(i)) * batch.UnitDuration(unit), appended
	case *array.String:
		s, o := text(c, i)
		if o != appended {
			return 0, o
		}
		for _, f := range timeFormats {
			if t, err := time.Parse(f, s); err == nil {
				return t.Sub(batch.Midnight(t)), appended
			}
		}
	}
	return 0, failed
}
