// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package batch

import (
	"strconv"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
)

const secondsPerDay = 24 * 60 * 60

// DaysToDate converts a date32 day count to midnight UTC of that day.
func DaysToDate(d arrow.Date32) time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// DateToDays converts the calendar date of t to a date32 day count.
func DateToDays(t time.Time) arrow.Date32 {
	y, m, d := t.Date()
	return arrow.Date32(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// MillisToDate converts a date64 millisecond count to midnight UTC of its
// day.
func MillisToDate(ms arrow.Date64) time.Time {
	return Midnight(time.Unix(0, int64(ms)*int64(time.Millisecond)).UTC())
}

// Midnight truncates t to midnight UTC of its calendar date.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// UnitDuration returns the length of one tick of u.
func UnitDuration(u arrow.TimeUnit) time.Duration {
	switch u {
	case arrow.Millisecond:
		return time.Millisecond
	case arrow.Microsecond:
		return time.Microsecond
	case arrow.Nanosecond:
		return time.Nanosecond
	default:
		return time.Second
	}
}

// KeyAt returns the value at row i of a string or integer column formatted
// as a join key. Nulls, empty strings and unsupported column types report
// false.
func KeyAt(col arrow.Array, i int) (string, bool) {
	if col == nil || col.IsNull(i) {
		return "", false
	}
	switch a := col.(type) {
	case *array.String:
		s := a.Value(i)
		return s, s != ""
	case *array.Int8:
		return strconv.FormatInt(int64(a.Value(i)), 10), true
	case *array.Int16:
		return strconv.FormatInt(int64(a.Value(i)), 10), true
	case *array.Int32:
		return strconv.FormatInt(int64(a.Value(i)), 10), true
	case *array.Int64:
		return strconv.FormatInt(a.Value(i), 10), true
	case *array.Uint8:
		return strconv.FormatUint(uint64(a.Value(i)), 10), true
	case *array.Uint16:
		return strconv.FormatUint(uint64(a.Value(i)), 10), true
	case *array.Uint32:
		return strconv.FormatUint(uint64(a.Value(i)), 10), true
	case *array.Uint64:
		return strconv.FormatUint(a.Value(i), 10), true
	}
	return "", false
}
