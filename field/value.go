// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package field

import (
	"strconv"
	"time"
)

// Kind identifies which member of a Value is populated.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindInteger
	KindDecimal
	KindBoolean
	KindDate
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	}
	return "invalid"
}

// Value is a tagged scalar extracted from a batch. The zero Value is
// invalid and stands for "absent".
type Value struct {
	kind Kind
	s    string
	n    int64
	f    float64
	t    time.Time
}

func StringValue(s string) Value { return Value{kind: KindString, s: s} }

func IntValue(n int64) Value { return Value{kind: KindInteger, n: n} }

func DecimalValue(f float64) Value { return Value{kind: KindDecimal, f: f} }

func BoolValue(b bool) Value {
	v := Value{kind: KindBoolean}
	if b {
		v.n = 1
	}
	return v
}

// DateValue holds the calendar date of t at midnight UTC.
func DateValue(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// TimeValue holds a time of day as the offset from midnight.
func TimeValue(d time.Duration) Value { return Value{kind: KindTime, n: int64(d)} }

func (v Value) Kind() Kind { return v.kind }

// Valid reports whether v holds a value.
func (v Value) Valid() bool { return v.kind != KindInvalid }

func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

func (v Value) Int() (int64, bool) { return v.n, v.kind == KindInteger }

// Decimal returns v as a float. Integers widen.
func (v Value) Decimal() (float64, bool) {
	switch v.kind {
	case KindDecimal:
		return v.f, true
	case KindInteger:
		return float64(v.n), true
	}
	return 0, false
}

func (v Value) Bool() (bool, bool) { return v.n == 1, v.kind == KindBoolean }

func (v Value) Date() (time.Time, bool) { return v.t, v.kind == KindDate }

func (v Value) TimeOfDay() (time.Duration, bool) { return time.Duration(v.n), v.kind == KindTime }

// Equal reports whether v and o have the same kind and value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindDecimal:
		return v.f == o.f
	case KindDate:
		return v.t.Equal(o.t)
	}
	return v.n == o.n
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInteger:
		return strconv.FormatInt(v.n, 10)
	case KindDecimal:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.n == 1)
	case KindDate:
		return v.t.Format("2006-01-02")
	case KindTime:
		d := time.Duration(v.n)
		return time.Time{}.Add(d).Format("15:04:05")
	}
	return "<absent>"
}
