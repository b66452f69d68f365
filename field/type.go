// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package field describes registry columns: their declared type, how to
// extract a typed value from a record batch row, and the tagged value that
// extraction produces.
package field

import (
	"strings"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/featurebasedb/cohort/errors"
)

// Type is the declared type of a registry field. The set is closed.
type Type int

const (
	Identifier Type = iota + 1
	String
	Integer
	Decimal
	Boolean
	Date
	Time
	Category
)

var typeNames = [...]string{
	Identifier: "identifier",
	String:     "string",
	Integer:    "integer",
	Decimal:    "decimal",
	Boolean:    "boolean",
	Date:       "date",
	Time:       "time",
	Category:   "category",
}

func (t Type) String() string {
	if t < Identifier || t > Category {
		return "unknown"
	}
	return typeNames[t]
}

// Valid reports whether t is one of the declared types.
func (t Type) Valid() bool {
	return t >= Identifier && t <= Category
}

// ParseType returns the Type named by s.
func ParseType(s string) (Type, error) {
	for t := Identifier; t <= Category; t++ {
		if strings.EqualFold(s, typeNames[t]) {
			return t, nil
		}
	}
	return 0, errors.Newf(errors.ErrValidation, "unknown field type %q", s)
}

// Kind returns the value kind an extractor for t produces.
func (t Type) Kind() Kind {
	switch t {
	case Identifier, String, Category:
		return KindString
	case Integer:
		return KindInteger
	case Decimal:
		return KindDecimal
	case Boolean:
		return KindBoolean
	case Date:
		return KindDate
	case Time:
		return KindTime
	}
	return KindInvalid
}

// ArrowType returns the physical type a column of this field is expected
// to have once adapted.
func (t Type) ArrowType() arrow.DataType {
	switch t {
	case Integer:
		return arrow.PrimitiveTypes.Int64
	case Decimal:
		return arrow.PrimitiveTypes.Float64
	case Boolean:
		return arrow.FixedWidthTypes.Boolean
	case Date:
		return arrow.FixedWidthTypes.Date32
	case Time:
		return arrow.FixedWidthTypes.Time32s
	default:
		return arrow.BinaryTypes.String
	}
}
