// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package schema

import (
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/featurebasedb/cohort/entity"
	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/field"
)

// Setter writes one extracted value into an entity. Setters touch nothing
// but the entity they are given, and leave it unchanged when they fail.
type Setter func(e *entity.Entity, v field.Value) error

// Getter reads back what a Setter wrote, for re-encoding.
type Getter func(e *entity.Entity) []field.Value

// Mapping pairs a field's extractor with the setter that assigns the
// extracted value. Mappings are immutable once built.
type Mapping struct {
	def     field.Definition
	extract field.Extractor
	set     Setter
	get     Getter
	// list mappings contribute one element per row when encoded
	list bool
	err  error
}

// NewMapping builds a mapping with a custom setter. get may be nil, in
// which case the column is skipped by Encode.
func NewMapping(def field.Definition, set Setter, get Getter) Mapping {
	m := Mapping{def: def, extract: field.ForField(def), set: set, get: get}
	if set == nil {
		m.err = errors.Newf(errors.ErrValidation, "mapping for %s has no setter", def.Name)
	}
	return m
}

// Attr maps def onto the canonical attribute named def.Canonical. An
// unknown attribute name is reported when the schema is built.
func Attr(def field.Definition) Mapping {
	a, ok := entity.Lookup(def.Canonical)
	if !ok {
		return Mapping{def: def, err: errors.Newf(errors.ErrValidation, "column %s maps to unknown attribute %q", def.Name, def.Canonical)}
	}
	m := NewMapping(def, a.Set, a.Get)
	m.list = a.List
	return m
}

// Extension stores the value of def as a scalar extension under
// def.Canonical.
func Extension(def field.Definition) Mapping {
	key := def.Canonical
	return NewMapping(def,
		func(e *entity.Entity, v field.Value) error {
			e.SetExtension(key, v)
			return nil
		},
		func(e *entity.Entity) []field.Value {
			x, ok := e.Extension(key)
			if !ok || !x.Scalar.Valid() {
				return nil
			}
			return []field.Value{x.Scalar}
		},
	)
}

// AppendExtension appends the value of def to the extension list under
// def.Canonical. Unique lists skip values they already hold.
func AppendExtension(def field.Definition, unique bool) Mapping {
	key := def.Canonical
	m := NewMapping(def,
		func(e *entity.Entity, v field.Value) error {
			e.AppendExtension(key, v, unique)
			return nil
		},
		func(e *entity.Entity) []field.Value {
			x, ok := e.Extension(key)
			if !ok {
				return nil
			}
			return x.List
		},
	)
	m.list = true
	return m
}

// Definition returns the mapped field.
func (m Mapping) Definition() field.Definition { return m.def }

// Extractor returns the mapping's extractor.
func (m Mapping) Extractor() field.Extractor { return m.extract }

// Apply extracts the field at row of rec and, when present, assigns it to
// e. It reports whether a value was assigned, and the setter's error when
// the value was rejected.
func (m Mapping) Apply(rec arrow.Record, row int, e *entity.Entity) (bool, error) {
	v, ok := m.extract.Extract(rec, row)
	if !ok {
		return false, nil
	}
	if err := m.set(e, v); err != nil {
		return false, errors.Wrapf(err, "column %s", m.def.Name)
	}
	return true, nil
}
