// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package schema declares registry schemas, ordered sets of field mappings
// for one named source, and turns record batches into canonical entities.
package schema

import (
	"strings"
	"sync"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/featurebasedb/cohort/entity"
	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/logger"
)

// JoinKeyKind says which key a source's rows carry.
type JoinKeyKind int

const (
	// PrimaryIdentifier rows carry the person identifier directly.
	PrimaryIdentifier JoinKeyKind = iota
	// RecordNumber rows carry a record number resolved through a parent
	// source.
	RecordNumber
	// ContactID rows carry a contact id resolved through a parent source.
	ContactID
)

func (k JoinKeyKind) String() string {
	switch k {
	case RecordNumber:
		return "record-number"
	case ContactID:
		return "contact-id"
	}
	return "primary-identifier"
}

// Attribute returns the canonical attribute holding the key.
func (k JoinKeyKind) Attribute() string {
	switch k {
	case RecordNumber:
		return entity.AttrRecordNumber
	case ContactID:
		return entity.AttrContactID
	}
	return entity.AttrID
}

// Key returns the key of kind k carried by e, or "".
func (k JoinKeyKind) Key(e *entity.Entity) string {
	switch k {
	case RecordNumber:
		return e.RecordNumber
	case ContactID:
		return e.ContactID
	}
	return e.ID()
}

// RegistrySchema is the ordered set of mappings for one source. It is built
// once with New and shared read-only.
type RegistrySchema struct {
	name        string
	description string
	keyKind     JoinKeyKind
	mappings    []Mapping
	byColumn    map[string]int
	arrowSchema *arrow.Schema

	mu     sync.Mutex
	warned map[string]struct{}
}

// New builds a schema. Column names, aliases included, must be unique
// ignoring case, every mapping must be valid, at most one column may feed
// the person identifier, and some mapping must feed the key of kind.
// Violations fail with ErrValidation.
func New(name, description string, kind JoinKeyKind, mappings ...Mapping) (*RegistrySchema, error) {
	s := &RegistrySchema{
		name:        name,
		description: description,
		keyKind:     kind,
		mappings:    append([]Mapping(nil), mappings...),
		byColumn:    make(map[string]int, len(mappings)),
		warned:      make(map[string]struct{}),
	}
	fields := make([]arrow.Field, 0, len(mappings))
	hasKey := false
	idColumn := ""
	for i, m := range s.mappings {
		if m.err != nil {
			return nil, errors.Wrapf(m.err, "schema %s", name)
		}
		for _, n := range m.def.Names() {
			k := strings.ToLower(n)
			if j, ok := s.byColumn[k]; ok {
				return nil, errors.Newf(errors.ErrValidation, "schema %s: column %s declared by both %s and %s", name, n, s.mappings[j].def.Name, m.def.Name)
			}
			s.byColumn[k] = i
		}
		if m.def.Canonical == entity.AttrID {
			if idColumn != "" {
				return nil, errors.Newf(errors.ErrValidation, "schema %s: columns %s and %s both feed %s", name, idColumn, m.def.Name, entity.AttrID)
			}
			idColumn = m.def.Name
		}
		if m.def.Canonical == kind.Attribute() {
			hasKey = true
		}
		fields = append(fields, arrow.Field{Name: m.def.Name, Type: m.def.Type.ArrowType(), Nullable: m.def.Nullable})
	}
	if !hasKey {
		return nil, errors.Newf(errors.ErrValidation, "schema %s: no column feeds its %s key", name, kind)
	}
	s.arrowSchema = arrow.NewSchema(fields, nil)
	return s, nil
}

// MustNew is like New but panics on error. It is used for fixed catalog
// declarations.
func MustNew(name, description string, kind JoinKeyKind, mappings ...Mapping) *RegistrySchema {
	s, err := New(name, description, kind, mappings...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *RegistrySchema) Name() string             { return s.name }
func (s *RegistrySchema) Description() string      { return s.description }
func (s *RegistrySchema) JoinKeyKind() JoinKeyKind { return s.keyKind }

// ArrowSchema returns the physical schema batches are adapted to.
func (s *RegistrySchema) ArrowSchema() *arrow.Schema { return s.arrowSchema }

// Mappings returns the mappings in declared order.
func (s *RegistrySchema) Mappings() []Mapping {
	return append([]Mapping(nil), s.mappings...)
}

// Mapping returns the mapping for column, matched by name or alias.
func (s *RegistrySchema) Mapping(column string) (Mapping, bool) {
	i, ok := s.byColumn[strings.ToLower(column)]
	if !ok {
		return Mapping{}, false
	}
	return s.mappings[i], true
}

// Has reports whether the schema maps column.
func (s *RegistrySchema) Has(column string) bool {
	_, ok := s.byColumn[strings.ToLower(column)]
	return ok
}

// Columns returns the declared source column names in order.
func (s *RegistrySchema) Columns() []string {
	out := make([]string, len(s.mappings))
	for i, m := range s.mappings {
		out[i] = m.def.Name
	}
	return out
}

// IdentifierColumn returns the column feeding the person identifier, or ""
// when rows carry only a secondary key.
func (s *RegistrySchema) IdentifierColumn() string {
	return s.columnFor(entity.AttrID)
}

// KeyColumn returns the column feeding the schema's join key.
func (s *RegistrySchema) KeyColumn() string {
	return s.columnFor(s.keyKind.Attribute())
}

func (s *RegistrySchema) columnFor(attr string) string {
	for _, m := range s.mappings {
		if m.def.Canonical == attr {
			return m.def.Name
		}
	}
	return ""
}

// warnOnce logs err through log the first time it is reported for column.
func (s *RegistrySchema) warnOnce(log logger.Logger, column string, err error) {
	s.mu.Lock()
	_, seen := s.warned[column]
	if !seen {
		s.warned[column] = struct{}{}
	}
	s.mu.Unlock()
	if !seen {
		log.Warnf("schema %s: %v", s.name, err)
	}
}
