// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package schema

import (
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/featurebasedb/cohort/entity"
	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/field"
	"github.com/featurebasedb/cohort/logger"
)

// Deserializer turns record batches into entities using a schema's
// mappings. It is safe for concurrent use.
type Deserializer struct {
	schema *RegistrySchema
	log    logger.Logger
}

// NewDeserializer returns a deserializer for s. A nil log discards
// warnings.
func NewDeserializer(s *RegistrySchema, log logger.Logger) *Deserializer {
	if log == nil {
		log = logger.NopLogger
	}
	return &Deserializer{schema: s, log: log}
}

// Schema returns the deserializer's schema.
func (d *Deserializer) Schema() *RegistrySchema { return d.schema }

// Bound is a batch whose columns have been resolved against a schema.
type Bound struct {
	d       *Deserializer
	rec     arrow.Record
	kind    JoinKeyKind
	columns []string
	getters []field.Getter
	setters []Setter
}

// Bind resolves every mapping's column in rec once. Mappings whose column
// is missing or mistyped are skipped for the whole batch, and the problem
// is logged once per column for the lifetime of the schema.
func (d *Deserializer) Bind(rec arrow.Record) *Bound {
	b := &Bound{d: d, rec: rec, kind: d.schema.keyKind}
	for _, m := range d.schema.mappings {
		g, err := m.extract.Bind(rec)
		if err != nil {
			d.schema.warnOnce(d.log, m.def.Name, err)
			continue
		}
		b.columns = append(b.columns, m.def.Name)
		b.getters = append(b.getters, g)
		b.setters = append(b.setters, m.set)
	}
	return b
}

// Len returns the number of rows of the bound batch.
func (b *Bound) Len() int { return int(b.rec.NumRows()) }

// Row builds the entity for row. Mappings apply in declared order. It
// reports false when the row's join key is empty or a setter rejected one
// of its values; rejections are logged once per column.
func (b *Bound) Row(row int) (*entity.Entity, bool) {
	e := entity.New("")
	for i, g := range b.getters {
		v, ok := g(row)
		if !ok {
			continue
		}
		if err := b.setters[i](e, v); err != nil {
			b.d.schema.warnOnce(b.d.log, "row:"+b.columns[i], errors.Wrapf(err, "dropping row %d, column %s", row, b.columns[i]))
			return nil, false
		}
	}
	if b.kind.Key(e) == "" {
		return nil, false
	}
	return e, true
}

// DeserializeBatch returns one entity per row of rec, in row order,
// dropping rows without a join key.
func (d *Deserializer) DeserializeBatch(rec arrow.Record) []*entity.Entity {
	b := d.Bind(rec)
	out := make([]*entity.Entity, 0, b.Len())
	for i := 0; i < b.Len(); i++ {
		if e, ok := b.Row(i); ok {
			out = append(out, e)
		}
	}
	return out
}

// DeserializeRow is the single-row variant of DeserializeBatch.
func (d *Deserializer) DeserializeRow(rec arrow.Record, row int) (*entity.Entity, bool) {
	if row < 0 || int64(row) >= rec.NumRows() {
		return nil, false
	}
	return d.Bind(rec).Row(row)
}
