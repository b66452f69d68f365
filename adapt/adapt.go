// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package adapt coerces record batches whose physical column types drift
// from a registry schema into the types its extractors expect.
package adapt

import (
	"strings"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/featurebasedb/cohort/batch"
	"github.com/featurebasedb/cohort/logger"
	"github.com/featurebasedb/cohort/schema"
)

// DefaultDateFormats are the text date layouts tried, in order, when no
// others are configured.
var DefaultDateFormats = []string{
	"2006-01-02",
	"02-01-2006",
	"01/02/2006",
	"02/01/2006",
	"02.01.2006",
	"20060102",
	"02 Jan 2006",
	"02 January 2006",
}

// Adapter converts batches to a schema's physical types. It holds no
// per-batch state and is safe for concurrent use.
type Adapter struct {
	formats []string
	log     logger.Logger
	mem     memory.Allocator
}

// Option configures an Adapter.
type Option func(a *Adapter)

// WithDateFormats replaces the text date layouts. Layouts use Go reference
// time notation and are tried in the order given.
func WithDateFormats(formats ...string) Option {
	return func(a *Adapter) {
		if len(formats) > 0 {
			a.formats = append([]string(nil), formats...)
		}
	}
}

// WithLogger sets the logger conversions are reported to.
func WithLogger(log logger.Logger) Option {
	return func(a *Adapter) {
		if log != nil {
			a.log = log
		}
	}
}

// WithAllocator sets the allocator converted columns are built with.
func WithAllocator(mem memory.Allocator) Option {
	return func(a *Adapter) {
		a.mem = mem
	}
}

// New returns an adapter with the default date formats.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		formats: DefaultDateFormats,
		log:     logger.NopLogger,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.mem = batch.Allocator(a.mem)
	return a
}

// Formats returns the text date layouts in the order they are tried.
func (a *Adapter) Formats() []string {
	return append([]string(nil), a.formats...)
}

// ParseDate parses s with the first layout that accepts it and returns
// midnight UTC of that date.
func (a *Adapter) ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, f := range a.formats {
		if t, err := time.Parse(f, s); err == nil {
			return batch.Midnight(t), true
		}
	}
	return time.Time{}, false
}

// Adapt returns rec with every declared column of s renamed to its declared
// name and converted to its declared physical type where a conversion
// exists. Undeclared and incompatible columns pass through unchanged.
// Values that fail to convert become null. Adapt never fails; the report
// says what was done. The caller owns the returned record.
func (a *Adapter) Adapt(rec arrow.Record, s *schema.RegistrySchema) (arrow.Record, *Report) {
	sc := rec.Schema()
	r := Check(sc, s)

	fields := make([]arrow.Field, rec.NumCols())
	cols := make([]arrow.Array, rec.NumCols())
	for i := range fields {
		fields[i] = sc.Field(i)
		cols[i] = rec.Column(i)
		cols[i].Retain()
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for k := range r.Columns {
		c := &r.Columns[k]
		i := batch.ColumnIndex(sc, c.Source)
		m, _ := s.Mapping(c.Column)
		def := m.Definition()

		fields[i].Name = def.Name
		switch c.Compatibility {
		case Compatible:
			conv, nulled := a.convert(a.mem, cols[i], def.Type)
			cols[i].Release()
			cols[i] = conv
			fields[i].Type = conv.DataType()
			fields[i].Nullable = true
			c.Nulled = nulled
			if nulled > 0 {
				a.log.Debugf("%s.%s: %d of %d values could not be converted from %s", s.Name(), def.Name, nulled, conv.Len(), c.From)
			}
		case Incompatible:
			a.log.Debugf("%s.%s: %s cannot be read as %s, passing through", s.Name(), def.Name, c.From, def.Type)
		}
	}

	md := sc.Metadata()
	return array.NewRecord(arrow.NewSchema(fields, &md), cols, rec.NumRows()), r
}
