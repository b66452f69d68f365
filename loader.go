// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cohort

import (
	"context"
	"strings"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/featurebasedb/cohort/adapt"
	"github.com/featurebasedb/cohort/batch"
	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/logger"
	"github.com/featurebasedb/cohort/schema"
	"github.com/featurebasedb/cohort/source"
)

// Loader reads the raw batches of one registry. The caller owns the
// returned records.
type Loader interface {
	Schema() *schema.RegistrySchema
	Load(ctx context.Context, location string) ([]arrow.Record, error)
}

// RegistryLoader reads a registry through a Source, keeps the columns its
// schema declares and adapts them to the declared types.
type RegistryLoader struct {
	schema  *schema.RegistrySchema
	src     source.Source
	adapter *adapt.Adapter
	log     logger.Logger
	columns []string
}

// RegistryLoaderOption configures a RegistryLoader.
type RegistryLoaderOption func(*RegistryLoader)

// OptLoaderAdapter sets the adapter batches are converted with.
func OptLoaderAdapter(a *adapt.Adapter) RegistryLoaderOption {
	return func(l *RegistryLoader) { l.adapter = a }
}

// OptLoaderLogger sets the loader's logger.
func OptLoaderLogger(log logger.Logger) RegistryLoaderOption {
	return func(l *RegistryLoader) { l.log = log }
}

// NewRegistryLoader returns a loader for s reading from src.
func NewRegistryLoader(s *schema.RegistrySchema, src source.Source, opts ...RegistryLoaderOption) *RegistryLoader {
	l := &RegistryLoader{schema: s, src: src, log: logger.NopLogger}
	for _, o := range opts {
		o(l)
	}
	if l.adapter == nil {
		l.adapter = adapt.New(adapt.WithLogger(l.log))
	}
	l.log = l.log.WithPrefix("loader " + strings.ToLower(s.Name()) + ": ")
	for _, m := range s.Mappings() {
		l.columns = append(l.columns, m.Definition().Names()...)
	}
	return l
}

func (l *RegistryLoader) Schema() *schema.RegistrySchema { return l.schema }

// Load reads location and returns its batches adapted to the schema.
// Incompatible columns are logged and left as read; the deserializer
// treats them as absent.
func (l *RegistryLoader) Load(ctx context.Context, location string) ([]arrow.Record, error) {
	recs, err := l.src.Read(ctx, location, source.ReadOptions{Columns: l.columns})
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", location)
	}
	out := make([]arrow.Record, 0, len(recs))
	warned := false
	for _, rec := range recs {
		adapted, report := l.adapter.Adapt(rec, l.schema)
		rec.Release()
		out = append(out, adapted)
		if bad := report.Incompatible(); len(bad) > 0 && !warned {
			warned = true
			l.log.Warnf("%s: incompatible columns %v", location, bad)
		}
		if n := report.Nulled(); n > 0 {
			l.log.Debugf("%s: %d values failed to convert", location, n)
		}
	}
	l.log.Debugf("loaded %d rows from %s", batch.Rows(out), location)
	return out, nil
}
