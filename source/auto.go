// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/featurebasedb/cohort/errors"
)

// Auto picks the reader for each file by its extension, so a directory may
// mix Parquet and CSV extracts.
type Auto struct {
	files
	parquet *Parquet
	csv     *CSV
}

// NewAuto returns a source that reads Parquet and CSV through fs.
func NewAuto(fs *FileSystem, opts ...Option) *Auto {
	a := &Auto{
		files:   files{fs: fs, o: newOptions(opts)},
		parquet: NewParquet(fs, opts...),
		csv:     NewCSV(fs, opts...),
	}
	a.accept = func(ext string) bool { return isParquet(ext) || isCSV(ext) }
	a.read = a.readFile
	return a
}

func (a *Auto) readFile(ctx context.Context, location string) ([]arrow.Record, error) {
	ext := strings.ToLower(Ext(location))
	switch {
	case isCSV(ext):
		return a.csv.readFile(ctx, location)
	case isParquet(ext):
		return a.parquet.readFile(ctx, location)
	}
	return nil, errors.Newf(errors.ErrIO, "%s: unsupported extract format %q", location, ext)
}

// Memory serves batches held in memory under location names. It is used
// for tests and for data produced in-process.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]arrow.Record
	o    options
}

// NewMemory returns an empty in-memory source.
func NewMemory(opts ...Option) *Memory {
	return &Memory{data: make(map[string][]arrow.Record), o: newOptions(opts)}
}

// Put stores recs under location, replacing what was there. The source
// retains the records.
func (m *Memory) Put(location string, recs ...arrow.Record) {
	for _, r := range recs {
		r.Retain()
	}
	m.mu.Lock()
	old := m.data[location]
	m.data[location] = append([]arrow.Record(nil), recs...)
	m.mu.Unlock()
	for _, r := range old {
		r.Release()
	}
}

// Locations returns the stored location names, sorted.
func (m *Memory) Locations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) Read(_ context.Context, location string, opts ReadOptions) ([]arrow.Record, error) {
	m.mu.RLock()
	recs, ok := m.data[location]
	out := make([]arrow.Record, len(recs))
	for i, r := range recs {
		r.Retain()
		out[i] = r
	}
	m.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrIO, "location %s: no such file or directory", location)
	}
	return narrow(m.o.mem, out, opts)
}
