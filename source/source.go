// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package source reads registry extracts, Parquet or CSV files or
// directories of them on local disk or S3, into Arrow record batches.
package source

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/featurebasedb/cohort/batch"
	"github.com/featurebasedb/cohort/logger"
	"github.com/featurebasedb/cohort/task"
)

// Predicate reports whether row of rec should be kept.
type Predicate func(rec arrow.Record, row int) bool

// ReadOptions narrow what a read returns.
type ReadOptions struct {
	// Columns projects every batch onto the named columns, matched
	// ignoring case. Names a batch lacks are skipped. Empty keeps all.
	Columns []string
	// Predicate drops rows it rejects. Nil keeps all.
	Predicate Predicate
}

// Source yields the batches stored at a location. A missing location is an
// ErrIO error, as is any file that cannot be read. The caller owns the
// returned records.
type Source interface {
	Read(ctx context.Context, location string, opts ReadOptions) ([]arrow.Record, error)
}

// Option configures the file sources.
type Option func(o *options)

type options struct {
	mem       memory.Allocator
	log       logger.Logger
	workers   int
	batchSize int64
	comma     rune
}

// WithAllocator sets the allocator batches are read into.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) { o.mem = mem }
}

// WithLogger sets the logger reads are reported to.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithWorkers bounds how many files of a directory are read at once.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithBatchSize sets the number of rows per returned batch.
func WithBatchSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithComma sets the CSV field delimiter.
func WithComma(r rune) Option {
	return func(o *options) { o.comma = r }
}

func newOptions(opts []Option) options {
	o := options{
		log:       logger.NopLogger,
		batchSize: 64 * 1024,
		comma:     ',',
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.mem = batch.Allocator(o.mem)
	return o
}

type fileReader func(ctx context.Context, path string) ([]arrow.Record, error)

// files reads a location that may be a single file or a directory. In a
// directory, the files whose extension passes accept are read in name
// order with a bounded number at once, and their batches are concatenated
// in that order.
type files struct {
	fs     *FileSystem
	o      options
	accept func(ext string) bool
	read   fileReader
}

func (f *files) Read(ctx context.Context, location string, opts ReadOptions) ([]arrow.Record, error) {
	dir, err := f.fs.IsDir(ctx, location)
	if err != nil {
		return nil, err
	}
	var recs []arrow.Record
	if !dir {
		if recs, err = f.read(ctx, location); err != nil {
			return nil, err
		}
	} else {
		names, err := f.fs.Files(ctx, location)
		if err != nil {
			return nil, err
		}
		var paths []string
		for _, n := range names {
			if f.accept(strings.ToLower(Ext(n))) {
				paths = append(paths, n)
			}
		}
		parts, err := task.MapDiscard[string, []arrow.Record](ctx, f.o.workers, paths, f.read, batch.Release)
		if err != nil {
			return nil, err
		}
		for _, p := range parts {
			recs = append(recs, p...)
		}
	}
	f.o.log.Debugf("read %d batches from %s", len(recs), location)
	return narrow(f.o.mem, recs, opts)
}

// narrow applies opts to recs, releasing the records it replaces.
func narrow(mem memory.Allocator, recs []arrow.Record, opts ReadOptions) ([]arrow.Record, error) {
	for i, rec := range recs {
		if len(opts.Columns) > 0 {
			p := batch.Project(rec, opts.Columns)
			rec.Release()
			recs[i], rec = p, p
		}
		if opts.Predicate != nil {
			r := rec
			kept, err := batch.Filter(mem, r, func(row int) bool { return opts.Predicate(r, row) })
			if err != nil {
				batch.Release(recs[i:])
				batch.Release(recs[:i])
				return nil, err
			}
			r.Release()
			recs[i] = kept
		}
	}
	return recs, nil
}

// Ext returns the extension of a local path or S3 key.
func Ext(location string) string {
	if IsS3(location) {
		return path.Ext(location)
	}
	return filepath.Ext(location)
}

// Base returns the last element of a local path or S3 key.
func Base(location string) string {
	if IsS3(location) {
		return path.Base(location)
	}
	return filepath.Base(location)
}

// Join joins a directory location and a name.
func Join(dir, name string) string {
	if IsS3(dir) {
		return strings.TrimSuffix(dir, "/") + "/" + name
	}
	return filepath.Join(dir, name)
}

// IsS3 reports whether location is an s3:// URL.
func IsS3(location string) bool {
	return strings.HasPrefix(location, "s3://")
}
