// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
	"github.com/featurebasedb/cohort/errors"
)

// Parquet reads Parquet files, or directories of them.
type Parquet struct {
	files
}

// NewParquet returns a Parquet source reading through fs.
func NewParquet(fs *FileSystem, opts ...Option) *Parquet {
	p := &Parquet{files{fs: fs, o: newOptions(opts), accept: isParquet}}
	p.read = p.readFile
	return p
}

func isParquet(ext string) bool {
	return ext == ".parquet" || ext == ".parq"
}

func (p *Parquet) readFile(ctx context.Context, location string) ([]arrow.Record, error) {
	f, err := p.fs.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pf, err := file.NewParquetReader(f)
	if err != nil {
		return nil, errors.WithCode(errors.Wrapf(err, "reading parquet %s", location), errors.ErrIO)
	}
	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: p.o.batchSize}, p.o.mem)
	if err != nil {
		return nil, errors.WithCode(errors.Wrapf(err, "reading parquet %s", location), errors.ErrIO)
	}
	table, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, errors.WithCode(errors.Wrapf(err, "reading parquet %s", location), errors.ErrIO)
	}
	defer table.Release()
	return tableRecords(table, p.o.batchSize), nil
}

// tableRecords slices table into records of at most size rows.
func tableRecords(table arrow.Table, size int64) []arrow.Record {
	tr := array.NewTableReader(table, size)
	defer tr.Release()
	var out []arrow.Record
	for tr.Next() {
		rec := tr.Record()
		rec.Retain()
		out = append(out, rec)
	}
	return out
}
