// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"bufio"
	"context"
	stdcsv "encoding/csv"
	"io"
	"strings"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/csv"
	"github.com/featurebasedb/cohort/errors"
)

// CSV reads delimited text files with a header row, or directories of
// them. Every column is read as text; the adapter converts it.
type CSV struct {
	files
}

// NewCSV returns a CSV source reading through fs.
func NewCSV(fs *FileSystem, opts ...Option) *CSV {
	c := &CSV{files{fs: fs, o: newOptions(opts), accept: isCSV}}
	c.read = c.readFile
	return c
}

func isCSV(ext string) bool {
	return ext == ".csv"
}

func (c *CSV) readFile(ctx context.Context, location string) ([]arrow.Record, error) {
	f, err := c.fs.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc, err := c.header(f)
	if err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, errors.WithCode(errors.Wrapf(err, "reading header of %s", location), errors.ErrIO)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.WithCode(errors.Wrapf(err, "rewinding %s", location), errors.ErrIO)
	}

	r := csv.NewReader(f, sc,
		csv.WithHeader(true),
		csv.WithComma(c.o.comma),
		csv.WithChunk(int(c.o.batchSize)),
		csv.WithAllocator(c.o.mem),
	)
	defer r.Release()
	var out []arrow.Record
	for r.Next() {
		rec := r.Record()
		rec.Retain()
		out = append(out, rec)
	}
	if err := r.Err(); err != nil {
		for _, rec := range out {
			rec.Release()
		}
		return nil, errors.WithCode(errors.Wrapf(err, "reading %s", location), errors.ErrIO)
	}
	return out, nil
}

// header builds an all-text schema from the first row of f.
func (c *CSV) header(f io.Reader) (*arrow.Schema, error) {
	hr := stdcsv.NewReader(bufio.NewReader(f))
	hr.Comma = c.o.comma
	names, err := hr.Read()
	if err != nil {
		return nil, err
	}
	fields := make([]arrow.Field, len(names))
	for i, n := range names {
		if i == 0 {
			n = strings.TrimPrefix(n, "\ufeff")
		}
		fields[i] = arrow.Field{Name: strings.TrimSpace(n), Type: arrow.BinaryTypes.String, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}
