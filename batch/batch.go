// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package batch provides tooling for the Arrow record batches that flow
// through ingest: column lookup, projection, row selection and column
// construction.
package batch

import (
	"strings"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
)

var defaultAllocator = memory.NewGoAllocator()

// Allocator returns mem, or a shared Go allocator when mem is nil.
func Allocator(mem memory.Allocator) memory.Allocator {
	if mem == nil {
		return defaultAllocator
	}
	return mem
}

// ColumnIndex returns the index of the first field of sc whose name equals
// one of names, ignoring case. It returns -1 if there is none.
func ColumnIndex(sc *arrow.Schema, names ...string) int {
	for i, f := range sc.Fields() {
		for _, n := range names {
			if strings.EqualFold(f.Name, n) {
				return i
			}
		}
	}
	return -1
}

// Column returns the first column of rec named by one of names, or nil.
func Column(rec arrow.Record, names ...string) arrow.Array {
	i := ColumnIndex(rec.Schema(), names...)
	if i < 0 {
		return nil
	}
	return rec.Column(i)
}

// Project returns a record holding the named columns of rec in the order
// given. Names that rec lacks are skipped. The caller owns the result.
func Project(rec arrow.Record, names []string) arrow.Record {
	sc := rec.Schema()
	fields := make([]arrow.Field, 0, len(names))
	cols := make([]arrow.Array, 0, len(names))
	seen := make(map[int]bool, len(names))
	for _, n := range names {
		i := ColumnIndex(sc, n)
		if i < 0 || seen[i] {
			continue
		}
		seen[i] = true
		fields = append(fields, sc.Field(i))
		cols = append(cols, rec.Column(i))
	}
	md := sc.Metadata()
	return array.NewRecord(arrow.NewSchema(fields, &md), cols, rec.NumRows())
}

// ReplaceColumn returns a copy of rec with column i replaced by col, which
// is described by f. The caller owns the result.
func ReplaceColumn(rec arrow.Record, i int, f arrow.Field, col arrow.Array) arrow.Record {
	sc := rec.Schema()
	fields := make([]arrow.Field, rec.NumCols())
	cols := make([]arrow.Array, rec.NumCols())
	for j := range fields {
		fields[j] = sc.Field(j)
		cols[j] = rec.Column(j)
	}
	fields[i] = f
	cols[i] = col
	md := sc.Metadata()
	return array.NewRecord(arrow.NewSchema(fields, &md), cols, rec.NumRows())
}

// Release releases every record in recs.
func Release(recs []arrow.Record) {
	for _, r := range recs {
		if r != nil {
			r.Release()
		}
	}
}

// Rows returns the total number of rows across recs.
func Rows(recs []arrow.Record) int64 {
	var n int64
	for _, r := range recs {
		n += r.NumRows()
	}
	return n
}
