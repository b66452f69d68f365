// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package period

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/featurebasedb/cohort/errors"
)

// Lister lists the files directly inside a directory, local or remote.
type Lister interface {
	Files(ctx context.Context, dir string) ([]string, error)
}

// File is an extract tagged with the period its name carries.
type File struct {
	Path   string
	Period Period
}

// dataExtensions are the extract formats FindFiles considers.
var dataExtensions = map[string]bool{
	".parquet": true,
	".parq":    true,
	".csv":     true,
}

// FindFiles returns the extracts in dir whose names carry a period, oldest
// first. Files with equal periods keep name order.
func FindFiles(ctx context.Context, l Lister, dir string) ([]File, error) {
	paths, err := l.Files(ctx, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}
	sort.Strings(paths)
	var out []File
	for _, p := range paths {
		if !dataExtensions[strings.ToLower(filepath.Ext(p))] {
			continue
		}
		if per, ok := ExtractFromName(p); ok {
			out = append(out, File{Path: p, Period: per})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

// InRange returns the files whose period overlaps the inclusive range
// [from, to]. A zero from or to leaves that side open.
func InRange(files []File, from, to time.Time) []File {
	var out []File
	for _, f := range files {
		if !from.IsZero() && f.Period.End().Before(day(from)) {
			continue
		}
		if !to.IsZero() && f.Period.Start().After(day(to)) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Latest returns the most recent period among files.
func Latest(files []File) (Period, bool) {
	if len(files) == 0 {
		return Period{}, false
	}
	last := files[0].Period
	for _, f := range files[1:] {
		if last.Before(f.Period) {
			last = f.Period
		}
	}
	return last, true
}
