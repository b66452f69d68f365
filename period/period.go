// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package period parses calendar periods (years, months and quarters) from
// extract names and orders them in time.
package period

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/featurebasedb/cohort/errors"
)

// Granularity is the length of a period.
type Granularity int

const (
	Yearly Granularity = iota + 1
	Monthly
	Quarterly
)

func (g Granularity) String() string {
	switch g {
	case Yearly:
		return "year"
	case Monthly:
		return "month"
	case Quarterly:
		return "quarter"
	}
	return "unknown"
}

// ParseGranularity accepts "year", "month" or "quarter", with or without a
// trailing "ly", in any case.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "year", "yearly", "annual":
		return Yearly, nil
	case "month", "monthly":
		return Monthly, nil
	case "quarter", "quarterly":
		return Quarterly, nil
	}
	return 0, errors.Newf(errors.ErrValidation, "unknown period granularity %q", s)
}

// Period is a calendar year, month or quarter. Sub is the month (1-12) or
// quarter (1-4) and is zero for years. Periods are comparable and can be
// used as map keys.
type Period struct {
	Granularity Granularity
	Year        int
	Sub         int
}

// Year returns the period covering calendar year y.
func Year(y int) Period { return Period{Granularity: Yearly, Year: y} }

// Month returns the period covering month m (1-12) of year y.
func Month(y, m int) Period { return Period{Granularity: Monthly, Year: y, Sub: m} }

// Quarter returns the period covering quarter q (1-4) of year y.
func Quarter(y, q int) Period { return Period{Granularity: Quarterly, Year: y, Sub: q} }

// FromDate returns the period of granularity g containing t.
func FromDate(t time.Time, g Granularity) Period {
	switch g {
	case Monthly:
		return Month(t.Year(), int(t.Month()))
	case Quarterly:
		return Quarter(t.Year(), (int(t.Month())-1)/3+1)
	}
	return Year(t.Year())
}

// Valid reports whether p names a real period.
func (p Period) Valid() bool {
	switch p.Granularity {
	case Yearly:
		return p.Sub == 0
	case Monthly:
		return p.Sub >= 1 && p.Sub <= 12
	case Quarterly:
		return p.Sub >= 1 && p.Sub <= 4
	}
	return false
}

// Start returns midnight UTC of the first day of p.
func (p Period) Start() time.Time {
	switch p.Granularity {
	case Monthly:
		return time.Date(p.Year, time.Month(p.Sub), 1, 0, 0, 0, 0, time.UTC)
	case Quarterly:
		return time.Date(p.Year, time.Month((p.Sub-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// End returns midnight UTC of the last day of p. The range is inclusive.
func (p Period) End() time.Time {
	switch p.Granularity {
	case Monthly:
		return p.Start().AddDate(0, 1, -1)
	case Quarterly:
		return p.Start().AddDate(0, 3, -1)
	}
	return time.Date(p.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether the calendar date of t falls inside p.
func (p Period) Contains(t time.Time) bool {
	d := day(t)
	return !d.Before(p.Start()) && !d.After(p.End())
}

// Overlaps reports whether p shares a day with the inclusive range
// [from, to].
func (p Period) Overlaps(from, to time.Time) bool {
	return !(p.End().Before(day(from)) || p.Start().After(day(to)))
}

// Compare orders periods by start date, then by end date, then by
// granularity. It returns -1, 0 or 1.
func (p Period) Compare(o Period) int {
	if c := compareTime(p.Start(), o.Start()); c != 0 {
		return c
	}
	if c := compareTime(p.End(), o.End()); c != 0 {
		return c
	}
	switch {
	case p.Granularity < o.Granularity:
		return -1
	case p.Granularity > o.Granularity:
		return 1
	}
	return 0
}

// Before reports whether p sorts before o.
func (p Period) Before(o Period) bool { return p.Compare(o) < 0 }

func (p Period) String() string {
	switch p.Granularity {
	case Monthly:
		return fmt.Sprintf("%04d-%02d", p.Year, p.Sub)
	case Quarterly:
		return fmt.Sprintf("%04d-Q%d", p.Year, p.Sub)
	case Yearly:
		return fmt.Sprintf("%04d", p.Year)
	}
	return "invalid"
}

// Sort orders ps chronologically in place.
func Sort(ps []Period) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Before(ps[j]) })
}

var (
	yearToken    = regexp.MustCompile(`^(\d{4})$`)
	monthToken   = regexp.MustCompile(`^(\d{4})-?(\d{2})$`)
	quarterToken = regexp.MustCompile(`^(\d{4})-?[Qq](\d)$`)

	monthInName   = regexp.MustCompile(`(\d{4})[_-]?(\d{2})`)
	quarterInName = regexp.MustCompile(`(\d{4})[_-]?[Qq](\d)`)
	yearInName    = regexp.MustCompile(`(?:^|[_-])(\d{4})(?:[_-]|$)`)
)

// Parse recognizes a whole token: "2020", "2020-01", "202001", "2020-Q1"
// or "2020Q1". It reports false for anything else, including months and
// quarters out of range.
func Parse(s string) (Period, bool) {
	if m := yearToken.FindStringSubmatch(s); m != nil {
		return Year(atoi(m[1])), true
	}
	if m := monthToken.FindStringSubmatch(s); m != nil {
		p := Month(atoi(m[1]), atoi(m[2]))
		return p, p.Valid()
	}
	if m := quarterToken.FindStringSubmatch(s); m != nil {
		p := Quarter(atoi(m[1]), atoi(m[2]))
		return p, p.Valid()
	}
	return Period{}, false
}

// ExtractFromName finds the period in a file name such as
// "bef_202001.parquet". The extension is dropped and the remaining stem is
// parsed whole; failing that it is scanned for an embedded month, then a
// quarter, then a bare year.
func ExtractFromName(name string) (Period, bool) {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if p, ok := Parse(stem); ok {
		return p, true
	}
	if m := monthInName.FindStringSubmatch(stem); m != nil {
		if p := Month(atoi(m[1]), atoi(m[2])); p.Valid() {
			return p, true
		}
	}
	if m := quarterInName.FindStringSubmatch(stem); m != nil {
		if p := Quarter(atoi(m[1]), atoi(m[2])); p.Valid() {
			return p, true
		}
	}
	if m := yearInName.FindStringSubmatch(stem); m != nil {
		return Year(atoi(m[1])), true
	}
	return Period{}, false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
