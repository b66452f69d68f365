// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package adapt

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/featurebasedb/cohort/batch"
	"github.com/featurebasedb/cohort/field"
	"github.com/featurebasedb/cohort/schema"
)

// Compatibility grades how well a physical column fits its declared field.
type Compatibility int

const (
	// Exact columns already have the declared physical type.
	Exact Compatibility = iota
	// Compatible columns can be converted.
	Compatible
	// Incompatible columns pass through unchanged.
	Incompatible
)

func (c Compatibility) String() string {
	switch c {
	case Exact:
		return "exact"
	case Compatible:
		return "compatible"
	}
	return "incompatible"
}

// Strategy names the conversion applied to a compatible column.
type Strategy int

const (
	// NoConversion is used for exact and incompatible columns.
	NoConversion Strategy = iota
	// AutoCast widens or re-units a column of the same family.
	AutoCast
	// DateParsing parses text dates with the adapter's formats.
	DateParsing
	// StringConversion turns text into numbers or booleans, or integer
	// codes into text.
	StringConversion
	// NumericConversion turns integers and float32 into float64.
	NumericConversion
	// BooleanConversion turns booleans into integers and back.
	BooleanConversion
)

func (s Strategy) String() string {
	switch s {
	case AutoCast:
		return "auto-cast"
	case DateParsing:
		return "date-parsing"
	case StringConversion:
		return "string-conversion"
	case NumericConversion:
		return "numeric-conversion"
	case BooleanConversion:
		return "boolean-conversion"
	}
	return "none"
}

// ColumnReport describes one declared column found in a batch.
type ColumnReport struct {
	// Column is the declared name, Source the name found in the batch.
	Column string
	Source string

	From          arrow.DataType
	To            arrow.DataType
	Compatibility Compatibility
	Strategy      Strategy

	// Nulled counts values that could not be converted and became null.
	Nulled int
}

// Report is the outcome of checking or adapting one batch.
type Report struct {
	Columns []ColumnReport
	// Missing lists declared columns absent from the batch.
	Missing []string
}

// Compatibility returns the worst grade over all found columns.
func (r *Report) Compatibility() Compatibility {
	worst := Exact
	for _, c := range r.Columns {
		if c.Compatibility > worst {
			worst = c.Compatibility
		}
	}
	return worst
}

// Column returns the report for the declared column name.
func (r *Report) Column(name string) (ColumnReport, bool) {
	for _, c := range r.Columns {
		if strings.EqualFold(c.Column, name) {
			return c, true
		}
	}
	return ColumnReport{}, false
}

// Incompatible returns the declared names of columns left unconverted.
func (r *Report) Incompatible() []string {
	var out []string
	for _, c := range r.Columns {
		if c.Compatibility == Incompatible {
			out = append(out, c.Column)
		}
	}
	return out
}

// Nulled returns the number of values dropped over all columns.
func (r *Report) Nulled() int {
	n := 0
	for _, c := range r.Columns {
		n += c.Nulled
	}
	return n
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:", r.Compatibility())
	for _, c := range r.Columns {
		if c.Compatibility == Exact {
			continue
		}
		fmt.Fprintf(&b, " %s(%s->%s %s)", c.Column, c.From, c.To, c.Strategy)
	}
	if len(r.Missing) > 0 {
		fmt.Fprintf(&b, " missing=%s", strings.Join(r.Missing, ","))
	}
	return b.String()
}

// Check grades every declared column of s against the physical schema sc
// without touching any data.
func Check(sc *arrow.Schema, s *schema.RegistrySchema) *Report {
	r := &Report{}
	for _, m := range s.Mappings() {
		def := m.Definition()
		i := batch.ColumnIndex(sc, def.Names()...)
		if i < 0 {
			r.Missing = append(r.Missing, def.Name)
			continue
		}
		from := sc.Field(i).Type
		c, st := grade(from, def.Type)
		r.Columns = append(r.Columns, ColumnReport{
			Column:        def.Name,
			Source:        sc.Field(i).Name,
			From:          from,
			To:            def.Type.ArrowType(),
			Compatibility: c,
			Strategy:      st,
		})
	}
	return r
}

// grade decides how a column of physical type from reaches typ.
func grade(from arrow.DataType, typ field.Type) (Compatibility, Strategy) {
	if arrow.TypeEqual(from, typ.ArrowType()) {
		return Exact, NoConversion
	}
	id := from.ID()
	switch typ.Kind() {
	case field.KindString:
		if isInteger(id) {
			return Compatible, StringConversion
		}
	case field.KindInteger:
		switch {
		case isInteger(id):
			return Compatible, AutoCast
		case id == arrow.STRING:
			return Compatible, StringConversion
		case id == arrow.BOOL:
			return Compatible, BooleanConversion
		}
	case field.KindDecimal:
		switch {
		case isInteger(id) || id == arrow.FLOAT32:
			return Compatible, NumericConversion
		case id == arrow.STRING:
			return Compatible, StringConversion
		}
	case field.KindBoolean:
		switch {
		case id == arrow.STRING:
			return Compatible, StringConversion
		case isInteger(id):
			return Compatible, BooleanConversion
		}
	case field.KindDate:
		switch id {
		case arrow.DATE64, arrow.TIMESTAMP:
			return Compatible, AutoCast
		case arrow.STRING:
			return Compatible, DateParsing
		}
	case field.KindTime:
		switch id {
		case arrow.TIME32, arrow.TIME64:
			return Compatible, AutoCast
		case arrow.STRING:
			return Compatible, DateParsing
		}
	}
	return Incompatible, NoConversion
}

func isInteger(id arrow.Type) bool {
	switch id {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return true
	}
	return false
}
