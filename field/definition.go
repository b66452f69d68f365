// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package field

import "strings"

// Definition describes one source column and the canonical attribute it
// feeds. Definitions are values and are never modified after construction.
type Definition struct {
	// Name is the column name in the source batch.
	Name string
	// Canonical is the attribute or extension key the value lands in.
	Canonical string
	Type      Type
	Nullable  bool

	// Aliases are alternative column names seen in older extracts.
	Aliases     []string
	Description string
}

// Define returns a nullable definition of column name feeding canonical.
func Define(name, canonical string, typ Type, aliases ...string) Definition {
	return Definition{
		Name:      name,
		Canonical: canonical,
		Type:      typ,
		Nullable:  true,
		Aliases:   aliases,
	}
}

// Required returns a copy of d that is not nullable.
func (d Definition) Required() Definition {
	d.Nullable = false
	return d
}

// Describe returns a copy of d with the given description.
func (d Definition) Describe(desc string) Definition {
	d.Description = desc
	return d
}

// Names returns the column name followed by its aliases.
func (d Definition) Names() []string {
	return append([]string{d.Name}, d.Aliases...)
}

// Matches reports whether column names this field, ignoring case.
func (d Definition) Matches(column string) bool {
	if strings.EqualFold(d.Name, column) {
		return true
	}
	for _, a := range d.Aliases {
		if strings.EqualFold(a, column) {
			return true
		}
	}
	return false
}
