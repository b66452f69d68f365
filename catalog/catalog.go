// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package catalog declares the schemas of the standard registries and the
// joins between them. Every call builds fresh schemas, so warning state is
// never shared between managers.
package catalog

import (
	"strings"

	"github.com/featurebasedb/cohort/join"
	"github.com/featurebasedb/cohort/schema"
)

// Registry names.
const (
	BEF           = "BEF"
	IND           = "IND"
	AKM           = "AKM"
	IDAN          = "IDAN"
	UDDF          = "UDDF"
	VNDS          = "VNDS"
	DOD           = "DOD"
	DODSAARSAG    = "DODSAARSAG"
	MFR           = "MFR"
	LPRAdm        = "LPR_ADM"
	LPRDiag       = "LPR_DIAG"
	LPRBes        = "LPR_BES"
	LPR3Kontakter = "LPR3_KONTAKTER"
	LPR3Diagnoser = "LPR3_DIAGNOSER"
)

// Catalog is a set of schemas plus the joins between them.
type Catalog struct {
	Schemas []*schema.RegistrySchema
	Joins   []join.Join
}

// Standard returns the catalog of standard registries. Parents are listed
// before the sources that depend on them.
func Standard() *Catalog {
	return &Catalog{
		Schemas: []*schema.RegistrySchema{
			Bef(), Ind(), Akm(), Idan(), Uddf(), Vnds(), Dod(), Dodsaarsag(), Mfr(),
			LprAdm(), LprDiag(), LprBes(),
			Lpr3Kontakter(), Lpr3Diagnoser(),
		},
		Joins: Joins(),
	}
}

// Schema returns the catalog schema called name, ignoring case.
func (c *Catalog) Schema(name string) (*schema.RegistrySchema, bool) {
	for _, s := range c.Schemas {
		if strings.EqualFold(s.Name(), name) {
			return s, true
		}
	}
	return nil, false
}

// Names returns the schema names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.Schemas))
	for i, s := range c.Schemas {
		out[i] = s.Name()
	}
	return out
}

// Dir returns the directory name a registry's extracts live under.
func Dir(name string) string {
	return strings.ToLower(name)
}

// Joins returns the dependencies of the patient registry families: the
// diagnosis and outpatient tables of LPR2 reference admissions by record
// number, and LPR3 diagnoses reference contacts by contact id.
func Joins() []join.Join {
	return []join.Join{
		{Child: LPRDiag, Parent: LPRAdm, ParentColumn: "RECNUM", ChildColumn: "RECNUM"},
		{Child: LPRBes, Parent: LPRAdm, ParentColumn: "RECNUM", ChildColumn: "RECNUM"},
		{Child: LPR3Diagnoser, Parent: LPR3Kontakter, ParentColumn: "DW_EK_KONTAKT", ChildColumn: "DW_EK_KONTAKT"},
	}
}
