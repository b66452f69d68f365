// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package entity holds the canonical per-person record that registry rows
// are mapped into, the single merge rule used to combine records, and the
// in-memory store that query results are returned in.
package entity

import (
	"sort"
	"strconv"
	"time"

	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/field"
)

// Entity is the canonical record for one person. Optional attributes are
// nil when unknown. Attributes are read and written generically through the
// table returned by Attributes.
type Entity struct {
	id string

	// Secondary keys carried by rows that reference a person indirectly.
	RecordNumber string
	ContactID    string

	// Relations
	MotherID *string
	FatherID *string
	FamilyID *string
	SpouseID *string

	// Demographics
	Gender            *string
	BirthDate         *time.Time
	DeathDate         *time.Time
	Age               *int64
	Origin            *string
	CitizenshipStatus *string
	ImmigrationType   *string
	MaritalStatus     *string
	MaritalDate       *time.Time
	MunicipalityCode  *string
	RegionalCode      *string
	PostalCode        *string
	IsRural           *bool
	HouseholdType     *string
	FamilySize        *int64
	HouseholdSize     *int64
	ResidenceFrom     *time.Time
	PositionInFamily  *string
	FamilyType        *string

	// Migration
	EventType          *string
	EventDate          *time.Time
	ImmigrationDate    *time.Time
	EmigrationDate     *time.Time
	OriginCountry      *string
	DestinationCountry *string

	// Education
	EducationCode        *string
	EducationValidFrom   *time.Time
	EducationValidTo     *time.Time
	EducationInstitution *string
	EducationSource      *string
	EducationLevel       *string

	// Employment
	SocioeconomicStatus *string
	OccupationCode      *string
	IndustryCode        *string
	WorkplaceID         *string
	EmploymentStartDate *time.Time
	WorkingHours        *float64

	// Income
	AnnualIncome         *float64
	DisposableIncome     *float64
	EmploymentIncome     *float64
	SelfEmploymentIncome *float64
	CapitalIncome        *float64
	TransferIncome       *float64
	IncomeYear           *int64

	// Health
	HospitalAdmissionsCount   *int64
	EmergencyVisitsCount      *int64
	OutpatientVisitsCount     *int64
	GPVisitsCount             *int64
	LastHospitalAdmissionDate *time.Time
	HospitalizationDays       *int64
	LengthOfStay              *int64
	Hospital                  *string
	Department                *string
	PatientType               *string
	ContactType               *string
	Diagnoses                 []string
	DiagnosisTypes            []string
	Procedures                []string
	AdmissionDates            []time.Time
	DischargeDates            []time.Time

	// Death
	DeathCause           *string
	UnderlyingDeathCause *string

	// Birth
	BirthWeight    *int64
	BirthLength    *int64
	GestationalAge *int64
	ApgarScore     *int64
	BirthOrder     *int64
	Plurality      *int64

	ext        map[string]*Extension
	provenance []Provenance
}

// Extension is a value stored under a key the attribute table does not
// know about. It holds either a scalar or a list.
type Extension struct {
	Scalar field.Value
	List   []field.Value
	// Unique lists drop values they already contain.
	Unique bool
}

func (x *Extension) clone() *Extension {
	c := *x
	c.List = append([]field.Value(nil), x.List...)
	return &c
}

func (x *Extension) add(v field.Value, unique bool) {
	x.Unique = x.Unique || unique
	if x.Unique {
		for _, have := range x.List {
			if have.Equal(v) {
				return
			}
		}
	}
	x.List = append(x.List, v)
}

// Provenance records which registry extract contributed to an entity.
type Provenance struct {
	Registry   string
	Period     string
	DataSource string
}

// New returns an empty entity with the given identifier, which may be
// empty.
func New(id string) *Entity {
	return &Entity{id: id}
}

// ID returns the person identifier, or "" if it has not been set.
func (e *Entity) ID() string { return e.id }

// SetID assigns the identifier. Assigning the identifier it already has is
// a no-op; assigning a different one fails with ErrValidation.
func (e *Entity) SetID(id string) error {
	if e.id != "" && e.id != id {
		return errors.Newf(errors.ErrValidation, "identifier %s cannot be reassigned to %s", e.id, id)
	}
	e.id = id
	return nil
}

// SetExtension stores a scalar under key, replacing any previous value.
func (e *Entity) SetExtension(key string, v field.Value) {
	if e.ext == nil {
		e.ext = make(map[string]*Extension)
	}
	e.ext[key] = &Extension{Scalar: v}
}

// AppendExtension appends v to the list stored under key.
func (e *Entity) AppendExtension(key string, v field.Value, unique bool) {
	if e.ext == nil {
		e.ext = make(map[string]*Extension)
	}
	x, ok := e.ext[key]
	if !ok {
		x = &Extension{}
		e.ext[key] = x
	}
	x.add(v, unique)
}

// Extension returns a copy of the extension stored under key.
func (e *Entity) Extension(key string) (Extension, bool) {
	x, ok := e.ext[key]
	if !ok {
		return Extension{}, false
	}
	return *x.clone(), true
}

// ExtensionKeys returns the extension keys in sorted order.
func (e *Entity) ExtensionKeys() []string {
	keys := make([]string, 0, len(e.ext))
	for k := range e.ext {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AddProvenance records p unless it is already recorded.
func (e *Entity) AddProvenance(p Provenance) {
	for _, have := range e.provenance {
		if have == p {
			return
		}
	}
	e.provenance = append(e.provenance, p)
}

// Provenance returns the recorded provenance in the order it was added.
func (e *Entity) Provenance() []Provenance {
	return append([]Provenance(nil), e.provenance...)
}

// Clone returns a deep copy of e.
func (e *Entity) Clone() *Entity {
	c := New(e.id)
	c.RecordNumber = e.RecordNumber
	c.ContactID = e.ContactID
	for _, a := range attributes {
		a.merge(c, e, LastWins)
	}
	for k, x := range e.ext {
		if c.ext == nil {
			c.ext = make(map[string]*Extension, len(e.ext))
		}
		c.ext[k] = x.clone()
	}
	c.provenance = e.Provenance()
	return c
}

// WasValidAt reports whether the person was alive on date: born on or
// before it and not dead before it. Entities without a birth date are never
// valid.
func (e *Entity) WasValidAt(date time.Time) bool {
	if e.BirthDate == nil {
		return false
	}
	if e.BirthDate.After(date) {
		return false
	}
	return e.DeathDate == nil || !e.DeathDate.Before(date)
}

// RuralStatus derives rurality from the municipality code. Codes 400
// through 600 are urban. It reports false if the code is unknown.
func (e *Entity) RuralStatus() (rural bool, ok bool) {
	if e.MunicipalityCode == nil {
		return false, false
	}
	code, err := strconv.Atoi(*e.MunicipalityCode)
	if err != nil {
		code = 0
	}
	return code < 400 || code > 600, true
}
