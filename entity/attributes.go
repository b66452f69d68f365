// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package entity

import (
	"time"

	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/field"
)

// Canonical names of the key attributes.
const (
	AttrID           = "pnr"
	AttrRecordNumber = "record_number"
	AttrContactID    = "contact_id"
)

// Attribute is one canonical attribute of Entity with typed access.
type Attribute struct {
	Name string
	Type field.Type
	List bool

	get   func(e *Entity) []field.Value
	set   func(e *Entity, v field.Value) error
	merge func(dst, src *Entity, p Policy)
}

// Get returns the attribute's values on e: none when unset, one for a set
// scalar, all elements for a list.
func (a Attribute) Get(e *Entity) []field.Value { return a.get(e) }

// Set assigns v to a scalar attribute or appends it to a list attribute. A
// value of the wrong kind, or an identifier that differs from the one e
// already has, fails with ErrValidation and leaves e unchanged.
func (a Attribute) Set(e *Entity, v field.Value) error { return a.set(e, v) }

func kindError(name string, v field.Value) error {
	return errors.Newf(errors.ErrValidation, "attribute %s cannot hold %s value %q", name, v.Kind(), v.String())
}

type codec[T comparable] struct {
	wrap   func(T) field.Value
	unwrap func(field.Value) (T, bool)
}

var (
	strCodec  = codec[string]{field.StringValue, field.Value.Str}
	intCodec  = codec[int64]{field.IntValue, field.Value.Int}
	decCodec  = codec[float64]{field.DecimalValue, field.Value.Decimal}
	boolCodec = codec[bool]{field.BoolValue, field.Value.Bool}
	dateCodec = codec[time.Time]{field.DateValue, field.Value.Date}
)

func scalar[T comparable](name string, typ field.Type, c codec[T], ptr func(*Entity) **T) Attribute {
	return Attribute{
		Name: name,
		Type: typ,
		get: func(e *Entity) []field.Value {
			p := *ptr(e)
			if p == nil {
				return nil
			}
			return []field.Value{c.wrap(*p)}
		},
		set: func(e *Entity, v field.Value) error {
			x, ok := c.unwrap(v)
			if !ok {
				return kindError(name, v)
			}
			*ptr(e) = &x
			return nil
		},
		merge: func(dst, src *Entity, p Policy) {
			s := *ptr(src)
			if s == nil {
				return
			}
			d := ptr(dst)
			if *d == nil || p == LastWins {
				x := *s
				*d = &x
			}
		},
	}
}

func list[T comparable](name string, typ field.Type, c codec[T], ptr func(*Entity) *[]T) Attribute {
	return Attribute{
		Name: name,
		Type: typ,
		List: true,
		get: func(e *Entity) []field.Value {
			l := *ptr(e)
			if len(l) == 0 {
				return nil
			}
			out := make([]field.Value, len(l))
			for i, x := range l {
				out[i] = c.wrap(x)
			}
			return out
		},
		set: func(e *Entity, v field.Value) error {
			x, ok := c.unwrap(v)
			if !ok {
				return kindError(name, v)
			}
			*ptr(e) = append(*ptr(e), x)
			return nil
		},
		merge: func(dst, src *Entity, _ Policy) {
			d := ptr(dst)
			*d = append(*d, *ptr(src)...)
		},
	}
}

// attributes lists every canonical attribute of Entity except the keys.
var attributes = []Attribute{
	scalar("mother_pnr", field.Identifier, strCodec, func(e *Entity) **string { return &e.MotherID }),
	scalar("father_pnr", field.Identifier, strCodec, func(e *Entity) **string { return &e.FatherID }),
	scalar("family_id", field.Identifier, strCodec, func(e *Entity) **string { return &e.FamilyID }),
	scalar("spouse_pnr", field.Identifier, strCodec, func(e *Entity) **string { return &e.SpouseID }),

	scalar("gender", field.Category, strCodec, func(e *Entity) **string { return &e.Gender }),
	scalar("birth_date", field.Date, dateCodec, func(e *Entity) **time.Time { return &e.BirthDate }),
	scalar("death_date", field.Date, dateCodec, func(e *Entity) **time.Time { return &e.DeathDate }),
	scalar("age", field.Integer, intCodec, func(e *Entity) **int64 { return &e.Age }),
	scalar("origin", field.Category, strCodec, func(e *Entity) **string { return &e.Origin }),
	scalar("citizenship_status", field.Category, strCodec, func(e *Entity) **string { return &e.CitizenshipStatus }),
	scalar("immigration_type", field.Category, strCodec, func(e *Entity) **string { return &e.ImmigrationType }),
	scalar("marital_status", field.Category, strCodec, func(e *Entity) **string { return &e.MaritalStatus }),
	scalar("marital_date", field.Date, dateCodec, func(e *Entity) **time.Time { return &e.MaritalDate }),
	scalar("municipality_code", field.Category, strCodec, func(e *Entity) **string { return &e.MunicipalityCode }),
	scalar("regional_code", field.Category, strCodec, func(e *Entity) **string { return &e.RegionalCode }),
	scalar("postal_code", field.String, strCodec, func(e *Entity) **string { return &e.PostalCode }),
	scalar("is_rural", field.Boolean, boolCodec, func(e *Entity) **bool { return &e.IsRural }),
	scalar("household_type", field.Category, strCodec, func(e *Entity) **string { return &e.HouseholdType }),
	scalar("family_size", field.Integer, intCodec, func(e *Entity) **int64 { return &e.FamilySize }),
	scalar("household_size", field.Integer, intCodec, func(e *Entity) **int64 { return &e.HouseholdSize }),
	scalar("residence_from", field.Date, dateCodec, func(e *Entity) **time.Time { return &e.ResidenceFrom }),
	scalar("position_in_family", field.Category, strCodec, func(e *Entity) **string { return &e.PositionInFamily }),
	scalar("family_type", field.Category, strCodec, func(e *Entity) **string { return &e.FamilyType }),

	scalar("event_type", field.Category, strCodec, func(e *Entity) **string { return &e.EventType }),
	scalar("event_date", field.Date, dateCodec, func(e *Entity) **time.Time { return &e.EventDate }),
	scalar("immigration_date", field.Date, dateCodec, func(e *Entity) **time.Time { return &e.ImmigrationDate }),
	scalar("emigration_date", field.Date, dateCodec, func(e *Entity) **time.Time { return &e.EmigrationDate }),
	scalar("origin_country", field.Category, strCodec, func(e *Entity) **string { return &e.OriginCountry }),
	scalar("destination_country", field.Category, strCodec, func(e *Entity) **string { return &e.DestinationCountry }),

	scalar("education_code", field.Category, strCodec, func(e *Entity) **string { return &e.EducationCode }),
	scalar("education_valid_from", field.Date, dateCodec, func(e *Entity) **time.Time { return &e.EducationValidFrom }),
	scalar("education_valid_to", field.Date, dateCodec, func(e *Entity) **time.Time { return &e.EducationValidTo }),
	scalar("education_institution", field.Category, strCodec, func(e *Entity) **string { return &e.EducationInstitution }),
	scalar("education_source", field.Category, strCodec, func(e *Entity) **string { return &e.EducationSource }),
	scalar("education_level", field.Category, strCodec, func(e *Entity) **string { return &e.EducationLevel }),

	scalar("socioeconomic_status", field.Category, strCodec, func(e *Entity) **string { return &e.SocioeconomicStatus }),
	scalar("occupation_code", field.Category, strCodec, func(e *Entity) **string { return &e.OccupationCode }),
	scalar("industry_code", field.Category, strCodec, func(e *Entity) **string { return &e.IndustryCode }),
	scalar("workplace_id", field.Identifier, strCodec, func(e *Entity) **string { return &e.WorkplaceID }),
	scalar("employment_start_date", field.Date, dateCodec, func(e *Entity) **time.Time { return &e.EmploymentStartDate }),
	scalar("working_hours", field.Decimal, decCodec, func(e *Entity) **float64 { return &e.WorkingHours }),

	scalar("annual_income", field.Decimal, decCodec, func(e *Entity) **float64 { return &e.AnnualIncome }),
	scalar("disposable_income", field.Decimal, decCodec, func(e *Entity) **float64 { return &e.DisposableIncome }),
	scalar("employment_income", field.Decimal, decCodec, func(e *Entity) **float64 { return &e.EmploymentIncome }),
	scalar("self_employment_income", field.Decimal, decCodec, func(e *Entity) **float64 { return &e.SelfEmploymentIncome }),
	scalar("capital_income", field.Decimal, decCodec, func(e *Entity) **float64 { return &e.CapitalIncome }),
	scalar("transfer_income", field.Decimal, decCodec, func(e *Entity) **float64 { return &e.TransferIncome }),
	scalar("income_year", field.Integer, intCodec, func(e *Entity) **int64 { return &e.IncomeYear }),

	scalar("hospital_admissions_count", field.Integer, intCodec, func(e *Entity) **int64 { return &e.HospitalAdmissionsCount }),
	scalar("emergency_visits_count", field.Integer, intCodec, func(e *Entity) **int64 { return &e.EmergencyVisitsCount }),
	scalar("outpatient_visits_count", field.Integer, intCodec, func(e *Entity) **int64 { return &e.OutpatientVisitsCount }),
	scalar("gp_visits_count", field.Integer, intCodec, func(e *Entity) **int64 { return &e.GPVisitsCount }),
	scalar("last_hospital_admission_date", field.Date, dateCodec, func(e *Entity) **time.Time { return &e.LastHospitalAdmissionDate }),
	scalar("hospitalization_days", field.Integer, intCodec, func(e *Entity) **int64 { return &e.HospitalizationDays }),
	scalar("length_of_stay", field.Integer, intCodec, func(e *Entity) **int64 { return &e.LengthOfStay }),
	scalar("hospital", field.Category, strCodec, func(e *Entity) **string { return &e.Hospital }),
	scalar("department", field.Category, strCodec, func(e *Entity) **string { return &e.Department }),
	scalar("patient_type", field.Category, strCodec, func(e *Entity) **string { return &e.PatientType }),
	scalar("contact_type", field.Category, strCodec, func(e *Entity) **string { return &e.ContactType }),
	list("diagnoses", field.String, strCodec, func(e *Entity) *[]string { return &e.Diagnoses }),
	list("diagnosis_types", field.Category, strCodec, func(e *Entity) *[]string { return &e.DiagnosisTypes }),
	list("procedures", field.String, strCodec, func(e *Entity) *[]string { return &e.Procedures }),
	list("admission_dates", field.Date, dateCodec, func(e *Entity) *[]time.Time { return &e.AdmissionDates }),
	list("discharge_dates", field.Date, dateCodec, func(e *Entity) *[]time.Time { return &e.DischargeDates }),

	scalar("death_cause", field.Category, strCodec, func(e *Entity) **string { return &e.DeathCause }),
	scalar("underlying_death_cause", field.Category, strCodec, func(e *Entity) **string { return &e.UnderlyingDeathCause }),

	scalar("birth_weight", field.Integer, intCodec, func(e *Entity) **int64 { return &e.BirthWeight }),
	scalar("birth_length", field.Integer, intCodec, func(e *Entity) **int64 { return &e.BirthLength }),
	scalar("gestational_age", field.Integer, intCodec, func(e *Entity) **int64 { return &e.GestationalAge }),
	scalar("apgar_score", field.Integer, intCodec, func(e *Entity) **int64 { return &e.ApgarScore }),
	scalar("birth_order", field.Integer, intCodec, func(e *Entity) **int64 { return &e.BirthOrder }),
	scalar("plurality", field.Integer, intCodec, func(e *Entity) **int64 { return &e.Plurality }),
}

// keyAttributes expose the identifier and secondary keys through the same
// interface as the other attributes. They are not merged by the attribute
// loop.
var keyAttributes = []Attribute{
	{
		Name: AttrID,
		Type: field.Identifier,
		get: func(e *Entity) []field.Value {
			if e.id == "" {
				return nil
			}
			return []field.Value{field.StringValue(e.id)}
		},
		set: func(e *Entity, v field.Value) error {
			s, ok := v.Str()
			if !ok {
				return kindError(AttrID, v)
			}
			if s == "" {
				return errors.New(errors.ErrValidation, "empty identifier")
			}
			return e.SetID(s)
		},
	},
	stringKey(AttrRecordNumber, func(e *Entity) *string { return &e.RecordNumber }),
	stringKey(AttrContactID, func(e *Entity) *string { return &e.ContactID }),
}

func stringKey(name string, ptr func(*Entity) *string) Attribute {
	return Attribute{
		Name: name,
		Type: field.Identifier,
		get: func(e *Entity) []field.Value {
			if *ptr(e) == "" {
				return nil
			}
			return []field.Value{field.StringValue(*ptr(e))}
		},
		set: func(e *Entity, v field.Value) error {
			s, ok := v.Str()
			if !ok {
				return kindError(name, v)
			}
			*ptr(e) = s
			return nil
		},
	}
}

var attributeIndex = func() map[string]Attribute {
	m := make(map[string]Attribute, len(attributes)+len(keyAttributes))
	for _, a := range keyAttributes {
		m[a.Name] = a
	}
	for _, a := range attributes {
		m[a.Name] = a
	}
	return m
}()

// Attributes returns the canonical attributes, keys first.
func Attributes() []Attribute {
	out := make([]Attribute, 0, len(keyAttributes)+len(attributes))
	out = append(out, keyAttributes...)
	return append(out, attributes...)
}

// Lookup returns the canonical attribute called name.
func Lookup(name string) (Attribute, bool) {
	a, ok := attributeIndex[name]
	return a, ok
}
