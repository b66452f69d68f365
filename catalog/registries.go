// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package catalog

import (
	"github.com/featurebasedb/cohort/entity"
	"github.com/featurebasedb/cohort/field"
	"github.com/featurebasedb/cohort/schema"
)

func attr(name, canonical string, typ field.Type, desc string, aliases ...string) schema.Mapping {
	return schema.Attr(field.Define(name, canonical, typ, aliases...).Describe(desc))
}

func ext(name, key string, typ field.Type, desc string, aliases ...string) schema.Mapping {
	return schema.Extension(field.Define(name, key, typ, aliases...).Describe(desc))
}

func extList(name, key string, typ field.Type, desc string, aliases ...string) schema.Mapping {
	return schema.AppendExtension(field.Define(name, key, typ, aliases...).Describe(desc), false)
}

func pnr(name string, aliases ...string) schema.Mapping {
	return schema.Attr(field.Define(name, entity.AttrID, field.Identifier, aliases...).
		Required().
		Describe("Personal identification number"))
}

// Bef is the population register.
func Bef() *schema.RegistrySchema {
	return schema.MustNew(BEF, "Population register", schema.PrimaryIdentifier,
		pnr("PNR"),
		attr("KOEN", "gender", field.Category, "Gender code (1=male, 2=female)"),
		attr("FOED_DAG", "birth_date", field.Date, "Birth date"),
		attr("DODDATO", "death_date", field.Date, "Death date"),
		attr("ALDER", "age", field.Integer, "Age at the end of the period"),
		attr("MOR_ID", "mother_pnr", field.Identifier, "Mother's personal identification number"),
		attr("FAR_ID", "father_pnr", field.Identifier, "Father's personal identification number"),
		attr("FAMILIE_ID", "family_id", field.Identifier, "Family identifier"),
		attr("AEGTE_ID", "spouse_pnr", field.Identifier, "Spouse's personal identification number"),
		attr("OPR_LAND", "origin", field.Category, "Country of origin code"),
		attr("STATSB", "citizenship_status", field.Category, "Citizenship code"),
		attr("IE_TYPE", "immigration_type", field.Category, "Immigration type"),
		attr("CIVST", "marital_status", field.Category, "Marital status code", "CIVILSTAND"),
		attr("CIV_VFRA", "marital_date", field.Date, "Marital status valid from"),
		attr("KOM", "municipality_code", field.Category, "Municipality code", "KOMKODE"),
		attr("REG", "regional_code", field.Category, "Region code"),
		attr("POSTNR", "postal_code", field.String, "Postal code"),
		attr("HUSTYPE", "household_type", field.Category, "Household type code"),
		attr("ANTPERSF", "family_size", field.Integer, "Number of persons in family"),
		attr("ANTPERSH", "household_size", field.Integer, "Number of persons in household"),
		attr("BOP_VFRA", "residence_from", field.Date, "Date of residence from"),
		attr("PLADS", "position_in_family", field.Category, "Position in family"),
		attr("FAMILIE_TYPE", "family_type", field.Category, "Family type"),
	)
}

// Ind is the income register.
func Ind() *schema.RegistrySchema {
	return schema.MustNew(IND, "Income register", schema.PrimaryIdentifier,
		pnr("PNR"),
		attr("PERINDKIALT_13", "annual_income", field.Decimal, "Annual income (DKK)", "PERINDKIALT"),
		attr("DISPON_13", "disposable_income", field.Decimal, "Disposable income after tax (DKK)", "DISPON_NY"),
		attr("LOENMV_13", "employment_income", field.Decimal, "Income from employment (DKK)", "LOENMV"),
		attr("NETOVSKUD_13", "self_employment_income", field.Decimal, "Income from self-employment (DKK)", "NETOVSKUD"),
		attr("KPITALIND_13", "capital_income", field.Decimal, "Capital income (DKK)", "KPITALIND"),
		attr("OFFHJ_13", "transfer_income", field.Decimal, "Transfer income (DKK)", "OFFHJ"),
		attr("AAR", "income_year", field.Integer, "Income year", "YEAR"),
		ext("BESKST13", "employment_status", field.Category, "Main employment status"),
		ext("PRE_SOCIO", "pre_socio", field.Category, "Socioeconomic status before the year"),
		ext("CPRTYPE", "cpr_type", field.Category, "Identifier type"),
		ext("VERSION", "version", field.String, "Extract version"),
	)
}

// Akm is the labour market register.
func Akm() *schema.RegistrySchema {
	return schema.MustNew(AKM, "Labour market register", schema.PrimaryIdentifier,
		pnr("PNR"),
		attr("SOCIO13", "socioeconomic_status", field.Category, "Socioeconomic status", "SOCIO02", "SOCIO"),
		attr("DISCO08", "occupation_code", field.Category, "Occupation code", "DISCO"),
		attr("BRANCHE07", "industry_code", field.Category, "Industry code", "BRANCHE"),
		attr("ARB_STED_ID", "workplace_id", field.Identifier, "Workplace identifier"),
		attr("ANSAETTELSE_START", "employment_start_date", field.Date, "Employment start date"),
		attr("HELTID", "working_hours", field.Decimal, "Full-time equivalent"),
		ext("SENR", "senr", field.String, "Business registration number"),
		ext("CPRTYPE", "cpr_type", field.Category, "Identifier type"),
		ext("VERSION", "version", field.String, "Extract version"),
	)
}

// Idan is the integrated labour market database, one row per job.
func Idan() *schema.RegistrySchema {
	return schema.MustNew(IDAN, "Integrated labour market database", schema.PrimaryIdentifier,
		pnr("PNR"),
		attr("BRANCHE", "industry_code", field.Category, "Industry code"),
		attr("DISCO", "occupation_code", field.Category, "Occupation code"),
		ext("DISCO_TEXT", "occupation_text", field.String, "Occupation text"),
		ext("TIMELOEN", "hourly_wage", field.Decimal, "Hourly wage"),
		attr("AARSLOEN", "employment_income", field.Decimal, "Annual wage"),
		attr("ARBEJDSTID", "working_hours", field.Decimal, "Working hours"),
		attr("CVR", "workplace_id", field.Identifier, "Company registration number"),
		ext("YEAR", "year", field.Integer, "Reference year"),
	)
}

// Uddf is the education register: the highest completed education and the
// period it is valid for.
func Uddf() *schema.RegistrySchema {
	return schema.MustNew(UDDF, "Education register", schema.PrimaryIdentifier,
		pnr("PNR"),
		ext("CPRTJEK", "cpr_check", field.String, "Identifier check"),
		ext("CPRTYPE", "cpr_type", field.Category, "Identifier type"),
		attr("HFAUDD", "education_code", field.Category, "Highest completed education code"),
		attr("HF_KILDE", "education_source", field.Category, "Source of education information"),
		attr("HF_VFRA", "education_valid_from", field.Date, "Valid from date"),
		attr("HF_VTIL", "education_valid_to", field.Date, "Valid to date"),
		attr("INSTNR", "education_institution", field.Category, "Institution number"),
		ext("VERSION", "version", field.String, "Extract version"),
	)
}

// Vnds is the migration register.
func Vnds() *schema.RegistrySchema {
	return schema.MustNew(VNDS, "Migration register", schema.PrimaryIdentifier,
		pnr("PNR"),
		attr("INDUD_KODE", "event_type", field.Category, "Migration event code"),
		attr("HAEND_DATO", "event_date", field.Date, "Migration event date"),
		attr("INDV_DAG", "immigration_date", field.Date, "Immigration date"),
		attr("INDV_LAND", "origin_country", field.Category, "Country of origin"),
		attr("UDVA_DAG", "emigration_date", field.Date, "Emigration date"),
		attr("UDVA_LAND", "destination_country", field.Category, "Destination country"),
		attr("STATSB", "citizenship_status", field.Category, "Citizenship code"),
	)
}

// Dod is the death register.
func Dod() *schema.RegistrySchema {
	return schema.MustNew(DOD, "Death register", schema.PrimaryIdentifier,
		pnr("PNR"),
		attr("DODDATO", "death_date", field.Date, "Death date", "DEATH_DATE"),
	)
}

// Dodsaarsag is the cause of death register.
func Dodsaarsag() *schema.RegistrySchema {
	return schema.MustNew(DODSAARSAG, "Cause of death register", schema.PrimaryIdentifier,
		pnr("PNR"),
		attr("C_AARSAG", "death_cause", field.Category, "Cause of death code (ICD-10)", "DEATH_CAUSE"),
		attr("C_TILSTAND", "underlying_death_cause", field.Category, "Underlying condition code", "DEATH_CONDITION"),
	)
}

// Mfr is the medical birth register. Rows are keyed by the child.
func Mfr() *schema.RegistrySchema {
	return schema.MustNew(MFR, "Medical birth register", schema.PrimaryIdentifier,
		pnr("CPR_BARN"),
		attr("FOEDSELSDATO", "birth_date", field.Date, "Birth date"),
		attr("CPR_MODER", "mother_pnr", field.Identifier, "Mother's personal identification number"),
		attr("CPR_FADER", "father_pnr", field.Identifier, "Father's personal identification number"),
		attr("VAEGT", "birth_weight", field.Integer, "Birth weight in grams"),
		attr("LAENGDE", "birth_length", field.Integer, "Birth length in cm"),
		attr("SVLNGD", "gestational_age", field.Integer, "Gestational age in weeks"),
		attr("APGAR5", "apgar_score", field.Integer, "APGAR score at 5 minutes"),
		attr("FLERFOLD", "birth_order", field.Integer, "Birth order for multiple births"),
		attr("PLURALITY", "plurality", field.Integer, "Number of fetuses in the pregnancy"),
	)
}

// LprAdm holds LPR2 admissions. RECNUM links diagnoses and outpatient
// visits to the admission.
func LprAdm() *schema.RegistrySchema {
	return schema.MustNew(LPRAdm, "National patient register, admissions", schema.PrimaryIdentifier,
		pnr("PNR"),
		attr("RECNUM", entity.AttrRecordNumber, field.Identifier, "Record number"),
		attr("D_INDDTO", "admission_dates", field.Date, "Admission date", "INDM_DAG", "INDDTO"),
		attr("D_UDDTO", "discharge_dates", field.Date, "Discharge date", "UDM_DAG", "UDDTO"),
		attr("C_SGH", "hospital", field.Category, "Hospital code", "SYGEHUSET"),
		attr("C_AFD", "department", field.Category, "Department code", "AFD"),
		attr("C_PATTYPE", "patient_type", field.Category, "Patient type", "PATTYPE"),
		attr("C_KONTAARS", "contact_type", field.Category, "Contact reason", "KONTAKT"),
		attr("V_SENGDAGE", "length_of_stay", field.Integer, "Length of stay in days", "LIGGETID"),
		ext("C_INDM", "admission_mode", field.Category, "Admission mode", "INDM_MAADE"),
		ext("C_UDM", "discharge_mode", field.Category, "Discharge mode", "UDM_MAADE"),
	)
}

// LprDiag holds LPR2 diagnoses, keyed by admission record number.
func LprDiag() *schema.RegistrySchema {
	return schema.MustNew(LPRDiag, "National patient register, diagnoses", schema.RecordNumber,
		schema.Attr(field.Define("RECNUM", entity.AttrRecordNumber, field.Identifier).Required().Describe("Record number")),
		attr("C_DIAG", "diagnoses", field.String, "Diagnosis code (ICD-10)", "DIAG"),
		attr("C_DIAGTYPE", "diagnosis_types", field.Category, "Diagnosis type", "DIAGTYPE"),
		extList("C_TILDIAG", "additional_diagnoses", field.String, "Additional diagnosis code", "TILDIAG"),
	)
}

// LprBes holds LPR2 outpatient visits, keyed by admission record number.
func LprBes() *schema.RegistrySchema {
	return schema.MustNew(LPRBes, "National patient register, outpatient visits", schema.RecordNumber,
		schema.Attr(field.Define("RECNUM", entity.AttrRecordNumber, field.Identifier).Required().Describe("Record number")),
		extList("D_AMBDTO", "outpatient_dates", field.Date, "Outpatient visit date"),
		ext("LEVERANCEDATO", "delivery_date", field.Date, "Delivery date"),
		ext("VERSION", "version", field.String, "Extract version"),
	)
}

// Lpr3Kontakter holds LPR3 contacts. DW_EK_KONTAKT links diagnoses to the
// contact.
func Lpr3Kontakter() *schema.RegistrySchema {
	return schema.MustNew(LPR3Kontakter, "National patient register 3, contacts", schema.PrimaryIdentifier,
		pnr("PNR", "CPR"),
		attr("DW_EK_KONTAKT", entity.AttrContactID, field.Identifier, "Contact identifier"),
		attr("KONTAKT_TYPE", "contact_type", field.Category, "Contact type"),
		attr("DATO_START", "admission_dates", field.Date, "Contact start date", "STARTDATO"),
		attr("DATO_SLUT", "discharge_dates", field.Date, "Contact end date", "SLUTDATO"),
		attr("SORENHED_ANS", "hospital", field.Category, "Responsible unit", "SYGEHUS"),
		attr("AFDELING", "department", field.Category, "Department"),
		ext("PRIORITET", "priority", field.Category, "Priority"),
		ext("KONTAKT_AARSAG", "contact_reason", field.Category, "Contact reason"),
		ext("HENVISNINGSAARSAG", "referral_reason", field.Category, "Referral reason"),
	)
}

// Lpr3Diagnoser holds LPR3 diagnoses, keyed by contact id.
func Lpr3Diagnoser() *schema.RegistrySchema {
	return schema.MustNew(LPR3Diagnoser, "National patient register 3, diagnoses", schema.ContactID,
		schema.Attr(field.Define("DW_EK_KONTAKT", entity.AttrContactID, field.Identifier).Required().Describe("Contact identifier")),
		attr("DIAGNOSEKODE", "diagnoses", field.String, "Diagnosis code (ICD-10)", "KODE"),
		attr("DIAGNOSETYPE", "diagnosis_types", field.Category, "Diagnosis type", "ART"),
		extList("SIDEANGIVELSE", "laterality", field.Category, "Laterality"),
		extList("DIAGNOSEDATO", "diagnosis_dates", field.Date, "Diagnosis date"),
	)
}
