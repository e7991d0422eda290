package store

import "embed"

//go:embed migrations/*.sql
var migrationFS embed.FS

//go:embed queries/upsert_hospital.sql
var upsertHospitalSQL string

//go:embed queries/upsert_charge.sql
var upsertChargeSQL string

//go:embed queries/upsert_modifier.sql
var upsertModifierSQL string

//go:embed queries/hospital_exists.sql
var hospitalExistsSQL string

//go:embed queries/delete_hospital_charges.sql
var deleteChargesSQL string

//go:embed queries/delete_hospital_modifiers.sql
var deleteModifiersSQL string

//go:embed queries/stats_totals.sql
var statsTotalsSQL string

//go:embed queries/stats_code_types.sql
var statsCodeTypesSQL string

//go:embed queries/stats_hospitals.sql
var statsHospitalsSQL string

//go:embed queries/export_charges.sql
var exportChargesSQL string
