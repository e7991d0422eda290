package model

// ChargeExportRow mirrors the Parquet schema for exported charge documents.
// The embedded payer list is carried as a JSON string column so analytics
// tools that cannot nest can still unpack it.
type ChargeExportRow struct {
	HospitalID   string  `parquet:"hospital_id"`
	HospitalName string  `parquet:"hospital_name"`
	ChargeKey    string  `parquet:"charge_key"`
	Description  string  `parquet:"description"`
	Code         *string `parquet:"code,optional"`
	CodeType     *string `parquet:"code_type,optional"`
	Setting      string  `parquet:"setting"`

	DrugUnit *float64 `parquet:"drug_unit,optional"`
	DrugType *string  `parquet:"drug_type,optional"`

	GrossCharge    *float64 `parquet:"gross_charge,optional"`
	DiscountedCash *float64 `parquet:"discounted_cash,optional"`
	MinNegotiated  *float64 `parquet:"min_negotiated,optional"`
	MaxNegotiated  *float64 `parquet:"max_negotiated,optional"`

	PayerChargesJSON string `parquet:"payer_charges_json"`
	SchemaVersion    string `parquet:"schema_version"`
}
