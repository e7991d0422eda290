package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Format identifies the physical layout of a source file.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSVTall Format = "csv-tall"
	FormatCSVWide Format = "csv-wide"
)

// SchemaVersion identifies the schema family a source file conforms to.
type SchemaVersion string

const (
	SchemaV2      SchemaVersion = "2.2"
	SchemaV3      SchemaVersion = "3.0"
	SchemaVendor  SchemaVersion = "vendor"
	SchemaUnknown SchemaVersion = "unknown"
)

// SchemaVersionFromString maps a raw version string as published in a file
// ("2.2.0", "3.0", "v3.0.0", ...) onto the schema family it belongs to.
func SchemaVersionFromString(s string) SchemaVersion {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	switch {
	case strings.HasPrefix(s, "2."), s == "2":
		return SchemaV2
	case strings.HasPrefix(s, "3."), s == "3":
		return SchemaV3
	default:
		return SchemaUnknown
	}
}

// Placeholder strings hospitals publish in place of an absent numeric value.
var numericPlaceholders = map[string]bool{
	"":               true,
	"-":              true,
	"n/a":            true,
	"na":             true,
	"null":           true,
	"not applicable": true,
}

// FlexibleFloat decodes numeric fields that hospitals publish either as JSON
// numbers or as formatted strings ("24,945.00", "$1,200", "N/A").
type FlexibleFloat struct {
	Value float64
	Valid bool
}

func (f *FlexibleFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if numericPlaceholders[strings.ToLower(s)] {
			return nil
		}
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parse numeric string %q: %w", s, err)
		}
		f.Value = v
		f.Valid = true
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.Value = v
	f.Valid = true
	return nil
}

// Float returns the value as a nullable float64.
func (f FlexibleFloat) Float() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// RawAffirmation is the attestation/affirmation block from the file header.
type RawAffirmation struct {
	Text      string
	Confirmed bool
	Attester  string
}

// RawHospital holds the file-level metadata recovered once per source file.
// Fields are populated incrementally by the parsers; v2 files fill Locations
// from the hospital_location list, v3 files from location_name, and only v3
// files carry NPI numbers.
type RawHospital struct {
	Name          string
	Addresses     []string
	Locations     []string
	NPINumbers    []string
	LicenseNumber string
	LicenseState  string
	Affirmation   *RawAffirmation
	Version       string
	LastUpdatedOn string
}

// RawCode is one (code, type) pair attached to a standard-charge record.
type RawCode struct {
	Code string `json:"code"`
	Type string `json:"type"`
}

// RawDrug describes one drug measurement variant of a charge record.
type RawDrug struct {
	Unit FlexibleFloat `json:"unit"`
	Type string        `json:"type"`
}

// RawPayer is one payer/plan entry inside a charge scope. The v2 and v3
// price fields coexist here; the normalizer branches on schema version.
type RawPayer struct {
	PayerName   string `json:"payer_name"`
	PlanName    string `json:"plan_name"`
	Methodology string `json:"methodology"`

	StandardChargeDollar     FlexibleFloat `json:"standard_charge_dollar"`
	StandardChargePercentage FlexibleFloat `json:"standard_charge_percentage"`
	StandardChargeAlgorithm  string        `json:"standard_charge_algorithm"`

	// v2
	EstimatedAmount FlexibleFloat `json:"estimated_amount"`

	// v3 statistics
	MedianAmount   FlexibleFloat `json:"median_amount"`
	Percentile10th FlexibleFloat `json:"percentile_10th"`
	Percentile90th FlexibleFloat `json:"percentile_90th"`
	CountBucket    string        `json:"count"`

	AdditionalPayerNotes string `json:"additional_payer_notes"`
}

// RawScope is one charge-scope entry: the prices a record discloses for a
// single care setting. v2 files spell the gross charge field "gross_charges".
type RawScope struct {
	Setting        string        `json:"setting"`
	GrossCharge    FlexibleFloat `json:"gross_charge"`
	GrossCharges   FlexibleFloat `json:"gross_charges"`
	DiscountedCash FlexibleFloat `json:"discounted_cash"`
	Minimum        FlexibleFloat `json:"minimum"`
	Maximum        FlexibleFloat `json:"maximum"`
	ModifierCodes  []string      `json:"modifier_code"`
	Payers         []RawPayer    `json:"payers_information"`
	GenericNotes   string        `json:"additional_generic_notes"`
}

// Gross returns whichever gross-charge spelling the file used.
func (s *RawScope) Gross() *float64 {
	if s.GrossCharge.Valid {
		return s.GrossCharge.Float()
	}
	return s.GrossCharges.Float()
}

// RawCharge is one standard-charge record as read from the source file.
type RawCharge struct {
	Description     string     `json:"description"`
	Codes           []RawCode  `json:"code_information"`
	DrugInformation *RawDrug   `json:"drug_information"`
	Scopes          []RawScope `json:"standard_charges"`

	// Drugs carries multiple measurement variants when a vendor shape
	// discloses them; standard schemas use DrugInformation.
	Drugs []RawDrug `json:"-"`
}

// DrugVariants returns the record's drug measurement variants: the vendor
// list when present, otherwise the single standard entry, otherwise nil.
func (c *RawCharge) DrugVariants() []RawDrug {
	if len(c.Drugs) > 0 {
		return c.Drugs
	}
	if c.DrugInformation != nil {
		return []RawDrug{*c.DrugInformation}
	}
	return nil
}

// RawModifierPayer is a payer-specific description override on a modifier.
type RawModifierPayer struct {
	PayerName   string `json:"payer_name"`
	PlanName    string `json:"plan_name"`
	Description string `json:"description"`
}

// RawModifier is one modifier record; Setting is v3-only.
type RawModifier struct {
	Code        string             `json:"code"`
	Description string             `json:"description"`
	Setting     string             `json:"setting"`
	Payers      []RawModifierPayer `json:"modifier_payer_information"`
}
