package model

import (
	"errors"
	"strings"
	"time"
)

// HospitalDoc is the normalized hospital record, one per ingested file.
// Identity is the deterministic hospital id derived from the filename, so
// re-ingesting the same file overwrites rather than duplicates.
type HospitalDoc struct {
	HospitalID    string
	Name          string
	Addresses     []string
	Locations     []string
	NPINumbers    []string
	LicenseNumber string
	LicenseState  string
	Affirmation   bool
	AttesterName  string
	SchemaVersion string
	LastUpdatedOn *time.Time
	SourceFile    string
	SourceFormat  string
	ChargeCount   int64
	ModifierCount int64
}

// PayerCharge is one payer/plan price embedded in a charge document. Field
// population depends on schema version: v2 carries EstimatedAmount, v3 the
// median/percentile statistics.
type PayerCharge struct {
	PayerName       string   `json:"payerName"`
	PlanName        string   `json:"planName,omitempty"`
	Methodology     string   `json:"methodology,omitempty"`
	Dollar          *float64 `json:"standardChargeDollar,omitempty"`
	Percentage      *float64 `json:"standardChargePercent,omitempty"`
	Algorithm       string   `json:"standardChargeAlgorithm,omitempty"`
	EstimatedAmount *float64 `json:"estimatedAmount,omitempty"`
	MedianAmount    *float64 `json:"medianAmount,omitempty"`
	Percentile10th  *float64 `json:"percentile10,omitempty"`
	Percentile90th  *float64 `json:"percentile90,omitempty"`
	CountBucket     string   `json:"countBucket,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

// ChargeDoc is one flat, independently queryable charge document: one per
// (description, code, setting) drawn from a source record, further split by
// drug variant. ChargeKey is the stable upsert identity within a hospital.
type ChargeDoc struct {
	HospitalID     string
	HospitalName   string
	ChargeKey      string
	Description    string
	Code           string
	CodeType       string
	Codes          []RawCode
	Setting        string
	DrugUnit       *float64
	DrugType       string
	GrossCharge    *float64
	DiscountedCash *float64
	MinNegotiated  *float64
	MaxNegotiated  *float64
	Modifiers      []string
	PayerCharges   []PayerCharge
	Notes          string
	SchemaVersion  string
}

// Validate rejects documents that would be unqueryable if persisted. The
// batch writer calls it at flush time and wraps failures with the document's
// position.
func (d ChargeDoc) Validate() error {
	if d.HospitalID == "" {
		return errors.New("hospital id is required")
	}
	if strings.TrimSpace(d.Description) == "" {
		return errors.New("description is required")
	}
	if strings.TrimSpace(d.Setting) == "" {
		return errors.New("setting is required")
	}
	if d.ChargeKey == "" {
		return errors.New("charge key is required")
	}
	return nil
}

// Label identifies the document in error and log messages.
func (d ChargeDoc) Label() string {
	return d.Description
}

// ModifierPayer is a payer-specific description override embedded in a
// modifier document.
type ModifierPayer struct {
	PayerName   string `json:"payerName"`
	PlanName    string `json:"planName,omitempty"`
	Description string `json:"description"`
}

// ModifierDoc is one modifier record per hospital, keyed by code.
type ModifierDoc struct {
	HospitalID   string
	HospitalName string
	Code         string
	Description  string
	Setting      string
	Payers       []ModifierPayer
}

func (d ModifierDoc) Validate() error {
	if d.HospitalID == "" {
		return errors.New("hospital id is required")
	}
	if strings.TrimSpace(d.Code) == "" {
		return errors.New("modifier code is required")
	}
	return nil
}

// Label identifies the document in error and log messages.
func (d ModifierDoc) Label() string {
	return "modifier " + d.Code
}
