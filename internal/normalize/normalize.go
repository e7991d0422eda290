package normalize

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/gyeh/mrfingest/internal/model"
)

// ChargeDocs expands one raw standard-charge record into flat charge
// documents: one per distinct setting disclosed on the record, multiplied
// by drug measurement variants when the record carries more than one.
// Scopes sharing a setting are merged first, so a record that lists
// "inpatient" twice still yields a single inpatient document.
func ChargeDocs(raw *model.RawCharge, hospitalID, hospitalName string, version model.SchemaVersion, priority []string) ([]model.ChargeDoc, error) {
	desc := strings.TrimSpace(raw.Description)
	if desc == "" {
		return nil, errors.New("record has no description")
	}
	if len(raw.Scopes) == 0 {
		return nil, errors.New("record has no standard charge scopes")
	}

	scopes := mergeScopes(raw.Scopes)
	if len(scopes) == 0 {
		return nil, errors.New("record has no scope with a usable setting")
	}

	primary, _ := PrimaryCode(raw.Codes, priority)

	variants := raw.DrugVariants()
	if len(variants) == 0 {
		variants = []model.RawDrug{{}}
	}

	docs := make([]model.ChargeDoc, 0, len(scopes)*len(variants))
	for _, sc := range scopes {
		for _, drug := range variants {
			doc := model.ChargeDoc{
				HospitalID:   hospitalID,
				HospitalName: hospitalName,
				Description:  desc,
				Code:         NormalizeCode(primary.Code),
				CodeType:     CanonicalCodeType(primary.Type),
				Codes:        raw.Codes,
				Setting:      sc.setting,
				DrugUnit:     drug.Unit.Float(),
				DrugType:     strings.TrimSpace(drug.Type),

				GrossCharge:    sc.gross,
				DiscountedCash: sc.discountedCash,
				MinNegotiated:  sc.min,
				MaxNegotiated:  sc.max,

				Modifiers:     sc.modifiers,
				PayerCharges:  payerCharges(sc.payers, version),
				Notes:         sc.notes,
				SchemaVersion: string(version),
			}
			doc.ChargeKey = ChargeKey(doc.Description, doc.Code, doc.Setting, doc.DrugUnit, doc.DrugType)
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// mergedScope accumulates every scope entry sharing one setting. The first
// disclosed value wins for each universal price field; payer entries append.
type mergedScope struct {
	setting        string
	gross          *float64
	discountedCash *float64
	min            *float64
	max            *float64
	modifiers      []string
	payers         []model.RawPayer
	notes          string
}

func mergeScopes(scopes []model.RawScope) []*mergedScope {
	var order []*mergedScope
	byKey := map[string]*mergedScope{}
	for _, sc := range scopes {
		setting := strings.ToLower(strings.TrimSpace(sc.Setting))
		if setting == "" {
			continue
		}
		m := byKey[setting]
		if m == nil {
			m = &mergedScope{setting: setting}
			byKey[setting] = m
			order = append(order, m)
		}
		if m.gross == nil {
			m.gross = sc.Gross()
		}
		if m.discountedCash == nil {
			m.discountedCash = sc.DiscountedCash.Float()
		}
		if m.min == nil {
			m.min = sc.Minimum.Float()
		}
		if m.max == nil {
			m.max = sc.Maximum.Float()
		}
		m.modifiers = appendUnique(m.modifiers, sc.ModifierCodes)
		m.payers = append(m.payers, sc.Payers...)
		if m.notes == "" {
			m.notes = strings.TrimSpace(sc.GenericNotes)
		}
	}
	return order
}

func payerCharges(payers []model.RawPayer, version model.SchemaVersion) []model.PayerCharge {
	if len(payers) == 0 {
		return nil
	}
	out := make([]model.PayerCharge, 0, len(payers))
	for _, p := range payers {
		name := strings.TrimSpace(p.PayerName)
		if name == "" {
			continue
		}
		pc := model.PayerCharge{
			PayerName:   name,
			PlanName:    strings.TrimSpace(p.PlanName),
			Methodology: strings.TrimSpace(p.Methodology),
			Dollar:      p.StandardChargeDollar.Float(),
			Percentage:  p.StandardChargePercentage.Float(),
			Algorithm:   strings.TrimSpace(p.StandardChargeAlgorithm),
			Notes:       strings.TrimSpace(p.AdditionalPayerNotes),
		}
		// Version-specific statistics. Vendor and unknown files may carry
		// either family, so both are kept for them.
		switch version {
		case model.SchemaV2:
			pc.EstimatedAmount = p.EstimatedAmount.Float()
		case model.SchemaV3:
			pc.MedianAmount = p.MedianAmount.Float()
			pc.Percentile10th = p.Percentile10th.Float()
			pc.Percentile90th = p.Percentile90th.Float()
			pc.CountBucket = strings.TrimSpace(p.CountBucket)
		default:
			pc.EstimatedAmount = p.EstimatedAmount.Float()
			pc.MedianAmount = p.MedianAmount.Float()
			pc.Percentile10th = p.Percentile10th.Float()
			pc.Percentile90th = p.Percentile90th.Float()
			pc.CountBucket = strings.TrimSpace(p.CountBucket)
		}
		out = append(out, pc)
	}
	return out
}

// ModifierDoc converts one raw modifier record into its persisted document.
func ModifierDoc(raw *model.RawModifier, hospitalID, hospitalName string) (*model.ModifierDoc, error) {
	code := strings.TrimSpace(raw.Code)
	if code == "" {
		return nil, errors.New("modifier record has no code")
	}
	doc := &model.ModifierDoc{
		HospitalID:   hospitalID,
		HospitalName: hospitalName,
		Code:         code,
		Description:  strings.TrimSpace(raw.Description),
		Setting:      strings.ToLower(strings.TrimSpace(raw.Setting)),
	}
	for _, p := range raw.Payers {
		name := strings.TrimSpace(p.PayerName)
		if name == "" {
			continue
		}
		doc.Payers = append(doc.Payers, model.ModifierPayer{
			PayerName:   name,
			PlanName:    strings.TrimSpace(p.PlanName),
			Description: strings.TrimSpace(p.Description),
		})
	}
	return doc, nil
}

// HospitalDoc assembles the persisted hospital record from parsed file
// metadata. Charge and modifier counts are filled in by the orchestrator
// once writes complete.
func HospitalDoc(meta *model.RawHospital, hospitalID, sourceFile string, format model.Format, version model.SchemaVersion) model.HospitalDoc {
	if meta == nil {
		meta = &model.RawHospital{}
	}
	doc := model.HospitalDoc{
		HospitalID:    hospitalID,
		Name:          strings.TrimSpace(meta.Name),
		Addresses:     meta.Addresses,
		Locations:     meta.Locations,
		NPINumbers:    meta.NPINumbers,
		LicenseNumber: meta.LicenseNumber,
		LicenseState:  meta.LicenseState,
		SchemaVersion: string(version),
		LastUpdatedOn: ParseDate(meta.LastUpdatedOn),
		SourceFile:    filepath.Base(sourceFile),
		SourceFormat:  string(format),
	}
	if doc.Name == "" {
		doc.Name = hospitalID
	}
	if meta.Affirmation != nil {
		doc.Affirmation = meta.Affirmation.Confirmed
		doc.AttesterName = meta.Affirmation.Attester
	}
	return doc
}

func appendUnique(dst []string, src []string) []string {
	for _, s := range src {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		seen := false
		for _, have := range dst {
			if have == s {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, s)
		}
	}
	return dst
}
