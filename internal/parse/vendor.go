package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gyeh/mrfingest/internal/model"
)

// An Adapter recognizes and parses one vendor's nonstandard layout behind
// the same callback contract as the standard parser. New hospital vendors
// are supported by registering another adapter, not by changing dispatch.
type Adapter struct {
	Name string
	// Match inspects a bounded prefix of the file plus its base name.
	Match func(sample []byte, filename string) bool
	Parse func(path string, cb Callbacks, opts Options) (*Result, error)
}

var vendorAdapters []Adapter

// RegisterVendor appends an adapter to the dispatch list; registration
// order is evaluation order.
func RegisterVendor(a Adapter) {
	vendorAdapters = append(vendorAdapters, a)
}

// MatchVendor returns the first adapter claiming the sample, or nil.
func MatchVendor(sample []byte, filename string) *Adapter {
	for i := range vendorAdapters {
		if vendorAdapters[i].Match(sample, filename) {
			return &vendorAdapters[i]
		}
	}
	return nil
}

func init() {
	RegisterVendor(Adapter{
		Name:  "titlecase",
		Match: matchTitlecase,
		Parse: parseTitlecase,
	})
}

// The titlecase vendor publishes Title_Case keys in place of the standard
// snake_case schema, one code pair per item, and a Drug_Units list holding
// several measurement variants.
func matchTitlecase(sample []byte, _ string) bool {
	return bytes.Contains(sample, []byte(`"Hospital_Name"`))
}

type titlecaseDrug struct {
	Amount model.FlexibleFloat `json:"Amount"`
	Unit   string              `json:"Unit"`
}

type titlecasePayer struct {
	Payer  string              `json:"Payer"`
	Plan   string              `json:"Plan"`
	Rate   model.FlexibleFloat `json:"Rate"`
	Method string              `json:"Method"`
}

type titlecaseItem struct {
	Description string              `json:"Description"`
	Code        string              `json:"Code"`
	CodeType    string              `json:"Code_Type"`
	Setting     string              `json:"Setting"`
	GrossCharge model.FlexibleFloat `json:"Gross_Charge"`
	CashPrice   model.FlexibleFloat `json:"Cash_Price"`
	Minimum     model.FlexibleFloat `json:"Minimum"`
	Maximum     model.FlexibleFloat `json:"Maximum"`
	DrugUnits   []titlecaseDrug     `json:"Drug_Units"`
	Payers      []titlecasePayer    `json:"Payers"`
}

// toRaw maps the vendor layout onto the standard record shape: single code
// pair, single scope, flat payer rates.
func (it *titlecaseItem) toRaw() *model.RawCharge {
	rec := &model.RawCharge{Description: sanitize(it.Description)}
	if code := sanitize(it.Code); code != "" {
		rec.Codes = []model.RawCode{{Code: code, Type: sanitize(it.CodeType)}}
	}
	setting := strings.ToLower(sanitize(it.Setting))
	if setting == "" {
		setting = "both"
	}
	scope := model.RawScope{
		Setting:        setting,
		GrossCharge:    it.GrossCharge,
		DiscountedCash: it.CashPrice,
		Minimum:        it.Minimum,
		Maximum:        it.Maximum,
	}
	for _, p := range it.Payers {
		name := sanitize(p.Payer)
		if name == "" {
			continue
		}
		scope.Payers = append(scope.Payers, model.RawPayer{
			PayerName:            name,
			PlanName:             sanitize(p.Plan),
			Methodology:          sanitize(p.Method),
			StandardChargeDollar: p.Rate,
		})
	}
	rec.Scopes = []model.RawScope{scope}
	for _, d := range it.DrugUnits {
		rec.Drugs = append(rec.Drugs, model.RawDrug{Unit: d.Amount, Type: sanitize(d.Unit)})
	}
	return rec
}

func parseTitlecase(path string, cb Callbacks, opts Options) (*Result, error) {
	f, cr, br, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := &jsonParser{
		dec:  json.NewDecoder(br),
		cr:   cr,
		cb:   cb,
		opts: opts,
		res:  &Result{Hospital: &model.RawHospital{}},
	}

	tok, err := p.dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read document start: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("document root is %v, want an object", tok)
	}

	meta := p.res.Hospital
	for p.dec.More() {
		tok, err := p.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read object key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %T", tok)
		}

		switch key {
		case "Hospital_Name":
			meta.Name, err = decodeString(p.dec)
		case "Hospital_Address":
			meta.Addresses, err = decodeStringList(p.dec)
		case "Last_Updated":
			meta.LastUpdatedOn, err = decodeString(p.dec)
		case "License_Number":
			meta.LicenseNumber, err = decodeString(p.dec)
		case "Standard_Charge_Information":
			err = p.streamTitlecaseCharges()
		default:
			err = skipValue(p.dec)
		}
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		if p.res.ReachedCap {
			break
		}
	}

	if err := p.deliverMetadata(); err != nil {
		return nil, err
	}
	p.res.BytesRead = cr.n
	return p.res, nil
}

func (p *jsonParser) streamTitlecaseCharges() error {
	if err := p.deliverMetadata(); err != nil {
		return err
	}
	return p.streamArray(func(raw json.RawMessage, idx int) error {
		var item titlecaseItem
		if err := json.Unmarshal(raw, &item); err != nil {
			pe := model.NewParseError(idx, previewDescription(raw), err)
			if p.opts.Strict {
				return pe
			}
			p.res.Errors = append(p.res.Errors, pe)
			return nil
		}
		p.res.Charges++
		if p.cb.OnCharge != nil {
			return p.cb.OnCharge(item.toRaw(), idx)
		}
		return nil
	})
}
