package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gyeh/mrfingest/internal/model"
)

// parseJSON walks a standard schema file with a streaming decoder. Vendor
// shapes are dispatched to their adapter before the standard walk begins.
func parseJSON(path string, cb Callbacks, opts Options) (*Result, error) {
	f, cr, br, err := openSource(path)
	if err != nil {
		return nil, err
	}

	if sample, _ := br.Peek(vendorSampleSize); len(sample) > 0 {
		if ad := MatchVendor(sample, filepath.Base(path)); ad != nil {
			f.Close()
			return ad.Parse(path, cb, opts)
		}
	}
	defer f.Close()

	p := &jsonParser{
		dec:  json.NewDecoder(br),
		cr:   cr,
		cb:   cb,
		opts: opts,
		res:  &Result{Hospital: &model.RawHospital{}},
	}
	if err := p.walk(); err != nil {
		return nil, err
	}
	p.res.BytesRead = cr.n
	return p.res, nil
}

type jsonParser struct {
	dec       *json.Decoder
	cr        *countingReader
	cb        Callbacks
	opts      Options
	res       *Result
	processed int64
	metaSent  bool
}

func (p *jsonParser) walk() error {
	tok, err := p.dec.Token()
	if err != nil {
		return fmt.Errorf("read document start: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("document root is %v, want an object", tok)
	}

	meta := p.res.Hospital
	for p.dec.More() {
		tok, err := p.dec.Token()
		if err != nil {
			return fmt.Errorf("read object key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %T", tok)
		}

		switch strings.ToLower(key) {
		case "hospital_name":
			meta.Name, err = decodeString(p.dec)
		case "last_updated_on":
			meta.LastUpdatedOn, err = decodeString(p.dec)
		case "version":
			meta.Version, err = decodeString(p.dec)
		case "hospital_address":
			meta.Addresses, err = decodeStringList(p.dec)
		case "hospital_location", "location_name":
			// v2 spells this hospital_location, v3 location_name.
			var locs []string
			locs, err = decodeStringList(p.dec)
			meta.Locations = append(meta.Locations, locs...)
		case "npi_numbers", "npi_number":
			meta.NPINumbers, err = decodeStringList(p.dec)
		case "license_information":
			err = decodeLicense(p.dec, meta)
		case "license_number":
			meta.LicenseNumber, err = decodeString(p.dec)
		case "affirmation", "attestation":
			err = decodeAffirmation(p.dec, meta)
		case "standard_charge_information":
			err = p.streamCharges()
		case "modifier_information":
			err = p.streamModifiers()
		default:
			err = skipValue(p.dec)
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		if p.res.ReachedCap {
			return p.deliverMetadata()
		}
	}
	p.dec.Token() // closing brace

	// Files with no charge array still deliver their metadata.
	return p.deliverMetadata()
}

func (p *jsonParser) deliverMetadata() error {
	if p.metaSent {
		return nil
	}
	p.metaSent = true
	if p.cb.OnMetadata != nil {
		return p.cb.OnMetadata(p.res.Hospital)
	}
	return nil
}

func (p *jsonParser) streamCharges() error {
	if err := p.deliverMetadata(); err != nil {
		return err
	}
	return p.streamArray(func(raw json.RawMessage, idx int) error {
		var rec model.RawCharge
		if err := json.Unmarshal(raw, &rec); err != nil {
			pe := model.NewParseError(idx, previewDescription(raw), err)
			if p.opts.Strict {
				return pe
			}
			p.res.Errors = append(p.res.Errors, pe)
			return nil
		}
		rec.Description = sanitize(rec.Description)
		p.res.Charges++
		if p.cb.OnCharge != nil {
			return p.cb.OnCharge(&rec, idx)
		}
		return nil
	})
}

func (p *jsonParser) streamModifiers() error {
	if err := p.deliverMetadata(); err != nil {
		return err
	}
	return p.streamArray(func(raw json.RawMessage, idx int) error {
		var rec model.RawModifier
		if err := json.Unmarshal(raw, &rec); err != nil {
			pe := model.NewParseError(idx, previewDescription(raw), err)
			if p.opts.Strict {
				return pe
			}
			p.res.Errors = append(p.res.Errors, pe)
			return nil
		}
		p.res.Modifiers++
		if p.cb.OnModifier != nil {
			return p.cb.OnModifier(&rec, idx)
		}
		return nil
	})
}

// streamArray decodes array elements one RawMessage at a time. A decode
// failure here means the document itself is corrupt and is fatal; handle is
// responsible for containing element-level problems.
func (p *jsonParser) streamArray(handle func(raw json.RawMessage, idx int) error) error {
	tok, err := p.dec.Token()
	if err != nil {
		return fmt.Errorf("read array start: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("expected an array, got %v", tok)
	}

	idx := 0
	for p.dec.More() {
		var raw json.RawMessage
		if err := p.dec.Decode(&raw); err != nil {
			return fmt.Errorf("element %d: %w", idx, err)
		}
		if err := handle(raw, idx); err != nil {
			return err
		}
		idx++
		p.processed++
		if p.cb.OnProgress != nil && p.processed%p.opts.ProgressEvery == 0 {
			p.cb.OnProgress(Progress{
				Processed:      p.processed,
				EstimatedTotal: p.opts.EstimatedTotal,
				BytesRead:      p.cr.n,
			})
		}
		if p.opts.MaxItems > 0 && p.processed >= p.opts.MaxItems {
			p.res.ReachedCap = true
			return nil
		}
	}
	_, err = p.dec.Token() // closing bracket
	return err
}

// previewDescription extracts enough of a failed element to locate it in
// the source file.
func previewDescription(raw json.RawMessage) string {
	var peek struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &peek); err == nil && peek.Description != "" {
		return sanitize(peek.Description)
	}
	s := string(raw)
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}

func decodeString(dec *json.Decoder) (string, error) {
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch s := v.(type) {
	case string:
		return sanitize(s), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected a string, got %T", v)
	}
}

// decodeStringList accepts a list, a bare string, or a list of numbers
// (NPI numbers are published both quoted and unquoted).
func decodeStringList(dec *json.Decoder) ([]string, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '[' {
		var items []any
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		var out []string
		for _, it := range items {
			switch s := it.(type) {
			case string:
				if s = sanitize(s); s != "" {
					out = append(out, s)
				}
			case float64:
				out = append(out, strconv.FormatFloat(s, 'f', -1, 64))
			}
		}
		return out, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s = sanitize(s); s == "" {
		return nil, nil
	}
	return []string{s}, nil
}

func decodeLicense(dec *json.Decoder, meta *model.RawHospital) error {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '{' {
		var lic struct {
			LicenseNumber string `json:"license_number"`
			State         string `json:"state"`
		}
		if err := json.Unmarshal(raw, &lic); err != nil {
			return err
		}
		meta.LicenseNumber = strings.TrimSpace(lic.LicenseNumber)
		meta.LicenseState = strings.ToUpper(strings.TrimSpace(lic.State))
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	meta.LicenseNumber = strings.TrimSpace(s)
	return nil
}

// decodeAffirmation reads the affirmation/attestation block, which appears
// as an object, a bare confirmation string, or a bare boolean.
func decodeAffirmation(dec *json.Decoder, meta *model.RawHospital) error {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '{' {
		var a struct {
			Affirmation        string `json:"affirmation"`
			Attestation        string `json:"attestation"`
			ConfirmAffirmation bool   `json:"confirm_affirmation"`
			ConfirmAttestation bool   `json:"confirm_attestation"`
			AttesterName       string `json:"attester_name"`
		}
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
		text := a.Affirmation
		if text == "" {
			text = a.Attestation
		}
		meta.Affirmation = &model.RawAffirmation{
			Text:      sanitize(text),
			Confirmed: a.ConfirmAffirmation || a.ConfirmAttestation,
			Attester:  strings.TrimSpace(a.AttesterName),
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		meta.Affirmation = &model.RawAffirmation{Text: sanitize(s), Confirmed: true}
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		meta.Affirmation = &model.RawAffirmation{Confirmed: b}
		return nil
	}
	return fmt.Errorf("unrecognized affirmation value %.40s", string(raw))
}

func skipValue(dec *json.Decoder) error {
	var skip json.RawMessage
	return dec.Decode(&skip)
}
