package model

import (
	"encoding/json"
	"testing"
)

func TestFlexibleFloat_Unmarshal(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    float64
		valid   bool
		wantErr bool
	}{
		{name: "number", in: `1234.5`, want: 1234.5, valid: true},
		{name: "integer", in: `90`, want: 90, valid: true},
		{name: "plain_string", in: `"42.75"`, want: 42.75, valid: true},
		{name: "thousands_separators", in: `"24,945.00"`, want: 24945, valid: true},
		{name: "dollar_sign", in: `"$1,200"`, want: 1200, valid: true},
		{name: "empty_string", in: `""`, valid: false},
		{name: "null", in: `null`, valid: false},
		{name: "na_placeholder", in: `"N/A"`, valid: false},
		{name: "dash_placeholder", in: `"-"`, valid: false},
		{name: "garbage", in: `"priced on request"`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var f FlexibleFloat
			err := json.Unmarshal([]byte(tc.in), &f)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal %s: %v", tc.in, err)
			}
			if f.Valid != tc.valid {
				t.Fatalf("valid: got %v, want %v", f.Valid, tc.valid)
			}
			if tc.valid && f.Value != tc.want {
				t.Errorf("value: got %v, want %v", f.Value, tc.want)
			}
			if !tc.valid && f.Float() != nil {
				t.Errorf("Float(): got %v, want nil", *f.Float())
			}
		})
	}
}

func TestFlexibleFloat_InStruct(t *testing.T) {
	var scope RawScope
	in := `{"setting":"outpatient","gross_charge":"2,500.50","minimum":100,"discounted_cash":""}`
	if err := json.Unmarshal([]byte(in), &scope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if g := scope.Gross(); g == nil || *g != 2500.50 {
		t.Errorf("gross: got %v, want 2500.50", g)
	}
	if m := scope.Minimum.Float(); m == nil || *m != 100 {
		t.Errorf("minimum: got %v, want 100", m)
	}
	if scope.DiscountedCash.Valid {
		t.Error("discounted_cash should be invalid for empty string")
	}
}

func TestRawScope_GrossSpellings(t *testing.T) {
	var v2 RawScope
	if err := json.Unmarshal([]byte(`{"gross_charges":"150.00"}`), &v2); err != nil {
		t.Fatalf("unmarshal v2: %v", err)
	}
	if g := v2.Gross(); g == nil || *g != 150 {
		t.Errorf("v2 gross: got %v, want 150", g)
	}

	var v3 RawScope
	if err := json.Unmarshal([]byte(`{"gross_charge":175.25}`), &v3); err != nil {
		t.Fatalf("unmarshal v3: %v", err)
	}
	if g := v3.Gross(); g == nil || *g != 175.25 {
		t.Errorf("v3 gross: got %v, want 175.25", g)
	}
}

func TestSchemaVersionFromString(t *testing.T) {
	cases := map[string]SchemaVersion{
		"2.2.0":   SchemaV2,
		"2.0.0":   SchemaV2,
		"v2.2":    SchemaV2,
		"3.0.0":   SchemaV3,
		"3.1":     SchemaV3,
		" 3.0 ":   SchemaV3,
		"":        SchemaUnknown,
		"CDM-1.0": SchemaUnknown,
	}
	for in, want := range cases {
		if got := SchemaVersionFromString(in); got != want {
			t.Errorf("SchemaVersionFromString(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestDrugVariants(t *testing.T) {
	c := RawCharge{}
	if got := c.DrugVariants(); got != nil {
		t.Errorf("no drug info: got %v, want nil", got)
	}

	c.DrugInformation = &RawDrug{Unit: FlexibleFloat{Value: 5, Valid: true}, Type: "ML"}
	if got := c.DrugVariants(); len(got) != 1 || got[0].Type != "ML" {
		t.Errorf("single drug info: got %v", got)
	}

	c.Drugs = []RawDrug{{Type: "ML"}, {Type: "GR"}}
	if got := c.DrugVariants(); len(got) != 2 {
		t.Errorf("vendor drug list should win: got %d variants", len(got))
	}
}
