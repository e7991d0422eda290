// mkfixture synthesizes deterministic standard-charges sample files in every
// supported shape: CMS v3 JSON, CMS v2 JSON, a vendor title-case JSON export,
// and tall and wide CSV. Handy for local testing and benchmarks.
// Usage: go run ./cmd/mkfixture --out testdata/generated --records 50 --seed 1
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
)

type procedure struct {
	description string
	code        string
	codeType    string
	drug        bool
}

var procedures = []procedure{
	{"MRI brain without contrast", "70551", "CPT", false},
	{"CT abdomen and pelvis with contrast", "74178", "CPT", false},
	{"Chest X-ray, 2 views", "71046", "CPT", false},
	{"Comprehensive metabolic panel", "80053", "CPT", false},
	{"Heparin sodium injection, 1000 units", "J1644", "HCPCS", true},
	{"Infliximab injection, 10 mg", "J1745", "HCPCS", true},
	{"Emergency department visit, high severity", "99285", "CPT", false},
	{"Cesarean section without complications", "788", "MS-DRG", false},
	{"Major joint replacement of lower extremity", "470", "MS-DRG", false},
	{"Observation room, per hour", "OBS100", "CDM", false},
}

var payerNames = []string{"Aetna", "Cigna", "United Healthcare", "Blue Cross Blue Shield", "Humana", "Medicaid"}

var planNames = []string{"PPO", "HMO", "EPO", "Medicare Advantage"}

var methodologies = []string{"fee schedule", "case rate", "percent of total billed charges", "per diem"}

type gen struct {
	rnd     *rand.Rand
	records int
}

func main() {
	out := flag.String("out", "testdata/generated", "output directory")
	records := flag.Int("records", 50, "records per file")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkfixture: %v\n", err)
		os.Exit(1)
	}

	g := &gen{rnd: rand.New(rand.NewSource(*seed)), records: *records}
	files := []struct {
		name  string
		write func(string) error
	}{
		{"111111111_st-marys-medical-center_standardcharges.json", g.writeV3},
		{"222222222_mercy-general-hospital_standardcharges.json", g.writeV2},
		{"333333333_lakeview-regional_standardcharges.json", g.writeVendor},
		{"444444444_county-memorial_standardcharges.csv", g.writeTallCSV},
		{"555555555_riverside-community_standardcharges.csv", g.writeWideCSV},
	}
	for _, f := range files {
		path := filepath.Join(*out, f.name)
		if err := f.write(path); err != nil {
			fmt.Fprintf(os.Stderr, "mkfixture: %s: %v\n", f.name, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s (%d records)\n", path, *records)
	}
}

// price returns a random amount in [lo, hi) rounded to cents.
func (g *gen) price(lo, hi float64) float64 {
	return math.Round((lo+g.rnd.Float64()*(hi-lo))*100) / 100
}

// proc cycles through the catalog, suffixing descriptions past the first pass
// so every record stays unique within a file.
func (g *gen) proc(i int) procedure {
	p := procedures[i%len(procedures)]
	if i >= len(procedures) {
		p.description = fmt.Sprintf("%s, level %d", p.description, i/len(procedures)+1)
	}
	return p
}

func (g *gen) payer(i int) (name, plan, method string) {
	return payerNames[i%len(payerNames)],
		planNames[g.rnd.Intn(len(planNames))],
		methodologies[g.rnd.Intn(len(methodologies))]
}

func fptr(v float64) *float64 { return &v }

func cents(v float64) float64 { return math.Round(v*100) / 100 }

func fmtAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

type jsonCode struct {
	Code string `json:"code"`
	Type string `json:"type"`
}

type jsonDrug struct {
	Unit float64 `json:"unit"`
	Type string  `json:"type"`
}

type jsonPayer struct {
	PayerName   string   `json:"payer_name"`
	PlanName    string   `json:"plan_name,omitempty"`
	Methodology string   `json:"methodology,omitempty"`
	Dollar      *float64 `json:"standard_charge_dollar,omitempty"`
	Percentage  *float64 `json:"standard_charge_percentage,omitempty"`
	Algorithm   string   `json:"standard_charge_algorithm,omitempty"`
	Estimated   *float64 `json:"estimated_amount,omitempty"`
	Median      *float64 `json:"median_amount,omitempty"`
	P10         *float64 `json:"percentile_10th,omitempty"`
	P90         *float64 `json:"percentile_90th,omitempty"`
	Count       string   `json:"count,omitempty"`
}

// countBuckets are the allowed-amount count ranges v3 files disclose
// alongside percentile statistics.
var countBuckets = []string{"1-10", "11-50", "51-100", "100+"}

type jsonScope struct {
	Setting        string      `json:"setting"`
	GrossCharge    *float64    `json:"gross_charge,omitempty"`
	GrossCharges   *float64    `json:"gross_charges,omitempty"`
	DiscountedCash *float64    `json:"discounted_cash,omitempty"`
	Minimum        *float64    `json:"minimum,omitempty"`
	Maximum        *float64    `json:"maximum,omitempty"`
	Payers         []jsonPayer `json:"payers_information,omitempty"`
}

type jsonCharge struct {
	Description string      `json:"description"`
	Codes       []jsonCode  `json:"code_information"`
	Drug        *jsonDrug   `json:"drug_information,omitempty"`
	Scopes      []jsonScope `json:"standard_charges"`
}

type jsonModifierPayer struct {
	PayerName   string `json:"payer_name"`
	PlanName    string `json:"plan_name,omitempty"`
	Description string `json:"description,omitempty"`
}

type jsonModifier struct {
	Code        string              `json:"code"`
	Description string              `json:"description"`
	Payers      []jsonModifierPayer `json:"modifier_payer_information,omitempty"`
}

type jsonLicense struct {
	Number string `json:"license_number"`
	State  string `json:"state"`
}

type jsonAffirmation struct {
	Affirmation string `json:"affirmation"`
	Confirm     bool   `json:"confirm_affirmation"`
}

type v3Doc struct {
	HospitalName    string          `json:"hospital_name"`
	LastUpdatedOn   string          `json:"last_updated_on"`
	Version         string          `json:"version"`
	LocationName    []string        `json:"location_name"`
	HospitalAddress []string        `json:"hospital_address"`
	NPINumbers      []string        `json:"npi_numbers"`
	License         jsonLicense     `json:"license_information"`
	Affirmation     jsonAffirmation `json:"affirmation"`
	Charges         []jsonCharge    `json:"standard_charge_information"`
	Modifiers       []jsonModifier  `json:"modifier_information,omitempty"`
}

const affirmationText = "To the best of its knowledge and belief, the hospital has included all applicable standard charge information in accordance with the requirements of 45 CFR 180.50."

// scopes builds the settings block for one catalog entry. v2 keeps the
// gross_charges spelling and reports estimated amounts instead of negotiated
// dollars.
func (g *gen) scopes(p procedure, v2 bool) []jsonScope {
	settings := []string{"outpatient"}
	if p.codeType == "MS-DRG" {
		settings = []string{"inpatient"}
	} else if g.rnd.Intn(3) == 0 {
		settings = append(settings, "inpatient")
	}

	out := make([]jsonScope, 0, len(settings))
	for _, setting := range settings {
		gross := g.price(80, 9000)
		sc := jsonScope{
			Setting:        setting,
			DiscountedCash: fptr(cents(gross * 0.6)),
		}
		if v2 {
			sc.GrossCharges = fptr(gross)
		} else {
			sc.GrossCharge = fptr(gross)
		}

		nPayers := 1 + g.rnd.Intn(3)
		lo, hi := gross, gross*0.3
		for i := 0; i < nPayers; i++ {
			name, plan, method := g.payer(i)
			jp := jsonPayer{PayerName: name, PlanName: plan, Methodology: method}
			rate := g.price(gross*0.3, gross*0.9)
			switch {
			case v2:
				jp.Estimated = fptr(rate)
			case i == 0 && g.rnd.Intn(5) == 0:
				pct := g.price(40, 80)
				jp.Percentage = fptr(pct)
				jp.Algorithm = "percent of gross charges"
				jp.Estimated = fptr(cents(gross * pct / 100))
			default:
				jp.Dollar = fptr(rate)
				if g.rnd.Intn(2) == 0 {
					jp.Median = fptr(rate)
					jp.P10 = fptr(cents(rate * 0.85))
					jp.P90 = fptr(cents(rate * 1.15))
					jp.Count = countBuckets[g.rnd.Intn(len(countBuckets))]
				}
			}
			if rate < lo {
				lo = rate
			}
			if rate > hi {
				hi = rate
			}
			sc.Payers = append(sc.Payers, jp)
		}
		sc.Minimum = fptr(lo)
		sc.Maximum = fptr(hi)
		out = append(out, sc)
	}
	return out
}

func (g *gen) charges(v2 bool) []jsonCharge {
	out := make([]jsonCharge, 0, g.records)
	for i := 0; i < g.records; i++ {
		p := g.proc(i)
		c := jsonCharge{
			Description: p.description,
			Codes:       []jsonCode{{Code: p.code, Type: p.codeType}},
			Scopes:      g.scopes(p, v2),
		}
		if p.drug {
			c.Drug = &jsonDrug{Unit: float64(1 + g.rnd.Intn(10)), Type: "ML"}
		}
		out = append(out, c)
	}
	return out
}

func (g *gen) modifiers() []jsonModifier {
	return []jsonModifier{
		{
			Code:        "50",
			Description: "Bilateral procedure",
			Payers: []jsonModifierPayer{
				{PayerName: payerNames[0], PlanName: planNames[0], Description: "150% of the unilateral rate"},
			},
		},
		{Code: "26", Description: "Professional component"},
	}
}

func writeJSON(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (g *gen) writeV3(path string) error {
	doc := v3Doc{
		HospitalName:    "St. Mary's Medical Center",
		LastUpdatedOn:   "2025-07-01",
		Version:         "3.0.0",
		LocationName:    []string{"St. Mary's Medical Center"},
		HospitalAddress: []string{"450 Stanyan St, San Francisco, CA 94117"},
		NPINumbers:      []string{"1111111111"},
		License:         jsonLicense{Number: "CA-550001", State: "CA"},
		Affirmation:     jsonAffirmation{Affirmation: affirmationText, Confirm: true},
		Charges:         g.charges(false),
		Modifiers:       g.modifiers(),
	}
	return writeJSON(path, doc)
}

type v2Doc struct {
	HospitalName    string       `json:"hospital_name"`
	LastUpdatedOn   string       `json:"last_updated_on"`
	Version         string       `json:"version"`
	HospitalAddress string       `json:"hospital_address"`
	LicenseNumber   string       `json:"license_number"`
	Attestation     bool         `json:"attestation"`
	Charges         []jsonCharge `json:"standard_charge_information"`
}

func (g *gen) writeV2(path string) error {
	doc := v2Doc{
		HospitalName:    "Mercy General Hospital",
		LastUpdatedOn:   "2024-12-15",
		Version:         "2.2.0",
		HospitalAddress: "4001 J St, Sacramento, CA 95819",
		LicenseNumber:   "CA-550002",
		Attestation:     true,
		Charges:         g.charges(true),
	}
	return writeJSON(path, doc)
}

type vendorPayer struct {
	Payer  string  `json:"Payer"`
	Plan   string  `json:"Plan"`
	Rate   float64 `json:"Rate"`
	Method string  `json:"Method"`
}

type vendorDrugUnit struct {
	Amount float64 `json:"Amount"`
	Unit   string  `json:"Unit"`
}

type vendorItem struct {
	Description string           `json:"Description"`
	Code        string           `json:"Code"`
	CodeType    string           `json:"Code_Type"`
	Setting     string           `json:"Setting"`
	GrossCharge float64          `json:"Gross_Charge"`
	CashPrice   *float64         `json:"Cash_Price,omitempty"`
	Minimum     *float64         `json:"Minimum,omitempty"`
	Maximum     *float64         `json:"Maximum,omitempty"`
	DrugUnits   []vendorDrugUnit `json:"Drug_Units,omitempty"`
	Payers      []vendorPayer    `json:"Payers,omitempty"`
}

type vendorDoc struct {
	HospitalName    string       `json:"Hospital_Name"`
	HospitalAddress string       `json:"Hospital_Address"`
	LastUpdated     string       `json:"Last_Updated"`
	LicenseNumber   string       `json:"License_Number"`
	Items           []vendorItem `json:"Standard_Charge_Information"`
}

func (g *gen) writeVendor(path string) error {
	items := make([]vendorItem, 0, g.records)
	for i := 0; i < g.records; i++ {
		p := g.proc(i)
		gross := g.price(80, 9000)
		setting := "outpatient"
		if p.codeType == "MS-DRG" {
			setting = "inpatient"
		}
		item := vendorItem{
			Description: p.description,
			Code:        p.code,
			CodeType:    p.codeType,
			Setting:     setting,
			GrossCharge: gross,
			CashPrice:   fptr(cents(gross * 0.55)),
		}
		if p.drug {
			item.DrugUnits = []vendorDrugUnit{{Amount: float64(1 + g.rnd.Intn(10)), Unit: "ML"}}
		}
		nPayers := 1 + g.rnd.Intn(3)
		lo, hi := gross, gross*0.3
		for j := 0; j < nPayers; j++ {
			name, plan, method := g.payer(j)
			rate := g.price(gross*0.3, gross*0.9)
			if rate < lo {
				lo = rate
			}
			if rate > hi {
				hi = rate
			}
			item.Payers = append(item.Payers, vendorPayer{Payer: name, Plan: plan, Rate: rate, Method: method})
		}
		item.Minimum = fptr(lo)
		item.Maximum = fptr(hi)
		items = append(items, item)
	}

	doc := vendorDoc{
		HospitalName:    "Lakeview Regional",
		HospitalAddress: "95 Shoreline Dr, Chicago, IL 60601",
		LastUpdated:     "2025-03-31",
		LicenseNumber:   "IL-0042",
		Items:           items,
	}
	return writeJSON(path, doc)
}

func (g *gen) writeTallCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	rows := [][]string{
		{"hospital_name", "last_updated_on", "version", "hospital_location", "hospital_address", "license_number | MD", affirmationText},
		{"County Memorial", "2025-05-20", "3.0.0", "County Memorial", "12 Elm St, Annapolis, MD 21401", "MD-7731", "true"},
		{
			"description", "code | 1", "code | 1 | type", "setting",
			"drug_unit_of_measurement", "drug_type_of_measurement",
			"standard_charge | gross", "standard_charge | discounted_cash",
			"standard_charge | min", "standard_charge | max",
			"payer_name", "plan_name", "standard_charge | negotiated_dollar",
			"standard_charge | negotiated_percentage", "standard_charge | methodology",
			"estimated_amount", "additional_generic_notes",
		},
	}

	for i := 0; i < g.records; i++ {
		p := g.proc(i)
		gross := g.price(80, 9000)
		cash := cents(gross * 0.6)
		setting := "outpatient"
		if p.codeType == "MS-DRG" {
			setting = "inpatient"
		}
		drugUnit, drugType := "", ""
		if p.drug {
			drugUnit, drugType = strconv.Itoa(1+g.rnd.Intn(10)), "ML"
		}

		nPayers := 1 + g.rnd.Intn(3)
		rates := make([]float64, nPayers)
		lo, hi := gross, gross*0.3
		for j := range rates {
			rates[j] = g.price(gross*0.3, gross*0.9)
			if rates[j] < lo {
				lo = rates[j]
			}
			if rates[j] > hi {
				hi = rates[j]
			}
		}
		for j, rate := range rates {
			name, plan, method := g.payer(j)
			rows = append(rows, []string{
				p.description, p.code, p.codeType, setting,
				drugUnit, drugType,
				fmtAmount(gross), fmtAmount(cash),
				fmtAmount(lo), fmtAmount(hi),
				name, plan, fmtAmount(rate),
				"", method,
				fmtAmount(rate), "",
			})
		}
	}

	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// wideFamilies lists the payer|plan column families the wide CSV emits.
// Spaces in payer names become underscores in the header, matching how most
// hospitals publish them.
var wideFamilies = []struct{ payer, plan string }{
	{"Aetna", "PPO"},
	{"United_Healthcare", "HMO"},
	{"Blue_Cross_Blue_Shield", "PPO"},
}

func (g *gen) writeWideCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	header := []string{
		"description", "code | 1", "code | 1 | type", "setting",
		"standard_charge | gross", "standard_charge | discounted_cash",
		"standard_charge | min", "standard_charge | max",
	}
	for _, fam := range wideFamilies {
		header = append(header,
			fmt.Sprintf("standard_charge | %s | %s | negotiated_dollar", fam.payer, fam.plan),
			fmt.Sprintf("standard_charge | %s | %s | methodology", fam.payer, fam.plan),
			fmt.Sprintf("estimated_amount | %s | %s", fam.payer, fam.plan),
		)
	}

	rows := [][]string{
		{"hospital_name", "last_updated_on", "version"},
		{"Riverside Community", "2025-06-30", "3.0.0"},
		header,
	}

	for i := 0; i < g.records; i++ {
		p := g.proc(i)
		gross := g.price(80, 9000)
		setting := "outpatient"
		if p.codeType == "MS-DRG" {
			setting = "inpatient"
		}

		lo, hi := gross, gross*0.3
		cells := make([]string, 0, len(wideFamilies)*3)
		for range wideFamilies {
			if g.rnd.Intn(4) == 0 {
				cells = append(cells, "", "", "")
				continue
			}
			rate := g.price(gross*0.3, gross*0.9)
			if rate < lo {
				lo = rate
			}
			if rate > hi {
				hi = rate
			}
			method := methodologies[g.rnd.Intn(len(methodologies))]
			cells = append(cells, fmtAmount(rate), method, fmtAmount(rate))
		}

		row := []string{
			p.description, p.code, p.codeType, setting,
			fmtAmount(gross), fmtAmount(cents(gross * 0.6)),
			fmtAmount(lo), fmtAmount(hi),
		}
		row = append(row, cells...)
		rows = append(rows, row)
	}

	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
