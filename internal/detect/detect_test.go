package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gyeh/mrfingest/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFile_JSONV3(t *testing.T) {
	path := writeFile(t, "st-marys_standardcharges.json", `{
  "hospital_name": "St. Mary's",
  "version": "3.0.0",
  "standard_charge_information": [
    {"description": "MRI brain"},
    {"description": "CT abdomen"}
  ]
}`)
	d, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if d.Format != model.FormatJSON || d.Version != model.SchemaV3 {
		t.Errorf("got %s/%s, want json/3.0", d.Format, d.Version)
	}
	if d.EstimatedRecords != 2 {
		t.Errorf("estimated records = %d, want 2", d.EstimatedRecords)
	}
}

func TestFile_JSONV2(t *testing.T) {
	path := writeFile(t, "county.json", `{"hospital_name": "County", "version": "2.0.0"}`)
	d, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if d.Version != model.SchemaV2 {
		t.Errorf("version = %s, want 2.2", d.Version)
	}
}

func TestFile_JSONVendor(t *testing.T) {
	path := writeFile(t, "valley.json", `{
  "Hospital_Name": "Valley Imaging",
  "Standard_Charge_Information": [{"Description": "CT abdomen"}]
}`)
	d, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if d.Version != model.SchemaVendor || d.Vendor != "titlecase" {
		t.Errorf("got %s/%s, want vendor/titlecase", d.Version, d.Vendor)
	}
}

func TestFile_CSVTall(t *testing.T) {
	path := writeFile(t, "general_standardcharges.csv",
		"hospital_name,last_updated_on,version,license_number|CA\n"+
			"General Hospital,2025-07-01,2.2.0,H-1234\n"+
			"description,code|1,code|1|type,setting,standard_charge|gross,payer_name,plan_name,standard_charge|negotiated_dollar\n"+
			"MRI brain,70551,CPT,outpatient,1200,Aetna,PPO,800\n")
	d, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if d.Format != model.FormatCSVTall {
		t.Errorf("format = %s, want csv-tall", d.Format)
	}
	if d.Version != model.SchemaV2 {
		t.Errorf("version = %s, want 2.2", d.Version)
	}
	if d.EstimatedRecords != 1 {
		t.Errorf("estimated records = %d, want 1", d.EstimatedRecords)
	}
}

func TestFile_CSVWide(t *testing.T) {
	path := writeFile(t, "wide.csv",
		"hospital_name,version\n"+
			"Wide Hospital,3.0.0\n"+
			"description,code|1,code|1|type,setting,standard_charge|gross,standard_charge|Aetna|PPO|negotiated_dollar,estimated_amount|Aetna|PPO\n"+
			"MRI brain,70551,CPT,outpatient,1200,800,790\n")
	d, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if d.Format != model.FormatCSVWide {
		t.Errorf("format = %s, want csv-wide", d.Format)
	}
}

func TestFile_UnknownExtension(t *testing.T) {
	path := writeFile(t, "notes.txt", "not a charge file")
	if _, err := File(path); err == nil {
		t.Fatal("expected error for unrecognized extension")
	}
}

func TestFile_Missing(t *testing.T) {
	if _, err := File("/nonexistent/file.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFile_CSVTooShort(t *testing.T) {
	path := writeFile(t, "stub.csv", "hospital_name\nGeneral\n")
	if _, err := File(path); err == nil {
		t.Fatal("expected error for a csv without header rows")
	}
}
