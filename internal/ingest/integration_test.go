package ingest_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/mrfingest/internal/ingest"
	"github.com/gyeh/mrfingest/internal/model"
	"github.com/gyeh/mrfingest/internal/store"
)

const (
	testPort     = 15434
	testDB       = "mrftest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var (
	testDSN string
	pg      *embeddedpostgres.EmbeddedPostgres
)

func TestMain(m *testing.M) {
	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg = embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30 * time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}

	os.Exit(code)
}

// setupStore connects, drops the mrf schema for a clean slate, and re-applies
// migrations.
func setupStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, testDSN)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := pool.Exec(ctx, "DROP SCHEMA IF EXISTS mrf CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	st := store.NewWithPool(pool, zerolog.Nop())
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newRunner(st *store.Store, opts ingest.Options) *ingest.Runner {
	return ingest.New(st, zerolog.Nop(), opts)
}

// The three fixtures below describe the same hospital content in each source
// shape, so format equivalence can be asserted on (code, setting, gross).
const mercyV3 = `{
  "hospital_name": "Mercy General Hospital",
  "last_updated_on": "2025-07-01",
  "version": "3.0.0",
  "license_information": {"license_number": "H-5150", "state": "CA"},
  "standard_charge_information": [
    {
      "description": "MRI brain w/o contrast",
      "code_information": [{"code": "70551", "type": "CPT"}],
      "standard_charges": [
        {"setting": "outpatient", "gross_charge": 1200,
         "payers_information": [
           {"payer_name": "Aetna", "plan_name": "PPO",
            "standard_charge_dollar": 820, "methodology": "fee schedule"}
         ]},
        {"setting": "inpatient", "gross_charge": 1500}
      ]
    },
    {
      "description": "Chest X-ray",
      "code_information": [{"code": "71046", "type": "CPT"}],
      "standard_charges": [
        {"setting": "outpatient", "gross_charge": 250,
         "payers_information": [
           {"payer_name": "Cigna", "plan_name": "HMO",
            "standard_charge_dollar": 230, "methodology": "fee schedule"}
         ]}
      ]
    }
  ],
  "modifier_information": [
    {"code": "50", "description": "Bilateral procedure"}
  ]
}`

const mercyV2 = `{
  "hospital_name": "Mercy General Hospital",
  "last_updated_on": "07/01/2025",
  "version": "2.0.0",
  "hospital_address": "500 Mercy Way, Sacramento, CA 95823",
  "standard_charge_information": [
    {
      "description": "MRI brain w/o contrast",
      "code_information": [{"code": "70551", "type": "CPT"}],
      "standard_charges": [
        {"setting": "outpatient", "gross_charges": "1200.00",
         "payers_information": [{"payer_name": "Aetna", "estimated_amount": "810.00"}]},
        {"setting": "inpatient", "gross_charges": "1500.00"}
      ]
    },
    {
      "description": "Chest X-ray",
      "code_information": [{"code": "71046", "type": "CPT"}],
      "standard_charges": [
        {"setting": "outpatient", "gross_charges": "250.00"}
      ]
    }
  ],
  "modifier_information": [
    {"code": "50", "description": "Bilateral procedure"}
  ]
}`

const mercyCSV = "hospital_name,last_updated_on,version\n" +
	"Mercy General Hospital,2025-07-01,2.2.0\n" +
	"description,code|1,code|1|type,setting,standard_charge|gross,payer_name,plan_name,standard_charge|negotiated_dollar,standard_charge|methodology\n" +
	"MRI brain w/o contrast,70551,CPT,outpatient,1200,Aetna,PPO,820,fee schedule\n" +
	"MRI brain w/o contrast,70551,CPT,inpatient,1500,,,,\n" +
	"Chest X-ray,71046,CPT,outpatient,250,Cigna,HMO,230,fee schedule\n"

// chargeTuples projects a hospital's persisted charges onto the fields all
// source shapes share.
func chargeTuples(t *testing.T, st *store.Store, hospitalID string) []string {
	t.Helper()
	rows, err := st.Pool().Query(context.Background(),
		`SELECT coalesce(code, ''), setting, gross_charge
		 FROM mrf.charges WHERE hospital_id = $1 ORDER BY code, setting`, hospitalID)
	if err != nil {
		t.Fatalf("query charges: %v", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code, setting string
		var gross *float64
		if err := rows.Scan(&code, &setting, &gross); err != nil {
			t.Fatalf("scan: %v", err)
		}
		g := "null"
		if gross != nil {
			g = fmt.Sprintf("%.2f", *gross)
		}
		out = append(out, fmt.Sprintf("%s %s %s", code, setting, g))
	}
	return out
}

func countRows(t *testing.T, st *store.Store, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := st.Pool().QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count query: %v", err)
	}
	return n
}

func TestIntegration_IngestV3(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	path := writeFixture(t, "mercy-a_standardcharges.json", mercyV3)

	fr := newRunner(st, ingest.Options{}).RunFile(ctx, path)
	if fr.Status != model.StatusCompleted {
		t.Fatalf("status = %s, err = %v", fr.Status, fr.Err)
	}
	if fr.Charges.Inserted != 3 || fr.Charges.Updated != 0 || fr.Charges.Failed != 0 {
		t.Errorf("charge stats = %+v", fr.Charges)
	}
	if fr.Modifiers.Inserted != 1 {
		t.Errorf("modifier stats = %+v", fr.Modifiers)
	}
	if len(fr.Errors) != 0 {
		t.Errorf("errors = %v", fr.Errors)
	}

	t.Run("charge_rows", func(t *testing.T) {
		got := chargeTuples(t, st, "mercy-a")
		want := []string{
			"70551 inpatient 1500.00",
			"70551 outpatient 1200.00",
			"71046 outpatient 250.00",
		}
		if len(got) != len(want) {
			t.Fatalf("tuples = %v", got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("tuple[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("payer_charges_json", func(t *testing.T) {
		var payers int64
		err := st.Pool().QueryRow(ctx,
			`SELECT jsonb_array_length(payer_charges) FROM mrf.charges
			 WHERE hospital_id = 'mercy-a' AND code = '70551' AND setting = 'outpatient'`).Scan(&payers)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if payers != 1 {
			t.Errorf("embedded payers = %d", payers)
		}

		var payerName string
		err = st.Pool().QueryRow(ctx,
			`SELECT payer_charges->0->>'payerName' FROM mrf.charges
			 WHERE hospital_id = 'mercy-a' AND code = '70551' AND setting = 'outpatient'`).Scan(&payerName)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if payerName != "Aetna" {
			t.Errorf("payer name = %q", payerName)
		}
	})

	t.Run("hospital_row", func(t *testing.T) {
		var name, licenseState, schemaVersion string
		var chargeCount, modifierCount int64
		err := st.Pool().QueryRow(ctx,
			`SELECT name, coalesce(license_state, ''), coalesce(schema_version, ''),
			        charge_count, modifier_count
			 FROM mrf.hospitals WHERE hospital_id = 'mercy-a'`).
			Scan(&name, &licenseState, &schemaVersion, &chargeCount, &modifierCount)
		if err != nil {
			t.Fatalf("query hospital: %v", err)
		}
		if name != "Mercy General Hospital" || licenseState != "CA" {
			t.Errorf("hospital = %q license %q", name, licenseState)
		}
		if schemaVersion != "3.0" {
			t.Errorf("schema version = %q", schemaVersion)
		}
		if chargeCount != 3 || modifierCount != 1 {
			t.Errorf("counts = %d charges, %d modifiers", chargeCount, modifierCount)
		}
	})

	t.Run("modifier_row", func(t *testing.T) {
		var desc string
		err := st.Pool().QueryRow(ctx,
			`SELECT description FROM mrf.modifiers
			 WHERE hospital_id = 'mercy-a' AND code = '50'`).Scan(&desc)
		if err != nil {
			t.Fatalf("query modifier: %v", err)
		}
		if desc != "Bilateral procedure" {
			t.Errorf("modifier description = %q", desc)
		}
	})
}

func TestIntegration_Idempotence(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	path := writeFixture(t, "mercy-a_standardcharges.json", mercyV3)
	r := newRunner(st, ingest.Options{})

	first := r.RunFile(ctx, path)
	if first.Status != model.StatusCompleted || first.Charges.Inserted != 3 {
		t.Fatalf("first run = %+v, err = %v", first.Charges, first.Err)
	}

	second := r.RunFile(ctx, path)
	if second.Status != model.StatusCompleted {
		t.Fatalf("second run failed: %v", second.Err)
	}
	if second.Charges.Inserted != 0 || second.Charges.Updated != 3 {
		t.Errorf("second run charge stats = %+v, want pure updates", second.Charges)
	}
	if second.Modifiers.Updated != 1 {
		t.Errorf("second run modifier stats = %+v", second.Modifiers)
	}

	if n := countRows(t, st, "SELECT count(*) FROM mrf.charges"); n != 3 {
		t.Errorf("charges after re-ingest = %d", n)
	}
	if n := countRows(t, st, "SELECT count(*) FROM mrf.hospitals"); n != 1 {
		t.Errorf("hospitals after re-ingest = %d", n)
	}
}

func TestIntegration_FormatEquivalence(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	r := newRunner(st, ingest.Options{})

	files := map[string]string{
		"mercy-a_standardcharges.json": mercyV3,
		"mercy-b_standardcharges.json": mercyV2,
		"mercy-c_standardcharges.csv":  mercyCSV,
	}
	for name, content := range files {
		fr := r.RunFile(ctx, writeFixture(t, name, content))
		if fr.Status != model.StatusCompleted {
			t.Fatalf("%s: %v", name, fr.Err)
		}
	}

	a := chargeTuples(t, st, "mercy-a")
	b := chargeTuples(t, st, "mercy-b")
	c := chargeTuples(t, st, "mercy-c")
	if len(a) != 3 {
		t.Fatalf("v3 tuples = %v", a)
	}
	for i := range a {
		if a[i] != b[i] || a[i] != c[i] {
			t.Errorf("tuple[%d] diverges: v3 %q, v2 %q, csv %q", i, a[i], b[i], c[i])
		}
	}
}

func TestIntegration_SkipExisting(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	path := writeFixture(t, "mercy-a_standardcharges.json", mercyV3)

	if fr := newRunner(st, ingest.Options{}).RunFile(ctx, path); fr.Status != model.StatusCompleted {
		t.Fatalf("seed run failed: %v", fr.Err)
	}

	fr := newRunner(st, ingest.Options{SkipExisting: true}).RunFile(ctx, path)
	if fr.Status != model.StatusCompleted || !fr.Skipped {
		t.Fatalf("result = %+v", fr)
	}
	if fr.RecordsParsed != 0 || fr.Charges.Written() != 0 {
		t.Errorf("skipped file did work: %+v", fr)
	}
}

func TestIntegration_CleanReingest(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	seed := writeFixture(t, "mercy-a_standardcharges.json", mercyV3)
	if fr := newRunner(st, ingest.Options{}).RunFile(ctx, seed); fr.Status != model.StatusCompleted {
		t.Fatalf("seed run failed: %v", fr.Err)
	}

	// Same hospital, shrunk to a single charge and no modifiers. Without
	// clean mode the upsert would leave the stale rows behind.
	reduced := `{
  "hospital_name": "Mercy General Hospital",
  "version": "3.0.0",
  "standard_charge_information": [
    {
      "description": "Chest X-ray",
      "code_information": [{"code": "71046", "type": "CPT"}],
      "standard_charges": [{"setting": "outpatient", "gross_charge": 260}]
    }
  ]
}`
	path := writeFixture(t, "mercy-a_standardcharges.json", reduced)
	fr := newRunner(st, ingest.Options{Clean: true}).RunFile(ctx, path)
	if fr.Status != model.StatusCompleted {
		t.Fatalf("clean run failed: %v", fr.Err)
	}
	if fr.Charges.Inserted != 1 {
		t.Errorf("clean run stats = %+v, want a fresh insert", fr.Charges)
	}

	if n := countRows(t, st, "SELECT count(*) FROM mrf.charges WHERE hospital_id = 'mercy-a'"); n != 1 {
		t.Errorf("charges after clean re-ingest = %d", n)
	}
	if n := countRows(t, st, "SELECT count(*) FROM mrf.modifiers WHERE hospital_id = 'mercy-a'"); n != 0 {
		t.Errorf("modifiers after clean re-ingest = %d", n)
	}

	var gross float64
	err := st.Pool().QueryRow(ctx,
		"SELECT gross_charge FROM mrf.charges WHERE hospital_id = 'mercy-a'").Scan(&gross)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if gross != 260 {
		t.Errorf("gross = %v, want the re-ingested value", gross)
	}
}

func TestIntegration_MigrateIdempotent(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	// Second application must be a no-op.
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}

	exists, err := st.HospitalExists(ctx, "nobody")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("empty store reported a hospital")
	}
}

func TestIntegration_StatsAndExportStream(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	path := writeFixture(t, "mercy-a_standardcharges.json", mercyV3)
	if fr := newRunner(st, ingest.Options{}).RunFile(ctx, path); fr.Status != model.StatusCompleted {
		t.Fatalf("seed run failed: %v", fr.Err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Hospitals != 1 || stats.Charges != 3 || stats.Modifiers != 1 {
		t.Errorf("totals = %+v", stats)
	}
	if stats.PayerEntries != 2 {
		t.Errorf("payer entries = %d", stats.PayerEntries)
	}
	if stats.LastIngested == nil {
		t.Error("last ingested not set")
	}
	if len(stats.CodeTypes) != 1 || stats.CodeTypes[0].CodeType != "CPT" || stats.CodeTypes[0].Charges != 3 {
		t.Errorf("code types = %+v", stats.CodeTypes)
	}
	if len(stats.TopHospitals) != 1 || stats.TopHospitals[0].HospitalID != "mercy-a" {
		t.Errorf("hospitals = %+v", stats.TopHospitals)
	}

	var rows []model.ChargeExportRow
	n, err := st.StreamExportRows(ctx, "mercy-a", func(row model.ChargeExportRow) error {
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if n != 3 || len(rows) != 3 {
		t.Fatalf("streamed %d rows", n)
	}
	for _, row := range rows {
		if row.HospitalID != "mercy-a" || row.ChargeKey == "" || row.Setting == "" {
			t.Errorf("row = %+v", row)
		}
		if row.PayerChargesJSON == "" {
			t.Error("payer charges json column empty")
		}
	}

	if n, err := st.StreamExportRows(ctx, "someone-else", func(model.ChargeExportRow) error { return nil }); err != nil || n != 0 {
		t.Errorf("filtered stream = %d rows, err %v", n, err)
	}
}
