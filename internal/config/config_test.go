package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromFile_Valid(t *testing.T) {
	path := writeConfig(t, "batch_size: 200\nprogress_every: 1000\ncode_priority:\n  - CPT\n  - NDC\n")

	var c Config
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if c.BatchSize != 200 || c.ProgressEvery != 1000 {
		t.Errorf("tuning = %d/%d", c.BatchSize, c.ProgressEvery)
	}
	if len(c.CodePriority) != 2 || c.CodePriority[0] != "CPT" || c.CodePriority[1] != "NDC" {
		t.Errorf("code priority = %v", c.CodePriority)
	}
}

func TestLoadFromFile_UnknownCodeType(t *testing.T) {
	path := writeConfig(t, "code_priority:\n  - CPT\n  - BOGUS\n")

	var c Config
	if err := c.LoadFromFile(path); err == nil {
		t.Fatal("expected error for unknown code type")
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	var c Config
	if err := c.LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()

	if c.BatchSize != 500 || c.ProgressEvery != 5000 || c.LogFormat != "text" {
		t.Errorf("defaults = %+v", c)
	}
	if len(c.Extensions) != 2 || c.Extensions[0] != ".json" || c.Extensions[1] != ".csv" {
		t.Errorf("extensions = %v", c.Extensions)
	}
	if len(c.CodePriority) != 5 || c.CodePriority[0] != "CPT" {
		t.Errorf("code priority = %v", c.CodePriority)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	c := Config{BatchSize: 100, CodePriority: []string{"DRG"}}
	c.ApplyDefaults()

	if c.BatchSize != 100 {
		t.Errorf("batch size = %d", c.BatchSize)
	}
	if len(c.CodePriority) != 1 || c.CodePriority[0] != "DRG" {
		t.Errorf("code priority = %v", c.CodePriority)
	}
}

func TestValidate(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if err := c.Validate(); err == nil {
		t.Error("expected error for missing path")
	}

	c.Path = "/nonexistent/charges.json"
	if err := c.Validate(); err == nil {
		t.Error("expected error for inaccessible path")
	}

	c.Path = t.TempDir()
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	c.Extensions = []string{"json"}
	if err := c.Validate(); err == nil {
		t.Error("expected error for extension without a dot")
	}
}

func TestValidateWithDSN(t *testing.T) {
	c := Config{Path: t.TempDir()}
	c.ApplyDefaults()

	err := c.ValidateWithDSN()
	if err == nil || !strings.Contains(err.Error(), EnvDSN) {
		t.Fatalf("err = %v, want mention of %s", err, EnvDSN)
	}

	c.DSN = "postgresql://localhost/mrf"
	if err := c.ValidateWithDSN(); err != nil {
		t.Errorf("ValidateWithDSN: %v", err)
	}
}
