package normalize

import (
	"testing"

	"github.com/gyeh/mrfingest/internal/model"
)

func TestPrimaryCode_PriorityOrder(t *testing.T) {
	codes := []model.RawCode{
		{Code: "X100", Type: "LOCAL"},
		{Code: "99213", Type: "CPT"},
	}
	got, ok := PrimaryCode(codes, nil)
	if !ok {
		t.Fatal("expected a primary code")
	}
	if got.Code != "99213" || got.Type != "CPT" {
		t.Errorf("got %+v, want the CPT code", got)
	}
}

func TestPrimaryCode_FirstOccurrenceWins(t *testing.T) {
	codes := []model.RawCode{
		{Code: "99213", Type: "CPT"},
		{Code: "99214", Type: "CPT"},
	}
	got, _ := PrimaryCode(codes, nil)
	if got.Code != "99213" {
		t.Errorf("got %q, want the first CPT code", got.Code)
	}
}

func TestPrimaryCode_FallbackToFirstUsable(t *testing.T) {
	codes := []model.RawCode{
		{Code: "", Type: "CPT"},
		{Code: "ROOM-1", Type: "CDM"},
	}
	got, ok := PrimaryCode(codes, nil)
	if !ok || got.Code != "ROOM-1" {
		t.Errorf("got %+v, want fallback to the CDM code", got)
	}
}

func TestPrimaryCode_NoneUsable(t *testing.T) {
	if _, ok := PrimaryCode([]model.RawCode{{Type: "CPT"}}, nil); ok {
		t.Error("expected ok=false when every code is empty")
	}
	if _, ok := PrimaryCode(nil, nil); ok {
		t.Error("expected ok=false for an empty list")
	}
}

func TestPrimaryCode_TypeSpellings(t *testing.T) {
	codes := []model.RawCode{
		{Code: "470", Type: "ms_drg"},
		{Code: "0001A", Type: "hcpcs"},
	}
	got, _ := PrimaryCode(codes, nil)
	if got.Code != "0001A" {
		t.Errorf("got %q, want HCPCS selected before MS-DRG", got.Code)
	}
}

func TestCanonicalCodeType(t *testing.T) {
	cases := []struct{ in, want string }{
		{"cpt", "CPT"},
		{"ms_drg", "MS-DRG"},
		{"MS DRG", "MS-DRG"},
		{"apr-drg", "APR-DRG"},
		{"custom", "CUSTOM"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := CanonicalCodeType(tc.in); got != tc.want {
			t.Errorf("CanonicalCodeType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  ms  drg 001 "); got != "MS DRG 001" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeCode("0543"); got != "0543" {
		t.Errorf("leading zeros must survive, got %q", got)
	}
}
