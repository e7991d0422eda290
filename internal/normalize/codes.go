package normalize

import (
	"regexp"
	"strings"

	"github.com/gyeh/mrfingest/internal/model"
)

// DefaultCodePriority is the order in which code types are preferred when
// selecting a record's primary billing code.
var DefaultCodePriority = []string{"CPT", "HCPCS", "MS-DRG", "DRG", "APC"}

// KnownCodeTypes lists every code-type label accepted in configuration.
var KnownCodeTypes = []string{
	"CPT", "HCPCS", "MS-DRG", "DRG", "APC", "NDC", "RC", "ICD",
	"CDM", "LOCAL", "EAPG", "HIPPS", "CDT", "APR-DRG",
}

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)
var innerSpace = regexp.MustCompile(`\s+`)

// NormalizeCodeType canonicalizes a code-type label for comparison: trim,
// uppercase, strip separators ("ms-drg", "MS_DRG", "MS DRG" → "MSDRG").
func NormalizeCodeType(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return nonAlphanumeric.ReplaceAllString(s, "")
}

// NormalizeCode trims and uppercases a billing code, collapsing interior
// whitespace. The published characters are otherwise preserved since dots
// and hyphens are significant in several code systems.
func NormalizeCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return innerSpace.ReplaceAllString(s, " ")
}

// CanonicalCodeType maps a code-type label onto its canonical spelling when
// the system is recognized ("ms_drg" → "MS-DRG") and uppercases it otherwise.
func CanonicalCodeType(s string) string {
	want := NormalizeCodeType(s)
	if want == "" {
		return ""
	}
	for _, k := range KnownCodeTypes {
		if NormalizeCodeType(k) == want {
			return k
		}
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// KnownCodeType reports whether the label names a recognized code system.
func KnownCodeType(s string) bool {
	want := NormalizeCodeType(s)
	for _, k := range KnownCodeTypes {
		if NormalizeCodeType(k) == want {
			return true
		}
	}
	return false
}

// PrimaryCode selects the preferred (code, type) pair from a record's code
// list: the first pair whose type matches the priority order, scanning
// priorities in order and taking the first occurrence on ties. When no type
// matches, the first pair with a non-empty code wins. ok is false when the
// list has no usable code at all.
func PrimaryCode(codes []model.RawCode, priority []string) (model.RawCode, bool) {
	if len(priority) == 0 {
		priority = DefaultCodePriority
	}
	for _, want := range priority {
		target := NormalizeCodeType(want)
		for _, c := range codes {
			if NormalizeCodeType(c.Type) == target && strings.TrimSpace(c.Code) != "" {
				return c, true
			}
		}
	}
	for _, c := range codes {
		if strings.TrimSpace(c.Code) != "" {
			return c, true
		}
	}
	return model.RawCode{}, false
}
