package normalize

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Suffixes hospitals and upstream fetchers append to disclosure filenames,
// longest first so compound variants are stripped whole.
var idSuffixes = []string{
	"_standard_charges",
	"-standard-charges",
	"_standardcharges",
	"-standardcharges",
	"standardcharges",
	"_charges",
	"-charges",
	"_mrf",
	"-mrf",
}

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// HospitalIDFromFilename derives the stable hospital identity from a source
// file name: strip the extension and a known charge-file suffix, lowercase,
// collapse non-alphanumeric runs to single hyphens, trim hyphens. The result
// is deterministic, so re-ingesting the same file updates rather than
// duplicates.
func HospitalIDFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(base)
	for _, suf := range idSuffixes {
		if strings.HasSuffix(base, suf) {
			base = strings.TrimSuffix(base, suf)
			break
		}
	}
	base = nonAlnumRun.ReplaceAllString(base, "-")
	return strings.Trim(base, "-")
}
