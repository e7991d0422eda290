package normalize

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
)

// ChargeKey computes the stable identity of a charge document within one
// hospital: a hex SHA-256 over the natural key fields joined with null
// separators. Drug unit/type participate so drug-variant documents of the
// same service stay distinct rows.
func ChargeKey(description, code, setting string, drugUnit *float64, drugType string) string {
	h := sha256.New()
	for _, part := range []string{
		strings.ToLower(strings.TrimSpace(description)),
		NormalizeCode(code),
		strings.ToLower(strings.TrimSpace(setting)),
		formatUnit(drugUnit),
		strings.ToLower(strings.TrimSpace(drugType)),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func formatUnit(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
