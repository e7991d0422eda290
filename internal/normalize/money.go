package normalize

import (
	"strconv"
	"strings"
)

// Placeholder cell values hospitals use for "no charge disclosed".
var amountPlaceholders = map[string]bool{
	"":               true,
	"-":              true,
	"n/a":            true,
	"na":             true,
	"null":           true,
	"not applicable": true,
}

// ParseAmount parses a money or numeric cell as published in disclosure
// files: optional "$", thousands separators, surrounding whitespace.
// Returns nil for empty cells, placeholders, and unparsable text.
func ParseAmount(s string) *float64 {
	s = strings.TrimSpace(s)
	if amountPlaceholders[strings.ToLower(s)] {
		return nil
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParsePercent parses a percentage cell, tolerating a trailing "%".
func ParsePercent(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	return ParseAmount(s)
}
