package shared

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims surrounding whitespace and applies NFC so visually equal
// names collide on the unique indexes.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// NormalizeEmail case-folds an address for storage and lookup.
func NormalizeEmail(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}
