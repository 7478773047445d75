package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeUsername maps a username to its storage key: diacritics stripped
// (NFKD then drop non-spacing marks), case-folded, upper-cased, runs of
// whitespace collapsed to one space and trimmed.
//
// " Ana  Pérez ", "ANA PEREZ" and "ana pérez" all map to "ANA PEREZ".
// The function is idempotent.
func NormalizeUsername(s string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))), s)
	if err == nil {
		s = stripped
	}
	s = strings.ToUpper(cases.Fold().String(s))
	return strings.Join(strings.Fields(s), " ")
}
