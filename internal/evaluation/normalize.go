package evaluation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// cleanText trims, applies NFKC so visually-equal unicode variants compare
// equal, and collapses internal whitespace runs to single spaces.
func cleanText(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeBrandKey returns the case-insensitive grouping identity for a
// brand string: "Adidas", "ADIDAS" and "adidas " all map to one key.
func NormalizeBrandKey(brand string) string {
	return foldCaser.String(cleanText(brand))
}

// NormalizeBrandDisplay returns a human-readable form without consulting
// any brand dictionary. Short all-uppercase single tokens are kept verbatim
// (ASICS, NB); everything else gets soft per-word title casing.
func NormalizeBrandDisplay(brand string) string {
	b := cleanText(brand)
	if b == "" {
		return ""
	}
	if isUpper(b) && utf8.RuneCountInString(b) <= 8 && !strings.Contains(b, " ") {
		return b
	}
	words := strings.Split(b, " ")
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

// NormalizeModel cleans a model string without changing its casing.
func NormalizeModel(model string) string {
	return cleanText(model)
}

func titleWord(w string) string {
	if w == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(w)
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}

// isUpper reports whether s contains at least one cased rune and no
// lowercase ones.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}
