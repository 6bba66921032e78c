// Package articlecode canonicalizes product article and variant codes.
//
// The canonical form is upper case with every separator (dot, slash, apostrophe, space) turned into a
// single dash. Codes stored before this form existed may still carry other separators, so matching
// against stored rows is done on Key, which keeps only letters and digits.
package articlecode

import (
	"strings"
	"unicode"
)

// Normalize returns the canonical form of code. Normalize(Normalize(x)) == Normalize(x).
func Normalize(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	pendingDash := false
	for _, r := range strings.TrimSpace(code) {
		if isSeparator(r) {
			pendingDash = b.Len() > 0
			continue
		}
		if pendingDash {
			b.WriteByte('-')
			pendingDash = false
		}
		b.WriteString(strings.ToUpper(string(r)))
	}
	return b.String()
}

// Key returns the comparison key used to match codes: the upper-cased letters and digits of code.
// It agrees with the vetrina_code_key SQL function used by the products table.
func Key(code string) string {
	var b strings.Builder
	for _, r := range code {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Valid reports whether code carries at least one letter or digit. Codes that normalize to nothing, or
// to punctuation only, cannot identify a product.
func Valid(code string) bool {
	return Key(code) != ""
}

// Equal reports whether a and b identify the same article.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}

func isSeparator(r rune) bool {
	switch r {
	case '-', '.', '/', '\'', ' ', '\t':
		return true
	}
	return false
}
