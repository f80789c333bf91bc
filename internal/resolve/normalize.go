package resolve

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize flattens a human-typed or decorated name for comparison:
// compatibility decomposition (so 𝘽𝙤𝙗 becomes Bob), diacritic stripping,
// removal of everything but ASCII letters, digits and spaces, lowercasing.
// This defeats stylized-font spoofing of community and channel names.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	decomposed := norm.NFKD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue // combining diacritical mark
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// isNumeric reports whether s is a non-empty string of ASCII digits,
// i.e. shaped like a platform snowflake ID.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
