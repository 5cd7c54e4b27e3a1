package match

import (
	"strings"
	"unicode"
)

// fillerWords are dropped when they appear as standalone tokens. Qualifiers
// like "red" in "red apples" are meaningful and survive sanitization.
var fillerWords = map[string]struct{}{
	"a":      {},
	"an":     {},
	"the":    {},
	"some":   {},
	"few":    {},
	"little": {},
}

// Sanitize normalizes an item name for exact comparison and cache keying:
// lowercase, punctuation stripped, whitespace collapsed, filler words
// removed. It deliberately does not touch qualifiers, so "red apples" stays
// distinct from "apples".
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			// punctuation separates tokens rather than gluing them together
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, filler := fillerWords[tok]; filler {
			continue
		}
		kept = append(kept, tok)
	}

	return strings.Join(kept, " ")
}

// PairKey builds the order-independent cache key for a pair of sanitized
// names: lexicographic sort joined by a fixed separator, so compare(a,b) and
// compare(b,a) resolve to the same entry.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "||" + b
}
