package pipeline

import (
	"strings"
	"unicode"
)

// Slugify converts a name to its canonical slug: lowercase, punctuation
// stripped, whitespace runs collapsed to single hyphens. Two names that
// differ only in case or punctuation produce the same slug.
func Slugify(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))

	pendingSep := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteRune('-')
			}
			pendingSep = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSep = true
		}
		// punctuation is dropped outright, so "Don't" and "Dont" agree
	}

	return b.String()
}
