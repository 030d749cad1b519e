package utils

import (
	"strings"
	"unicode"
)

// Slugify converts a story title to a filesystem- and header-safe form:
// lowercase, letters and digits only, runs of everything else collapsed
// into single underscores.
func Slugify(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))

	prevSep := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevSep = false
			continue
		}
		// everything else becomes a separator
		if !prevSep {
			b.WriteRune('_')
			prevSep = true
		}
	}
	return strings.Trim(b.String(), "_")
}
