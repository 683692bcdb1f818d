package normalize

import (
	"strings"
	"unicode"
)

// Name canonicalizes a display name into the join key used for every
// cross-source identity match: lowercase, keep only letters and digits.
// Two artists whose names normalize to the same key are treated as the same
// artist; collision handling lives with the merger, not here.
func Name(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
