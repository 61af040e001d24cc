package slug

import (
	"strings"
	"unicode"
)

// Make turns free text into a URL-safe slug: lowercase, runs of anything
// non-alphanumeric collapsed into single dashes.
func Make(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	return strings.Trim(b.String(), "-")
}
