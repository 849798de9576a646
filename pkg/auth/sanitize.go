package auth

import (
	"strings"
	"unicode"
)

// maxLabelLength caps client-supplied device labels.
const maxLabelLength = 64

// SanitizeLabel normalizes a client-supplied device label. Labels come
// back out in session listings, so control characters are dropped,
// surrounding whitespace is trimmed, and overly long labels are cut.
func SanitizeLabel(label string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, label)
	cleaned = strings.TrimSpace(cleaned)

	if runes := []rune(cleaned); len(runes) > maxLabelLength {
		cleaned = string(runes[:maxLabelLength])
	}
	return cleaned
}
