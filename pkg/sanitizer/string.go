package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims s and collapses inner whitespace runs to one space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else if unicode.IsControl(r) {
			continue
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeID lowercases catalog identifiers such as court and sport ids.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
