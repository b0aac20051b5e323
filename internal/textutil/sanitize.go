package textutil

import (
	"strings"
	"unicode"
)

// SanitizeFileName makes name usable as a single path segment. Separators
// and other characters that shells or file systems treat specially become
// dashes, whitespace runs become one underscore, and leading dots are
// dropped so the result is never hidden. It returns "" for blank input.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	space := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case strings.ContainsRune(`/\:*?"<>|`, r), unicode.IsControl(r):
			r = '-'
		}
		if space {
			b.WriteByte('_')
			space = false
		}
		b.WriteRune(r)
	}
	return strings.TrimLeft(b.String(), ".")
}
