// Package slug turns post titles into URL-safe identifiers and allocates
// slugs that are unique in the document store.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxLength = 200
	MinLength = 1
)

var validPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// IsValid reports whether s can be stored verbatim as a slug.
func IsValid(s string) bool {
	if len(s) < MinLength || len(s) > MaxLength {
		return false
	}
	return validPattern.MatchString(s)
}

// Normalize derives a candidate slug from a title: accents are folded to
// their base letter, everything outside [a-z0-9] becomes a single hyphen and
// the result is capped at MaxLength. It returns "" when the title has no
// Latin letters or digits at all.
func Normalize(title string) string {
	folded := stripDiacritics(title)

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if isSlugRune(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return truncate(b.String(), MaxLength)
}

// Sanitize cleans a caller-supplied slug base without touching its word
// boundaries: invalid characters are dropped, not replaced.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case isSlugRune(r):
			b.WriteRune(r)
			lastHyphen = false
		case r == '-' && !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return truncate(b.String(), MaxLength)
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isSlugRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// truncate cuts s to at most n bytes and never leaves a trailing hyphen.
// Callers only pass ASCII.
func truncate(s string, n int) string {
	if len(s) > n {
		s = s[:n]
	}
	return strings.Trim(s, "-")
}
