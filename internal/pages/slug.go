package pages

import (
	"fmt"
	"strings"
	"unicode"
)

// Slugify derives a URL slug from a page name: lowercase, runs of
// non-alphanumerics collapse to single dashes, leading and trailing dashes
// trimmed. "Hello, World!" becomes "hello-world".
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true // swallow leading separators
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) && r < 128 || unicode.IsDigit(r) && r < 128 {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// UniqueSlug disambiguates slug collisions with the smallest -N suffix,
// N >= 1. taken reports whether a candidate is already used within the
// scope (site).
func UniqueSlug(base string, taken func(string) (bool, error)) (string, error) {
	if base == "" {
		base = "page"
	}
	inUse, err := taken(base)
	if err != nil {
		return "", err
	}
	if !inUse {
		return base, nil
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		inUse, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !inUse {
			return candidate, nil
		}
	}
}
