package extractor

import (
	"strings"
	"unicode"
)

const (
	maxTitleLen  = 200
	maxAuthorLen = 100
	maxLabelLen  = 100
	minTitleLen  = 2
)

// normalizeField strips control characters, collapses whitespace runs to a
// single space, trims, and caps the length so a malformed document cannot
// bloat storage.
func normalizeField(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))

	prevSpace := false
	for _, r := range s {
		if unicode.IsControl(r) {
			r = ' '
		}
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
			continue
		}
		b.WriteRune(r)
		prevSpace = false
	}

	out := strings.TrimSpace(b.String())
	if runes := []rune(out); len(runes) > maxLen {
		out = string(runes[:maxLen])
	}
	return out
}

// plausibleTitle rejects blank, too-short, digit-only and boilerplate titles.
func plausibleTitle(title string, exclusions []string) bool {
	if len([]rune(title)) < minTitleLen {
		return false
	}

	digitsOnly := true
	for _, r := range title {
		if !unicode.IsDigit(r) {
			digitsOnly = false
			break
		}
	}
	if digitsOnly {
		return false
	}

	lower := strings.ToLower(title)
	for _, excl := range exclusions {
		if excl == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(excl)) {
			return false
		}
	}

	return true
}
