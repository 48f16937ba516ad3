// Package sanitize cleans user-supplied scenario names before they become
// output file names or plot titles.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxStemLength is the maximum length of a derived file stem.
const MaxStemLength = 64

// MaxLabelLength is the maximum length of a plot title or log label.
const MaxLabelLength = 120

// DefaultStem is used when nothing of a name survives sanitizing.
const DefaultStem = "run"

var (
	// reRepeatedHyphens matches 2 or more consecutive hyphens.
	reRepeatedHyphens = regexp.MustCompile(`-{2,}`)

	// reRepeatedUnderscores matches 2 or more consecutive underscores.
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)

	// reWhitespace matches runs of whitespace.
	reWhitespace = regexp.MustCompile(`\s+`)
)

// FileStem turns a scenario name into a file stem: only [a-zA-Z0-9._-]
// survive, whitespace becomes a hyphen, repeats collapse and leading dots
// are dropped so the result is never hidden or a traversal.
func FileStem(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range strings.TrimSpace(input) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteRune('-')
		}
	}
	s := b.String()

	s = reRepeatedHyphens.ReplaceAllString(s, "-")
	s = reRepeatedUnderscores.ReplaceAllString(s, "_")
	s = strings.TrimLeft(s, ".-")

	if len(s) > MaxStemLength {
		s = s[:MaxStemLength]
	}
	if s == "" {
		return DefaultStem
	}
	return s
}

// Label strips control characters, collapses whitespace and truncates to
// MaxLabelLength.
func Label(input string) string {
	s := stripControlChars(input)
	s = reWhitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > MaxLabelLength {
		s = s[:MaxLabelLength] + "..."
	}
	return s
}

// stripControlChars removes ASCII control characters (0x00-0x1F, 0x7F).
// Tabs and newlines become spaces.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			b.WriteRune(' ')
		case r < 0x20 || r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
