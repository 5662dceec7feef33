package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every HTML tag and attribute. bluemonday.Policy is safe for
// concurrent use once built; never mutate it after initialization.
var strict = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// Clean strips HTML from user supplied free text and normalizes whitespace.
// Names, tour summaries/descriptions and review texts go through Clean before
// they are persisted; repositories assume already-clean input.
//
// Examples:
//   - "<p>hi</p>" -> "hi"
//   - "<b>a</b> <b>b</b>" -> "a b"
//   - "<script>alert(1)</script>Nice tour" -> "Nice tour"
func Clean(s string) string {
	sanitized := strict.Sanitize(s)
	sanitized = html.UnescapeString(sanitized)
	sanitized = strings.ReplaceAll(sanitized, " ", " ")

	lines := strings.Split(sanitized, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// CleanPtr is Clean for optional patch fields; nil stays nil.
func CleanPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := Clean(*s)
	return &v
}

// CleanAll cleans every element of ss in place and returns it.
func CleanAll(ss []string) []string {
	for i := range ss {
		ss[i] = Clean(ss[i])
	}
	return ss
}
