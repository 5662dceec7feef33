package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Make turns a tour name into its URL slug: accents are dropped, the text is
// lowercased and every run of other characters becomes a single hyphen.
//
//	Make("The Forest Hiker")  -> "the-forest-hiker"
//	Make("Évasion à Genève!") -> "evasion-a-geneve"
func Make(name string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(name) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	s := nonAlnum.ReplaceAllString(strings.ToLower(b.String()), "-")
	return strings.Trim(s, "-")
}
