package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that do not decompose into a base letter plus marks.
var special = strings.NewReplacer("ı", "i", "ß", "ss", "ø", "o", "æ", "ae", "œ", "oe", "ł", "l", "đ", "d")

// Generate turns a product name into a URL slug: "Crème Brûlée Set" becomes "creme-brulee-set".
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = special.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// WithSuffix appends a short disambiguator, used when a slug is already taken.
func WithSuffix(slug, suffix string) string {
	suffix = Generate(suffix)
	switch {
	case suffix == "":
		return slug
	case slug == "":
		return suffix
	}
	return slug + "-" + suffix
}
