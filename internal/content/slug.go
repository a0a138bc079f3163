package content

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify converts display text into a canonical URL-safe token. Runs of
// characters outside [a-z0-9] collapse into a single hyphen and leading or
// trailing hyphens are dropped; accents are folded first so "Côte" becomes
// "cote". When text yields nothing, fallback is slugified instead, and when
// that is empty too the result is UntitledSlug. The result is never empty and
// Slugify(Slugify(x, f), f) == Slugify(x, f).
func Slugify(text, fallback string) string {
	if s := slugify(text); s != "" {
		return s
	}
	if s := slugify(fallback); s != "" {
		return s
	}
	return UntitledSlug
}

// CategorySlug slugifies a category name, falling back to UncategorizedSlug.
func CategorySlug(name string) string {
	return Slugify(name, UncategorizedSlug)
}

// IsSlug reports whether s is already in canonical slug form.
func IsSlug(s string) bool {
	return s != "" && slugify(s) == s
}

func slugify(text string) string {
	if text == "" {
		return ""
	}
	folded, _, err := transform.String(foldMarks, text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}
