package content

import (
	"strings"
	"unicode/utf8"
)

// Normalize produces a fully populated Article from a decoded record. It
// never fails: every absent or malformed field is replaced by its default.
// Neither r nor known is modified.
func Normalize(r Record, known []Category) Article {
	title := deref(r.Title, UntitledTitle)

	a := Article{
		ID:          r.ID,
		Title:       title,
		Slug:        resolveSlug(r),
		Excerpt:     resolveExcerpt(r.Excerpt, r.Body),
		Body:        deref(r.Body, ""),
		Author:      deref(r.Author, AnonymousAuthor),
		ImageURL:    deref(r.ImageURL, PlaceholderImage),
		Status:      ParseStatus(deref(r.Status, "")),
		CreatedAt:   NormalizeTimestamp(r.CreatedAt),
		PublishedAt: NormalizeTimestamp(r.PublishedAt),
		UpdatedAt:   NormalizeTimestamp(r.UpdatedAt),
		IsFeatured:  r.IsFeatured != nil && *r.IsFeatured,
		IsTrending:  r.IsTrending != nil && *r.IsTrending,
		IsBreaking:  r.IsBreaking != nil && *r.IsBreaking,
	}

	cat := ResolveCategory(r.CategoryRef, known)
	a.CategoryName = cat.Name
	a.CategorySlug = cat.Slug

	if r.ReadCount != nil && *r.ReadCount > 0 {
		a.ReadCount = *r.ReadCount
	}
	return a
}

// NormalizeAll normalizes every record against the same category snapshot.
func NormalizeAll(records []Record, known []Category) []Article {
	out := make([]Article, 0, len(records))
	for _, r := range records {
		out = append(out, Normalize(r, known))
	}
	return out
}

// ParseStatus case-folds s and maps anything unrecognized to draft.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPublished:
		return StatusPublished
	default:
		return StatusDraft
	}
}

func resolveSlug(r Record) string {
	for _, candidate := range []*string{r.Slug, r.Title} {
		if candidate == nil {
			continue
		}
		if s := slugify(*candidate); s != "" {
			return s
		}
	}
	return Slugify(r.ID, UntitledSlug)
}

func resolveExcerpt(excerpt, body *string) string {
	if excerpt != nil && strings.TrimSpace(*excerpt) != "" {
		return *excerpt
	}
	if body == nil {
		return ""
	}
	return DeriveExcerpt(*body)
}

// DeriveExcerpt returns the first ExcerptLength characters of body, with
// ExcerptEllipsis appended when body was cut.
func DeriveExcerpt(body string) string {
	if utf8.RuneCountInString(body) <= ExcerptLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:ExcerptLength]) + ExcerptEllipsis
}

func deref(s *string, def string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return def
	}
	return *s
}
