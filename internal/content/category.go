package content

import "strings"

// DecodeCategory builds a Category from raw document fields. A missing name
// becomes "Uncategorized" and a missing slug is derived from the name.
func DecodeCategory(id string, fields map[string]any) Category {
	c := Category{ID: id, Name: UncategorizedName}
	if name := stringField(fields, "name"); name != nil {
		c.Name = *name
	}
	if slug := stringField(fields, "slug"); slug != nil {
		c.Slug = Slugify(*slug, c.Name)
	} else {
		c.Slug = CategorySlug(c.Name)
	}
	if desc := stringField(fields, "description"); desc != nil {
		c.Description = *desc
	}
	return c
}

// ResolveCategory joins a category reference against the known categories.
// The reference is matched by identifier, then by slug, then by name (both
// case-insensitive); the first match wins. Anything unresolvable, including
// an absent reference, yields Uncategorized.
func ResolveCategory(ref *string, known []Category) CategoryRef {
	if ref == nil || len(known) == 0 {
		return Uncategorized
	}
	r := strings.TrimSpace(*ref)
	if r == "" {
		return Uncategorized
	}

	for _, c := range known {
		if c.ID != "" && c.ID == r {
			return refOf(c)
		}
	}
	for _, c := range known {
		if c.Slug != "" && strings.EqualFold(c.Slug, r) {
			return refOf(c)
		}
	}
	for _, c := range known {
		if c.Name != "" && strings.EqualFold(c.Name, r) {
			return refOf(c)
		}
	}
	return Uncategorized
}

func refOf(c Category) CategoryRef {
	name := c.Name
	if strings.TrimSpace(name) == "" {
		name = UncategorizedName
	}
	return CategoryRef{Name: name, Slug: Slugify(c.Slug, name)}
}
