package content

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// recordShape fills the fields of a Record that one historical document
// shape carries. Shapes only set fields that are still nil, so shapes
// listed first take precedence.
type recordShape func(fields map[string]any, r *Record)

var recordShapes = []recordShape{
	currentShape,
	camelCaseShape,
	legacyCategoryShape,
	aliasShape,
}

// DecodeRecord maps raw document fields of uncertain shape onto a Record.
// Fields of the wrong type are treated as absent.
func DecodeRecord(id string, fields map[string]any) Record {
	r := Record{ID: id}
	for _, shape := range recordShapes {
		shape(fields, &r)
	}
	return r
}

// currentShape is the snake_case layout written by the admin CMS and seed.
func currentShape(f map[string]any, r *Record) {
	setString(&r.Title, f, "title")
	setString(&r.Slug, f, "slug")
	setString(&r.Body, f, "content")
	setString(&r.Excerpt, f, "excerpt")
	setString(&r.CategoryRef, f, "category_id")
	setString(&r.Author, f, "author")
	setString(&r.ImageURL, f, "featured_image_url")
	setString(&r.Status, f, "status")
	setTime(&r.CreatedAt, f, "created_at")
	setTime(&r.PublishedAt, f, "published_at")
	setTime(&r.UpdatedAt, f, "updated_at")
	setBool(&r.IsFeatured, f, "is_featured")
	setBool(&r.IsTrending, f, "is_trending")
	setBool(&r.IsBreaking, f, "is_breaking")
	setInt(&r.ReadCount, f, "read_count")
}

// camelCaseShape is the layout used by the live article hooks.
func camelCaseShape(f map[string]any, r *Record) {
	setTime(&r.CreatedAt, f, "createdAt")
	setTime(&r.PublishedAt, f, "publishedAt")
	setTime(&r.UpdatedAt, f, "updatedAt")
	setBool(&r.IsFeatured, f, "featured")
	setInt(&r.ReadCount, f, "views")
	setString(&r.ImageURL, f, "imageUrl")
	setString(&r.CategoryRef, f, "categoryId")
}

// legacyCategoryShape covers documents that stored the category by name or
// slug rather than by identifier.
func legacyCategoryShape(f map[string]any, r *Record) {
	setString(&r.CategoryRef, f, "category_slug")
	setString(&r.CategoryRef, f, "category")
	setString(&r.CategoryRef, f, "category_name")
}

func aliasShape(f map[string]any, r *Record) {
	setString(&r.Body, f, "body")
	setString(&r.ImageURL, f, "image_url")
	setInt(&r.ReadCount, f, "readCount")
	setBool(&r.IsTrending, f, "trending")
	setBool(&r.IsBreaking, f, "breaking")
}

func setString(dst **string, f map[string]any, key string) {
	if *dst != nil {
		return
	}
	*dst = stringField(f, key)
}

func setTime(dst *any, f map[string]any, key string) {
	if *dst != nil {
		return
	}
	switch v := f[key].(type) {
	case time.Time:
		if !v.IsZero() {
			*dst = v
		}
	case string:
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
}

func setBool(dst **bool, f map[string]any, key string) {
	if *dst != nil {
		return
	}
	*dst = boolField(f, key)
}

func setInt(dst **int64, f map[string]any, key string) {
	if *dst != nil {
		return
	}
	*dst = intField(f, key)
}

// stringField returns a non-blank string value. Numeric identifiers from
// older documents are rendered in decimal.
func stringField(f map[string]any, key string) *string {
	var s string
	switch v := f[key].(type) {
	case string:
		s = v
	case int:
		s = strconv.Itoa(v)
	case int32:
		s = strconv.FormatInt(int64(v), 10)
	case int64:
		s = strconv.FormatInt(v, 10)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil
		}
		s = strconv.FormatInt(int64(v), 10)
	default:
		return nil
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func boolField(f map[string]any, key string) *bool {
	switch v := f[key].(type) {
	case bool:
		return &v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		return &b
	}
	return nil
}

func intField(f map[string]any, key string) *int64 {
	var n int64
	switch v := f[key].(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		n = int64(v)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}
