package content

import (
	"testing"
	"time"
)

func TestDecodeRecordCurrentShape(t *testing.T) {
	published := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := DecodeRecord("a1", map[string]any{
		"title":              "Headline",
		"content":            "Body text",
		"category_id":        "c2",
		"featured_image_url": "https://img.example/1.jpg",
		"status":             "Published",
		"published_at":       published,
		"is_featured":        true,
		"read_count":         float64(42),
	})

	if r.ID != "a1" || *r.Title != "Headline" || *r.Body != "Body text" {
		t.Errorf("unexpected record %+v", r)
	}
	if *r.CategoryRef != "c2" || *r.ImageURL != "https://img.example/1.jpg" {
		t.Errorf("unexpected category/image: %v %v", *r.CategoryRef, *r.ImageURL)
	}
	if r.PublishedAt != published {
		t.Errorf("expected native time preserved, got %v", r.PublishedAt)
	}
	if r.IsFeatured == nil || !*r.IsFeatured {
		t.Error("expected featured flag")
	}
	if r.ReadCount == nil || *r.ReadCount != 42 {
		t.Errorf("expected read count 42, got %v", r.ReadCount)
	}
	if r.IsTrending != nil {
		t.Error("expected absent trending flag")
	}
}

func TestDecodeRecordCamelCaseShape(t *testing.T) {
	r := DecodeRecord("a2", map[string]any{
		"publishedAt": "2024-02-01T10:00:00Z",
		"featured":    "true",
		"views":       int64(7),
		"imageUrl":    "https://img.example/2.jpg",
	})
	if r.PublishedAt != "2024-02-01T10:00:00Z" {
		t.Errorf("expected camelCase publishedAt, got %v", r.PublishedAt)
	}
	if r.IsFeatured == nil || !*r.IsFeatured {
		t.Error("expected featured from string flag")
	}
	if r.ReadCount == nil || *r.ReadCount != 7 {
		t.Errorf("expected views as read count, got %v", r.ReadCount)
	}
	if r.ImageURL == nil || *r.ImageURL != "https://img.example/2.jpg" {
		t.Errorf("unexpected image %v", r.ImageURL)
	}
}

func TestDecodeRecordShapePrecedence(t *testing.T) {
	r := DecodeRecord("a3", map[string]any{
		"category_id": "c1",
		"category":    "Business",
		"read_count":  3,
		"views":       99,
		"content":     "current",
		"body":        "alias",
	})
	if *r.CategoryRef != "c1" {
		t.Errorf("expected category_id to win, got %q", *r.CategoryRef)
	}
	if *r.ReadCount != 3 {
		t.Errorf("expected read_count to win, got %d", *r.ReadCount)
	}
	if *r.Body != "current" {
		t.Errorf("expected content to win, got %q", *r.Body)
	}

	legacy := DecodeRecord("a4", map[string]any{"category": "Business", "category_id": ""})
	if legacy.CategoryRef == nil || *legacy.CategoryRef != "Business" {
		t.Errorf("expected legacy category name, got %v", legacy.CategoryRef)
	}
}

func TestDecodeRecordWrongTypesAreAbsent(t *testing.T) {
	r := DecodeRecord("a5", map[string]any{
		"title":        []string{"no"},
		"status":       7.5,
		"is_featured":  "maybe",
		"read_count":   "lots",
		"published_at": 12345,
		"category_id":  float64(4),
	})
	if r.Title != nil || r.Status != nil || r.IsFeatured != nil || r.ReadCount != nil || r.PublishedAt != nil {
		t.Errorf("expected wrong-typed fields to be absent: %+v", r)
	}
	if r.CategoryRef == nil || *r.CategoryRef != "4" {
		t.Errorf("expected numeric category id rendered as string, got %v", r.CategoryRef)
	}
}
