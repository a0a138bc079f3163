package content

import (
	"testing"
	"time"
)

func TestDecodeMedia(t *testing.T) {
	m := DecodeMedia("v1", MediaVideo, map[string]any{
		"title":      "Interview",
		"url":        "https://video.example/1",
		"status":     "Published",
		"created_at": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if m.Title != "Interview" || m.Kind != MediaVideo || m.Status != StatusPublished {
		t.Errorf("unexpected media %+v", m)
	}
	if m.Thumbnail != PlaceholderImage {
		t.Errorf("expected placeholder thumbnail, got %q", m.Thumbnail)
	}
	if !m.CreatedAt.Known() {
		t.Error("expected known created time")
	}

	p := DecodeMedia("p1", MediaVideo, map[string]any{"type": "podcast"})
	if p.Kind != MediaPodcast || p.Title != UntitledTitle || p.Status != StatusDraft {
		t.Errorf("unexpected defaults %+v", p)
	}
}

func TestPublishedMedia(t *testing.T) {
	items := []Media{
		{ID: "a", Status: StatusPublished, CreatedAt: day(1)},
		{ID: "b", Status: StatusDraft, CreatedAt: day(9)},
		{ID: "c", Status: StatusPublished, CreatedAt: day(4)},
		{ID: "d", Status: StatusPublished},
	}
	got := PublishedMedia(items)
	if len(got) != 3 || got[0].ID != "c" || got[1].ID != "a" || got[2].ID != "d" {
		t.Errorf("unexpected order %+v", got)
	}
}
