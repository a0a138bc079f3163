package content

import "sort"

// MediaKind distinguishes the multimedia collections.
type MediaKind string

const (
	MediaVideo   MediaKind = "video"
	MediaPodcast MediaKind = "podcast"
)

// Media is a normalized video or podcast entry.
type Media struct {
	ID          string    `json:"id"`
	Kind        MediaKind `json:"type"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Thumbnail   string    `json:"thumbnail"`
	Duration    string    `json:"duration"`
	Status      Status    `json:"status"`
	CreatedAt   Timestamp `json:"created_at"`
}

// DecodeMedia normalizes a videos or podcasts document. The kind stored in
// the document wins over the collection default when it is recognized.
func DecodeMedia(id string, kind MediaKind, fields map[string]any) Media {
	m := Media{
		ID:          id,
		Kind:        kind,
		Title:       deref(stringField(fields, "title"), UntitledTitle),
		URL:         deref(stringField(fields, "url"), ""),
		Description: deref(stringField(fields, "description"), ""),
		Thumbnail:   deref(stringField(fields, "thumbnail"), PlaceholderImage),
		Duration:    deref(stringField(fields, "duration"), ""),
		Status:      ParseStatus(deref(stringField(fields, "status"), "")),
	}
	if t := stringField(fields, "type"); t != nil {
		switch MediaKind(*t) {
		case MediaVideo, MediaPodcast:
			m.Kind = MediaKind(*t)
		}
	}
	var created any
	setTime(&created, fields, "created_at")
	setTime(&created, fields, "createdAt")
	m.CreatedAt = NormalizeTimestamp(created)
	return m
}

// PublishedMedia keeps published entries, newest first.
func PublishedMedia(items []Media) []Media {
	out := []Media{}
	for _, m := range items {
		if m.Status == StatusPublished {
			out = append(out, m)
		}
	}
	sortMedia(out)
	return out
}

func sortMedia(items []Media) {
	sort.SliceStable(items, func(i, j int) bool {
		return compareDesc(items[i].CreatedAt, items[j].CreatedAt) < 0
	})
}
