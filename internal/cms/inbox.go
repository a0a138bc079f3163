package cms

import (
	"context"
	"fmt"
	"log"

	"github.com/TobiSchelling/newsdesk/internal/content"
	"github.com/TobiSchelling/newsdesk/internal/store"
)

// Message is a stored contact message as the admin inbox shows it.
type Message struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Subject   string            `json:"subject"`
	Message   string            `json:"message"`
	Read      bool              `json:"is_read"`
	CreatedAt content.Timestamp `json:"created_at"`
}

// Subscriber is a newsletter sign-up.
type Subscriber struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Active    bool              `json:"is_active"`
	CreatedAt content.Timestamp `json:"created_at"`
}

var newestFirst = store.Query{}.OrderBy("created_at", true)

// ContactMessages lists contact messages newest first, with the number
// still unread.
func (s *Service) ContactMessages(ctx context.Context) ([]Message, int, error) {
	docs, err := s.store.Fetch(ctx, store.ContactMessage, newestFirst)
	if err != nil {
		return nil, 0, fmt.Errorf("listing contact messages: %w", err)
	}
	msgs := make([]Message, 0, len(docs))
	unread := 0
	for _, d := range docs {
		m := Message{
			ID:        d.ID,
			Name:      text(d.Fields, "name"),
			Email:     text(d.Fields, "email"),
			Subject:   text(d.Fields, "subject"),
			Message:   text(d.Fields, "message"),
			Read:      d.Fields["is_read"] == true,
			CreatedAt: content.NormalizeTimestamp(d.Fields["created_at"]),
		}
		if !m.Read {
			unread++
		}
		msgs = append(msgs, m)
	}
	return msgs, unread, nil
}

// MarkRead flags a contact message as read.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	if err := s.store.Update(ctx, store.ContactMessage, id, map[string]any{"is_read": true}); err != nil {
		return fmt.Errorf("marking message %s read: %w", id, err)
	}
	return nil
}

// Subscribers lists newsletter subscribers newest first, with the number
// still active. Sign-ups without an is_active flag count as active.
func (s *Service) Subscribers(ctx context.Context) ([]Subscriber, int, error) {
	docs, err := s.store.Fetch(ctx, store.Newsletter, newestFirst)
	if err != nil {
		return nil, 0, fmt.Errorf("listing subscribers: %w", err)
	}
	subs := make([]Subscriber, 0, len(docs))
	active := 0
	for _, d := range docs {
		sub := Subscriber{
			ID:        d.ID,
			Email:     text(d.Fields, "email"),
			Active:    d.Fields["is_active"] != false,
			CreatedAt: content.NormalizeTimestamp(d.Fields["created_at"]),
		}
		if sub.Active {
			active++
		}
		subs = append(subs, sub)
	}
	return subs, active, nil
}

// SetMediaStatus publishes or unpublishes a video or podcast.
func (s *Service) SetMediaStatus(ctx context.Context, kind content.MediaKind, id string, status content.Status) error {
	if err := s.store.Update(ctx, mediaCollection(kind), id, map[string]any{"status": string(status)}); err != nil {
		return fmt.Errorf("setting status of %s %s: %w", kind, id, err)
	}
	log.Printf("%s %s is now %s", kind, id, status)
	return nil
}

// DeleteMedia removes a video or podcast.
func (s *Service) DeleteMedia(ctx context.Context, kind content.MediaKind, id string) error {
	if err := s.store.Delete(ctx, mediaCollection(kind), id); err != nil {
		return fmt.Errorf("deleting %s %s: %w", kind, id, err)
	}
	log.Printf("%s %s deleted", kind, id)
	return nil
}

func mediaCollection(kind content.MediaKind) string {
	if kind == content.MediaPodcast {
		return store.Podcasts
	}
	return store.Videos
}

func text(f map[string]any, key string) string {
	s, _ := f[key].(string)
	return s
}
