package cms

import (
	"context"
	"fmt"
	"log"
	"net/mail"
	"strings"

	"github.com/TobiSchelling/newsdesk/internal/content"
	"github.com/TobiSchelling/newsdesk/internal/store"
)

// SubscribeNewsletter records a newsletter sign-up. Addresses are compared
// case-insensitively.
func (s *Service) SubscribeNewsletter(ctx context.Context, email string) (string, error) {
	addr, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}

	existing, err := s.store.Fetch(ctx, store.Newsletter, store.Query{}.Where("email", store.OpEq, addr))
	if err != nil {
		return "", fmt.Errorf("checking subscribers: %w", err)
	}
	if len(existing) > 0 {
		return "", ErrAlreadySubscribed
	}

	id, err := s.store.Create(ctx, store.Newsletter, map[string]any{
		"email":      addr,
		"is_active":  true,
		"created_at": s.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("adding subscriber: %w", err)
	}
	log.Printf("Newsletter subscriber added")
	return id, nil
}

// ContactMessage is a message sent through the contact form.
type ContactMessage struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// AddContactMessage stores an unread contact message.
func (s *Service) AddContactMessage(ctx context.Context, m ContactMessage) (string, error) {
	name := strings.TrimSpace(m.Name)
	body := strings.TrimSpace(m.Message)
	if name == "" || body == "" || strings.TrimSpace(m.Email) == "" {
		return "", ErrIncomplete
	}
	addr, err := normalizeEmail(m.Email)
	if err != nil {
		return "", err
	}

	id, err := s.store.Create(ctx, store.ContactMessage, map[string]any{
		"name":       name,
		"email":      addr,
		"subject":    strings.TrimSpace(m.Subject),
		"message":    body,
		"is_read":    false,
		"created_at": s.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("adding contact message: %w", err)
	}
	return id, nil
}

// Hero selects the article shown at the top of the home page.
type Hero struct {
	ArticleID       string
	SidebarImageURL string
}

const heroID = "hero"

// SetHero stores the home page hero settings.
func (s *Service) SetHero(ctx context.Context, h Hero) error {
	err := s.store.Put(ctx, store.Settings, heroID, map[string]any{
		"featuredArticleId": strings.TrimSpace(h.ArticleID),
		"sidebarImageUrl":   strings.TrimSpace(h.SidebarImageURL),
		"updated_at":        s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("saving hero settings: %w", err)
	}
	return nil
}

// Hero reads the home page hero settings. Missing settings are empty.
func (s *Service) Hero(ctx context.Context) (Hero, error) {
	return LoadHero(ctx, s.store)
}

// LoadHero reads the hero settings from r.
func LoadHero(ctx context.Context, r store.Reader) (Hero, error) {
	docs, err := r.Fetch(ctx, store.Settings, store.Query{}.Where("id", store.OpEq, heroID))
	if err != nil {
		return Hero{}, fmt.Errorf("reading hero settings: %w", err)
	}
	if len(docs) == 0 {
		return Hero{}, nil
	}
	f := docs[0].Fields
	h := Hero{}
	if v, ok := f["featuredArticleId"].(string); ok {
		h.ArticleID = v
	}
	if v, ok := f["sidebarImageUrl"].(string); ok {
		h.SidebarImageURL = v
	}
	return h, nil
}

// MediaDraft is the editable content of a video or podcast.
type MediaDraft struct {
	Title       string
	URL         string
	Description string
	Thumbnail   string
	Duration    string
	Status      string
}

// CreateMedia stores a video or podcast entry.
func (s *Service) CreateMedia(ctx context.Context, kind content.MediaKind, d MediaDraft) (string, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return "", ErrTitleRequired
	}
	id, err := s.store.Create(ctx, mediaCollection(kind), map[string]any{
		"title":       title,
		"url":         strings.TrimSpace(d.URL),
		"description": d.Description,
		"thumbnail":   strings.TrimSpace(d.Thumbnail),
		"duration":    strings.TrimSpace(d.Duration),
		"status":      string(content.ParseStatus(d.Status)),
		"type":        string(kind),
		"created_at":  s.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", kind, err)
	}
	return id, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return strings.ToLower(addr.Address), nil
}
