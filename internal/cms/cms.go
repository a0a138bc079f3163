// Package cms is the write side of the site: the admin article workflow,
// newsletter sign-ups, contact messages, hero settings and seed data.
package cms

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/TobiSchelling/newsdesk/internal/content"
	"github.com/TobiSchelling/newsdesk/internal/store"
)

var (
	ErrTitleRequired     = errors.New("title is required")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrAlreadySubscribed = errors.New("already subscribed")
	ErrIncomplete        = errors.New("name, email and message are required")
)

// Backend is the store surface the CMS needs.
type Backend interface {
	store.Reader
	store.Writer
}

// Service performs content writes.
type Service struct {
	store Backend
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service writing to b.
func New(b Backend, opts ...Option) *Service {
	s := &Service{store: b, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Draft is the editable content of an article.
type Draft struct {
	Title      string
	Slug       string
	Excerpt    string
	Body       string
	CategoryID string
	Author     string
	ImageURL   string
	Status     string
	Featured   bool
	Trending   bool
	Breaking   bool

	// Set for imported articles.
	SourceURL  string
	SourceName string
}

// CreateArticle stores a new article and returns its identifier. The slug
// is derived from the title unless given, and made unique by a numeric
// suffix.
func (s *Service) CreateArticle(ctx context.Context, d Draft) (string, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return "", ErrTitleRequired
	}
	slug, err := s.uniqueSlug(ctx, content.Slugify(d.Slug, title), "")
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	status := content.ParseStatus(d.Status)
	fields := map[string]any{
		"title":       title,
		"slug":        slug,
		"content":     d.Body,
		"status":      string(status),
		"is_featured": d.Featured,
		"is_trending": d.Trending,
		"is_breaking": d.Breaking,
		"read_count":  0,
		"created_at":  now,
		"updated_at":  now,
	}
	setIfPresent(fields, "excerpt", d.Excerpt)
	setIfPresent(fields, "category_id", d.CategoryID)
	setIfPresent(fields, "author", d.Author)
	setIfPresent(fields, "featured_image_url", d.ImageURL)
	setIfPresent(fields, "source_url", d.SourceURL)
	setIfPresent(fields, "source_name", d.SourceName)
	if status == content.StatusPublished {
		fields["published_at"] = now
	}

	id, err := s.store.Create(ctx, store.Articles, fields)
	if err != nil {
		return "", fmt.Errorf("creating article: %w", err)
	}
	log.Printf("Article created: %s (%s)", slug, status)
	return id, nil
}

// Patch lists the article fields to change; nil fields are left alone.
type Patch struct {
	Title      *string
	Slug       *string
	Excerpt    *string
	Body       *string
	CategoryID *string
	Author     *string
	ImageURL   *string
	Featured   *bool
	Trending   *bool
	Breaking   *bool
	Status     *content.Status
}

// UpdateArticle applies p to the article stored under id in a single
// write. A status change to published stamps the publication time.
func (s *Service) UpdateArticle(ctx context.Context, id string, p Patch) error {
	now := s.now().UTC()
	fields := map[string]any{"updated_at": now}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return ErrTitleRequired
		}
		fields["title"] = title
	}
	if p.Slug != nil {
		fallback := ""
		if p.Title != nil {
			fallback = *p.Title
		}
		slug, err := s.uniqueSlug(ctx, content.Slugify(*p.Slug, fallback), id)
		if err != nil {
			return err
		}
		fields["slug"] = slug
	}
	setPtr(fields, "excerpt", p.Excerpt)
	setPtr(fields, "content", p.Body)
	setPtr(fields, "category_id", p.CategoryID)
	setPtr(fields, "author", p.Author)
	setPtr(fields, "featured_image_url", p.ImageURL)
	if p.Featured != nil {
		fields["is_featured"] = *p.Featured
	}
	if p.Trending != nil {
		fields["is_trending"] = *p.Trending
	}
	if p.Breaking != nil {
		fields["is_breaking"] = *p.Breaking
	}
	if p.Status != nil {
		statusFields(fields, *p.Status, now)
	}

	if err := s.store.Update(ctx, store.Articles, id, fields); err != nil {
		return fmt.Errorf("updating article %s: %w", id, err)
	}
	return nil
}

// SetStatus publishes or unpublishes an article. Publishing stamps the
// publication time.
func (s *Service) SetStatus(ctx context.Context, id string, status content.Status) error {
	now := s.now().UTC()
	fields := map[string]any{"updated_at": now}
	statusFields(fields, status, now)
	if err := s.store.Update(ctx, store.Articles, id, fields); err != nil {
		return fmt.Errorf("setting status of %s: %w", id, err)
	}
	log.Printf("Article %s is now %s", id, status)
	return nil
}

// DeleteArticle removes an article.
func (s *Service) DeleteArticle(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, store.Articles, id); err != nil {
		return fmt.Errorf("deleting article %s: %w", id, err)
	}
	log.Printf("Article %s deleted", id)
	return nil
}

// IncrementReads bumps the read counter of an article in one atomic store
// step.
func (s *Service) IncrementReads(ctx context.Context, id string) error {
	if err := s.store.Increment(ctx, store.Articles, id, "read_count", 1); err != nil {
		return fmt.Errorf("counting read of %s: %w", id, err)
	}
	return nil
}

// HasSource reports whether an article imported from sourceURL exists.
func (s *Service) HasSource(ctx context.Context, sourceURL string) (bool, error) {
	q := store.Query{}.Where("source_url", store.OpEq, sourceURL).WithLimit(1)
	docs, err := s.store.Fetch(ctx, store.Articles, q)
	if err != nil {
		return false, fmt.Errorf("checking source %s: %w", sourceURL, err)
	}
	return len(docs) > 0, nil
}

// uniqueSlug returns slug, or slug-2, slug-3, ... when another article
// (other than except) already uses it.
func (s *Service) uniqueSlug(ctx context.Context, slug, except string) (string, error) {
	candidate := slug
	for n := 2; ; n++ {
		docs, err := s.store.Fetch(ctx, store.Articles, store.Query{}.Where("slug", store.OpEq, candidate))
		if err != nil {
			return "", fmt.Errorf("checking slug: %w", err)
		}
		taken := false
		for _, d := range docs {
			if d.ID != except {
				taken = true
				break
			}
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", slug, n)
	}
}

func statusFields(fields map[string]any, status content.Status, now time.Time) {
	fields["status"] = string(status)
	if status == content.StatusPublished {
		fields["published_at"] = now
	}
}

func setIfPresent(fields map[string]any, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		fields[key] = v
	}
}

func setPtr(fields map[string]any, key string, value *string) {
	if value != nil {
		fields[key] = *value
	}
}
