// Package aggregate turns raw store collections into normalized articles,
// once or live.
package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/TobiSchelling/newsdesk/internal/content"
	"github.com/TobiSchelling/newsdesk/internal/store"
)

// Adapter reads articles and the categories they refer to from a store.
type Adapter struct {
	store      store.Reader
	categories string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCategoryCollection overrides the collection categories are read from.
func WithCategoryCollection(name string) Option {
	return func(a *Adapter) { a.categories = name }
}

// New creates an adapter over r.
func New(r store.Reader, opts ...Option) *Adapter {
	a := &Adapter{store: r, categories: store.Categories}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PublishedQuery restricts q to published articles. Older records spell
// the status with a capital letter, so both spellings are accepted.
func PublishedQuery(q store.Query) store.Query {
	return q.Where("status", store.OpIn, []string{string(content.StatusPublished), "Published"})
}

// FetchCategories reads every known category.
func (a *Adapter) FetchCategories(ctx context.Context) ([]content.Category, error) {
	docs, err := a.store.Fetch(ctx, a.categories, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("fetching categories: %w", err)
	}
	return DecodeCategories(docs), nil
}

// FetchOnce reads collection once and normalizes every record against the
// current categories. Store failures are returned unchanged apart from
// context; nothing is retried and no broader query is substituted.
func (a *Adapter) FetchOnce(ctx context.Context, collection string, q store.Query) ([]content.Article, error) {
	cats, err := a.FetchCategories(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := a.store.Fetch(ctx, collection, q)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", collection, err)
	}
	return NormalizeDocuments(docs, cats), nil
}

// FetchMedia reads a videos or podcasts collection.
func (a *Adapter) FetchMedia(ctx context.Context, collection string, kind content.MediaKind) ([]content.Media, error) {
	docs, err := a.store.Fetch(ctx, collection, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", collection, err)
	}
	items := make([]content.Media, 0, len(docs))
	for _, d := range docs {
		items = append(items, content.DecodeMedia(d.ID, kind, d.Fields))
	}
	return items, nil
}

// DecodeCategories converts category documents.
func DecodeCategories(docs []store.Document) []content.Category {
	cats := make([]content.Category, 0, len(docs))
	for _, d := range docs {
		cats = append(cats, content.DecodeCategory(d.ID, d.Fields))
	}
	return cats
}

// NormalizeDocuments decodes and normalizes article documents.
func NormalizeDocuments(docs []store.Document, cats []content.Category) []content.Article {
	out := make([]content.Article, 0, len(docs))
	for _, d := range docs {
		out = append(out, content.Normalize(content.DecodeRecord(d.ID, d.Fields), cats))
	}
	return out
}

var errStreamClosed = errors.New("live query closed by store")
