// Package store defines the document store contract the content layer reads
// from, along with helpers shared by the concrete backends.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Collection names used by the site.
const (
	Articles       = "articles"
	Categories     = "categories"
	Videos         = "videos"
	Podcasts       = "podcasts"
	Newsletter     = "newsletter_subscribers"
	ContactMessage = "contact_messages"
	Settings       = "settings"
)

var (
	// ErrUnavailable reports a failed read, write or subscription at the
	// store boundary (network, permission, quota).
	ErrUnavailable = errors.New("store unavailable")
	// ErrInvalidQuery reports filters the store cannot evaluate.
	ErrInvalidQuery = errors.New("invalid query")
	ErrNotFound     = errors.New("document not found")
	ErrReadOnly     = errors.New("store is read-only")
)

// Unavailable wraps a backend failure so callers can match ErrUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Document is one stored record. Fields hold decoded values: strings,
// numbers, booleans, time.Time for native timestamps, nested maps and
// slices.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Get returns a field value.
func (d Document) Get(field string) any {
	if field == "id" {
		return d.ID
	}
	return d.Fields[field]
}

// Snapshot is one delivery of a live query: the full result set, or the
// error that ended the subscription.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Reader reads collections once or live.
type Reader interface {
	Fetch(ctx context.Context, collection string, q Query) ([]Document, error)
	// Watch delivers the full result set of q now and after every change,
	// in the order the changes happened. The channel is closed when ctx is
	// done or after a snapshot carrying an error.
	Watch(ctx context.Context, collection string, q Query) (<-chan Snapshot, error)
}

// Writer creates and modifies documents.
type Writer interface {
	// Create stores a new document and returns its generated identifier.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Put stores fields under id, replacing any existing document.
	Put(ctx context.Context, collection, id string, fields map[string]any) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Increment adds delta to a numeric field as one atomic step. A missing
	// field counts as zero.
	Increment(ctx context.Context, collection, id, field string, delta int64) error
	Delete(ctx context.Context, collection, id string) error
}

// Store is a complete backend.
type Store interface {
	Reader
	Writer
	Close() error
}
