// Package supabase is the document store over a Supabase project's
// PostgREST API. Each collection is a table with a text "id" primary key;
// every other column is a document field. PostgREST has no push channel
// here, so live queries poll and deliver a snapshot whenever the result set
// changes.
package supabase

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	supa "github.com/supabase-community/supabase-go"

	"github.com/TobiSchelling/newsdesk/internal/store"
)

// DefaultPollInterval is the live query refresh period.
const DefaultPollInterval = 5 * time.Second

// Store reads and writes Supabase tables.
type Store struct {
	client *supa.Client
	poll   time.Duration
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPollInterval sets the live query refresh period.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.poll = d
		}
	}
}

// Open creates a client for the project at url using key.
func Open(url, key string, opts ...Option) (*Store, error) {
	client, err := supa.NewClient(strings.TrimRight(url, "/"), key, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize supabase client: %w", err)
	}
	s := &Store{client: client, poll: DefaultPollInterval}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases nothing; PostgREST calls are stateless.
func (s *Store) Close() error { return nil }

// Fetch selects the rows of collection matching q.
func (s *Store) Fetch(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fb, err := applyQuery(s.client.From(collection).Select("*", "", false), q)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if _, err := fb.ExecuteTo(&rows); err != nil {
		return nil, store.Unavailable(fmt.Sprintf("selecting from %s", collection), err)
	}
	docs := make([]store.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, toDocument(row))
	}
	return docs, nil
}

// Watch polls q and delivers a snapshot on start and whenever the result
// differs from the last one delivered.
func (s *Store) Watch(ctx context.Context, collection string, q store.Query) (<-chan store.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if _, err := applyQuery(s.client.From(collection).Select("*", "", false), q); err != nil {
		return nil, err
	}

	out := make(chan store.Snapshot, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		var last []store.Document
		first := true
		for {
			docs, err := s.Fetch(ctx, collection, q)
			if ctx.Err() != nil {
				return
			}
			if err != nil || first || !reflect.DeepEqual(docs, last) {
				select {
				case out <- store.Snapshot{Docs: docs, Err: err}:
				case <-ctx.Done():
					return
				}
				if err != nil {
					log.Printf("Live query on %s stopped: %v", collection, err)
					return
				}
				last, first = docs, false
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Create inserts a row under a new random identifier.
func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	row := withID(id, fields)
	var inserted []map[string]any
	if _, err := s.client.From(collection).Insert(row, false, "", "representation", "").ExecuteTo(&inserted); err != nil {
		return "", store.Unavailable(fmt.Sprintf("inserting into %s", collection), err)
	}
	return id, nil
}

// Put upserts the row stored under id.
func (s *Store) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	row := withID(id, fields)
	var upserted []map[string]any
	if _, err := s.client.From(collection).Insert(row, true, "id", "representation", "").ExecuteTo(&upserted); err != nil {
		return store.Unavailable(fmt.Sprintf("upserting %s/%s", collection, id), err)
	}
	return nil
}

// Update patches the row stored under id.
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	var updated []map[string]any
	_, err := s.client.From(collection).Update(encodeRow(fields), "representation", "").
		Eq("id", id).ExecuteTo(&updated)
	if err != nil {
		return store.Unavailable(fmt.Sprintf("updating %s/%s", collection, id), err)
	}
	if len(updated) == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

// maxIncrementAttempts bounds the compare-and-set retries of Increment.
const maxIncrementAttempts = 8

// Increment adds delta to field. PostgREST has no arithmetic update, so the
// new value is written only if the column still holds the value read;
// otherwise another writer got there first and the step is retried.
func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	op := fmt.Sprintf("incrementing %s/%s", collection, id)
	for attempt := 0; attempt < maxIncrementAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var rows []map[string]any
		if _, err := s.client.From(collection).Select(field, "", false).Eq("id", id).ExecuteTo(&rows); err != nil {
			return store.Unavailable(op, err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
		}

		current := rows[0][field]
		n, _ := current.(float64)
		upd := s.client.From(collection).Update(map[string]any{field: int64(n) + delta}, "representation", "").Eq("id", id)
		if current == nil {
			upd = upd.Is(field, "null")
		} else {
			upd = upd.Eq(field, fmt.Sprint(current))
		}
		var updated []map[string]any
		if _, err := upd.ExecuteTo(&updated); err != nil {
			return store.Unavailable(op, err)
		}
		if len(updated) > 0 {
			return nil
		}
	}
	return store.Unavailable(op, fmt.Errorf("%s kept changing under %d attempts", field, maxIncrementAttempts))
}

// Delete removes the row stored under id.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	var deleted []map[string]any
	_, err := s.client.From(collection).Delete("representation", "").Eq("id", id).ExecuteTo(&deleted)
	if err != nil {
		return store.Unavailable(fmt.Sprintf("deleting %s/%s", collection, id), err)
	}
	if len(deleted) == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

func withID(id string, fields map[string]any) map[string]any {
	row := encodeRow(fields)
	row["id"] = id
	return row
}

// encodeRow renders times in the form PostgREST accepts for timestamptz.
func encodeRow(fields map[string]any) map[string]any {
	row := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339Nano)
		}
		row[k] = v
	}
	return row
}
