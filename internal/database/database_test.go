package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/TobiSchelling/newsdesk/internal/store"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), WithPollInterval(0))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func nextSnapshot(t *testing.T, snaps <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case s, ok := <-snaps:
		if !ok {
			t.Fatal("snapshot channel closed")
		}
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return store.Snapshot{}
}

func TestCreateAndFetch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	published := time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC)

	id, err := db.Create(ctx, store.Articles, map[string]any{
		"title":        "Kenya and Ethiopia Strengthen Ties",
		"status":       "published",
		"published_at": published,
		"read_count":   12,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	docs, err := db.Fetch(ctx, store.Articles, store.Query{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != id {
		t.Fatalf("unexpected docs %+v", docs)
	}
	got, ok := docs[0].Fields["published_at"].(time.Time)
	if !ok || !got.Equal(published) {
		t.Errorf("expected native time back, got %#v", docs[0].Fields["published_at"])
	}
	if docs[0].Fields["read_count"] != float64(12) {
		t.Errorf("unexpected read_count %#v", docs[0].Fields["read_count"])
	}
}

func TestFetchAppliesQuery(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	db.Put(ctx, store.Articles, "a", map[string]any{"status": "published", "read_count": 5})
	db.Put(ctx, store.Articles, "b", map[string]any{"status": "draft", "read_count": 50})
	db.Put(ctx, store.Articles, "c", map[string]any{"status": "published", "read_count": 20})
	db.Put(ctx, store.Categories, "x", map[string]any{"name": "Business"})

	q := store.Query{}.Where("status", store.OpEq, "published").OrderBy("read_count", true)
	docs, err := db.Fetch(ctx, store.Articles, q)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "c" || docs[1].ID != "a" {
		t.Errorf("unexpected result %+v", docs)
	}

	_, err = db.Fetch(ctx, store.Articles, store.Query{}.Where("status", "like", "pub%"))
	if !errors.Is(err, store.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestPutReplacesAndUpdateMerges(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Put(ctx, store.Articles, "a", map[string]any{"title": "First", "author": "Amina"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Put(ctx, store.Articles, "a", map[string]any{"title": "Second"}); err != nil {
		t.Fatalf("Put again: %v", err)
	}
	if err := db.Update(ctx, store.Articles, "a", map[string]any{"status": "published"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	docs, _ := db.Fetch(ctx, store.Articles, store.Query{})
	if len(docs) != 1 {
		t.Fatalf("expected one document, got %d", len(docs))
	}
	f := docs[0].Fields
	if f["title"] != "Second" || f["status"] != "published" || f["author"] != nil {
		t.Errorf("unexpected fields %+v", f)
	}
}

func TestMissingDocuments(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Update(ctx, store.Articles, "nope", map[string]any{"x": 1}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound from Update, got %v", err)
	}
	if err := db.Delete(ctx, store.Articles, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound from Delete, got %v", err)
	}
}

func TestWatchSeesWrites(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snaps, err := db.Watch(ctx, store.Articles, store.Query{}.Where("status", store.OpEq, "published"))
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if s := nextSnapshot(t, snaps); len(s.Docs) != 0 || s.Err != nil {
		t.Fatalf("expected empty initial snapshot, got %+v", s)
	}

	db.Put(context.Background(), store.Articles, "a", map[string]any{"status": "published"})
	if s := nextSnapshot(t, snaps); len(s.Docs) != 1 {
		t.Fatalf("expected one document after write, got %+v", s)
	}

	db.Delete(context.Background(), store.Articles, "a")
	if s := nextSnapshot(t, snaps); len(s.Docs) != 0 {
		t.Fatalf("expected empty snapshot after delete, got %+v", s)
	}

	cancel()
	for range snaps {
	}
}

func TestWatchSeesOtherProcessWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	reader, err := Open(path, WithPollInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("Open reader: %v", err)
	}
	defer reader.Close()
	writer, err := Open(path)
	if err != nil {
		t.Fatalf("Open writer: %v", err)
	}
	defer writer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	snaps, err := reader.Watch(ctx, store.Categories, store.Query{})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	nextSnapshot(t, snaps)

	if err := writer.Put(context.Background(), store.Categories, "c1", map[string]any{"name": "Sports"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if s := nextSnapshot(t, snaps); len(s.Docs) != 1 || s.Docs[0].ID != "c1" {
		t.Fatalf("expected external write to be seen, got %+v", s)
	}
}

func TestWatchRejectsInvalidQuery(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Watch(context.Background(), store.Articles, store.Query{}.Where("status", store.OpIn, "published"))
	if !errors.Is(err, store.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestCounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	db.Create(ctx, store.Articles, map[string]any{"title": "A"})
	db.Create(ctx, store.Articles, map[string]any{"title": "B"})
	db.Create(ctx, store.Categories, map[string]any{"name": "C"})

	counts, err := db.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[store.Articles] != 2 || counts[store.Categories] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestConcurrentWrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.Put(ctx, store.Articles, "shared", map[string]any{"title": "Start"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	const writers = 20
	errs := make(chan error, 2*writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := db.Create(ctx, store.Articles, map[string]any{"title": fmt.Sprintf("Piece %d", i)})
			errs <- err
		}(i)
		go func(i int) {
			defer wg.Done()
			errs <- db.Update(ctx, store.Articles, "shared", map[string]any{fmt.Sprintf("field_%d", i): i})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent write failed: %v", err)
		}
	}

	docs, err := db.Fetch(ctx, store.Articles, store.Query{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(docs) != writers+1 {
		t.Errorf("expected %d documents, got %d", writers+1, len(docs))
	}
	for _, d := range docs {
		if d.ID == "shared" && len(d.Fields) != writers+1 {
			t.Errorf("expected every update merged, got %d fields", len(d.Fields))
		}
	}
}

func TestIncrement(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	db.Put(ctx, store.Articles, "a", map[string]any{"read_count": 920})
	db.Put(ctx, store.Articles, "b", map[string]any{"title": "No counter yet"})

	const readers = 50
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := db.Increment(ctx, store.Articles, "a", "read_count", 1); err != nil {
				t.Errorf("Increment: %v", err)
			}
		}()
	}
	wg.Wait()
	if err := db.Increment(ctx, store.Articles, "b", "read_count", 3); err != nil {
		t.Fatalf("Increment missing field: %v", err)
	}

	docs, _ := db.Fetch(ctx, store.Articles, store.Query{}.OrderBy("id", false))
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if got := docs[0].Fields["read_count"]; got != float64(920+readers) {
		t.Errorf("expected %d reads, got %#v", 920+readers, got)
	}
	if got := docs[1].Fields["read_count"]; got != float64(3) || docs[1].Fields["title"] != "No counter yet" {
		t.Errorf("unexpected fields after increment %+v", docs[1].Fields)
	}
	if err := db.Increment(ctx, store.Articles, "nope", "read_count", 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
