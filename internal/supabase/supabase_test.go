package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/TobiSchelling/newsdesk/internal/store"
)

// fakePostgREST serves a single table from memory and records requests.
type fakePostgREST struct {
	mu       sync.Mutex
	rows     []map[string]any
	queries  []url.Values
	bodies   []map[string]any
	failNext bool
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, r.URL.Query())
	w.Header().Set("Content-Type", "application/json")

	if f.failNext {
		f.failNext = false
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"code":"PGRST000","message":"database unavailable"}`))
		return
	}
	if r.URL.Path != "/rest/v1/articles" {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"42P01","message":"relation does not exist"}`))
		return
	}

	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(f.rows)
	case http.MethodPost, http.MethodPatch:
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		json.Unmarshal(data, &body)
		f.bodies = append(f.bodies, body)
		if r.Method == http.MethodPatch && r.URL.Query().Get("id") == "eq.missing" {
			w.Write([]byte(`[]`))
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{body})
	case http.MethodDelete:
		w.Write([]byte(`[]`))
	}
}

func (f *fakePostgREST) setRows(rows []map[string]any) {
	f.mu.Lock()
	f.rows = rows
	f.mu.Unlock()
}

func (f *fakePostgREST) lastQuery() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func newTestStore(t *testing.T) (*Store, *fakePostgREST) {
	t.Helper()
	fake := &fakePostgREST{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	s, err := Open(srv.URL, "test-key", WithPollInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, fake
}

func TestFetchTranslatesQuery(t *testing.T) {
	s, fake := newTestStore(t)
	fake.setRows([]map[string]any{
		{"id": "a1", "title": "Kenya", "published_at": "2024-03-01T09:00:00+00:00", "read_count": 4},
		{"id": float64(7), "title": "Numeric id"},
	})

	q := store.Query{}.
		Where("status", store.OpIn, []string{"published", "Published"}).
		Where("category_id", store.OpEq, "africa-news").
		OrderBy("published_at", true).
		WithLimit(10)
	docs, err := s.Fetch(context.Background(), store.Articles, q)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	params := fake.lastQuery()
	if got := params.Get("status"); got != "in.(published,Published)" {
		t.Errorf("unexpected status filter %q", got)
	}
	if got := params.Get("category_id"); got != "eq.africa-news" {
		t.Errorf("unexpected category filter %q", got)
	}
	if got := params.Get("order"); got != "published_at.desc.nullslast" {
		t.Errorf("unexpected order %q", got)
	}
	if got := params.Get("limit"); got != "10" {
		t.Errorf("unexpected limit %q", got)
	}

	if len(docs) != 2 || docs[0].ID != "a1" || docs[1].ID != "7" {
		t.Fatalf("unexpected docs %+v", docs)
	}
	when, ok := docs[0].Fields["published_at"].(time.Time)
	if !ok || !when.Equal(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("expected parsed timestamp, got %#v", docs[0].Fields["published_at"])
	}
	if _, ok := docs[0].Fields["id"]; ok {
		t.Error("expected id lifted out of fields")
	}
}

func TestFetchRejectsRepeatedColumn(t *testing.T) {
	s, _ := newTestStore(t)
	q := store.Query{}.Where("status", store.OpNeq, "draft").Where("status", store.OpNeq, "archived")
	if _, err := s.Fetch(context.Background(), store.Articles, q); !errors.Is(err, store.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestFetchSurfacesServerErrors(t *testing.T) {
	s, fake := newTestStore(t)
	fake.failNext = true
	_, err := s.Fetch(context.Background(), store.Articles, store.Query{})
	if !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestWrites(t *testing.T) {
	s, fake := newTestStore(t)
	ctx := context.Background()
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	id, err := s.Create(ctx, store.Articles, map[string]any{"title": "New", "created_at": when})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	body := fake.bodies[len(fake.bodies)-1]
	if body["id"] != id || body["created_at"] != "2024-01-02T03:04:05Z" {
		t.Errorf("unexpected insert body %v", body)
	}

	if err := s.Update(ctx, store.Articles, id, map[string]any{"status": "published"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := fake.lastQuery().Get("id"); got != "eq."+id {
		t.Errorf("unexpected update filter %q", got)
	}

	if err := s.Update(ctx, store.Articles, "missing", map[string]any{"x": 1}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, store.Articles, "gone"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWatchPollsForChanges(t *testing.T) {
	s, fake := newTestStore(t)
	fake.setRows([]map[string]any{{"id": "a1", "title": "One"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	snaps, err := s.Watch(ctx, store.Articles, store.Query{})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	first := <-snaps
	if first.Err != nil || len(first.Docs) != 1 {
		t.Fatalf("unexpected first snapshot %+v", first)
	}

	fake.setRows([]map[string]any{{"id": "a1", "title": "One"}, {"id": "a2", "title": "Two"}})
	select {
	case s := <-snaps:
		if len(s.Docs) != 2 {
			t.Errorf("expected 2 docs, got %d", len(s.Docs))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
	}

	cancel()
	for range snaps {
	}
}

// counterTable serves one row's read_count and applies PATCHes only when
// their read_count filter matches, like a PostgREST conditional update.
type counterTable struct {
	mu       sync.Mutex
	value    any
	patches  int
	bumpOnce bool
}

func (c *counterTable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	q := r.URL.Query()
	if q.Get("id") != "eq.a1" {
		w.Write([]byte(`[]`))
		return
	}

	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode([]map[string]any{{"read_count": c.value}})
	case http.MethodPatch:
		c.patches++
		if c.bumpOnce {
			// another writer lands between our read and write
			c.bumpOnce = false
			c.value = 100.0
		}
		want := "is.null"
		if c.value != nil {
			want = "eq." + strconv.FormatFloat(c.value.(float64), 'f', -1, 64)
		}
		if q.Get("read_count") != want {
			w.Write([]byte(`[]`))
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		c.value = body["read_count"]
		json.NewEncoder(w).Encode([]map[string]any{body})
	}
}

func TestIncrementRetriesOnConflict(t *testing.T) {
	table := &counterTable{value: 7.0, bumpOnce: true}
	srv := httptest.NewServer(table)
	defer srv.Close()
	s, err := Open(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.Increment(context.Background(), store.Articles, "a1", "read_count", 1); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if table.value != 101.0 {
		t.Errorf("expected 101 after the concurrent bump, got %v", table.value)
	}
	if table.patches != 2 {
		t.Errorf("expected a retried update, saw %d patches", table.patches)
	}
}

func TestIncrementNullAndMissing(t *testing.T) {
	table := &counterTable{}
	srv := httptest.NewServer(table)
	defer srv.Close()
	s, err := Open(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()

	if err := s.Increment(ctx, store.Articles, "a1", "read_count", 1); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if table.value != 1.0 {
		t.Errorf("expected 1 from a null column, got %v", table.value)
	}
	if err := s.Increment(ctx, store.Articles, "nope", "read_count", 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
