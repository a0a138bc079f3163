package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func doc(id string, fields map[string]any) Document {
	return Document{ID: id, Fields: fields}
}

func docIDs(docs []Document) string {
	var out []string
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return strings.Join(out, ",")
}

var sampleDocs = []Document{
	doc("a", map[string]any{"status": "published", "read_count": 5, "published_at": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}),
	doc("b", map[string]any{"status": "draft", "read_count": int64(50)}),
	doc("c", map[string]any{"status": "Published", "read_count": 20.0, "published_at": time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}),
	doc("d", map[string]any{"read_count": []int{1}}),
}

func TestApplyFilters(t *testing.T) {
	got, err := Apply(sampleDocs, Query{}.Where("status", OpEq, "published"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if docIDs(got) != "a" {
		t.Errorf("expected a, got %s", docIDs(got))
	}

	got, _ = Apply(sampleDocs, Query{}.Where("status", OpIn, []string{"published", "Published"}))
	if docIDs(got) != "a,c" {
		t.Errorf("expected a,c, got %s", docIDs(got))
	}

	got, _ = Apply(sampleDocs, Query{}.Where("status", OpNeq, "draft"))
	if docIDs(got) != "a,c" {
		t.Errorf("expected missing field excluded from !=, got %s", docIDs(got))
	}

	got, _ = Apply(sampleDocs, Query{}.Where("read_count", OpEq, 50))
	if docIDs(got) != "b" {
		t.Errorf("expected numeric kinds to compare equal, got %s", docIDs(got))
	}
}

func TestApplyOrderAndLimit(t *testing.T) {
	got, err := Apply(sampleDocs, Query{}.OrderBy("read_count", true).WithLimit(3))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if docIDs(got) != "b,c,a" {
		t.Errorf("expected b,c,a, got %s", docIDs(got))
	}

	got, _ = Apply(sampleDocs, Query{}.OrderBy("published_at", true))
	if docIDs(got) != "c,a,b,d" {
		t.Errorf("expected missing values last, got %s", docIDs(got))
	}
	got, _ = Apply(sampleDocs, Query{}.OrderBy("published_at", false))
	if docIDs(got) != "a,c,b,d" {
		t.Errorf("expected missing values last ascending, got %s", docIDs(got))
	}
}

func TestApplyRejectsInvalidQuery(t *testing.T) {
	bad := []Query{
		Query{}.Where("", OpEq, "x"),
		Query{}.Where("status", "~", "x"),
		Query{}.Where("status", OpIn, "published"),
		Query{}.Where("status", OpIn, []string{}),
		Query{}.Where("status", OpEq, []string{"a"}),
		Query{}.WithLimit(-1),
		Query{}.OrderBy(" ", false),
	}
	for _, q := range bad {
		if _, err := Apply(sampleDocs, q); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("query %s: expected ErrInvalidQuery, got %v", q, err)
		}
	}
}

func TestQueryBuildersCopy(t *testing.T) {
	base := Query{}.Where("status", OpEq, "published")
	a := base.Where("category_id", OpEq, "x")
	b := base.Where("category_id", OpEq, "y")
	if len(base.Filters) != 1 || a.Filters[1].Value != "x" || b.Filters[1].Value != "y" {
		t.Errorf("builders share backing storage: %v %v %v", base, a, b)
	}
}

func TestUnavailableWraps(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := Unavailable("fetching articles", cause)
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, cause) {
		t.Errorf("expected both sentinel and cause, got %v", err)
	}
}

func TestFollowDeliversSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewBroker()
	changed, release := broker.Subscribe(Articles)
	calls := 0
	fetch := func(context.Context) ([]Document, error) {
		calls++
		return []Document{doc(fmt.Sprint(calls), nil)}, nil
	}

	snaps := Follow(ctx, fetch, changed, release)
	first := <-snaps
	if first.Err != nil || docIDs(first.Docs) != "1" {
		t.Fatalf("unexpected first snapshot %+v", first)
	}

	broker.Publish(Articles)
	second := <-snaps
	if docIDs(second.Docs) != "2" {
		t.Fatalf("unexpected second snapshot %+v", second)
	}

	cancel()
	for range snaps {
	}
	deadline := time.Now().Add(time.Second)
	for broker.Subscribers(Articles) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := broker.Subscribers(Articles); n != 0 {
		t.Errorf("expected subscription released, got %d", n)
	}
}

func TestFollowStopsOnError(t *testing.T) {
	boom := Unavailable("fetching", errors.New("boom"))
	snaps := Follow(context.Background(), func(context.Context) ([]Document, error) {
		return nil, boom
	}, make(chan struct{}), nil)

	s, ok := <-snaps
	if !ok || !errors.Is(s.Err, ErrUnavailable) {
		t.Fatalf("expected error snapshot, got %+v", s)
	}
	if _, ok := <-snaps; ok {
		t.Error("expected channel closed after error")
	}
}
