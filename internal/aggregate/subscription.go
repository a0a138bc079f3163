package aggregate

import (
	"context"
	"sync"

	"github.com/TobiSchelling/newsdesk/internal/content"
	"github.com/TobiSchelling/newsdesk/internal/store"
)

// Handlers receive a subscription's deliveries. All calls for one
// subscription happen on a single goroutine, in store order. Nil handlers
// are skipped.
type Handlers struct {
	// OnUpdate receives the full normalized collection; it replaces
	// whatever the previous call delivered.
	OnUpdate func([]content.Article)
	// OnCategories receives the category snapshot used for normalization
	// whenever it changes.
	OnCategories func([]content.Category)
	// OnError receives the store failure that ended the subscription.
	OnError func(error)
}

// Subscription is a live query started by Subscribe.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	cancelled bool
}

// Subscribe runs q on collection live. Every article snapshot, and every
// category change, re-normalizes the latest articles and hands them to
// h.OnUpdate. Nothing is delivered until both the articles and categories
// have arrived once. A query the store rejects up front is returned as an
// error; later failures go to h.OnError and end the subscription.
func (a *Adapter) Subscribe(ctx context.Context, collection string, q store.Query, h Handlers) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	articles, err := a.store.Watch(ctx, collection, q)
	if err != nil {
		cancel()
		return nil, err
	}
	cats, err := a.store.Watch(ctx, a.categories, store.Query{})
	if err != nil {
		cancel()
		return nil, err
	}

	s := &Subscription{cancel: cancel, done: make(chan struct{})}
	go s.run(ctx, articles, cats, h)
	return s, nil
}

// Cancel stops the subscription and releases the store's live queries.
// It does not wait for handlers: a call dispatched before Cancel may still
// be running, or just starting, when it returns. Wait on Done for the point
// after which no handler runs. Cancel may be called from a handler, and
// calling it again does nothing.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.mu.Unlock()
	s.cancel()
}

// Done is closed once the subscription has stopped, whether cancelled or
// ended by an error, and any handler call in progress has returned.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) run(ctx context.Context, articles, cats <-chan store.Snapshot, h Handlers) {
	defer close(s.done)
	defer s.cancel()

	var (
		docs       []store.Document
		categories []content.Category
		haveDocs   bool
		haveCats   bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-articles:
			if !s.accept(ctx, snap, ok, h) {
				return
			}
			docs, haveDocs = snap.Docs, true
		case snap, ok := <-cats:
			if !s.accept(ctx, snap, ok, h) {
				return
			}
			categories, haveCats = DecodeCategories(snap.Docs), true
			if h.OnCategories != nil {
				cs := categories
				s.deliver(func() { h.OnCategories(cs) })
			}
		}
		if haveDocs && haveCats && h.OnUpdate != nil {
			normalized := NormalizeDocuments(docs, categories)
			s.deliver(func() { h.OnUpdate(normalized) })
		}
	}
}

// accept reports whether snap carries data. Errors and unexpected closes
// are passed to OnError.
func (s *Subscription) accept(ctx context.Context, snap store.Snapshot, ok bool, h Handlers) bool {
	if !ok {
		if ctx.Err() == nil {
			s.fail(h, store.Unavailable("live query", errStreamClosed))
		}
		return false
	}
	if snap.Err != nil {
		s.fail(h, snap.Err)
		return false
	}
	return true
}

func (s *Subscription) fail(h Handlers, err error) {
	if h.OnError != nil {
		s.deliver(func() { h.OnError(err) })
	}
}

// deliver runs fn unless the subscription was cancelled. It only runs on
// the run goroutine, so returning from run orders every call before Done.
func (s *Subscription) deliver(fn func()) {
	s.mu.Lock()
	cancelled := s.cancelled
	s.mu.Unlock()
	if !cancelled {
		fn()
	}
}
