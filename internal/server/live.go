package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/TobiSchelling/newsdesk/internal/aggregate"
	"github.com/TobiSchelling/newsdesk/internal/content"
	"github.com/TobiSchelling/newsdesk/internal/store"
)

// DefaultRetry is the delay before a failed live query is reopened.
const DefaultRetry = 5 * time.Second

// ErrNotReady is returned before the first snapshot arrives.
var ErrNotReady = errors.New("content not loaded yet")

// Source supplies the current published articles and categories.
type Source interface {
	Snapshot(ctx context.Context) ([]content.Article, []content.Category, error)
}

// Live keeps the latest published articles of a live subscription in
// memory. When the subscription fails, the error is reported to readers
// until a new subscription, opened after the retry delay, delivers data.
type Live struct {
	adapter *aggregate.Adapter
	retry   time.Duration

	mu         sync.RWMutex
	articles   []content.Article
	categories []content.Category
	err        error
	ready      chan struct{}
	readyOnce  sync.Once
}

// NewLive creates a Live over adapter. Call Run to start it.
func NewLive(adapter *aggregate.Adapter, retry time.Duration) *Live {
	if retry <= 0 {
		retry = DefaultRetry
	}
	return &Live{adapter: adapter, retry: retry, ready: make(chan struct{})}
}

// Run subscribes to published articles until ctx is done.
func (l *Live) Run(ctx context.Context) {
	for {
		sub, err := l.adapter.Subscribe(ctx, store.Articles, aggregate.PublishedQuery(store.Query{}), aggregate.Handlers{
			OnUpdate:     l.setArticles,
			OnCategories: l.setCategories,
			OnError:      l.setError,
		})
		if err != nil {
			l.setError(err)
		} else {
			select {
			case <-ctx.Done():
				sub.Cancel()
				<-sub.Done()
				return
			case <-sub.Done():
			}
		}

		if ctx.Err() != nil {
			return
		}
		log.Printf("Live query stopped, reopening in %s", l.retry)
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.retry):
		}
	}
}

// Snapshot returns the latest published articles and categories. It
// waits for the first delivery, or ctx, before giving up.
func (l *Live) Snapshot(ctx context.Context) ([]content.Article, []content.Category, error) {
	select {
	case <-l.ready:
	case <-ctx.Done():
		return nil, nil, ErrNotReady
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.err != nil {
		return nil, nil, l.err
	}
	return l.articles, l.categories, nil
}

func (l *Live) setArticles(articles []content.Article) {
	l.mu.Lock()
	l.articles = articles
	l.err = nil
	l.mu.Unlock()
	l.readyOnce.Do(func() { close(l.ready) })
}

func (l *Live) setCategories(categories []content.Category) {
	l.mu.Lock()
	l.categories = categories
	l.mu.Unlock()
}

func (l *Live) setError(err error) {
	log.Printf("Live query failed: %v", err)
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
	l.readyOnce.Do(func() { close(l.ready) })
}
