package store

import (
	"context"
	"sync"
)

// Broker fans change signals for a collection out to live queries. Signals
// carry no payload; a watcher re-reads its query on every signal. A pending
// signal absorbs later ones until the watcher has re-read.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe returns a channel signalled after each change to collection and
// a function that releases it.
func (b *Broker) Subscribe(collection string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[chan struct{}]struct{})
	}
	b.subs[collection][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[collection], ch)
			b.mu.Unlock()
		})
	}
}

// Publish signals every subscriber of collection.
func (b *Broker) Publish(collection string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions on collection.
func (b *Broker) Subscribers(collection string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[collection])
}

// FetchFunc reads the current result set of a live query.
type FetchFunc func(ctx context.Context) ([]Document, error)

// Follow runs a live query: it delivers fetch's result immediately and again
// after every signal on changed, until ctx is done or changed is closed. A
// failed fetch is delivered as the final snapshot. release, if not nil, runs
// when the loop exits.
func Follow(ctx context.Context, fetch FetchFunc, changed <-chan struct{}, release func()) <-chan Snapshot {
	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		if release != nil {
			defer release()
		}
		for {
			docs, err := fetch(ctx)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- Snapshot{Docs: docs, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
			select {
			case _, ok := <-changed:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
