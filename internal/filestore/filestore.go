// Package filestore serves collections from a directory of YAML files, one
// file per collection (articles.yaml, categories.yaml, ...). It is read-only
// and meant for fixtures, previews and offline editing; files are watched so
// edits show up live.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/newsdesk/internal/store"
)

const debounceDelay = 200 * time.Millisecond

// Store reads collections from dir.
type Store struct {
	dir string
}

var _ store.Store = (*Store)(nil)

// Open returns a store over dir, which must exist.
func Open(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening content directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening content directory: %s is not a directory", dir)
	}
	return &Store{dir: dir}, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Fetch reads the collection file and evaluates q in memory. A collection
// without a file is empty.
func (s *Store) Fetch(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	docs, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	return store.Apply(docs, q)
}

// Watch re-reads the collection after its file changes on disk.
func (s *Store) Watch(ctx context.Context, collection string, q store.Query) (<-chan store.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, store.Unavailable("creating file watcher", err)
	}
	// Watch the directory: editors often replace files by renaming.
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return nil, store.Unavailable(fmt.Sprintf("watching %s", s.dir), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan struct{}, 1)
	go s.watchLoop(ctx, w, collection, signals)

	fetch := func(ctx context.Context) ([]store.Document, error) {
		return s.Fetch(ctx, collection, q)
	}
	return store.Follow(ctx, fetch, signals, cancel), nil
}

func (s *Store) watchLoop(ctx context.Context, w *fsnotify.Watcher, collection string, signals chan<- struct{}) {
	defer w.Close()
	debounce := time.NewTicker(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	trigger := func() {
		select {
		case <-debounce.C:
		default:
		}
		debounce.Reset(debounceDelay)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !s.isCollectionFile(ev.Name, collection) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				trigger()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("[warn] watcher error on %s: %v", collection, err)
		case <-debounce.C:
			debounce.Stop()
			select {
			case signals <- struct{}{}:
			default:
			}
		}
	}
}

// Create is not supported.
func (s *Store) Create(context.Context, string, map[string]any) (string, error) {
	return "", store.ErrReadOnly
}

// Put is not supported.
func (s *Store) Put(context.Context, string, string, map[string]any) error {
	return store.ErrReadOnly
}

// Update is not supported.
func (s *Store) Update(context.Context, string, string, map[string]any) error {
	return store.ErrReadOnly
}

// Increment is not supported.
func (s *Store) Increment(context.Context, string, string, string, int64) error {
	return store.ErrReadOnly
}

// Delete is not supported.
func (s *Store) Delete(context.Context, string, string) error {
	return store.ErrReadOnly
}

func (s *Store) isCollectionFile(name, collection string) bool {
	base := filepath.Base(name)
	return base == collection+".yaml" || base == collection+".yml"
}

func (s *Store) path(collection string) (string, bool) {
	for _, ext := range []string{".yaml", ".yml"} {
		p := filepath.Join(s.dir, collection+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func (s *Store) load(collection string) ([]store.Document, error) {
	p, ok := s.path(collection)
	if !ok {
		return []store.Document{}, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []store.Document{}, nil
		}
		return nil, store.Unavailable(fmt.Sprintf("reading %s", p), err)
	}
	docs, err := parseCollection(data)
	if err != nil {
		return nil, store.Unavailable(fmt.Sprintf("parsing %s", p), err)
	}
	return docs, nil
}

// parseCollection accepts either a list of mappings carrying an id key or a
// mapping from id to fields. Mapping entries come back sorted by id.
func parseCollection(data []byte) ([]store.Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return []store.Document{}, nil
	}
	root := node.Content[0]

	switch root.Kind {
	case yaml.SequenceNode:
		var items []map[string]any
		if err := root.Decode(&items); err != nil {
			return nil, err
		}
		docs := make([]store.Document, 0, len(items))
		for i, item := range items {
			id := fmt.Sprint(item["id"])
			if item["id"] == nil {
				id = fmt.Sprintf("%d", i+1)
			}
			delete(item, "id")
			docs = append(docs, store.Document{ID: id, Fields: nonNil(item)})
		}
		return docs, nil
	case yaml.MappingNode:
		var byID map[string]map[string]any
		if err := root.Decode(&byID); err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		docs := make([]store.Document, 0, len(ids))
		for _, id := range ids {
			docs = append(docs, store.Document{ID: id, Fields: nonNil(byID[id])})
		}
		return docs, nil
	default:
		return nil, fmt.Errorf("collection must be a list or a mapping")
	}
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
