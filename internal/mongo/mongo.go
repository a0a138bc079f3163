// Package mongo is the document store backed by MongoDB. Live queries ride
// on change streams, which require a replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/TobiSchelling/newsdesk/internal/store"
)

// Store wraps the MongoDB client and database.
type Store struct {
	client   *driver.Client
	database *driver.Database
}

var _ store.Store = (*Store)(nil)

// Open connects to uri and verifies the connection.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo connection string not set")
	}
	client, err := driver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, store.Unavailable("connecting to mongo", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, store.Unavailable("pinging mongo", err)
	}
	return &Store{client: client, database: client.Database(database)}, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// Fetch runs q against collection.
func (s *Store) Fetch(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	filter, err := buildFilter(q)
	if err != nil {
		return nil, err
	}

	cursor, err := s.database.Collection(collection).Find(ctx, filter, findOptions(q))
	if err != nil {
		return nil, store.Unavailable(fmt.Sprintf("querying %s", collection), err)
	}
	defer cursor.Close(ctx)

	var docs []store.Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			continue // Skip undecodable documents
		}
		docs = append(docs, toDocument(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, store.Unavailable("cursor error", err)
	}
	return docs, nil
}

// Watch re-runs q after every change event on collection.
func (s *Store) Watch(ctx context.Context, collection string, q store.Query) (<-chan store.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if _, err := buildFilter(q); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, err := s.database.Collection(collection).Watch(ctx, driver.Pipeline{})
	if err != nil {
		cancel()
		return nil, store.Unavailable(fmt.Sprintf("watching %s", collection), err)
	}

	var (
		mu        sync.Mutex
		streamErr error
	)
	signals := make(chan struct{}, 1)
	go relay(ctx, stream, collection, signals, func(err error) {
		mu.Lock()
		streamErr = err
		mu.Unlock()
	})

	fetch := func(ctx context.Context) ([]store.Document, error) {
		mu.Lock()
		err := streamErr
		mu.Unlock()
		if err != nil {
			return nil, err
		}
		return s.Fetch(ctx, collection, q)
	}
	return store.Follow(ctx, fetch, signals, cancel), nil
}

// changeStream is the part of *mongo.ChangeStream relay needs.
type changeStream interface {
	Next(ctx context.Context) bool
	Err() error
	Close(ctx context.Context) error
}

var errStreamEnded = errors.New("change stream ended")

// relay turns change events into signals. When the stream stops while ctx
// is still live, including a clean end after an invalidate event, the
// failure is recorded through fail before a last signal.
func relay(ctx context.Context, stream changeStream, collection string, signals chan<- struct{}, fail func(error)) {
	defer stream.Close(context.Background())
	for stream.Next(ctx) {
		select {
		case signals <- struct{}{}:
		default:
		}
	}
	if ctx.Err() != nil {
		return
	}
	err := stream.Err()
	if err == nil {
		err = errStreamEnded
	}
	fail(store.Unavailable(fmt.Sprintf("change stream on %s", collection), err))
	select {
	case signals <- struct{}{}:
	default:
	}
}

// Create inserts fields under a new random identifier.
func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	doc := bson.M{"_id": id}
	for k, v := range fields {
		doc[k] = v
	}
	if _, err := s.database.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", store.Unavailable(fmt.Sprintf("inserting into %s", collection), err)
	}
	return id, nil
}

// Put replaces the document stored under id, creating it if needed.
func (s *Store) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	doc := bson.M{}
	for k, v := range fields {
		doc[k] = v
	}
	_, err := s.database.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return store.Unavailable(fmt.Sprintf("replacing %s/%s", collection, id), err)
	}
	return nil
}

// Update sets fields on the document stored under id.
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	res, err := s.database.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(fields)})
	if err != nil {
		return store.Unavailable(fmt.Sprintf("updating %s/%s", collection, id), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

// Increment adds delta to field with $inc.
func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	res, err := s.database.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, incrementUpdate(field, delta))
	if err != nil {
		return store.Unavailable(fmt.Sprintf("incrementing %s/%s", collection, id), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

// Delete removes the document stored under id.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.database.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return store.Unavailable(fmt.Sprintf("deleting %s/%s", collection, id), err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}
