package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/newsdesk/internal/store"
)

// timeKey marks an encoded time.Time inside stored JSON so native
// timestamps come back as time.Time rather than strings.
const timeKey = "$time"

// Fetch returns the documents of collection matching q, in insertion order
// unless q sorts them.
func (db *DB) Fetch(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	docs, err := db.all(ctx, collection)
	if err != nil {
		return nil, err
	}
	return store.Apply(docs, q)
}

// Watch runs q live. It re-reads on every write made through db and, when
// polling is enabled, whenever another process bumps the collection
// revision.
func (db *DB) Watch(ctx context.Context, collection string, q store.Query) (<-chan store.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	rev, err := db.revision(ctx, collection)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	changed, unsubscribe := db.broker.Subscribe(collection)
	signals := make(chan struct{}, 1)
	go func() {
		var tick <-chan time.Time
		if db.poll > 0 {
			ticker := time.NewTicker(db.poll)
			defer ticker.Stop()
			tick = ticker.C
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-db.done:
				cancel()
				return
			case <-changed:
				if latest, err := db.revision(ctx, collection); err == nil {
					rev = latest
				}
			case <-tick:
				latest, err := db.revision(ctx, collection)
				if err != nil || latest == rev {
					continue
				}
				rev = latest
			}
			select {
			case signals <- struct{}{}:
			default:
			}
		}
	}()

	fetch := func(ctx context.Context) ([]store.Document, error) {
		return db.Fetch(ctx, collection, q)
	}
	return store.Follow(ctx, fetch, signals, func() {
		unsubscribe()
		cancel()
	}), nil
}

// Create stores fields under a new random identifier.
func (db *DB) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := db.write(ctx, collection, func(tx *sql.Tx) error {
		data, err := encodeFields(fields)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)",
			collection, id, data)
		return err
	}); err != nil {
		return "", err
	}
	return id, nil
}

// Put stores fields under id, replacing any existing document.
func (db *DB) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	return db.write(ctx, collection, func(tx *sql.Tx) error {
		data, err := encodeFields(fields)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
ON CONFLICT(collection, id) DO UPDATE SET
    data = excluded.data,
    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
			collection, id, data)
		return err
	})
}

// Update merges fields into the document stored under id.
func (db *DB) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return db.write(ctx, collection, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx,
			"SELECT data FROM documents WHERE collection = ? AND id = ?",
			collection, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
		}
		if err != nil {
			return err
		}
		merged, err := decodeFields(raw)
		if err != nil {
			return err
		}
		for k, v := range fields {
			merged[k] = v
		}
		data, err := encodeFields(merged)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
UPDATE documents SET data = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
WHERE collection = ? AND id = ?`, data, collection, id)
		return err
	})
}

// Increment adds delta to field inside the write transaction, so
// concurrent increments never lose an update. A missing or non-numeric
// field counts as zero.
func (db *DB) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	path := "$." + strconv.Quote(field)
	return db.write(ctx, collection, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE documents SET
    data = json_set(data, ?1,
        CASE WHEN json_type(data, ?1) IN ('integer', 'real') THEN json_extract(data, ?1) ELSE 0 END + ?2),
    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
WHERE collection = ?3 AND id = ?4`, path, delta, collection, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
		}
		return nil
	})
}

// Delete removes the document stored under id.
func (db *DB) Delete(ctx context.Context, collection, id string) error {
	return db.write(ctx, collection, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE collection = ? AND id = ?", collection, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
		}
		return nil
	})
}

// write runs fn in a transaction that also bumps the collection revision,
// then wakes live queries on the collection.
func (db *DB) write(ctx context.Context, collection string, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return store.Unavailable("beginning write", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return store.Unavailable(fmt.Sprintf("writing %s", collection), err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO collection_revisions (collection, revision) VALUES (?, 1)
ON CONFLICT(collection) DO UPDATE SET revision = revision + 1`, collection); err != nil {
		tx.Rollback()
		return store.Unavailable("bumping revision", err)
	}
	if err := tx.Commit(); err != nil {
		return store.Unavailable("committing write", err)
	}
	db.broker.Publish(collection)
	return nil
}

func (db *DB) revision(ctx context.Context, collection string) (int64, error) {
	var rev int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT revision FROM collection_revisions WHERE collection = ?", collection).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, store.Unavailable("reading revision", err)
	}
	return rev, nil
}

func (db *DB) all(ctx context.Context, collection string) ([]store.Document, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, data FROM documents WHERE collection = ? ORDER BY created_at, rowid", collection)
	if err != nil {
		return nil, store.Unavailable(fmt.Sprintf("querying %s", collection), err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, store.Unavailable("scanning document", err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			// A corrupt row should not hide the rest of the collection.
			fields = map[string]any{}
		}
		docs = append(docs, store.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable(fmt.Sprintf("reading %s", collection), err)
	}
	return docs, nil
}

func encodeFields(fields map[string]any) (string, error) {
	enc := make(map[string]any, len(fields))
	for k, v := range fields {
		enc[k] = encodeValue(v)
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}
	return string(data), nil
}

func encodeValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return map[string]any{timeKey: x.UTC().Format(time.RFC3339Nano)}
	case *time.Time:
		if x == nil {
			return nil
		}
		return encodeValue(*x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, inner := range x {
			out[k] = encodeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, inner := range x {
			out[i] = encodeValue(inner)
		}
		return out
	}
	return v
}

func decodeFields(raw string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	for k, v := range fields {
		fields[k] = decodeValue(v)
	}
	return fields, nil
}

func decodeValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		if s, ok := x[timeKey].(string); ok && len(x) == 1 {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t
			}
		}
		for k, inner := range x {
			x[k] = decodeValue(inner)
		}
		return x
	case []any:
		for i, inner := range x {
			x[i] = decodeValue(inner)
		}
		return x
	}
	return v
}
