// Package database is the local document store on SQLite. Documents are kept
// as JSON per collection; live queries are driven by the store's own writes
// and by revision counters that other processes bump.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/TobiSchelling/newsdesk/internal/store"

	_ "modernc.org/sqlite"
)

// DefaultPollInterval is how often live queries look for writes made by
// other processes.
const DefaultPollInterval = 2 * time.Second

// DB wraps a SQLite database connection.
type DB struct {
	conn   *sql.DB
	path   string
	broker *store.Broker
	poll   time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

var _ store.Store = (*DB)(nil)

// Option configures a DB.
type Option func(*DB)

// WithPollInterval sets how often live queries check for external writes.
// Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(db *DB) { db.poll = d }
}

// Open creates or opens a SQLite database at the given path.
func Open(dbPath string, opts ...Option) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	db := &DB{
		conn:   conn,
		path:   dbPath,
		broker: store.NewBroker(),
		poll:   DefaultPollInterval,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// dsn applies the pragmas to every pooled connection, not just the first.
// Write transactions take the write lock on BEGIN so concurrent writers
// wait on busy_timeout instead of failing on lock upgrade.
func dsn(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Close stops live queries and closes the database connection.
func (db *DB) Close() error {
	db.closeOnce.Do(func() { close(db.done) })
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Counts returns the number of documents per collection.
func (db *DB) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT collection, COUNT(*) FROM documents GROUP BY collection")
	if err != nil {
		return nil, store.Unavailable("counting documents", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, store.Unavailable("scanning counts", err)
		}
		counts[name] = n
	}
	return counts, rows.Err()
}
