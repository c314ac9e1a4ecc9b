// Package store persists engine snapshots in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chazu/intcode/vm"
	"github.com/chazu/intcode/vm/snapshot"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("intcode.store")

// ErrNotFound indicates the requested snapshot doesn't exist.
var ErrNotFound = errors.New("store: snapshot not found")

// Record describes a stored snapshot without its data.
type Record struct {
	ID      string
	Name    string
	Created time.Time
	Steps   int64
}

// Store is a snapshot database. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: creating %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save snapshots e under name and returns the new snapshot id.
func (s *Store) Save(ctx context.Context, name string, e *vm.Engine) (string, error) {
	data, err := snapshot.Encode(e)
	if err != nil {
		return "", fmt.Errorf("store: encoding %q: %w", name, err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO snapshots (id, name, created_at, steps, data) VALUES (?, ?, ?, ?, ?)",
		id, name, time.Now().UnixNano(), e.Steps(), data,
	)
	if err != nil {
		return "", fmt.Errorf("store: saving %q: %w", name, err)
	}
	log.Debugf("saved snapshot %s (%s, %d steps, %d bytes)", id, name, e.Steps(), len(data))
	return id, nil
}

// Load rebuilds the engine stored under id. opts are applied to it.
func (s *Store) Load(ctx context.Context, id string, opts ...vm.Option) (*vm.Engine, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("store: querying %s: %w", id, err)
	}
	e, err := snapshot.Decode(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", id, err)
	}
	return e, nil
}

// List returns all snapshots, newest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at, steps FROM snapshots ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("store: listing: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r       Record
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Name, &created, &r.Steps); err != nil {
			return nil, fmt.Errorf("store: listing: %w", err)
		}
		r.Created = time.Unix(0, created)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Delete removes the snapshot with id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: deleting %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
