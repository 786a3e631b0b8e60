// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/smartscale/kiosk/internal/models"
	"github.com/smartscale/kiosk/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *ulidSource

	mu        sync.Mutex
	watchers  map[string]map[int]func(models.Session)
	nextWatch int
}

// ulidSource guards a monotonic ULID entropy reader; ulid.Monotonic is
// not safe for concurrent use on its own.
type ulidSource struct {
	mu sync.Mutex
	r  *ulid.MonotonicEntropy
}

func (s *ulidSource) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.r).String()
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{
		db:       db,
		entropy:  &ulidSource{r: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)},
		watchers: make(map[string]map[int]func(models.Session)),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// unavailable wraps a low-level database error in storage.ErrUnavailable
// so callers can treat mirror failures uniformly.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", storage.ErrUnavailable, op, err)
}
