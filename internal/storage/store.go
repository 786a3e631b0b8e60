// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/smartscale/kiosk/internal/models"
)

// ErrUnavailable wraps any failure of the durable mirror. Callers treat
// it as a warning: the in-memory cart stays authoritative and is never
// rolled back when a mirror write fails.
var ErrUnavailable = errors.New("session store unavailable")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// SessionStore is the durable mirror of kiosk sessions. All mutating
// operations are best-effort; the mirror is allowed to fall behind the
// in-memory cart.
type SessionStore interface {
	// CreateSession persists a new active session and returns its ID.
	CreateSession(ctx context.Context, startedAtMs int64) (string, error)

	// AppendItem adds a confirmed item to a session and refolds the
	// session total from the full item sequence.
	AppendItem(ctx context.Context, sessionID string, item models.CartItem) error

	// CompleteSession marks a session completed and stamps its end time.
	CompleteSession(ctx context.Context, sessionID string, endedAtMs int64) error

	// CancelSession marks a session cancelled and stamps its end time.
	CancelSession(ctx context.Context, sessionID string, endedAtMs int64) error

	// GetSession retrieves a session with its items.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// WatchSession registers a callback invoked after every successful
	// mutation of the given session. The returned func cancels the
	// watch; it is safe to call more than once.
	WatchSession(sessionID string, onUpdate func(models.Session)) (cancel func())
}

// ProductStore holds the catalog. Catalog access is best-effort and off
// the hot path: it is read once at startup and seeded on first boot.
type ProductStore interface {
	// ListProducts returns the full catalog.
	ListProducts(ctx context.Context) ([]models.Product, error)

	// AddProduct inserts a product, deriving its ID from the name when
	// unset, and returns the stored record.
	AddProduct(ctx context.Context, product models.Product) (models.Product, error)
}

// ClerkStore persists operator accounts for kiosk login.
type ClerkStore interface {
	CreateClerk(ctx context.Context, clerk *models.Clerk) error
	GetClerkByName(ctx context.Context, name string) (*models.Clerk, error)
	GetClerkByID(ctx context.Context, id string) (*models.Clerk, error)
}

// Store aggregates all persistence concerns behind one backend so the
// server wires a single handle. Swapping backends (SQLite, Postgres)
// does not touch the engine.
type Store interface {
	SessionStore
	ProductStore
	ClerkStore

	// Close releases any resources held by the store.
	Close() error
}
