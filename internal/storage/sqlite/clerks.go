package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smartscale/kiosk/internal/models"
	"github.com/smartscale/kiosk/internal/storage"
)

// CreateClerk persists a new clerk account, generating ID and CreatedAt
// when unset.
func (s *SQLiteStore) CreateClerk(ctx context.Context, clerk *models.Clerk) error {
	if clerk.ID == "" {
		clerk.ID = uuid.New().String()
	}
	if clerk.CreatedAt == 0 {
		clerk.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO clerks (id, name, pin_hash, created_at) VALUES (?, ?, ?, ?)",
		clerk.ID, clerk.Name, clerk.PINHash, clerk.CreatedAt,
	)
	if err != nil {
		return unavailable("create clerk", err)
	}
	return nil
}

// GetClerkByName retrieves a clerk by login name.
func (s *SQLiteStore) GetClerkByName(ctx context.Context, name string) (*models.Clerk, error) {
	return s.getClerk(ctx, "SELECT id, name, pin_hash, created_at FROM clerks WHERE name = ?", name)
}

// GetClerkByID retrieves a clerk by ID.
func (s *SQLiteStore) GetClerkByID(ctx context.Context, id string) (*models.Clerk, error) {
	return s.getClerk(ctx, "SELECT id, name, pin_hash, created_at FROM clerks WHERE id = ?", id)
}

func (s *SQLiteStore) getClerk(ctx context.Context, query, arg string) (*models.Clerk, error) {
	clerk := &models.Clerk{}
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&clerk.ID, &clerk.Name, &clerk.PINHash, &clerk.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: clerk %s", storage.ErrNotFound, arg)
	}
	if err != nil {
		return nil, unavailable("get clerk", err)
	}
	return clerk, nil
}
