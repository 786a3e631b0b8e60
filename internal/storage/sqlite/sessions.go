package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smartscale/kiosk/internal/models"
	"github.com/smartscale/kiosk/internal/storage"
)

// CreateSession persists a new active session and returns its ULID.
func (s *SQLiteStore) CreateSession(ctx context.Context, startedAtMs int64) (string, error) {
	id := s.entropy.newID()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, started_at_ms, total, status) VALUES (?, ?, 0, ?)",
		id, startedAtMs, models.SessionActive,
	)
	if err != nil {
		return "", unavailable("create session", err)
	}
	s.notify(ctx, id)
	return id, nil
}

// AppendItem adds a confirmed item to a session and refolds the stored
// total from the full item sequence, matching how the cart computes it.
func (s *SQLiteStore) AppendItem(ctx context.Context, sessionID string, item models.CartItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("append item", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_items
		 (session_id, product_id, product_name, image_url, unit_price, category, confidence, weight, total_price, confirmed_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, item.Product.ID, item.Product.Name, item.Product.ImageURL,
		item.Product.UnitPrice, item.Product.Category, item.Product.Confidence,
		item.Weight, item.TotalPrice, item.ConfirmedAtMs,
	)
	if err != nil {
		return unavailable("append item", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET total =
		 (SELECT COALESCE(SUM(total_price), 0) FROM session_items WHERE session_id = ?)
		 WHERE id = ?`,
		sessionID, sessionID,
	)
	if err != nil {
		return unavailable("refold session total", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("append item", err)
	}
	s.notify(ctx, sessionID)
	return nil
}

// CompleteSession marks a session completed and stamps its end time.
func (s *SQLiteStore) CompleteSession(ctx context.Context, sessionID string, endedAtMs int64) error {
	return s.end(ctx, sessionID, endedAtMs, models.SessionCompleted)
}

// CancelSession marks a session cancelled and stamps its end time.
func (s *SQLiteStore) CancelSession(ctx context.Context, sessionID string, endedAtMs int64) error {
	return s.end(ctx, sessionID, endedAtMs, models.SessionCancelled)
}

func (s *SQLiteStore) end(ctx context.Context, sessionID string, endedAtMs int64, status models.SessionStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET ended_at_ms = ?, status = ? WHERE id = ?",
		endedAtMs, status, sessionID,
	)
	if err != nil {
		return unavailable("end session", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: session %s", storage.ErrNotFound, sessionID)
	}
	s.notify(ctx, sessionID)
	return nil
}

// GetSession retrieves a session with all its items in confirmation order.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session := &models.Session{}
	var endedAt sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, started_at_ms, ended_at_ms, total, status FROM sessions WHERE id = ?",
		sessionID,
	).Scan(&session.ID, &session.StartedAtMs, &endedAt, &session.Total, &session.Status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: session %s", storage.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, unavailable("get session", err)
	}
	if endedAt.Valid {
		session.EndedAtMs = endedAt.Int64
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, product_name, image_url, unit_price, category, confidence, weight, total_price, confirmed_at_ms
		 FROM session_items WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, unavailable("get session items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(
			&item.Product.ID, &item.Product.Name, &item.Product.ImageURL,
			&item.Product.UnitPrice, &item.Product.Category, &item.Product.Confidence,
			&item.Weight, &item.TotalPrice, &item.ConfirmedAtMs,
		); err != nil {
			return nil, unavailable("scan session item", err)
		}
		session.Items = append(session.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate session items", err)
	}

	return session, nil
}

// WatchSession registers a callback invoked after every successful
// mutation of the given session. The update carries a fresh read of the
// session; watchers that outlive the session simply stop firing.
func (s *SQLiteStore) WatchSession(sessionID string, onUpdate func(models.Session)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watchers[sessionID] == nil {
		s.watchers[sessionID] = make(map[int]func(models.Session))
	}
	id := s.nextWatch
	s.nextWatch++
	s.watchers[sessionID][id] = onUpdate

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if m, ok := s.watchers[sessionID]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(s.watchers, sessionID)
			}
		}
	}
}

// notify delivers the current session state to registered watchers.
// Failures to re-read are swallowed: watching is an observability aid,
// not part of the durability contract.
func (s *SQLiteStore) notify(ctx context.Context, sessionID string) {
	s.mu.Lock()
	callbacks := make([]func(models.Session), 0, len(s.watchers[sessionID]))
	for _, cb := range s.watchers[sessionID] {
		callbacks = append(callbacks, cb)
	}
	s.mu.Unlock()

	if len(callbacks) == 0 {
		return
	}
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return
	}
	for _, cb := range callbacks {
		cb(*session)
	}
}
