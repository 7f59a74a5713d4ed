package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore persists the session token in the sessions table.
// The table holds at most one row.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an open, migrated SQLite connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load returns the saved session, or ErrSessionNotFound.
func (s *SQLiteStore) Load(ctx context.Context) (Session, error) {
	var (
		sess      Session
		expiresAt sql.NullString
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT token, expires_at, updated_at FROM sessions WHERE id = 1",
	).Scan(&sess.Token, &expiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("querying session: %w", err)
	}

	if expiresAt.Valid && expiresAt.String != "" {
		sess.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt.String) //nolint:errcheck // Format is controlled
	}
	sess.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return sess, nil
}

// Save replaces the saved session.
func (s *SQLiteStore) Save(ctx context.Context, sess Session) error {
	var expiresAt any
	if !sess.ExpiresAt.IsZero() {
		expiresAt = sess.ExpiresAt.UTC().Format(time.RFC3339)
	}
	updatedAt := sess.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, token, expires_at, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		sess.Token, expiresAt, updatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Clear removes the saved session.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
