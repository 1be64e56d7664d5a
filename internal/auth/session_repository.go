package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
)

// SessionRepository records logged-out sessions until their tokens expire.
type SessionRepository interface {
	Revoke(ctx context.Context, sessionID string, userID int64, expiresAt time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// SQLiteSessionRepository implements SessionRepository.
type SQLiteSessionRepository struct {
	db *sql.DB
}

// NewSessionRepository returns a SessionRepository backed by db.
func NewSessionRepository(db *sql.DB) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{db: db}
}

// Revoke marks a session as logged out. Revoking twice is not an error.
func (r *SQLiteSessionRepository) Revoke(ctx context.Context, sessionID string, userID int64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO revoked_sessions (session_id, user_id, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		sessionID, userID, database.FormatTime(expiresAt))
	if err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

// IsRevoked reports whether the session was logged out.
func (r *SQLiteSessionRepository) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_sessions WHERE session_id = ?`, sessionID).Scan(&n); err != nil {
		return false, fmt.Errorf("checking session: %w", err)
	}
	return n > 0, nil
}

// Prune forgets revocations whose tokens have expired.
func (r *SQLiteSessionRepository) Prune(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM revoked_sessions WHERE expires_at < ?`, database.FormatTime(now))
	if err != nil {
		return 0, fmt.Errorf("pruning revoked sessions: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	return n, nil
}
