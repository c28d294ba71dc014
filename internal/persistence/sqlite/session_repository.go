package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/library-ledger/internal/persistence"
)

// SessionRepository implements persistence.SessionStore using SQLite
type SessionRepository struct {
	pool *ConnectionPool
}

// NewSessionRepository creates a new SQLite session repository
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// CreateSession stores a new session token for a member
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	normalized, err := normalizeSession(session)
	if err != nil {
		return persistence.Session{}, err
	}

	_, err = r.pool.DB().ExecContext(ctx, `
		INSERT INTO sessions (id, token, member_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		normalized.ID,
		normalized.Token,
		normalized.MemberID,
		normalized.CreatedAt.Format(time.RFC3339Nano),
		normalized.ExpiresAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return persistence.Session{}, MapError(err)
	}

	return normalized, nil
}

// GetSession retrieves a session by its token value
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	normalizedToken := strings.TrimSpace(token)
	if normalizedToken == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	var (
		session              persistence.Session
		createdAt, expiresAt string
	)
	err := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, token, member_id, created_at, expires_at
		FROM sessions
		WHERE token = ?`, normalizedToken).Scan(
		&session.ID,
		&session.Token,
		&session.MemberID,
		&createdAt,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Session{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Session{}, MapError(err)
	}

	if session.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if session.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse expires_at: %w", err)
	}

	return session, nil
}

// DeleteSession removes the session identified by token
func (r *SessionRepository) DeleteSession(ctx context.Context, token string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, strings.TrimSpace(token))
	if err != nil {
		return MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteAllSessions removes every stored session
func (r *SessionRepository) DeleteAllSessions(ctx context.Context) error {
	if _, err := r.pool.DB().ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return MapError(err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired on or before the provided timestamp.
//
// Timestamps are compared in Go because RFC 3339 strings with fractional
// seconds do not sort lexically.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT token, expires_at FROM sessions`)
		if err != nil {
			return MapError(err)
		}

		var expired []string
		for rows.Next() {
			var token, expiresAt string
			if err := rows.Scan(&token, &expiresAt); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan session: %w", err)
			}
			at, err := time.Parse(time.RFC3339Nano, expiresAt)
			if err != nil || !at.After(reference) {
				expired = append(expired, token)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, token := range expired {
			if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
				return MapError(err)
			}
		}
		return nil
	})
}

func normalizeSession(session persistence.Session) (persistence.Session, error) {
	session.Token = strings.TrimSpace(session.Token)
	if session.ID == "" || session.Token == "" || session.MemberID == 0 {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	session.CreatedAt = session.CreatedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}
