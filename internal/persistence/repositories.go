package persistence

import (
	"context"
	"time"
)

// SnapshotStore loads and saves the full ledger state.
//
// Load reports false when nothing has been saved yet so the caller can seed.
type SnapshotStore interface {
	Load(ctx context.Context) (Snapshot, bool, error)
	Save(ctx context.Context, snapshot Snapshot) error
}

// SessionStore stores authentication sessions keyed by token.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteAllSessions(ctx context.Context) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
