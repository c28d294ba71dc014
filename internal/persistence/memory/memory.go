// Package memory provides an in-process implementation of the persistence
// contracts. State lives only as long as the Storage value.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/library-ledger/internal/persistence"
)

// Storage keeps the last saved snapshot and the active sessions in memory.
type Storage struct {
	mu       sync.RWMutex
	snapshot persistence.Snapshot
	saved    bool
	sessions map[string]persistence.Session
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		sessions: make(map[string]persistence.Session),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- SnapshotStore implementation ---

// Load returns the last saved snapshot, or false when nothing was saved.
func (s *Storage) Load(ctx context.Context) (persistence.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Snapshot{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.saved {
		return persistence.Snapshot{}, false, nil
	}
	return s.snapshot.Clone(), true, nil
}

// Save replaces the stored snapshot.
func (s *Storage) Save(ctx context.Context, snapshot persistence.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = snapshot.Clone()
	s.saved = true
	return nil
}

// --- SessionStore implementation ---

// CreateSession stores a new session keyed by its token.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	token := strings.TrimSpace(session.Token)
	if session.ID == "" || token == "" || session.MemberID == 0 {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	session.Token = token

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[token]; exists {
		return persistence.Session{}, persistence.ErrDuplicate
	}
	s.sessions[token] = session
	return session, nil
}

// GetSession retrieves a session by token.
func (s *Storage) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[strings.TrimSpace(token)]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return session, nil
}

// DeleteSession removes a session by token.
func (s *Storage) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token = strings.TrimSpace(token)
	if _, ok := s.sessions[token]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.sessions, token)
	return nil
}

// DeleteAllSessions removes every session.
func (s *Storage) DeleteAllSessions(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]persistence.Session)
	return nil
}

// DeleteExpiredSessions removes sessions whose expiry is not after reference.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

// Sessions lists the stored sessions ordered by creation time.
func (s *Storage) Sessions() []persistence.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]persistence.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}
