package testfixtures

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/library-ledger/internal/ledger"
)

// MemoryStore is a ledger.Store kept in memory. SaveErr, when set, fails every save.
type MemoryStore struct {
	mu       sync.Mutex
	snapshot ledger.Snapshot
	saved    bool
	saves    int
	SaveErr  error
}

// NewMemoryStore returns a store that already holds snapshot.
func NewMemoryStore(snapshot ledger.Snapshot) *MemoryStore {
	return &MemoryStore{snapshot: snapshot, saved: true}
}

func (s *MemoryStore) Load(ctx context.Context) (ledger.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.saved, ctx.Err()
}

func (s *MemoryStore) Save(ctx context.Context, snapshot ledger.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.snapshot = snapshot
	s.saved = true
	s.saves++
	return nil
}

// Snapshot returns the most recently saved snapshot.
func (s *MemoryStore) Snapshot() ledger.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Saves counts successful saves.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// MemorySessions is a ledger.SessionRepository kept in memory.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]ledger.Session
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]ledger.Session)}
}

func (s *MemorySessions) CreateSession(_ context.Context, session ledger.Session) (ledger.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.Token]; exists {
		return ledger.Session{}, errors.New("testfixtures: duplicate session token")
	}
	s.sessions[session.Token] = session
	return session, nil
}

func (s *MemorySessions) GetSession(_ context.Context, token string) (ledger.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return ledger.Session{}, ledger.ErrNotFound
	}
	return session, nil
}

func (s *MemorySessions) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.sessions, token)
	return nil
}

func (s *MemorySessions) DeleteAllSessions(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]ledger.Session)
	return nil
}

func (s *MemorySessions) DeleteExpiredSessions(_ context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

// Len reports the number of stored sessions.
func (s *MemorySessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
