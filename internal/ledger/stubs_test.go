package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/library-ledger/internal/events"
	"github.com/example/library-ledger/internal/metrics"
)

var testPasswordParams = Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

var referenceTime = time.Date(2025, time.January, 20, 10, 0, 0, 0, time.UTC)

type stubStore struct {
	mu       sync.Mutex
	snapshot Snapshot
	saved    bool
	saves    int
	loadErr  error
	saveErr  error
}

func (s *stubStore) Load(context.Context) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return Snapshot{}, false, s.loadErr
	}
	return s.snapshot, s.saved, nil
}

func (s *stubStore) Save(_ context.Context, snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snapshot = snapshot
	s.saved = true
	s.saves++
	return nil
}

func (s *stubStore) failSaves(err error) {
	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
}

type stubSessions struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func newStubSessions() *stubSessions {
	return &stubSessions{sessions: make(map[string]Session)}
}

func (s *stubSessions) CreateSession(_ context.Context, session Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.Token]; ok {
		return Session{}, errors.New("duplicate token")
	}
	s.sessions[session.Token] = session
	return session, nil
}

func (s *stubSessions) GetSession(_ context.Context, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (s *stubSessions) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, token)
	return nil
}

func (s *stubSessions) DeleteAllSessions(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]Session)
	return nil
}

func (s *stubSessions) DeleteExpiredSessions(_ context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

func (s *stubSessions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

type metricsSpy struct {
	mu         sync.Mutex
	operations map[string][]string
	inventory  metrics.Inventory
}

func (m *metricsSpy) ObserveOperation(operation string, err error, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.operations == nil {
		m.operations = make(map[string][]string)
	}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	m.operations[operation] = append(m.operations[operation], outcome)
}

func (m *metricsSpy) SetInventory(inv metrics.Inventory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventory = inv
}

func (m *metricsSpy) outcomes(operation string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.operations[operation]...)
}

type harness struct {
	ledger    *Ledger
	store     *stubStore
	sessions  *stubSessions
	publisher *events.Recorder
	metrics   *metricsSpy
	now       time.Time
	tokens    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, &stubStore{})
}

func newHarnessWithStore(t *testing.T, store *stubStore) *harness {
	t.Helper()

	h := &harness{
		store:     store,
		sessions:  newStubSessions(),
		publisher: &events.Recorder{},
		metrics:   &metricsSpy{},
		now:       referenceTime,
	}
	l, err := New(context.Background(), Options{
		Store:     h.store,
		Sessions:  h.sessions,
		Publisher: h.publisher,
		Metrics:   h.metrics,
		Now:       func() time.Time { return h.now },
		TokenGenerator: func() string {
			h.tokens++
			return fmt.Sprintf("token-%d", h.tokens)
		},
		PasswordParams: testPasswordParams,
	})
	require.NoError(t, err)
	h.ledger = l
	return h
}

var librarian = Principal{MemberID: 2, Role: RoleLibrarian}

func member(id int64) Principal {
	return Principal{MemberID: id, Role: RoleMember}
}

// checkInvariants asserts the copy bounds and the one-active-loan-per-pair rule.
func checkInvariants(t *testing.T, snapshot Snapshot) {
	t.Helper()

	for _, book := range snapshot.Books {
		require.GreaterOrEqual(t, book.AvailableCopies, 0, "book %d available", book.ID)
		require.LessOrEqual(t, book.AvailableCopies, book.TotalCopies, "book %d available", book.ID)
	}

	active := make(map[[2]int64]int)
	for _, loan := range snapshot.Loans {
		if loan.Status == LoanActive {
			active[[2]int64{loan.BookID, loan.MemberID}]++
		}
	}
	pairs := make([]string, 0)
	for pair, n := range active {
		if n > 1 {
			pairs = append(pairs, fmt.Sprintf("book %d member %d", pair[0], pair[1]))
		}
	}
	sort.Strings(pairs)
	require.Empty(t, pairs, "pairs with more than one active loan")
}

func bookByID(t *testing.T, l *Ledger, id int64) Book {
	t.Helper()
	book, ok := l.GetBook(context.Background(), id)
	require.True(t, ok, "book %d", id)
	return book
}
