package testfixtures

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/example/library-ledger/internal/events"
	"github.com/example/library-ledger/internal/ledger"
)

// LedgerFactory assists tests with constructing ledgers using deterministic
// tokens and clocks.
type LedgerFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// LedgerFactoryOption configures a LedgerFactory instance.
type LedgerFactoryOption func(*LedgerFactory)

// NewLedgerFactory constructs a LedgerFactory with defaults.
func NewLedgerFactory(opts ...LedgerFactoryOption) *LedgerFactory {
	factory := &LedgerFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("token"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("token")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) LedgerFactoryOption {
	return func(factory *LedgerFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the token generator used by the factory.
func WithIDGenerator(generator *IDGenerator) LedgerFactoryOption {
	return func(factory *LedgerFactory) {
		factory.IDGenerator = generator
	}
}

// LedgerDeps captures optional collaborators. Nil fields get in-memory defaults.
type LedgerDeps struct {
	Store     ledger.Store
	Sessions  ledger.SessionRepository
	Publisher events.Publisher
	Metrics   ledger.Metrics
	Logger    *slog.Logger
}

// NewLedger builds a ledger over the supplied dependencies, failing the test
// on error. With no store the ledger starts from the seed dataset.
func (f *LedgerFactory) NewLedger(tb testing.TB, deps LedgerDeps) *ledger.Ledger {
	tb.Helper()

	if deps.Store == nil {
		deps.Store = &MemoryStore{}
	}
	if deps.Sessions == nil {
		deps.Sessions = NewMemorySessions()
	}

	l, err := ledger.New(context.Background(), ledger.Options{
		Store:          deps.Store,
		Sessions:       deps.Sessions,
		Publisher:      deps.Publisher,
		Metrics:        deps.Metrics,
		Logger:         deps.Logger,
		Now:            f.Clock.NowFunc(),
		TokenGenerator: f.IDGenerator.NextFunc(),
		PasswordParams: FastPasswordParams,
	})
	if err != nil {
		tb.Fatalf("failed to build ledger: %v", err)
	}
	return l
}

// Login signs in with the given credentials and returns the session token.
func Login(tb testing.TB, l *ledger.Ledger, email, password string) string {
	tb.Helper()

	result, err := l.Login(context.Background(), ledger.LoginParams{Email: email, Password: password})
	if err != nil {
		tb.Fatalf("login as %s failed: %v", email, err)
	}
	return result.Session.Token
}

// LoginLibrarian signs in as the seed librarian.
func LoginLibrarian(tb testing.TB, l *ledger.Ledger) string {
	tb.Helper()
	return Login(tb, l, ledger.SeedLibrarianEmail, ledger.SeedLibrarianPassword)
}

// RegisterMember registers fixture and returns the created member and a session token.
func RegisterMember(tb testing.TB, l *ledger.Ledger, fixture MemberFixture) (ledger.Member, string) {
	tb.Helper()

	member, err := l.Register(context.Background(), fixture.Register())
	if err != nil {
		tb.Fatalf("register %s failed: %v", fixture.Email, err)
	}
	return member, Login(tb, l, fixture.Email, fixture.Password)
}
