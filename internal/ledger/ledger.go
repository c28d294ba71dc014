// Package ledger owns the library catalog, members, loans and reservations
// and the rules for changing them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/library-ledger/internal/events"
	"github.com/example/library-ledger/internal/metrics"
)

const (
	defaultLoanPeriodDays = 14
	defaultSessionTTL     = 24 * time.Hour
	dateLayout            = "2006-01-02"
)

// Store persists full ledger snapshots.
type Store interface {
	Load(ctx context.Context) (Snapshot, bool, error)
	Save(ctx context.Context, snapshot Snapshot) error
}

// SessionRepository persists sign-in sessions keyed by token.
// Lookups of unknown tokens return an error wrapping ErrNotFound.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteAllSessions(ctx context.Context) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// Metrics receives operation outcomes and inventory levels.
type Metrics interface {
	ObserveOperation(operation string, err error, elapsed time.Duration)
	SetInventory(inv metrics.Inventory)
}

// Options configures a Ledger.
type Options struct {
	Store          Store
	Sessions       SessionRepository
	Publisher      events.Publisher
	Metrics        Metrics
	Logger         *slog.Logger
	Now            func() time.Time
	TokenGenerator func() string
	PasswordParams Argon2idParams
	LoanPeriodDays int
	SessionTTL     time.Duration
}

// Ledger is the single owner of the library state. Operations are
// serialized and every mutation is saved before it returns.
type Ledger struct {
	mu           sync.Mutex
	books        []Book
	members      []MemberRecord
	loans        []Loan
	reservations []Reservation

	store          Store
	sessions       SessionRepository
	publisher      events.Publisher
	metrics        Metrics
	logger         *slog.Logger
	now            func() time.Time
	newToken       func() string
	passwordParams Argon2idParams
	loanDays       int
	sessionTTL     time.Duration
}

// New loads the persisted snapshot, installing and saving the seed dataset
// when the store is empty.
func New(ctx context.Context, opts Options) (*Ledger, error) {
	if opts.Store == nil {
		return nil, errors.New("ledger: store is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("ledger: session repository is required")
	}

	l := &Ledger{
		store:          opts.Store,
		sessions:       opts.Sessions,
		publisher:      opts.Publisher,
		metrics:        opts.Metrics,
		logger:         defaultLogger(opts.Logger),
		now:            opts.Now,
		newToken:       opts.TokenGenerator,
		passwordParams: opts.PasswordParams,
		loanDays:       opts.LoanPeriodDays,
		sessionTTL:     opts.SessionTTL,
	}
	if l.publisher == nil {
		l.publisher = events.Noop{}
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.newToken == nil {
		l.newToken = uuid.NewString
	}
	if l.passwordParams == (Argon2idParams{}) {
		l.passwordParams = DefaultArgon2idParams
	}
	if l.loanDays <= 0 {
		l.loanDays = defaultLoanPeriodDays
	}
	if l.sessionTTL <= 0 {
		l.sessionTTL = defaultSessionTTL
	}

	snapshot, ok, err := l.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: load snapshot: %w", err)
	}
	if !ok {
		snapshot, err = seedSnapshot(l.passwordParams)
		if err != nil {
			return nil, fmt.Errorf("ledger: build seed data: %w", err)
		}
		if err := l.store.Save(ctx, snapshot); err != nil {
			return nil, fmt.Errorf("ledger: save seed data: %w", err)
		}
		l.logger.InfoContext(ctx, "ledger seeded", "books", len(snapshot.Books), "members", len(snapshot.Members))
	}

	l.restoreLocked(snapshot)
	l.refreshInventoryLocked()
	return l, nil
}

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() Snapshot {
	return Snapshot{
		Books:        append([]Book(nil), l.books...),
		Members:      append([]MemberRecord(nil), l.members...),
		Loans:        cloneLoans(l.loans),
		Reservations: append([]Reservation(nil), l.reservations...),
	}
}

func (l *Ledger) restoreLocked(snapshot Snapshot) {
	l.books = append([]Book(nil), snapshot.Books...)
	l.members = append([]MemberRecord(nil), snapshot.Members...)
	l.loans = cloneLoans(snapshot.Loans)
	l.reservations = append([]Reservation(nil), snapshot.Reservations...)
}

func cloneLoans(loans []Loan) []Loan {
	out := make([]Loan, len(loans))
	for i, loan := range loans {
		out[i] = loan
		if loan.ReturnedDate != nil {
			returned := *loan.ReturnedDate
			out[i].ReturnedDate = &returned
		}
	}
	return out
}

// commit saves the current state. On failure the state rolls back to prev.
func (l *Ledger) commit(ctx context.Context, prev Snapshot) error {
	if err := l.store.Save(ctx, l.snapshotLocked()); err != nil {
		l.restoreLocked(prev)
		return fmt.Errorf("ledger: save snapshot: %w", err)
	}
	l.refreshInventoryLocked()
	return nil
}

func (l *Ledger) refreshInventoryLocked() {
	if l.metrics == nil {
		return
	}
	var inv metrics.Inventory
	for _, book := range l.books {
		inv.TotalCopies += book.TotalCopies
		inv.AvailableCopies += book.AvailableCopies
	}
	for _, loan := range l.loans {
		if loan.Status == LoanActive {
			inv.ActiveLoans++
		}
	}
	l.metrics.SetInventory(inv)
}

func (l *Ledger) observe(operation string, started time.Time, err error) {
	if l.metrics == nil {
		return
	}
	l.metrics.ObserveOperation(operation, err, time.Since(started))
}

// publish delivers an event after a committed change. Failures are logged only.
func (l *Ledger) publish(ctx context.Context, logger *slog.Logger, eventType string, payload map[string]any) {
	event := events.New(ctx, eventType, l.now(), payload)
	if err := l.publisher.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "publish event failed", "event_type", eventType, "event_id", event.EventID, "error", err)
	}
}

func (l *Ledger) today() time.Time {
	return dateOf(l.now())
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func authorizeMember(principal Principal, memberID int64) error {
	if principal.IsLibrarian() {
		return nil
	}
	if principal.MemberID != 0 && principal.MemberID == memberID {
		return nil
	}
	return newError(ErrUnauthorized, "You are not allowed to act for this member")
}

func authorizeLibrarian(principal Principal) error {
	if principal.IsLibrarian() {
		return nil
	}
	return newError(ErrUnauthorized, "Librarian access required")
}

func (l *Ledger) bookIndex(id int64) int {
	for i := range l.books {
		if l.books[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) memberByID(id int64) (Member, bool) {
	for _, record := range l.members {
		if record.ID == id {
			return record.Member, true
		}
	}
	return Member{}, false
}

func nextBookID(books []Book) int64 {
	var highest int64
	for _, b := range books {
		if b.ID > highest {
			highest = b.ID
		}
	}
	return highest + 1
}

func nextMemberID(members []MemberRecord) int64 {
	var highest int64
	for _, m := range members {
		if m.ID > highest {
			highest = m.ID
		}
	}
	return highest + 1
}

func nextLoanID(loans []Loan) int64 {
	var highest int64
	for _, loan := range loans {
		if loan.ID > highest {
			highest = loan.ID
		}
	}
	return highest + 1
}

func nextReservationID(reservations []Reservation) int64 {
	var highest int64
	for _, r := range reservations {
		if r.ID > highest {
			highest = r.ID
		}
	}
	return highest + 1
}
