package main

import (
	"context"
	"errors"
	"time"

	"github.com/example/library-ledger/internal/ledger"
	"github.com/example/library-ledger/internal/persistence"
)

type snapshotStoreAdapter struct {
	store persistence.SnapshotStore
}

func newSnapshotStoreAdapter(store persistence.SnapshotStore) *snapshotStoreAdapter {
	return &snapshotStoreAdapter{store: store}
}

func (a *snapshotStoreAdapter) Load(ctx context.Context) (ledger.Snapshot, bool, error) {
	stored, found, err := a.store.Load(ctx)
	if err != nil || !found {
		return ledger.Snapshot{}, found, err
	}
	return toLedgerSnapshot(stored), true, nil
}

func (a *snapshotStoreAdapter) Save(ctx context.Context, snapshot ledger.Snapshot) error {
	return a.store.Save(ctx, toPersistenceSnapshot(snapshot))
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionStore
}

func newSessionRepositoryAdapter(repo persistence.SessionStore) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session ledger.Session) (ledger.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return ledger.Session{}, err
	}
	return toLedgerSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (ledger.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return ledger.Session{}, mapNotFound(err)
	}
	return toLedgerSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteSession(ctx context.Context, token string) error {
	return mapNotFound(a.repo.DeleteSession(ctx, token))
}

func (a *sessionRepositoryAdapter) DeleteAllSessions(ctx context.Context) error {
	return a.repo.DeleteAllSessions(ctx)
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

// mapNotFound keeps the storage error in the chain while letting the ledger
// match its own sentinel.
func mapNotFound(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return errors.Join(ledger.ErrNotFound, err)
	}
	return err
}

func toLedgerSnapshot(model persistence.Snapshot) ledger.Snapshot {
	snapshot := ledger.Snapshot{
		Books:        make([]ledger.Book, 0, len(model.Books)),
		Members:      make([]ledger.MemberRecord, 0, len(model.Members)),
		Loans:        make([]ledger.Loan, 0, len(model.Loans)),
		Reservations: make([]ledger.Reservation, 0, len(model.Reservations)),
	}
	for _, book := range model.Books {
		snapshot.Books = append(snapshot.Books, ledger.Book{
			ID:              book.ID,
			ISBN:            book.ISBN,
			Title:           book.Title,
			Author:          book.Author,
			Category:        book.Category,
			PublishYear:     book.PublishYear,
			TotalCopies:     book.TotalCopies,
			AvailableCopies: book.AvailableCopies,
		})
	}
	for _, member := range model.Members {
		snapshot.Members = append(snapshot.Members, ledger.MemberRecord{
			Member: ledger.Member{
				ID:       member.ID,
				Email:    member.Email,
				Name:     member.Name,
				Role:     ledger.Role(member.Role),
				JoinDate: member.JoinDate,
			},
			PasswordHash: member.PasswordHash,
		})
	}
	for _, loan := range model.Loans {
		snapshot.Loans = append(snapshot.Loans, ledger.Loan{
			ID:           loan.ID,
			BookID:       loan.BookID,
			MemberID:     loan.MemberID,
			IssuedDate:   loan.IssuedDate,
			DueDate:      loan.DueDate,
			ReturnedDate: cloneTime(loan.ReturnedDate),
			Status:       ledger.LoanStatus(loan.Status),
		})
	}
	for _, reservation := range model.Reservations {
		snapshot.Reservations = append(snapshot.Reservations, ledger.Reservation{
			ID:           reservation.ID,
			BookID:       reservation.BookID,
			MemberID:     reservation.MemberID,
			ReservedDate: reservation.ReservedDate,
			Status:       ledger.ReservationStatus(reservation.Status),
		})
	}
	return snapshot
}

func toPersistenceSnapshot(snapshot ledger.Snapshot) persistence.Snapshot {
	model := persistence.Snapshot{
		Books:        make([]persistence.Book, 0, len(snapshot.Books)),
		Members:      make([]persistence.Member, 0, len(snapshot.Members)),
		Loans:        make([]persistence.Loan, 0, len(snapshot.Loans)),
		Reservations: make([]persistence.Reservation, 0, len(snapshot.Reservations)),
	}
	for _, book := range snapshot.Books {
		model.Books = append(model.Books, persistence.Book{
			ID:              book.ID,
			ISBN:            book.ISBN,
			Title:           book.Title,
			Author:          book.Author,
			Category:        book.Category,
			PublishYear:     book.PublishYear,
			TotalCopies:     book.TotalCopies,
			AvailableCopies: book.AvailableCopies,
		})
	}
	for _, member := range snapshot.Members {
		model.Members = append(model.Members, persistence.Member{
			ID:           member.ID,
			Email:        member.Email,
			PasswordHash: member.PasswordHash,
			Name:         member.Name,
			Role:         string(member.Role),
			JoinDate:     member.JoinDate,
		})
	}
	for _, loan := range snapshot.Loans {
		model.Loans = append(model.Loans, persistence.Loan{
			ID:           loan.ID,
			BookID:       loan.BookID,
			MemberID:     loan.MemberID,
			IssuedDate:   loan.IssuedDate,
			DueDate:      loan.DueDate,
			ReturnedDate: cloneTime(loan.ReturnedDate),
			Status:       string(loan.Status),
		})
	}
	for _, reservation := range snapshot.Reservations {
		model.Reservations = append(model.Reservations, persistence.Reservation{
			ID:           reservation.ID,
			BookID:       reservation.BookID,
			MemberID:     reservation.MemberID,
			ReservedDate: reservation.ReservedDate,
			Status:       string(reservation.Status),
		})
	}
	return model
}

func toLedgerSession(model persistence.Session) ledger.Session {
	return ledger.Session{
		ID:        model.ID,
		Token:     model.Token,
		MemberID:  model.MemberID,
		CreatedAt: model.CreatedAt,
		ExpiresAt: model.ExpiresAt,
	}
}

func toPersistenceSession(session ledger.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		Token:     session.Token,
		MemberID:  session.MemberID,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
