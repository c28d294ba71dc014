package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBorrow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("creates active loan and takes a copy", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		loan, err := h.ledger.Borrow(ctx, BorrowParams{Principal: member(7), BookID: 1, MemberID: 7})
		require.NoError(t, err)

		assert.Equal(t, int64(3), loan.ID)
		assert.Equal(t, LoanActive, loan.Status)
		assert.Equal(t, time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC), loan.IssuedDate)
		assert.Equal(t, loan.IssuedDate.AddDate(0, 0, 14), loan.DueDate)
		assert.Nil(t, loan.ReturnedDate)
		assert.Equal(t, 1, bookByID(t, h.ledger, 1).AvailableCopies)
		assert.Equal(t, h.ledger.Snapshot(), h.store.snapshot)
		checkInvariants(t, h.ledger.Snapshot())
	})

	t.Run("defaults member to principal", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		loan, err := h.ledger.Borrow(ctx, BorrowParams{Principal: member(9), BookID: 4})
		require.NoError(t, err)
		assert.Equal(t, int64(9), loan.MemberID)
	})

	t.Run("librarian may borrow for a member", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		loan, err := h.ledger.Borrow(ctx, BorrowParams{Principal: librarian, BookID: 4, MemberID: 12})
		require.NoError(t, err)
		assert.Equal(t, int64(12), loan.MemberID)
	})

	t.Run("no copies left leaves state unchanged", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		before := h.ledger.Snapshot()

		_, err := h.ledger.Borrow(ctx, BorrowParams{Principal: member(7), BookID: 6})
		require.ErrorIs(t, err, ErrNotAvailable)
		assert.Equal(t, "Book not available", Message(err))
		assert.Equal(t, before, h.ledger.Snapshot())
		assert.Equal(t, 1, h.store.saves)
	})

	t.Run("unknown book is not available", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		_, err := h.ledger.Borrow(ctx, BorrowParams{Principal: member(7), BookID: 42})
		require.ErrorIs(t, err, ErrNotAvailable)
	})

	t.Run("second active loan for same pair is rejected", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		_, err := h.ledger.Borrow(ctx, BorrowParams{Principal: member(1), BookID: 1})
		require.ErrorIs(t, err, ErrDuplicateLoan)
		assert.Equal(t, "You already have this book borrowed", Message(err))
		assert.Equal(t, 2, bookByID(t, h.ledger, 1).AvailableCopies)
	})

	t.Run("members cannot borrow for others", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		_, err := h.ledger.Borrow(ctx, BorrowParams{Principal: member(7), BookID: 1, MemberID: 8})
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = h.ledger.Borrow(ctx, BorrowParams{BookID: 1, MemberID: 8})
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestBorrowThenReturnRestoresAvailability(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)

	for _, book := range SeedBooks() {
		if book.AvailableCopies == 0 {
			continue
		}
		before := bookByID(t, h.ledger, book.ID).AvailableCopies

		loan, err := h.ledger.Borrow(ctx, BorrowParams{Principal: member(50), BookID: book.ID})
		require.NoError(t, err)
		returned, err := h.ledger.Return(ctx, ReturnParams{Principal: member(50), LoanID: loan.ID})
		require.NoError(t, err)

		assert.Equal(t, LoanReturned, returned.Status)
		require.NotNil(t, returned.ReturnedDate)
		assert.Equal(t, before, bookByID(t, h.ledger, book.ID).AvailableCopies, "book %d", book.ID)
	}
	checkInvariants(t, h.ledger.Snapshot())
}

func TestReturn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("unknown loan", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		_, err := h.ledger.Return(ctx, ReturnParams{Principal: librarian, LoanID: 99})
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, "Loan not found", Message(err))
	})

	t.Run("already returned", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		_, err := h.ledger.Return(ctx, ReturnParams{Principal: member(1), LoanID: 2})
		require.NoError(t, err)
		_, err = h.ledger.Return(ctx, ReturnParams{Principal: member(1), LoanID: 2})
		require.ErrorIs(t, err, ErrAlreadyReturned)
		assert.Equal(t, "Book already returned", Message(err))
		assert.Equal(t, 1, bookByID(t, h.ledger, 6).AvailableCopies)
	})

	t.Run("other members cannot return", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		_, err := h.ledger.Return(ctx, ReturnParams{Principal: member(8), LoanID: 1})
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("available copies never exceed total", func(t *testing.T) {
		t.Parallel()
		store := &stubStore{saved: true, snapshot: Snapshot{
			Books: []Book{{ID: 1, ISBN: "1", Title: "Full", Author: "A", Category: "C", TotalCopies: 2, AvailableCopies: 2}},
			Loans: []Loan{{ID: 1, BookID: 1, MemberID: 3, IssuedDate: referenceTime, DueDate: referenceTime, Status: LoanActive}},
		}}
		h := newHarnessWithStore(t, store)

		_, err := h.ledger.Return(ctx, ReturnParams{Principal: librarian, LoanID: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, bookByID(t, h.ledger, 1).AvailableCopies)
	})

	t.Run("loan for deleted book is still closed", func(t *testing.T) {
		t.Parallel()
		store := &stubStore{saved: true, snapshot: Snapshot{
			Loans: []Loan{{ID: 5, BookID: 77, MemberID: 3, IssuedDate: referenceTime, DueDate: referenceTime, Status: LoanActive}},
		}}
		h := newHarnessWithStore(t, store)

		loan, err := h.ledger.Return(ctx, ReturnParams{Principal: member(3), LoanID: 5})
		require.NoError(t, err)
		assert.Equal(t, LoanReturned, loan.Status)
	})
}

func TestReturnByISBN(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)

	_, err := h.ledger.ReturnByISBN(ctx, member(1), "9780201633610")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = h.ledger.ReturnByISBN(ctx, librarian, "0000000000")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Book not found", Message(err))

	_, err = h.ledger.ReturnByISBN(ctx, librarian, "9780596517748")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "No active loan for this book", Message(err))

	loan, err := h.ledger.ReturnByISBN(ctx, librarian, " 9780201633610 ")
	require.NoError(t, err)
	assert.Equal(t, int64(2), loan.ID)
	assert.Equal(t, 1, bookByID(t, h.ledger, 6).AvailableCopies)
}

func TestReserve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)

	reservation, err := h.ledger.Reserve(ctx, ReserveParams{Principal: member(1), BookID: 6, MemberID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), reservation.ID)
	assert.Equal(t, ReservationActive, reservation.Status)
	assert.Equal(t, time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC), reservation.ReservedDate)

	_, err = h.ledger.Reserve(ctx, ReserveParams{Principal: member(1), BookID: 6, MemberID: 1})
	require.ErrorIs(t, err, ErrDuplicateReservation)
	assert.Equal(t, "You already have a reservation for this book", Message(err))

	_, err = h.ledger.Reserve(ctx, ReserveParams{Principal: member(1), BookID: 99})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = h.ledger.Reserve(ctx, ReserveParams{Principal: member(2), BookID: 6, MemberID: 1})
	require.ErrorIs(t, err, ErrUnauthorized)

	assert.Len(t, h.ledger.Snapshot().Reservations, 1)
}

func TestMemberLoans(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)

	views, err := h.ledger.MemberLoans(ctx, member(1), 1)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "Effective Java", views[0].Book.Title)
	assert.Equal(t, 4, views[0].DaysUntilDue)
	assert.False(t, views[0].Overdue)
	assert.False(t, views[0].DueSoon)

	assert.Equal(t, "Design Patterns", views[1].Book.Title)
	assert.Equal(t, -1, views[1].DaysUntilDue)
	assert.True(t, views[1].Overdue)

	h.now = referenceTime.AddDate(0, 0, 1)
	views, err = h.ledger.MemberLoans(ctx, librarian, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, views[0].DaysUntilDue)
	assert.True(t, views[0].DueSoon)

	_, err = h.ledger.MemberLoans(ctx, member(5), 1)
	require.ErrorIs(t, err, ErrUnauthorized)

	views, err = h.ledger.MemberLoans(ctx, member(5), 5)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestMemberReservations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)

	_, err := h.ledger.Reserve(ctx, ReserveParams{Principal: member(4), BookID: 3})
	require.NoError(t, err)

	views, err := h.ledger.MemberReservations(ctx, member(4), 4)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Building Microservices", views[0].Book.Title)

	_, err = h.ledger.MemberReservations(ctx, member(3), 4)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestActiveLoans(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)

	_, err := h.ledger.ActiveLoans(ctx, member(1))
	require.ErrorIs(t, err, ErrUnauthorized)

	registered, err := h.ledger.Register(ctx, RegisterParams{Email: "reader@example.com", Password: "secret1", Name: "Reader"})
	require.NoError(t, err)
	_, err = h.ledger.Borrow(ctx, BorrowParams{Principal: member(registered.ID), BookID: 7})
	require.NoError(t, err)

	views, err := h.ledger.ActiveLoans(ctx, librarian)
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.Nil(t, views[0].Member)
	assert.Equal(t, "Effective Java", views[0].Book.Title)
	require.NotNil(t, views[2].Member)
	assert.Equal(t, "Reader", views[2].Member.Name)
	assert.Equal(t, "The DevOps Handbook", views[2].Book.Title)
}

func TestConcurrentBorrowsRespectCopyCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		succeeded   int
		unavailable int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(memberID int64) {
			defer wg.Done()
			_, err := h.ledger.Borrow(ctx, BorrowParams{Principal: member(memberID), BookID: 2})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrNotAvailable):
				unavailable++
			}
		}(int64(100 + i))
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 17, unavailable)
	assert.Equal(t, 0, bookByID(t, h.ledger, 2).AvailableCopies)
	checkInvariants(t, h.ledger.Snapshot())
}
