package ledger

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/example/library-ledger/internal/events"
)

const dueSoonDays = 3

// Borrow lends one copy of a book to a member.
func (l *Ledger) Borrow(ctx context.Context, params BorrowParams) (loan Loan, err error) {
	if params.MemberID == 0 {
		params.MemberID = params.Principal.MemberID
	}
	logger := serviceLogger(ctx, l.logger, "Borrow", "book_id", params.BookID, "member_id", params.MemberID)
	started := time.Now()
	defer func() {
		l.observe("borrow", started, err)
		if err != nil {
			logger.ErrorContext(ctx, "borrow failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "book borrowed", "loan_id", loan.ID, "due_date", formatDate(loan.DueDate))
	}()

	l.mu.Lock()
	loan, err = l.borrowLocked(ctx, params.Principal, params.BookID, params.MemberID)
	l.mu.Unlock()
	if err != nil {
		return Loan{}, err
	}

	l.publish(ctx, logger, events.TypeLoanBorrowed, loanPayload(loan))
	return loan, nil
}

func (l *Ledger) borrowLocked(ctx context.Context, principal Principal, bookID, memberID int64) (Loan, error) {
	if err := authorizeMember(principal, memberID); err != nil {
		return Loan{}, err
	}

	i := l.bookIndex(bookID)
	if i < 0 || l.books[i].AvailableCopies <= 0 {
		return Loan{}, newError(ErrNotAvailable, "Book not available")
	}
	for _, existing := range l.loans {
		if existing.BookID == bookID && existing.MemberID == memberID && existing.Status == LoanActive {
			return Loan{}, newError(ErrDuplicateLoan, "You already have this book borrowed")
		}
	}

	prev := l.snapshotLocked()
	today := l.today()
	loan := Loan{
		ID:         nextLoanID(l.loans),
		BookID:     bookID,
		MemberID:   memberID,
		IssuedDate: today,
		DueDate:    today.AddDate(0, 0, l.loanDays),
		Status:     LoanActive,
	}
	l.loans = append(l.loans, loan)
	l.books[i].AvailableCopies--

	if err := l.commit(ctx, prev); err != nil {
		return Loan{}, err
	}
	return loan, nil
}

// Return closes an active loan and puts the copy back on the shelf.
func (l *Ledger) Return(ctx context.Context, params ReturnParams) (loan Loan, err error) {
	logger := serviceLogger(ctx, l.logger, "Return", "loan_id", params.LoanID)
	started := time.Now()
	defer func() {
		l.observe("return", started, err)
		if err != nil {
			logger.ErrorContext(ctx, "return failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "book returned", "book_id", loan.BookID, "member_id", loan.MemberID)
	}()

	l.mu.Lock()
	loan, err = l.returnLocked(ctx, logger, params.Principal, params.LoanID)
	l.mu.Unlock()
	if err != nil {
		return Loan{}, err
	}

	l.publish(ctx, logger, events.TypeLoanReturned, loanPayload(loan))
	return loan, nil
}

func (l *Ledger) returnLocked(ctx context.Context, logger *slog.Logger, principal Principal, loanID int64) (Loan, error) {
	idx := -1
	for i := range l.loans {
		if l.loans[i].ID == loanID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Loan{}, newError(ErrNotFound, "Loan not found")
	}
	if err := authorizeMember(principal, l.loans[idx].MemberID); err != nil {
		return Loan{}, err
	}
	if l.loans[idx].Status == LoanReturned {
		return Loan{}, newError(ErrAlreadyReturned, "Book already returned")
	}

	prev := l.snapshotLocked()
	today := l.today()
	l.loans[idx].Status = LoanReturned
	l.loans[idx].ReturnedDate = &today

	if b := l.bookIndex(l.loans[idx].BookID); b >= 0 {
		book := &l.books[b]
		if book.AvailableCopies < book.TotalCopies {
			book.AvailableCopies++
		} else {
			logger.WarnContext(ctx, "available copies already at total, not incrementing",
				"book_id", book.ID, "total_copies", book.TotalCopies)
		}
	} else {
		logger.WarnContext(ctx, "returned loan references unknown book", "book_id", l.loans[idx].BookID)
	}

	loan := l.loans[idx]
	if err := l.commit(ctx, prev); err != nil {
		return Loan{}, err
	}
	return cloneLoans([]Loan{loan})[0], nil
}

// ReturnByISBN returns the oldest active loan of the book with the given ISBN.
func (l *Ledger) ReturnByISBN(ctx context.Context, principal Principal, isbn string) (loan Loan, err error) {
	isbn = strings.TrimSpace(isbn)
	logger := serviceLogger(ctx, l.logger, "ReturnByISBN", "isbn", isbn)
	started := time.Now()
	defer func() {
		l.observe("return_by_isbn", started, err)
		if err != nil {
			logger.ErrorContext(ctx, "return by isbn failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "book returned at desk", "loan_id", loan.ID, "member_id", loan.MemberID)
	}()

	if err := authorizeLibrarian(principal); err != nil {
		return Loan{}, err
	}

	l.mu.Lock()
	loan, err = l.returnByISBNLocked(ctx, logger, principal, isbn)
	l.mu.Unlock()
	if err != nil {
		return Loan{}, err
	}

	l.publish(ctx, logger, events.TypeLoanReturned, loanPayload(loan))
	return loan, nil
}

func (l *Ledger) returnByISBNLocked(ctx context.Context, logger *slog.Logger, principal Principal, isbn string) (Loan, error) {
	bookID := int64(-1)
	for _, book := range l.books {
		if book.ISBN == isbn {
			bookID = book.ID
			break
		}
	}
	if bookID < 0 {
		return Loan{}, newError(ErrNotFound, "Book not found")
	}
	for _, loan := range l.loans {
		if loan.BookID == bookID && loan.Status == LoanActive {
			return l.returnLocked(ctx, logger, principal, loan.ID)
		}
	}
	return Loan{}, newError(ErrNotFound, "No active loan for this book")
}

// Reserve places a passive hold on a book for a member.
func (l *Ledger) Reserve(ctx context.Context, params ReserveParams) (reservation Reservation, err error) {
	if params.MemberID == 0 {
		params.MemberID = params.Principal.MemberID
	}
	logger := serviceLogger(ctx, l.logger, "Reserve", "book_id", params.BookID, "member_id", params.MemberID)
	started := time.Now()
	defer func() {
		l.observe("reserve", started, err)
		if err != nil {
			logger.ErrorContext(ctx, "reserve failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "book reserved", "reservation_id", reservation.ID)
	}()

	if err := authorizeMember(params.Principal, params.MemberID); err != nil {
		return Reservation{}, err
	}

	l.mu.Lock()
	reservation, err = l.reserveLocked(ctx, params.BookID, params.MemberID)
	l.mu.Unlock()
	if err != nil {
		return Reservation{}, err
	}

	l.publish(ctx, logger, events.TypeReservationCreated, map[string]any{
		"reservation_id": reservation.ID,
		"book_id":        reservation.BookID,
		"member_id":      reservation.MemberID,
		"reserved_date":  formatDate(reservation.ReservedDate),
	})
	return reservation, nil
}

func (l *Ledger) reserveLocked(ctx context.Context, bookID, memberID int64) (Reservation, error) {
	if l.bookIndex(bookID) < 0 {
		return Reservation{}, newError(ErrNotFound, "Book not found")
	}
	for _, existing := range l.reservations {
		if existing.BookID == bookID && existing.MemberID == memberID && existing.Status == ReservationActive {
			return Reservation{}, newError(ErrDuplicateReservation, "You already have a reservation for this book")
		}
	}

	prev := l.snapshotLocked()
	reservation := Reservation{
		ID:           nextReservationID(l.reservations),
		BookID:       bookID,
		MemberID:     memberID,
		ReservedDate: l.today(),
		Status:       ReservationActive,
	}
	l.reservations = append(l.reservations, reservation)

	if err := l.commit(ctx, prev); err != nil {
		return Reservation{}, err
	}
	return reservation, nil
}

// MemberLoans lists a member's active loans with their books and due status.
func (l *Ledger) MemberLoans(ctx context.Context, principal Principal, memberID int64) ([]LoanView, error) {
	if err := authorizeMember(principal, memberID); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.today()
	views := make([]LoanView, 0)
	for _, loan := range l.loans {
		if loan.MemberID != memberID || loan.Status != LoanActive {
			continue
		}
		days := daysUntil(today, loan.DueDate)
		views = append(views, LoanView{
			Loan:         loan,
			Book:         l.bookOrPlaceholder(loan.BookID),
			DaysUntilDue: days,
			Overdue:      days < 0,
			DueSoon:      days >= 0 && days <= dueSoonDays,
		})
	}
	return views, nil
}

// MemberReservations lists a member's active reservations with their books.
func (l *Ledger) MemberReservations(ctx context.Context, principal Principal, memberID int64) ([]ReservationView, error) {
	if err := authorizeMember(principal, memberID); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	views := make([]ReservationView, 0)
	for _, reservation := range l.reservations {
		if reservation.MemberID != memberID || reservation.Status != ReservationActive {
			continue
		}
		views = append(views, ReservationView{
			Reservation: reservation,
			Book:        l.bookOrPlaceholder(reservation.BookID),
		})
	}
	return views, nil
}

// ActiveLoans lists every outstanding loan for the circulation desk.
func (l *Ledger) ActiveLoans(ctx context.Context, principal Principal) ([]CirculationView, error) {
	if err := authorizeLibrarian(principal); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	views := make([]CirculationView, 0)
	for _, loan := range l.loans {
		if loan.Status != LoanActive {
			continue
		}
		view := CirculationView{Loan: loan, Book: l.bookOrPlaceholder(loan.BookID)}
		if member, ok := l.memberByID(loan.MemberID); ok {
			view.Member = &member
		}
		views = append(views, view)
	}
	return views, nil
}

func (l *Ledger) bookOrPlaceholder(id int64) Book {
	if i := l.bookIndex(id); i >= 0 {
		return l.books[i]
	}
	return Book{ID: id}
}

// daysUntil counts whole days from today to due, rounding partial days up.
func daysUntil(today, due time.Time) int {
	return int(math.Ceil(due.Sub(today).Hours() / 24))
}

func loanPayload(loan Loan) map[string]any {
	payload := map[string]any{
		"loan_id":     loan.ID,
		"book_id":     loan.BookID,
		"member_id":   loan.MemberID,
		"issued_date": formatDate(loan.IssuedDate),
		"due_date":    formatDate(loan.DueDate),
		"status":      string(loan.Status),
	}
	if loan.ReturnedDate != nil {
		payload["returned_date"] = formatDate(*loan.ReturnedDate)
	}
	return payload
}
