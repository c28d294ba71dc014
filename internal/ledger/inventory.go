package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/library-ledger/internal/events"
)

const maxPublishYear = 9999

func normalizeBookInput(input BookInput) BookInput {
	input.ISBN = strings.TrimSpace(input.ISBN)
	input.Title = strings.TrimSpace(input.Title)
	input.Author = strings.TrimSpace(input.Author)
	input.Category = strings.TrimSpace(input.Category)
	return input
}

func validateBookInput(input BookInput) *ValidationError {
	vErr := &ValidationError{}
	if input.ISBN == "" {
		vErr.add("isbn", "isbn is required")
	}
	if input.Title == "" {
		vErr.add("title", "title is required")
	}
	if input.Author == "" {
		vErr.add("author", "author is required")
	}
	if input.Category == "" {
		vErr.add("category", "category is required")
	}
	if input.PublishYear < 0 || input.PublishYear > maxPublishYear {
		vErr.add("publishYear", fmt.Sprintf("publish year must be between 0 and %d", maxPublishYear))
	}
	if input.TotalCopies < 1 {
		vErr.add("totalCopies", "total copies must be at least 1")
	}
	return vErr
}

// AddBook adds a title with every copy available.
func (l *Ledger) AddBook(ctx context.Context, params AddBookParams) (book Book, err error) {
	input := normalizeBookInput(params.Input)
	logger := serviceLogger(ctx, l.logger, "AddBook", "isbn", input.ISBN)
	started := time.Now()
	defer func() {
		l.observe("add_book", started, err)
		if err != nil {
			logger.ErrorContext(ctx, "add book failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "book added", "book_id", book.ID, "total_copies", book.TotalCopies)
	}()

	if err := authorizeLibrarian(params.Principal); err != nil {
		return Book{}, err
	}
	if vErr := validateBookInput(input); vErr.HasErrors() {
		return Book{}, vErr
	}

	l.mu.Lock()
	prev := l.snapshotLocked()
	book = Book{
		ID:              nextBookID(l.books),
		ISBN:            input.ISBN,
		Title:           input.Title,
		Author:          input.Author,
		Category:        input.Category,
		PublishYear:     input.PublishYear,
		TotalCopies:     input.TotalCopies,
		AvailableCopies: input.TotalCopies,
	}
	l.books = append(l.books, book)
	err = l.commit(ctx, prev)
	l.mu.Unlock()
	if err != nil {
		return Book{}, err
	}

	l.publish(ctx, logger, events.TypeBookAdded, bookPayload(book))
	return book, nil
}

// UpdateBook replaces a title's fields and shifts the available count by the
// change in total copies.
func (l *Ledger) UpdateBook(ctx context.Context, params UpdateBookParams) (book Book, err error) {
	input := normalizeBookInput(params.Input)
	logger := serviceLogger(ctx, l.logger, "UpdateBook", "book_id", params.BookID)
	started := time.Now()
	defer func() {
		l.observe("update_book", started, err)
		if err != nil {
			logger.ErrorContext(ctx, "update book failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "book updated", "total_copies", book.TotalCopies, "available_copies", book.AvailableCopies)
	}()

	if err := authorizeLibrarian(params.Principal); err != nil {
		return Book{}, err
	}

	l.mu.Lock()
	book, err = l.updateBookLocked(ctx, params.BookID, input)
	l.mu.Unlock()
	if err != nil {
		return Book{}, err
	}

	l.publish(ctx, logger, events.TypeBookUpdated, bookPayload(book))
	return book, nil
}

func (l *Ledger) updateBookLocked(ctx context.Context, id int64, input BookInput) (Book, error) {
	i := l.bookIndex(id)
	if i < 0 {
		return Book{}, newError(ErrNotFound, "Book not found")
	}
	vErr := validateBookInput(input)
	current := l.books[i]
	if onLoan := current.OnLoan(); input.TotalCopies < onLoan {
		vErr.add("totalCopies", fmt.Sprintf("total copies cannot be below the %d copies on loan", onLoan))
	}
	if vErr.HasErrors() {
		return Book{}, vErr
	}

	prev := l.snapshotLocked()
	l.books[i] = Book{
		ID:              current.ID,
		ISBN:            input.ISBN,
		Title:           input.Title,
		Author:          input.Author,
		Category:        input.Category,
		PublishYear:     input.PublishYear,
		TotalCopies:     input.TotalCopies,
		AvailableCopies: current.AvailableCopies + (input.TotalCopies - current.TotalCopies),
	}
	book := l.books[i]
	if err := l.commit(ctx, prev); err != nil {
		return Book{}, err
	}
	return book, nil
}

// IssueBook lends a book found by ISBN to a member found by email.
func (l *Ledger) IssueBook(ctx context.Context, params IssueBookParams) (loan Loan, err error) {
	isbn := strings.TrimSpace(params.ISBN)
	email := normalizeEmail(params.Email)
	logger := serviceLogger(ctx, l.logger, "IssueBook", "isbn", isbn)
	started := time.Now()
	defer func() {
		l.observe("issue_book", started, err)
		if err != nil {
			logger.ErrorContext(ctx, "issue book failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "book issued", "loan_id", loan.ID, "member_id", loan.MemberID)
	}()

	if err := authorizeLibrarian(params.Principal); err != nil {
		return Loan{}, err
	}

	l.mu.Lock()
	loan, err = l.issueLocked(ctx, params.Principal, isbn, email)
	l.mu.Unlock()
	if err != nil {
		return Loan{}, err
	}

	l.publish(ctx, logger, events.TypeLoanBorrowed, loanPayload(loan))
	return loan, nil
}

func (l *Ledger) issueLocked(ctx context.Context, principal Principal, isbn, email string) (Loan, error) {
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
	record, ok := l.memberByEmail(email)
	if !ok {
		return Loan{}, newError(ErrNotFound, "Member not found")
	}
	return l.borrowLocked(ctx, principal, bookID, record.ID)
}

func bookPayload(book Book) map[string]any {
	return map[string]any{
		"book_id":          book.ID,
		"isbn":             book.ISBN,
		"title":            book.Title,
		"total_copies":     book.TotalCopies,
		"available_copies": book.AvailableCopies,
	}
}
