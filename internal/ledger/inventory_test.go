package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() BookInput {
	return BookInput{
		ISBN:        "9781234567897",
		Title:       "Release It!",
		Author:      "Michael Nygard",
		Category:    "Software Architecture",
		PublishYear: 2018,
		TotalCopies: 3,
	}
}

func TestAddBook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("all copies start available", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		input := validInput()
		input.Title = "  Release It!  "
		book, err := h.ledger.AddBook(ctx, AddBookParams{Principal: librarian, Input: input})
		require.NoError(t, err)

		assert.Equal(t, int64(9), book.ID)
		assert.Equal(t, "Release It!", book.Title)
		assert.Equal(t, 3, book.TotalCopies)
		assert.Equal(t, 3, book.AvailableCopies)
		assert.Len(t, h.store.snapshot.Books, 9)
	})

	t.Run("duplicate isbn is allowed", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		input := validInput()
		input.ISBN = "9780134685991"
		_, err := h.ledger.AddBook(ctx, AddBookParams{Principal: librarian, Input: input})
		require.NoError(t, err)
	})

	t.Run("members cannot add", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		_, err := h.ledger.AddBook(ctx, AddBookParams{Principal: member(1), Input: validInput()})
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		_, err := h.ledger.AddBook(ctx, AddBookParams{Principal: librarian, Input: BookInput{PublishYear: -1}})
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "validation", ErrorKind(err))
		for _, field := range []string{"isbn", "title", "author", "category", "publishYear", "totalCopies"} {
			assert.Contains(t, vErr.FieldErrors, field)
		}
		assert.Len(t, h.ledger.Snapshot().Books, 8)
	})
}

func TestUpdateBook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	inputFor := func(book Book, total int) BookInput {
		return BookInput{
			ISBN:        book.ISBN,
			Title:       book.Title,
			Author:      book.Author,
			Category:    book.Category,
			PublishYear: book.PublishYear,
			TotalCopies: total,
		}
	}

	t.Run("shrinking total keeps the on-loan count", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		old := bookByID(t, h.ledger, 1)

		updated, err := h.ledger.UpdateBook(ctx, UpdateBookParams{Principal: librarian, BookID: 1, Input: inputFor(old, old.TotalCopies-1)})
		require.NoError(t, err)

		assert.Equal(t, old.AvailableCopies-1, updated.AvailableCopies)
		assert.Equal(t, updated.TotalCopies-old.TotalCopies, updated.AvailableCopies-old.AvailableCopies)
		assert.Equal(t, old.OnLoan(), updated.OnLoan())
	})

	t.Run("growing total adds available copies", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		old := bookByID(t, h.ledger, 6)

		input := inputFor(old, 5)
		input.Title = "Design Patterns (2nd printing)"
		updated, err := h.ledger.UpdateBook(ctx, UpdateBookParams{Principal: librarian, BookID: 6, Input: input})
		require.NoError(t, err)

		assert.Equal(t, 3, updated.AvailableCopies)
		assert.Equal(t, "Design Patterns (2nd printing)", updated.Title)
		assert.Equal(t, updated, bookByID(t, h.ledger, 6))
	})

	t.Run("total below copies on loan is rejected", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		old := bookByID(t, h.ledger, 6)

		_, err := h.ledger.UpdateBook(ctx, UpdateBookParams{Principal: librarian, BookID: 6, Input: inputFor(old, 1)})
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Contains(t, vErr.FieldErrors["totalCopies"], "2 copies on loan")
		assert.Equal(t, old, bookByID(t, h.ledger, 6))
	})

	t.Run("unknown book", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		_, err := h.ledger.UpdateBook(ctx, UpdateBookParams{Principal: librarian, BookID: 99, Input: validInput()})
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, "Book not found", Message(err))
	})

	t.Run("members cannot update", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		_, err := h.ledger.UpdateBook(ctx, UpdateBookParams{Principal: member(1), BookID: 1, Input: validInput()})
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestIssueBook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)

	reader, err := h.ledger.Register(ctx, RegisterParams{Email: "reader@example.com", Password: "secret1", Name: "Reader"})
	require.NoError(t, err)

	_, err = h.ledger.IssueBook(ctx, IssueBookParams{Principal: member(reader.ID), ISBN: "9780132350884", Email: "reader@example.com"})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = h.ledger.IssueBook(ctx, IssueBookParams{Principal: librarian, ISBN: "404", Email: "reader@example.com"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Book not found", Message(err))

	_, err = h.ledger.IssueBook(ctx, IssueBookParams{Principal: librarian, ISBN: "9780132350884", Email: "ghost@example.com"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Member not found", Message(err))

	loan, err := h.ledger.IssueBook(ctx, IssueBookParams{Principal: librarian, ISBN: "9780132350884", Email: " Reader@Example.com "})
	require.NoError(t, err)
	assert.Equal(t, reader.ID, loan.MemberID)
	assert.Equal(t, int64(2), loan.BookID)
	assert.Equal(t, 2, bookByID(t, h.ledger, 2).AvailableCopies)

	_, err = h.ledger.IssueBook(ctx, IssueBookParams{Principal: librarian, ISBN: "9780132350884", Email: "reader@example.com"})
	require.ErrorIs(t, err, ErrDuplicateLoan)

	_, err = h.ledger.IssueBook(ctx, IssueBookParams{Principal: librarian, ISBN: "9780201633610", Email: "reader@example.com"})
	require.ErrorIs(t, err, ErrNotAvailable)
}
