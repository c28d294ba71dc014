package ledger

import (
	"context"
	"strings"
)

// SearchBooks returns books whose title, author or ISBN contains query,
// ignoring case. An empty query returns the whole catalog.
func (l *Ledger) SearchBooks(ctx context.Context, query string) []Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.searchLocked(query)
}

func (l *Ledger) searchLocked(query string) []Book {
	needle := strings.ToLower(strings.TrimSpace(query))
	books := make([]Book, 0, len(l.books))
	for _, book := range l.books {
		if needle == "" ||
			strings.Contains(strings.ToLower(book.Title), needle) ||
			strings.Contains(strings.ToLower(book.Author), needle) ||
			strings.Contains(strings.ToLower(book.ISBN), needle) {
			books = append(books, book)
		}
	}
	return books
}

// ListBooks applies the text search and then an exact category match.
func (l *Ledger) ListBooks(ctx context.Context, filter BookFilter) []Book {
	l.mu.Lock()
	defer l.mu.Unlock()

	books := l.searchLocked(filter.Query)
	category := strings.TrimSpace(filter.Category)
	if category == "" {
		return books
	}
	filtered := books[:0]
	for _, book := range books {
		if book.Category == category {
			filtered = append(filtered, book)
		}
	}
	return filtered
}

// Categories lists distinct categories in catalog order.
func (l *Ledger) Categories(ctx context.Context) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]struct{}, len(l.books))
	categories := make([]string, 0, len(l.books))
	for _, book := range l.books {
		if _, ok := seen[book.Category]; ok {
			continue
		}
		seen[book.Category] = struct{}{}
		categories = append(categories, book.Category)
	}
	return categories
}

// GetBook looks a book up by id.
func (l *Ledger) GetBook(ctx context.Context, id int64) (Book, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := l.bookIndex(id); i >= 0 {
		return l.books[i], true
	}
	return Book{}, false
}

// Stats counts titles, regular members and active loans.
func (l *Ledger) Stats(ctx context.Context) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{Books: len(l.books)}
	for _, book := range l.books {
		stats.TotalCopies += book.TotalCopies
		stats.AvailableCopies += book.AvailableCopies
	}
	for _, member := range l.members {
		if member.Role == RoleMember {
			stats.Members++
		}
	}
	for _, loan := range l.loans {
		if loan.Status == LoanActive {
			stats.ActiveLoans++
		}
	}
	return stats
}
