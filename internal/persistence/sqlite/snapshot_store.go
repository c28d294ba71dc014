package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/library-ledger/internal/persistence"
)

const (
	dateLayout       = "2006-01-02"
	snapshotSavedKey = "snapshot_saved_at"
)

// SnapshotStore implements persistence.SnapshotStore on top of SQLite tables.
type SnapshotStore struct {
	pool  *ConnectionPool
	retry *RetryHelper
	now   func() time.Time
}

// NewSnapshotStore creates a snapshot store backed by pool.
func NewSnapshotStore(pool *ConnectionPool) *SnapshotStore {
	return &SnapshotStore{
		pool:  pool,
		retry: NewRetryHelper(DefaultRetryConfig()),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Load reads every collection. It reports false until the first Save.
func (s *SnapshotStore) Load(ctx context.Context) (persistence.Snapshot, bool, error) {
	var marker string
	err := s.pool.DB().QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE key = ?`, snapshotSavedKey).Scan(&marker)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Snapshot{}, false, nil
	}
	if err != nil {
		return persistence.Snapshot{}, false, fmt.Errorf("sqlite: read snapshot marker: %w", MapError(err))
	}

	var snapshot persistence.Snapshot
	if snapshot.Books, err = s.loadBooks(ctx); err != nil {
		return persistence.Snapshot{}, false, err
	}
	if snapshot.Members, err = s.loadMembers(ctx); err != nil {
		return persistence.Snapshot{}, false, err
	}
	if snapshot.Loans, err = s.loadLoans(ctx); err != nil {
		return persistence.Snapshot{}, false, err
	}
	if snapshot.Reservations, err = s.loadReservations(ctx); err != nil {
		return persistence.Snapshot{}, false, err
	}
	return snapshot, true, nil
}

// Save replaces all four collections inside a single transaction.
func (s *SnapshotStore) Save(ctx context.Context, snapshot persistence.Snapshot) error {
	return s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, table := range []string{"loans", "reservations", "books", "members"} {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
					return fmt.Errorf("sqlite: clear %s: %w", table, err)
				}
			}

			for _, b := range snapshot.Books {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO books (id, isbn, title, author, category, publish_year, total_copies, available_copies)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					b.ID, b.ISBN, b.Title, b.Author, b.Category, b.PublishYear, b.TotalCopies, b.AvailableCopies,
				); err != nil {
					return fmt.Errorf("sqlite: insert book %d: %w", b.ID, err)
				}
			}

			for _, m := range snapshot.Members {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO members (id, email, password_hash, name, role, join_date)
					VALUES (?, ?, ?, ?, ?, ?)`,
					m.ID, m.Email, m.PasswordHash, m.Name, m.Role, formatDate(m.JoinDate),
				); err != nil {
					return fmt.Errorf("sqlite: insert member %d: %w", m.ID, err)
				}
			}

			for _, l := range snapshot.Loans {
				var returned sql.NullString
				if l.ReturnedDate != nil {
					returned = sql.NullString{String: formatDate(*l.ReturnedDate), Valid: true}
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO loans (id, book_id, member_id, issued_date, due_date, returned_date, status)
					VALUES (?, ?, ?, ?, ?, ?, ?)`,
					l.ID, l.BookID, l.MemberID, formatDate(l.IssuedDate), formatDate(l.DueDate), returned, l.Status,
				); err != nil {
					return fmt.Errorf("sqlite: insert loan %d: %w", l.ID, err)
				}
			}

			for _, r := range snapshot.Reservations {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO reservations (id, book_id, member_id, reserved_date, status)
					VALUES (?, ?, ?, ?, ?)`,
					r.ID, r.BookID, r.MemberID, formatDate(r.ReservedDate), r.Status,
				); err != nil {
					return fmt.Errorf("sqlite: insert reservation %d: %w", r.ID, err)
				}
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO ledger_meta (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
				snapshotSavedKey, s.now().Format(time.RFC3339Nano),
			); err != nil {
				return fmt.Errorf("sqlite: mark snapshot: %w", err)
			}
			return nil
		})
	})
}

func (s *SnapshotStore) loadBooks(ctx context.Context) ([]persistence.Book, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `
		SELECT id, isbn, title, author, category, publish_year, total_copies, available_copies
		FROM books ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query books: %w", MapError(err))
	}
	defer rows.Close()

	var books []persistence.Book
	for rows.Next() {
		var b persistence.Book
		if err := rows.Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Category, &b.PublishYear, &b.TotalCopies, &b.AvailableCopies); err != nil {
			return nil, fmt.Errorf("sqlite: scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (s *SnapshotStore) loadMembers(ctx context.Context) ([]persistence.Member, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `
		SELECT id, email, password_hash, name, role, join_date
		FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query members: %w", MapError(err))
	}
	defer rows.Close()

	var members []persistence.Member
	for rows.Next() {
		var (
			m        persistence.Member
			joinDate string
		)
		if err := rows.Scan(&m.ID, &m.Email, &m.PasswordHash, &m.Name, &m.Role, &joinDate); err != nil {
			return nil, fmt.Errorf("sqlite: scan member: %w", err)
		}
		if m.JoinDate, err = parseDate(joinDate); err != nil {
			return nil, fmt.Errorf("sqlite: member %d join_date: %w", m.ID, err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SnapshotStore) loadLoans(ctx context.Context) ([]persistence.Loan, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `
		SELECT id, book_id, member_id, issued_date, due_date, returned_date, status
		FROM loans ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query loans: %w", MapError(err))
	}
	defer rows.Close()

	var loans []persistence.Loan
	for rows.Next() {
		var (
			l           persistence.Loan
			issued, due string
			returned    sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.BookID, &l.MemberID, &issued, &due, &returned, &l.Status); err != nil {
			return nil, fmt.Errorf("sqlite: scan loan: %w", err)
		}
		if l.IssuedDate, err = parseDate(issued); err != nil {
			return nil, fmt.Errorf("sqlite: loan %d issued_date: %w", l.ID, err)
		}
		if l.DueDate, err = parseDate(due); err != nil {
			return nil, fmt.Errorf("sqlite: loan %d due_date: %w", l.ID, err)
		}
		if returned.Valid {
			day, err := parseDate(returned.String)
			if err != nil {
				return nil, fmt.Errorf("sqlite: loan %d returned_date: %w", l.ID, err)
			}
			l.ReturnedDate = &day
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

func (s *SnapshotStore) loadReservations(ctx context.Context) ([]persistence.Reservation, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `
		SELECT id, book_id, member_id, reserved_date, status
		FROM reservations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query reservations: %w", MapError(err))
	}
	defer rows.Close()

	var reservations []persistence.Reservation
	for rows.Next() {
		var (
			r        persistence.Reservation
			reserved string
		)
		if err := rows.Scan(&r.ID, &r.BookID, &r.MemberID, &reserved, &r.Status); err != nil {
			return nil, fmt.Errorf("sqlite: scan reservation: %w", err)
		}
		if r.ReservedDate, err = parseDate(reserved); err != nil {
			return nil, fmt.Errorf("sqlite: reservation %d reserved_date: %w", r.ID, err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, value, time.UTC)
}
