package persistence

import "time"

// Book is the stored form of a catalog title.
type Book struct {
	ID              int64
	ISBN            string
	Title           string
	Author          string
	Category        string
	PublishYear     int
	TotalCopies     int
	AvailableCopies int
}

// Member is the stored form of a library account.
type Member struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	Role         string
	JoinDate     time.Time
}

// Loan is the stored form of a lending record.
type Loan struct {
	ID           int64
	BookID       int64
	MemberID     int64
	IssuedDate   time.Time
	DueDate      time.Time
	ReturnedDate *time.Time
	Status       string
}

// Reservation is the stored form of a hold placed on a title.
type Reservation struct {
	ID           int64
	BookID       int64
	MemberID     int64
	ReservedDate time.Time
	Status       string
}

// Snapshot bundles every ledger collection for a single load or save.
type Snapshot struct {
	Books        []Book
	Members      []Member
	Loans        []Loan
	Reservations []Reservation
}

// Clone returns a deep copy so callers never share slices with a store.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Books:        append([]Book(nil), s.Books...),
		Members:      append([]Member(nil), s.Members...),
		Loans:        make([]Loan, len(s.Loans)),
		Reservations: append([]Reservation(nil), s.Reservations...),
	}
	for i, loan := range s.Loans {
		if loan.ReturnedDate != nil {
			returned := *loan.ReturnedDate
			loan.ReturnedDate = &returned
		}
		out.Loans[i] = loan
	}
	return out
}

// Session represents an authenticated member session.
type Session struct {
	ID        string
	Token     string
	MemberID  int64
	CreatedAt time.Time
	ExpiresAt time.Time
}
