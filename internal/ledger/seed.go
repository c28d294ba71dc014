package ledger

import "time"

// Seed credentials for the bundled librarian account.
const (
	SeedLibrarianEmail    = "admin@library.com"
	SeedLibrarianPassword = "admin123"
)

func seedDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SeedBooks returns the starter catalog.
func SeedBooks() []Book {
	return []Book{
		{ID: 1, ISBN: "9780134685991", Title: "Effective Java", Author: "Joshua Bloch", Category: "Programming", TotalCopies: 3, AvailableCopies: 2, PublishYear: 2018},
		{ID: 2, ISBN: "9780132350884", Title: "Clean Code", Author: "Robert C. Martin", Category: "Programming", TotalCopies: 5, AvailableCopies: 3, PublishYear: 2008},
		{ID: 3, ISBN: "9781491950296", Title: "Building Microservices", Author: "Sam Newman", Category: "Software Architecture", TotalCopies: 2, AvailableCopies: 1, PublishYear: 2015},
		{ID: 4, ISBN: "9780596517748", Title: "JavaScript: The Good Parts", Author: "Douglas Crockford", Category: "Programming", TotalCopies: 4, AvailableCopies: 4, PublishYear: 2008},
		{ID: 5, ISBN: "9781449355739", Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", Category: "Database", TotalCopies: 3, AvailableCopies: 2, PublishYear: 2017},
		{ID: 6, ISBN: "9780201633610", Title: "Design Patterns", Author: "Gang of Four", Category: "Software Design", TotalCopies: 2, AvailableCopies: 0, PublishYear: 1994},
		{ID: 7, ISBN: "9781617294136", Title: "The DevOps Handbook", Author: "Gene Kim", Category: "DevOps", TotalCopies: 3, AvailableCopies: 3, PublishYear: 2016},
		{ID: 8, ISBN: "9780135957059", Title: "The Pragmatic Programmer", Author: "David Thomas", Category: "Programming", TotalCopies: 4, AvailableCopies: 2, PublishYear: 2019},
	}
}

// SeedLoans returns the starter loans. Member 1 has no account.
func SeedLoans() []Loan {
	return []Loan{
		{ID: 1, BookID: 1, MemberID: 1, IssuedDate: seedDate(2025, time.January, 10), DueDate: seedDate(2025, time.January, 24), Status: LoanActive},
		{ID: 2, BookID: 6, MemberID: 1, IssuedDate: seedDate(2025, time.January, 5), DueDate: seedDate(2025, time.January, 19), Status: LoanActive},
	}
}

func seedSnapshot(params Argon2idParams) (Snapshot, error) {
	hash, err := HashPassword(SeedLibrarianPassword, params)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Books: SeedBooks(),
		Members: []MemberRecord{{
			Member: Member{
				ID:       2,
				Email:    SeedLibrarianEmail,
				Name:     "Jane Smith",
				Role:     RoleLibrarian,
				JoinDate: seedDate(2023, time.June, 1),
			},
			PasswordHash: hash,
		}},
		Loans:        SeedLoans(),
		Reservations: []Reservation{},
	}, nil
}
