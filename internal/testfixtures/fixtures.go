package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/library-ledger/internal/ledger"
	"github.com/example/library-ledger/internal/persistence"
)

var (
	bookCounter   uint64
	memberCounter uint64
	loanCounter   uint64
)

var referenceTime = time.Date(2025, time.January, 20, 10, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns ReferenceTime truncated to its calendar day.
func ReferenceDate() time.Time {
	return time.Date(referenceTime.Year(), referenceTime.Month(), referenceTime.Day(), 0, 0, 0, 0, time.UTC)
}

// FastPasswordParams keeps argon2id cheap enough for unit tests.
var FastPasswordParams = ledger.Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// ----------------------------- Book fixtures -----------------------------

// BookFixture represents a deterministic catalog entry.
type BookFixture struct {
	ID              int64
	ISBN            string
	Title           string
	Author          string
	Category        string
	PublishYear     int
	TotalCopies     int
	AvailableCopies int
}

// BookOption configures the generated book fixture.
type BookOption func(*BookFixture)

// NewBookFixture returns a deterministic book fixture with optional overrides.
// Ids start at 100 so they never collide with the seed catalog.
func NewBookFixture(opts ...BookOption) BookFixture {
	idx := atomic.AddUint64(&bookCounter, 1)
	fixture := BookFixture{
		ID:              int64(100 + idx),
		ISBN:            fmt.Sprintf("978%010d", idx),
		Title:           fmt.Sprintf("Book %03d", idx),
		Author:          fmt.Sprintf("Author %03d", idx),
		Category:        "Fixtures",
		PublishYear:     2000 + int(idx%25),
		TotalCopies:     2,
		AvailableCopies: 2,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBookID overrides the generated book ID.
func WithBookID(id int64) BookOption {
	return func(f *BookFixture) {
		f.ID = id
	}
}

// WithISBN overrides the generated ISBN.
func WithISBN(isbn string) BookOption {
	return func(f *BookFixture) {
		f.ISBN = isbn
	}
}

// WithTitle overrides the generated title.
func WithTitle(title string) BookOption {
	return func(f *BookFixture) {
		f.Title = title
	}
}

// WithCategory overrides the generated category.
func WithCategory(category string) BookOption {
	return func(f *BookFixture) {
		f.Category = category
	}
}

// WithCopies sets the total and available copy counts.
func WithCopies(total, available int) BookOption {
	return func(f *BookFixture) {
		f.TotalCopies = total
		f.AvailableCopies = available
	}
}

// Ledger returns the fixture as a ledger.Book value.
func (f BookFixture) Ledger() ledger.Book {
	return ledger.Book{
		ID:              f.ID,
		ISBN:            f.ISBN,
		Title:           f.Title,
		Author:          f.Author,
		Category:        f.Category,
		PublishYear:     f.PublishYear,
		TotalCopies:     f.TotalCopies,
		AvailableCopies: f.AvailableCopies,
	}
}

// Input returns the fixture as a ledger.BookInput.
func (f BookFixture) Input() ledger.BookInput {
	return ledger.BookInput{
		ISBN:        f.ISBN,
		Title:       f.Title,
		Author:      f.Author,
		Category:    f.Category,
		PublishYear: f.PublishYear,
		TotalCopies: f.TotalCopies,
	}
}

// Persistence returns the fixture as a persistence.Book value.
func (f BookFixture) Persistence() persistence.Book {
	return persistence.Book{
		ID:              f.ID,
		ISBN:            f.ISBN,
		Title:           f.Title,
		Author:          f.Author,
		Category:        f.Category,
		PublishYear:     f.PublishYear,
		TotalCopies:     f.TotalCopies,
		AvailableCopies: f.AvailableCopies,
	}
}

// ---------------------------- Member fixtures ----------------------------

// MemberFixture represents a deterministic member account.
type MemberFixture struct {
	ID       int64
	Email    string
	Password string
	Name     string
	Role     ledger.Role
	JoinDate time.Time
}

// MemberOption configures the generated member fixture.
type MemberOption func(*MemberFixture)

// NewMemberFixture returns a deterministic member fixture with optional overrides.
func NewMemberFixture(opts ...MemberOption) MemberFixture {
	idx := atomic.AddUint64(&memberCounter, 1)
	fixture := MemberFixture{
		ID:       int64(100 + idx),
		Email:    fmt.Sprintf("member-%03d@example.com", idx),
		Password: fmt.Sprintf("password-%03d", idx),
		Name:     fmt.Sprintf("Member %03d", idx),
		Role:     ledger.RoleMember,
		JoinDate: ReferenceDate(),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMemberID overrides the generated member ID.
func WithMemberID(id int64) MemberOption {
	return func(f *MemberFixture) {
		f.ID = id
	}
}

// WithEmail overrides the generated email address.
func WithEmail(email string) MemberOption {
	return func(f *MemberFixture) {
		f.Email = email
	}
}

// WithPassword overrides the generated plain text password.
func WithPassword(password string) MemberOption {
	return func(f *MemberFixture) {
		f.Password = password
	}
}

// AsLibrarian gives the fixture the librarian role.
func AsLibrarian() MemberOption {
	return func(f *MemberFixture) {
		f.Role = ledger.RoleLibrarian
	}
}

// Ledger returns the fixture as a ledger.Member value.
func (f MemberFixture) Ledger() ledger.Member {
	return ledger.Member{
		ID:       f.ID,
		Email:    f.Email,
		Name:     f.Name,
		Role:     f.Role,
		JoinDate: f.JoinDate,
	}
}

// Record hashes the fixture password with FastPasswordParams.
func (f MemberFixture) Record() (ledger.MemberRecord, error) {
	hash, err := ledger.HashPassword(f.Password, FastPasswordParams)
	if err != nil {
		return ledger.MemberRecord{}, err
	}
	return ledger.MemberRecord{Member: f.Ledger(), PasswordHash: hash}, nil
}

// Principal returns the principal acting as this member.
func (f MemberFixture) Principal() ledger.Principal {
	return ledger.Principal{MemberID: f.ID, Role: f.Role}
}

// Register returns registration parameters for the fixture.
func (f MemberFixture) Register() ledger.RegisterParams {
	return ledger.RegisterParams{Email: f.Email, Password: f.Password, Name: f.Name}
}

// ----------------------------- Loan fixtures -----------------------------

// LoanFixture represents a deterministic loan.
type LoanFixture struct {
	ID           int64
	BookID       int64
	MemberID     int64
	IssuedDate   time.Time
	DueDate      time.Time
	ReturnedDate *time.Time
	Status       ledger.LoanStatus
}

// LoanOption configures the generated loan fixture.
type LoanOption func(*LoanFixture)

// NewLoanFixture returns an active loan issued on ReferenceDate.
func NewLoanFixture(bookID, memberID int64, opts ...LoanOption) LoanFixture {
	idx := atomic.AddUint64(&loanCounter, 1)
	issued := ReferenceDate()
	fixture := LoanFixture{
		ID:         int64(100 + idx),
		BookID:     bookID,
		MemberID:   memberID,
		IssuedDate: issued,
		DueDate:    issued.AddDate(0, 0, 14),
		Status:     ledger.LoanActive,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithLoanID overrides the generated loan ID.
func WithLoanID(id int64) LoanOption {
	return func(f *LoanFixture) {
		f.ID = id
	}
}

// WithDueDate overrides the due date.
func WithDueDate(due time.Time) LoanOption {
	return func(f *LoanFixture) {
		f.DueDate = due
	}
}

// Returned marks the loan as returned on the given day.
func Returned(on time.Time) LoanOption {
	return func(f *LoanFixture) {
		returned := on
		f.ReturnedDate = &returned
		f.Status = ledger.LoanReturned
	}
}

// Ledger returns the fixture as a ledger.Loan value.
func (f LoanFixture) Ledger() ledger.Loan {
	loan := ledger.Loan{
		ID:         f.ID,
		BookID:     f.BookID,
		MemberID:   f.MemberID,
		IssuedDate: f.IssuedDate,
		DueDate:    f.DueDate,
		Status:     f.Status,
	}
	if f.ReturnedDate != nil {
		returned := *f.ReturnedDate
		loan.ReturnedDate = &returned
	}
	return loan
}

// Persistence returns the fixture as a persistence.Loan value.
func (f LoanFixture) Persistence() persistence.Loan {
	loan := persistence.Loan{
		ID:         f.ID,
		BookID:     f.BookID,
		MemberID:   f.MemberID,
		IssuedDate: f.IssuedDate,
		DueDate:    f.DueDate,
		Status:     string(f.Status),
	}
	if f.ReturnedDate != nil {
		returned := *f.ReturnedDate
		loan.ReturnedDate = &returned
	}
	return loan
}
