package ledger

import "time"

// Role distinguishes regular members from library staff.
type Role string

const (
	RoleMember    Role = "member"
	RoleLibrarian Role = "librarian"
)

// Principal identifies the member invoking a ledger operation.
type Principal struct {
	MemberID int64
	Role     Role
}

// IsLibrarian reports whether the principal may manage inventory and loans.
func (p Principal) IsLibrarian() bool {
	return p.Role == RoleLibrarian
}

// SystemPrincipal acts with librarian rights on behalf of operator tooling.
var SystemPrincipal = Principal{Role: RoleLibrarian}

// LoanStatus tracks whether a loan is still outstanding.
type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
)

// ReservationStatus tracks a reservation. Only active exists today.
type ReservationStatus string

const ReservationActive ReservationStatus = "active"

// Book is a catalog title and its copy counts.
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

// OnLoan returns the number of copies currently lent out.
func (b Book) OnLoan() int {
	return b.TotalCopies - b.AvailableCopies
}

// Member is a library account without its credential.
type Member struct {
	ID       int64
	Email    string
	Name     string
	Role     Role
	JoinDate time.Time
}

// MemberRecord is a member together with its stored password hash.
type MemberRecord struct {
	Member
	PasswordHash string
}

// Loan records one copy of a book lent to a member.
type Loan struct {
	ID           int64
	BookID       int64
	MemberID     int64
	IssuedDate   time.Time
	DueDate      time.Time
	ReturnedDate *time.Time
	Status       LoanStatus
}

// Reservation is a passive hold a member placed on a title.
type Reservation struct {
	ID           int64
	BookID       int64
	MemberID     int64
	ReservedDate time.Time
	Status       ReservationStatus
}

// Snapshot is the full ledger state handed to a Store.
type Snapshot struct {
	Books        []Book
	Members      []MemberRecord
	Loans        []Loan
	Reservations []Reservation
}

// Session is an issued sign-in token.
type Session struct {
	ID        string
	Token     string
	MemberID  int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// BookInput captures caller provided book fields.
type BookInput struct {
	ISBN        string
	Title       string
	Author      string
	Category    string
	PublishYear int
	TotalCopies int
}

// BookFilter narrows catalog listings.
type BookFilter struct {
	Query    string
	Category string
}

// Stats summarises the library for the landing page.
type Stats struct {
	Books           int
	Members         int
	ActiveLoans     int
	TotalCopies     int
	AvailableCopies int
}

// LoanView is an active loan joined with its book.
type LoanView struct {
	Loan
	Book         Book
	DaysUntilDue int
	Overdue      bool
	DueSoon      bool
}

// ReservationView is a reservation joined with its book.
type ReservationView struct {
	Reservation
	Book Book
}

// CirculationView is an active loan joined with its book and borrower.
// Member is nil when the borrower has no account.
type CirculationView struct {
	Loan
	Book   Book
	Member *Member
}

// BorrowParams wraps the data required to borrow a book.
// A zero MemberID borrows for the principal.
type BorrowParams struct {
	Principal Principal
	BookID    int64
	MemberID  int64
}

// ReturnParams wraps the data required to return a loan.
type ReturnParams struct {
	Principal Principal
	LoanID    int64
}

// ReserveParams wraps the data required to reserve a book.
// A zero MemberID reserves for the principal.
type ReserveParams struct {
	Principal Principal
	BookID    int64
	MemberID  int64
}

// AddBookParams wraps the data required to add a title.
type AddBookParams struct {
	Principal Principal
	Input     BookInput
}

// UpdateBookParams wraps the data required to replace a title's fields.
type UpdateBookParams struct {
	Principal Principal
	BookID    int64
	Input     BookInput
}

// IssueBookParams identifies the title and borrower at the circulation desk.
type IssueBookParams struct {
	Principal Principal
	ISBN      string
	Email     string
}

// RegisterParams captures the fields of a new account.
type RegisterParams struct {
	Email    string
	Password string
	Name     string
}

// LoginParams captures sign-in credentials.
type LoginParams struct {
	Email    string
	Password string
}

// LoginResult carries the signed-in member and its new session.
type LoginResult struct {
	Member  Member
	Session Session
}

// Identity is the resolved owner of a session token.
type Identity struct {
	Principal Principal
	Member    Member
	Session   Session
}
