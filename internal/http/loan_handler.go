package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/library-ledger/internal/ledger"
)

type lendingService interface {
	Borrow(ctx context.Context, params ledger.BorrowParams) (ledger.Loan, error)
	Return(ctx context.Context, params ledger.ReturnParams) (ledger.Loan, error)
	Reserve(ctx context.Context, params ledger.ReserveParams) (ledger.Reservation, error)
	MemberLoans(ctx context.Context, principal ledger.Principal, memberID int64) ([]ledger.LoanView, error)
	MemberReservations(ctx context.Context, principal ledger.Principal, memberID int64) ([]ledger.ReservationView, error)
	ActiveLoans(ctx context.Context, principal ledger.Principal) ([]ledger.CirculationView, error)
}

type LoanHandler struct {
	service   lendingService
	responder responder
	logger    *slog.Logger
}

func NewLoanHandler(service lendingService, logger *slog.Logger) *LoanHandler {
	base := defaultLogger(logger)
	return &LoanHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *LoanHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "LoanHandler", operation, attrs...)
}

func (h *LoanHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var req lendingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Borrow", "principal_id", principal.MemberID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode borrow request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Borrow", "principal_id", principal.MemberID, "book_id", req.BookID)

	loan, err := h.service.Borrow(r.Context(), ledger.BorrowParams{Principal: principal, BookID: req.BookID, MemberID: req.MemberID})
	if err != nil {
		logger.ErrorContext(r.Context(), "borrow failed", "error", err, "error_kind", ledger.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("loan_id", loan.ID).InfoContext(r.Context(), "book borrowed")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, loanResponse{result: ok("Book borrowed successfully!"), Loan: toLoanDTO(loan)})
}

func (h *LoanHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(r, "id")
	if !valid {
		h.log(r.Context(), "Return", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid loan id for return")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLoanID)
		return
	}

	principal := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Return", "principal_id", principal.MemberID, "loan_id", id)

	loan, err := h.service.Return(r.Context(), ledger.ReturnParams{Principal: principal, LoanID: id})
	if err != nil {
		logger.ErrorContext(r.Context(), "return failed", "error", err, "error_kind", ledger.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "book returned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, loanResponse{result: ok("Book returned successfully!"), Loan: toLoanDTO(loan)})
}

func (h *LoanHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var req lendingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Reserve", "principal_id", principal.MemberID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Reserve", "principal_id", principal.MemberID, "book_id", req.BookID)

	reservation, err := h.service.Reserve(r.Context(), ledger.ReserveParams{Principal: principal, BookID: req.BookID, MemberID: req.MemberID})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation failed", "error", err, "error_kind", ledger.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(r.Context(), "book reserved")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{
		result:      ok("Book reserved successfully!"),
		Reservation: toReservationDTO(reservation),
	})
}

func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	views, err := h.service.ActiveLoans(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.MemberID).ErrorContext(r.Context(), "list loans failed", "error", err, "error_kind", ledger.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]circulationDTO, 0, len(views))
	for _, view := range views {
		dto := circulationDTO{loanDTO: toLoanDTO(view.Loan), Book: toBookDTO(view.Book)}
		if view.Member != nil {
			member := toMemberDTO(*view.Member)
			dto.Member = &member
		}
		dtos = append(dtos, dto)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, circulationListResponse{result: ok(""), Loans: dtos})
}

func (h *LoanHandler) MemberLoans(w http.ResponseWriter, r *http.Request) {
	memberID, valid := pathID(r, "id")
	if !valid {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMemberID)
		return
	}
	principal := PrincipalFromContext(r.Context())

	views, err := h.service.MemberLoans(r.Context(), principal, memberID)
	if err != nil {
		h.log(r.Context(), "MemberLoans", "principal_id", principal.MemberID, "member_id", memberID).ErrorContext(r.Context(), "list member loans failed", "error", err, "error_kind", ledger.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]memberLoanDTO, 0, len(views))
	for _, view := range views {
		dtos = append(dtos, memberLoanDTO{
			loanDTO:      toLoanDTO(view.Loan),
			Book:         toBookDTO(view.Book),
			DaysUntilDue: view.DaysUntilDue,
			Overdue:      view.Overdue,
			DueSoon:      view.DueSoon,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, memberLoanListResponse{result: ok(""), Loans: dtos})
}

func (h *LoanHandler) MemberReservations(w http.ResponseWriter, r *http.Request) {
	memberID, valid := pathID(r, "id")
	if !valid {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMemberID)
		return
	}
	principal := PrincipalFromContext(r.Context())

	views, err := h.service.MemberReservations(r.Context(), principal, memberID)
	if err != nil {
		h.log(r.Context(), "MemberReservations", "principal_id", principal.MemberID, "member_id", memberID).ErrorContext(r.Context(), "list member reservations failed", "error", err, "error_kind", ledger.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]memberReservationDTO, 0, len(views))
	for _, view := range views {
		dtos = append(dtos, memberReservationDTO{
			reservationDTO: toReservationDTO(view.Reservation),
			Book:           toBookDTO(view.Book),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, memberReservationListResponse{result: ok(""), Reservations: dtos})
}

type lendingRequest struct {
	BookID   int64 `json:"book_id"`
	MemberID int64 `json:"member_id,omitempty"`
}

type loanDTO struct {
	ID           int64  `json:"id"`
	BookID       int64  `json:"book_id"`
	MemberID     int64  `json:"member_id"`
	IssuedDate   string `json:"issued_date"`
	DueDate      string `json:"due_date"`
	ReturnedDate string `json:"returned_date,omitempty"`
	Status       string `json:"status"`
}

func toLoanDTO(loan ledger.Loan) loanDTO {
	dto := loanDTO{
		ID:         loan.ID,
		BookID:     loan.BookID,
		MemberID:   loan.MemberID,
		IssuedDate: formatDate(loan.IssuedDate),
		DueDate:    formatDate(loan.DueDate),
		Status:     string(loan.Status),
	}
	if loan.ReturnedDate != nil {
		dto.ReturnedDate = formatDate(*loan.ReturnedDate)
	}
	return dto
}

type reservationDTO struct {
	ID           int64  `json:"id"`
	BookID       int64  `json:"book_id"`
	MemberID     int64  `json:"member_id"`
	ReservedDate string `json:"reserved_date"`
	Status       string `json:"status"`
}

func toReservationDTO(reservation ledger.Reservation) reservationDTO {
	return reservationDTO{
		ID:           reservation.ID,
		BookID:       reservation.BookID,
		MemberID:     reservation.MemberID,
		ReservedDate: formatDate(reservation.ReservedDate),
		Status:       string(reservation.Status),
	}
}

type memberLoanDTO struct {
	loanDTO
	Book         bookDTO `json:"book"`
	DaysUntilDue int     `json:"days_until_due"`
	Overdue      bool    `json:"overdue"`
	DueSoon      bool    `json:"due_soon"`
}

type memberReservationDTO struct {
	reservationDTO
	Book bookDTO `json:"book"`
}

type circulationDTO struct {
	loanDTO
	Book   bookDTO    `json:"book"`
	Member *memberDTO `json:"member"`
}

type loanResponse struct {
	result
	Loan loanDTO `json:"loan"`
}

type reservationResponse struct {
	result
	Reservation reservationDTO `json:"reservation"`
}

type memberLoanListResponse struct {
	result
	Loans []memberLoanDTO `json:"loans"`
}

type memberReservationListResponse struct {
	result
	Reservations []memberReservationDTO `json:"reservations"`
}

type circulationListResponse struct {
	result
	Loans []circulationDTO `json:"loans"`
}
