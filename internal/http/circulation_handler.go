package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/library-ledger/internal/ledger"
)

type deskService interface {
	IssueBook(ctx context.Context, params ledger.IssueBookParams) (ledger.Loan, error)
	ReturnByISBN(ctx context.Context, principal ledger.Principal, isbn string) (ledger.Loan, error)
	Reset(ctx context.Context, principal ledger.Principal) error
}

// CirculationHandler serves the librarian desk.
type CirculationHandler struct {
	service   deskService
	responder responder
	logger    *slog.Logger
}

func NewCirculationHandler(service deskService, logger *slog.Logger) *CirculationHandler {
	base := defaultLogger(logger)
	return &CirculationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *CirculationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CirculationHandler", operation, attrs...)
}

func (h *CirculationHandler) Issue(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var req issueRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Issue", "principal_id", principal.MemberID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode issue request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Issue", "principal_id", principal.MemberID, "isbn", req.ISBN)

	loan, err := h.service.IssueBook(r.Context(), ledger.IssueBookParams{Principal: principal, ISBN: req.ISBN, Email: req.Email})
	if err != nil {
		logger.ErrorContext(r.Context(), "issue failed", "error", err, "error_kind", ledger.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("loan_id", loan.ID).InfoContext(r.Context(), "book issued")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, loanResponse{result: ok("Book borrowed successfully!"), Loan: toLoanDTO(loan)})
}

func (h *CirculationHandler) Return(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var req deskReturnRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Return", "principal_id", principal.MemberID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode desk return", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Return", "principal_id", principal.MemberID, "isbn", req.ISBN)

	loan, err := h.service.ReturnByISBN(r.Context(), principal, req.ISBN)
	if err != nil {
		logger.ErrorContext(r.Context(), "desk return failed", "error", err, "error_kind", ledger.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("loan_id", loan.ID).InfoContext(r.Context(), "book returned at desk")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, loanResponse{result: ok("Book returned successfully!"), Loan: toLoanDTO(loan)})
}

func (h *CirculationHandler) Reset(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Reset", "principal_id", principal.MemberID)

	if err := h.service.Reset(r.Context(), principal); err != nil {
		logger.ErrorContext(r.Context(), "reset failed", "error", err, "error_kind", ledger.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	clearSessionCookie(w)
	logger.InfoContext(r.Context(), "ledger reset")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, ok("Library data has been reset"))
}

type issueRequest struct {
	ISBN  string `json:"isbn"`
	Email string `json:"email"`
}

type deskReturnRequest struct {
	ISBN string `json:"isbn"`
}
