package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/library-ledger/internal/ledger"
)

type catalogService interface {
	ListBooks(ctx context.Context, filter ledger.BookFilter) []ledger.Book
	GetBook(ctx context.Context, id int64) (ledger.Book, bool)
	Categories(ctx context.Context) []string
	Stats(ctx context.Context) ledger.Stats
	AddBook(ctx context.Context, params ledger.AddBookParams) (ledger.Book, error)
	UpdateBook(ctx context.Context, params ledger.UpdateBookParams) (ledger.Book, error)
}

type BookHandler struct {
	service   catalogService
	responder responder
	logger    *slog.Logger
}

func NewBookHandler(service catalogService, logger *slog.Logger) *BookHandler {
	base := defaultLogger(logger)
	return &BookHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookHandler", operation, attrs...)
}

func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	books := h.service.ListBooks(r.Context(), ledger.BookFilter{
		Query:    query.Get("q"),
		Category: query.Get("category"),
	})

	dtos := make([]bookDTO, 0, len(books))
	for _, book := range books {
		dtos = append(dtos, toBookDTO(book))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookListResponse{result: ok(""), Books: dtos})
}

func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(r, "id")
	if !valid {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookID)
		return
	}

	book, found := h.service.GetBook(r.Context(), id)
	if !found {
		h.responder.writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{ErrorCode: "not_found", Message: "Book not found"})
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookResponse{result: ok(""), Book: toBookDTO(book)})
}

func (h *BookHandler) Categories(w http.ResponseWriter, r *http.Request) {
	h.responder.writeJSON(r.Context(), w, http.StatusOK, categoriesResponse{
		result:     ok(""),
		Categories: h.service.Categories(r.Context()),
	})
}

func (h *BookHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.service.Stats(r.Context())
	h.responder.writeJSON(r.Context(), w, http.StatusOK, statsResponse{
		result:          ok(""),
		Books:           stats.Books,
		Members:         stats.Members,
		ActiveLoans:     stats.ActiveLoans,
		TotalCopies:     stats.TotalCopies,
		AvailableCopies: stats.AvailableCopies,
	})
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := PrincipalFromContext(r.Context())

	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.MemberID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode book request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.MemberID)

	book, err := h.service.AddBook(r.Context(), ledger.AddBookParams{Principal: principal, Input: req.toInput()})
	if err != nil {
		logger.ErrorContext(r.Context(), "book creation failed", "error", err, "error_kind", ledger.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("book_id", book.ID).InfoContext(r.Context(), "book created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookResponse{result: ok("Book added successfully!"), Book: toBookDTO(book)})
}

func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, valid := pathID(r, "id")
	if !valid {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid book id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookID)
		return
	}

	principal := PrincipalFromContext(r.Context())

	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.MemberID, "book_id", id, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode book update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.MemberID, "book_id", id)

	book, err := h.service.UpdateBook(r.Context(), ledger.UpdateBookParams{Principal: principal, BookID: id, Input: req.toInput()})
	if err != nil {
		logger.ErrorContext(r.Context(), "book update failed", "error", err, "error_kind", ledger.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "book updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookResponse{result: ok("Book updated successfully!"), Book: toBookDTO(book)})
}

type bookRequest struct {
	ISBN        string `json:"isbn"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Category    string `json:"category"`
	PublishYear int    `json:"publish_year"`
	TotalCopies int    `json:"total_copies"`
}

func (r bookRequest) toInput() ledger.BookInput {
	return ledger.BookInput{
		ISBN:        r.ISBN,
		Title:       r.Title,
		Author:      r.Author,
		Category:    r.Category,
		PublishYear: r.PublishYear,
		TotalCopies: r.TotalCopies,
	}
}

type bookDTO struct {
	ID              int64  `json:"id"`
	ISBN            string `json:"isbn"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Category        string `json:"category"`
	PublishYear     int    `json:"publish_year"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
}

func toBookDTO(book ledger.Book) bookDTO {
	return bookDTO{
		ID:              book.ID,
		ISBN:            book.ISBN,
		Title:           book.Title,
		Author:          book.Author,
		Category:        book.Category,
		PublishYear:     book.PublishYear,
		TotalCopies:     book.TotalCopies,
		AvailableCopies: book.AvailableCopies,
	}
}

type bookResponse struct {
	result
	Book bookDTO `json:"book"`
}

type bookListResponse struct {
	result
	Books []bookDTO `json:"books"`
}

type categoriesResponse struct {
	result
	Categories []string `json:"categories"`
}

type statsResponse struct {
	result
	Books           int `json:"books"`
	Members         int `json:"members"`
	ActiveLoans     int `json:"active_loans"`
	TotalCopies     int `json:"total_copies"`
	AvailableCopies int `json:"available_copies"`
}
