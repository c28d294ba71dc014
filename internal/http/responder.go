package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/library-ledger/internal/ledger"
)

var (
	errBadRequestBody      = errors.New("Invalid request body")
	errInvalidBookID       = errors.New("Invalid book id")
	errInvalidLoanID       = errors.New("Invalid loan id")
	errInvalidMemberID     = errors.New("Invalid member id")
	errMissingSessionToken = errors.New("Please login to continue")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: errorCodeForStatus(status), Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	kind := ledger.ErrorKind(err)
	resp := errorResponse{ErrorCode: kind, Message: ledger.Message(err)}

	var vErr *ledger.ValidationError
	if errors.As(err, &vErr) {
		resp.Errors = vErr.FieldErrors
	}

	r.writeJSON(ctx, w, statusForKind(kind), resp)
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusForKind(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "not_available", "duplicate_loan", "duplicate_reservation", "already_returned", "duplicate_email":
		return http.StatusConflict
	case "invalid_credentials", "session_expired":
		return http.StatusUnauthorized
	case "unauthorized":
		return http.StatusForbidden
	case "validation":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	default:
		return "unexpected"
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue(name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func ok(message string) result {
	return result{Success: true, Message: message}
}

type errorResponse struct {
	Success   bool              `json:"success"`
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
