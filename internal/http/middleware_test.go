package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/library-ledger/internal/events"
	"github.com/example/library-ledger/internal/ledger"
)

type fakeAuthenticator struct {
	identities map[string]ledger.Identity
	err        error
	seen       []string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string) (ledger.Identity, error) {
	f.seen = append(f.seen, token)
	if f.err != nil {
		return ledger.Identity{}, f.err
	}
	identity, ok := f.identities[token]
	if !ok {
		return ledger.Identity{}, ledger.ErrUnauthorized
	}
	return identity, nil
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	member := ledger.Identity{
		Principal: ledger.Principal{MemberID: 7, Role: ledger.RoleMember},
		Member:    ledger.Member{ID: 7, Email: "reader@example.com", Role: ledger.RoleMember},
	}

	tests := []struct {
		name           string
		cookie         *http.Cookie
		header         string
		sessionHeader  string
		authErr        error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "missing credentials",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "unauthorized",
		},
		{
			name:           "malformed authorization header",
			header:         "Token valid",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "unauthorized",
		},
		{
			name:           "unknown bearer token",
			header:         "Bearer revoked",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "unauthorized",
		},
		{
			name:           "expired session",
			header:         "Bearer valid",
			authErr:        ledger.ErrSessionExpired,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "session_expired",
		},
		{
			name:           "session store failure",
			header:         "Bearer valid",
			authErr:        errors.New("redis: connection refused"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "unexpected",
		},
		{
			name:           "bearer token",
			header:         "Bearer valid",
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "session header",
			sessionHeader:  "valid",
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "session cookie",
			cookie:         &http.Cookie{Name: sessionCookieName, Value: "valid"},
			expectedStatus: http.StatusNoContent,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			auth := &fakeAuthenticator{identities: map[string]ledger.Identity{"valid": member}, err: tc.authErr}
			var got ledger.Principal
			handler := RequireSession(auth, slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.sessionHeader != "" {
				req.Header.Set("X-Session-Token", tc.sessionHeader)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tc.expectedStatus, rec.Code)
			if tc.expectedCode != "" {
				assert.Contains(t, rec.Body.String(), `"error_code":"`+tc.expectedCode+`"`)
				assert.Zero(t, got)
				return
			}
			assert.Equal(t, member.Principal, got)
		})
	}
}

func TestExtractTokenPrefersAuthorizationHeader(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer from-header")
	req.Header.Set("X-Session-Token", "from-session-header")
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "from-cookie"})
	assert.Equal(t, "from-header", extractTokenFromRequest(req))

	req.Header.Del("Authorization")
	assert.Equal(t, "from-session-header", extractTokenFromRequest(req))

	req.Header.Del("X-Session-Token")
	assert.Equal(t, "from-cookie", extractTokenFromRequest(req))

	assert.Empty(t, extractTokenFromRequest(nil))
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var correlationID string
	var hasLogger bool
	handler := RequestLogger(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID = events.CorrelationIDFromContext(r.Context())
		hasLogger = LoggerFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", correlationID)
	assert.True(t, hasLogger)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), correlationID)
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	healthy := NewHealthHandler(map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
	}, nil)
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"store":"ok"}}`, rec.Body.String())

	degraded := NewHealthHandler(map[string]HealthCheck{
		"store":  func(context.Context) error { return nil },
		"broker": func(context.Context) error { return errors.New("amqp connection closed") },
	}, nil)
	rec = httptest.NewRecorder()
	degraded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"store":"ok","broker":"amqp connection closed"}}`, rec.Body.String())
}

func TestStatusForKind(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"not_found":             http.StatusNotFound,
		"not_available":         http.StatusConflict,
		"duplicate_loan":        http.StatusConflict,
		"duplicate_reservation": http.StatusConflict,
		"already_returned":      http.StatusConflict,
		"duplicate_email":       http.StatusConflict,
		"invalid_credentials":   http.StatusUnauthorized,
		"session_expired":       http.StatusUnauthorized,
		"unauthorized":          http.StatusForbidden,
		"validation":            http.StatusUnprocessableEntity,
		"unexpected":            http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, statusForKind(kind), kind)
	}
}
