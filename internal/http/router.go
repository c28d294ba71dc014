package http

import (
	"net/http"
)

type RouterConfig struct {
	Auth        *AuthHandler
	Books       *BookHandler
	Loans       *LoanHandler
	Circulation *CirculationHandler
	Health      http.Handler
	Metrics     http.Handler
	// RequireSession guards every route that needs a signed-in member.
	RequireSession func(http.Handler) http.Handler
	Middleware     []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.Handler {
		if cfg.RequireSession == nil {
			return h
		}
		return cfg.RequireSession(h)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("POST /register", cfg.Auth.Register)
		mux.HandleFunc("POST /sessions", cfg.Auth.CreateSession)
		mux.Handle("GET /sessions/current", protect(cfg.Auth.CurrentSession))
		mux.Handle("DELETE /sessions/current", protect(cfg.Auth.DeleteCurrentSession))
	}

	if cfg.Books != nil {
		mux.HandleFunc("GET /books", cfg.Books.List)
		mux.HandleFunc("GET /books/{id}", cfg.Books.Get)
		mux.HandleFunc("GET /categories", cfg.Books.Categories)
		mux.HandleFunc("GET /stats", cfg.Books.Stats)
		mux.Handle("POST /books", protect(cfg.Books.Create))
		mux.Handle("PUT /books/{id}", protect(cfg.Books.Update))
	}

	if cfg.Loans != nil {
		mux.Handle("GET /loans", protect(cfg.Loans.List))
		mux.Handle("POST /loans", protect(cfg.Loans.Borrow))
		mux.Handle("POST /loans/{id}/return", protect(cfg.Loans.Return))
		mux.Handle("POST /reservations", protect(cfg.Loans.Reserve))
		mux.Handle("GET /members/{id}/loans", protect(cfg.Loans.MemberLoans))
		mux.Handle("GET /members/{id}/reservations", protect(cfg.Loans.MemberReservations))
	}

	if cfg.Circulation != nil {
		mux.Handle("POST /circulation/issue", protect(cfg.Circulation.Issue))
		mux.Handle("POST /circulation/return", protect(cfg.Circulation.Return))
		mux.Handle("POST /admin/reset", protect(cfg.Circulation.Reset))
	}

	if cfg.Health != nil {
		mux.Handle("GET /healthz", cfg.Health)
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
