// Package http exposes the lending ledger as a JSON API.
//
// Public endpoints:
//   - POST /register: creates a member account. Body: {"email","password","name"}.
//   - POST /sessions: signs in. Body: {"email","password"}. The token is returned in
//     the body, the `X-Session-Token` header and a `session_token` cookie.
//   - GET /books?q=&category=, GET /books/{id}, GET /categories, GET /stats: catalog
//     browsing exchanging the `bookDTO` payload defined in book_handler.go.
//   - GET /healthz, GET /metrics: dependency checks and Prometheus metrics.
//
// Session endpoints accept the token from `Authorization: Bearer`, `X-Session-Token`
// or the `session_token` cookie:
//   - GET /sessions/current, DELETE /sessions/current: inspect or end the session.
//   - POST /books, PUT /books/{id}: librarian inventory management.
//   - POST /loans, GET /loans, POST /loans/{id}/return, POST /reservations: lending.
//     GET /loans lists every active loan and is restricted to librarians.
//   - GET /members/{id}/loans, GET /members/{id}/reservations: a member's own records.
//   - POST /circulation/issue, POST /circulation/return: desk operations by ISBN and email.
//   - POST /admin/reset: restores the seed dataset.
//
// Successful responses carry {"success":true,"message":...} plus the affected entity.
// Failures carry {"success":false,"error_code":...,"message":...} where error_code is
// the ledger error kind.
package http
