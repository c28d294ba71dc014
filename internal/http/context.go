package http

import (
	"context"

	"github.com/example/library-ledger/internal/ledger"
)

type contextKey string

const identityContextKey contextKey = "identity"

// ContextWithIdentity returns a derived context containing the authenticated identity.
func ContextWithIdentity(ctx context.Context, identity ledger.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext extracts the authenticated identity from context if available.
func IdentityFromContext(ctx context.Context) (ledger.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(ledger.Identity)
	return identity, ok
}

// PrincipalFromContext returns the acting principal, or the zero principal for
// anonymous requests.
func PrincipalFromContext(ctx context.Context) ledger.Principal {
	identity, _ := IdentityFromContext(ctx)
	return identity.Principal
}
