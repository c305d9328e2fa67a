package api

import (
	"context"

	"github.com/taohansen/blog-backend/auth"
)

type keyType string

const claimsKey keyType = "claims"

func ctxWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ctxGetClaims returns nil for anonymous requests.
func ctxGetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}
