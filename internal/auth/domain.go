package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	Subject string
	Name    string
}

// Claims is the bearer token payload.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

var (
	// ErrMissingCredential indicates an absent or malformed Authorization header.
	ErrMissingCredential = errors.New("auth: missing bearer credential")
	// ErrInvalidCredential indicates a token that failed verification.
	ErrInvalidCredential = errors.New("auth: invalid credential")
)

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
