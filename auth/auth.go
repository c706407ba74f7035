// Package auth provides the bearer token authenticators the Flight
// interceptors use.
package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInvalidAuthHeader is returned when the authorization header is malformed.
	ErrInvalidAuthHeader = errors.New("authorization header must use Bearer scheme")

	// ErrTokenIsEmpty is returned when the bearer token is missing.
	ErrTokenIsEmpty = errors.New("authorization token is empty")

	// ErrUnauthenticated is returned when authentication fails.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Authenticator validates bearer tokens and returns user identity.
// Implementations must be goroutine-safe.
type Authenticator interface {
	// Authenticate validates a bearer token and returns the caller identity
	// used for logging. ctx bounds calls to an auth backend.
	Authenticate(ctx context.Context, token string) (identity string, err error)
}

type noAuthenticator struct{}

// NoAuth returns an Authenticator that allows all requests.
// Useful for development and testing.
func NoAuth() Authenticator {
	return &noAuthenticator{}
}

func (n *noAuthenticator) Authenticate(context.Context, string) (string, error) {
	return "anonymous", nil
}

type contextKey int

const identityKey contextKey = iota

// IdentityFromContext returns the authenticated identity, or "" for
// unauthenticated requests.
func IdentityFromContext(ctx context.Context) string {
	val, _ := ctx.Value(identityKey).(string)
	return val
}

// WithIdentity adds the authenticated user identity to the context.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

const bearerPrefix = "Bearer "

// TokenFromAuthorizationHeader extracts the token of a "Bearer <token>" header.
func TokenFromAuthorizationHeader(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrTokenIsEmpty
	}
	return token, nil
}

// ValidateToken validates a bearer token using the provided Authenticator.
// Returns context with identity set or error.
func ValidateToken(ctx context.Context, token string, authenticator Authenticator) (context.Context, error) {
	if token == "" {
		return ctx, ErrTokenIsEmpty
	}

	identity, err := authenticator.Authenticate(ctx, token)
	if err != nil {
		return ctx, ErrUnauthenticated
	}
	return WithIdentity(ctx, identity), nil
}
