package airport

import (
	"context"

	"github.com/hugr-lab/opal-airport/auth"
)

// Authenticator validates bearer tokens and returns user identity.
type Authenticator = auth.Authenticator

// BearerAuth creates an Authenticator from a validation function.
//
//	auth := airport.BearerAuth(func(token string) (string, error) {
//	    if token == "secret-api-key" {
//	        return "analyst", nil
//	    }
//	    return "", airport.ErrUnauthorized
//	})
func BearerAuth(validateFunc func(token string) (identity string, err error)) Authenticator {
	return auth.BearerAuth(validateFunc)
}

// StaticTokens authenticates against a fixed token to identity map.
func StaticTokens(tokens map[string]string) Authenticator {
	return auth.StaticTokens(tokens)
}

// NoAuth returns an Authenticator that allows all requests without validation.
func NoAuth() Authenticator {
	return auth.NoAuth()
}

// IdentityFromContext returns the authenticated identity of a request, or "".
func IdentityFromContext(ctx context.Context) string {
	return auth.IdentityFromContext(ctx)
}
