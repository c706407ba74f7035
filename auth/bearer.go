package auth

import (
	"context"
	"crypto/subtle"
	"errors"
)

// bearerAuthenticator wraps a user-provided validation function.
type bearerAuthenticator struct {
	validateFunc func(token string) (identity string, err error)
}

// BearerAuth creates an Authenticator from a validation function.
//
// Example:
//
//	auth := BearerAuth(func(token string) (string, error) {
//	    user, err := validateWithMyBackend(token)
//	    if err != nil {
//	        return "", err
//	    }
//	    return user.ID, nil
//	})
func BearerAuth(validateFunc func(token string) (identity string, err error)) Authenticator {
	return &bearerAuthenticator{
		validateFunc: validateFunc,
	}
}

func (b *bearerAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	return b.validateFunc(token)
}

var errUnknownToken = errors.New("unknown token")

// StaticTokens authenticates against a fixed token to identity map, as
// loaded from the server configuration.
func StaticTokens(tokens map[string]string) Authenticator {
	known := make(map[string]string, len(tokens))
	for token, identity := range tokens {
		known[token] = identity
	}
	return BearerAuth(func(token string) (string, error) {
		for candidate, identity := range known {
			if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
				return identity, nil
			}
		}
		return "", errUnknownToken
	})
}
