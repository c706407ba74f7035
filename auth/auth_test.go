package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestNoAuth(t *testing.T) {
	for _, token := range []string{"any-token", ""} {
		identity, err := NoAuth().Authenticate(context.Background(), token)
		if err != nil {
			t.Errorf("NoAuth(%q) returned error: %v", token, err)
		}
		if identity != "anonymous" {
			t.Errorf("NoAuth(%q) identity = %q, want anonymous", token, identity)
		}
	}
}

func TestBearerAuth(t *testing.T) {
	custom := errors.New("expired")
	auth := BearerAuth(func(token string) (string, error) {
		switch token {
		case "analyst-token":
			return "analyst", nil
		case "old-token":
			return "", custom
		}
		return "", errors.New("invalid")
	})

	identity, err := auth.Authenticate(context.Background(), "analyst-token")
	if err != nil || identity != "analyst" {
		t.Errorf("got (%q, %v), want (analyst, nil)", identity, err)
	}
	if _, err := auth.Authenticate(context.Background(), "old-token"); err != custom {
		t.Errorf("expected the validation error to propagate, got %v", err)
	}
}

func TestStaticTokens(t *testing.T) {
	tokens := map[string]string{"t1": "alice", "t2": "bob"}
	auth := StaticTokens(tokens)
	tokens["t3"] = "mallory"

	tests := []struct {
		token    string
		identity string
		wantErr  bool
	}{
		{"t1", "alice", false},
		{"t2", "bob", false},
		{"t3", "", true},
		{"t1 ", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		identity, err := auth.Authenticate(context.Background(), tt.token)
		if (err != nil) != tt.wantErr || identity != tt.identity {
			t.Errorf("Authenticate(%q) = (%q, %v)", tt.token, identity, err)
		}
	}
}

func TestTokenFromAuthorizationHeader(t *testing.T) {
	tests := []struct {
		header string
		token  string
		err    error
	}{
		{"Bearer abc", "abc", nil},
		{"Bearer ", "", ErrTokenIsEmpty},
		{"Basic abc", "", ErrInvalidAuthHeader},
		{"", "", ErrInvalidAuthHeader},
	}
	for _, tt := range tests {
		token, err := TokenFromAuthorizationHeader(tt.header)
		if token != tt.token || !errors.Is(err, tt.err) {
			t.Errorf("TokenFromAuthorizationHeader(%q) = (%q, %v)", tt.header, token, err)
		}
	}
}

func TestValidateToken(t *testing.T) {
	auth := StaticTokens(map[string]string{"secret": "analyst"})

	ctx, err := ValidateToken(context.Background(), "secret", auth)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got := IdentityFromContext(ctx); got != "analyst" {
		t.Errorf("identity = %q", got)
	}

	if _, err := ValidateToken(context.Background(), "wrong", auth); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("wrong token: %v", err)
	}
	if _, err := ValidateToken(context.Background(), "", auth); !errors.Is(err, ErrTokenIsEmpty) {
		t.Errorf("empty token: %v", err)
	}
	if got := IdentityFromContext(context.Background()); got != "" {
		t.Errorf("identity of a bare context = %q", got)
	}
}

func TestStaticTokensConcurrency(t *testing.T) {
	auth := StaticTokens(map[string]string{"a": "alice", "b": "bob"})

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, want := "a", "alice"
			if i%2 == 1 {
				token, want = "b", "bob"
			}
			identity, err := auth.Authenticate(context.Background(), token)
			if err != nil {
				errs <- err
				return
			}
			if identity != want {
				errs <- errors.New("unexpected identity: " + identity)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Authenticate: %v", err)
	}
}
