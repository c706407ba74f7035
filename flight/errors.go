package flight

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// httpStatusError is implemented by errors carrying an upstream HTTP status.
type httpStatusError interface {
	HTTPStatus() int
}

// statusFromError converts a catalog error into a gRPC status error.
// Errors that already carry a status keep it.
func statusFromError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Errorf(codeFor(err), format+": %v", append(args, err)...)
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}

	var he httpStatusError
	if errors.As(err, &he) {
		switch he.HTTPStatus() {
		case http.StatusUnauthorized:
			return codes.Unauthenticated
		case http.StatusForbidden:
			return codes.PermissionDenied
		case http.StatusNotFound:
			return codes.NotFound
		case http.StatusTooManyRequests, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return codes.Unavailable
		}
	}
	return codes.Internal
}
