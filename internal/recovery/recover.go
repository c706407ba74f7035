// Package recovery turns panics in catalog and scan code into errors so a
// single bad table cannot take the server down.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RecoverToError runs fn and converts a panic into an Internal gRPC error.
func RecoverToError(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = status.Errorf(codes.Internal, "%s panicked: %v", operation, r)
		}
	}()

	return fn()
}

// RecoverToValue runs fn and converts a panic into the zero value and an error.
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			var zero T
			result = zero
			err = fmt.Errorf("%s panicked: %v", operation, r)
		}
	}()

	return fn()
}
