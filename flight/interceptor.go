package flight

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/opal-airport/auth"
)

// authenticate validates the bearer token of ctx. A nil authenticator
// lets every call through.
func authenticate(ctx context.Context, authenticator auth.Authenticator) (context.Context, error) {
	ctx = EnrichContextMetadata(ctx)
	if authenticator == nil {
		return ctx, nil
	}

	token, err := auth.TokenFromAuthorizationHeader(AuthorizationFromContext(ctx))
	if err != nil {
		return ctx, status.Error(codes.Unauthenticated, err.Error())
	}
	ctx, err = auth.ValidateToken(ctx, token, authenticator)
	if err != nil {
		return ctx, status.Error(codes.Unauthenticated, err.Error())
	}
	return ctx, nil
}

// UnaryServerInterceptor authenticates unary calls.
func UnaryServerInterceptor(authenticator auth.Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := authenticate(ctx, authenticator)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor authenticates streaming calls and hands the
// handler a stream carrying the authenticated context.
func StreamServerInterceptor(authenticator auth.Authenticator) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authenticate(ss.Context(), authenticator)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
