package flight

import (
	"context"

	"google.golang.org/grpc/metadata"
)

type contextKey int

const metaKey contextKey = iota

// Metadata headers read from incoming calls.
const (
	HeaderAuthorization = "authorization"
	HeaderTraceID       = "airport-trace-id"
	HeaderSessionID     = "airport-client-session-id"
)

// ContextMeta holds the request headers the handlers care about.
type ContextMeta struct {
	Authorization string
	TraceID       string
	SessionID     string
}

func WithContextMeta(ctx context.Context, meta ContextMeta) context.Context {
	return context.WithValue(ctx, metaKey, &meta)
}

func MetaFromContext(ctx context.Context) *ContextMeta {
	meta, _ := ctx.Value(metaKey).(*ContextMeta)
	return meta
}

// AuthorizationFromContext returns the authorization header, or "".
func AuthorizationFromContext(ctx context.Context) string {
	if meta := MetaFromContext(ctx); meta != nil {
		return meta.Authorization
	}
	return ""
}

// TraceIDFromContext returns the trace ID, or "".
func TraceIDFromContext(ctx context.Context) string {
	if meta := MetaFromContext(ctx); meta != nil {
		return meta.TraceID
	}
	return ""
}

// SessionIDFromContext returns the client session ID, or "".
func SessionIDFromContext(ctx context.Context) string {
	if meta := MetaFromContext(ctx); meta != nil {
		return meta.SessionID
	}
	return ""
}

// EnrichContextMetadata copies the known gRPC headers into the context.
// An already enriched context is returned unchanged.
func EnrichContextMetadata(ctx context.Context) context.Context {
	if MetaFromContext(ctx) != nil {
		return ctx
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}

	first := func(key string) string {
		if values := md.Get(key); len(values) > 0 {
			return values[0]
		}
		return ""
	}
	return WithContextMeta(ctx, ContextMeta{
		Authorization: first(HeaderAuthorization),
		TraceID:       first(HeaderTraceID),
		SessionID:     first(HeaderSessionID),
	})
}
