package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/coregate/mcpd/protocol"
)

type requestIDKey struct{}

// RequestID stamps every request with a fresh uuid so log lines and
// traces from one dispatch can be stitched together. The id lives in
// the context; read it with RequestIDFromContext.
func RequestID() Middleware {
	return RequestIDWithGenerator(uuid.NewString)
}

// RequestIDWithGenerator is RequestID with a caller-supplied id source,
// mostly useful for deterministic ids in tests.
func RequestIDWithGenerator(generate func() string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, generate())
			}
			return next(ctx, req)
		}
	}
}

// ContextWithRequestID returns a context carrying the given request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id, or "" when none was set.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
