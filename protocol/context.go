package protocol

import "context"

// Well-known request metadata keys.
const (
	// MetaSessionID carries the session id a message was correlated to.
	// Transports set it so middleware can attach the session to logs and
	// traces without reaching back into transport internals.
	MetaSessionID = "session_id"
)

// requestMetaKey is the context key for request metadata.
type requestMetaKey struct{}

// RequestMeta holds transport-level metadata associated with a request,
// such as the session id or selected HTTP headers.
type RequestMeta map[string]string

// ContextWithRequestMeta returns a new context with the request metadata
// attached.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the request metadata from the context.
// Returns nil if no metadata is present.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return meta
	}
	return nil
}

// GetRequestMeta returns a specific metadata value from the context, or an
// empty string if the key is absent.
func GetRequestMeta(ctx context.Context, key string) string {
	meta := RequestMetaFromContext(ctx)
	if meta == nil {
		return ""
	}
	return meta[key]
}

// SetRequestMeta sets a metadata value in the context. The existing map is
// copied, never mutated.
func SetRequestMeta(ctx context.Context, key, value string) context.Context {
	meta := RequestMetaFromContext(ctx)
	next := make(RequestMeta, len(meta)+1)
	for k, v := range meta {
		next[k] = v
	}
	next[key] = value
	return ContextWithRequestMeta(ctx, next)
}
