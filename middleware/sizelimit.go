package middleware

import (
	"context"
	"fmt"

	"github.com/coregate/mcpd/protocol"
)

// Size units for limit configuration.
const (
	KB = 1024
	MB = 1024 * KB
)

// SizeLimitOption configures the size limit middleware.
type SizeLimitOption func(*sizeLimitConfig)

type sizeLimitConfig struct {
	logger Logger
}

// WithSizeLimitLogger logs every rejected request, with the session id
// when the transport correlated one, so oversized callers can be traced.
func WithSizeLimitLogger(logger Logger) SizeLimitOption {
	return func(c *sizeLimitConfig) {
		c.logger = logger
	}
}

// SizeLimit rejects requests whose params exceed maxBytes. The check
// runs before any handler touches the payload, so a misbehaving client
// costs one length comparison rather than a parse.
func SizeLimit(maxBytes int, opts ...SizeLimitOption) Middleware {
	cfg := &sizeLimitConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if len(req.Params) > maxBytes {
				if cfg.logger != nil {
					fields := []Field{
						F("method", req.Method),
						F("size", len(req.Params)),
						F("limit", maxBytes),
					}
					if sessionID := protocol.GetRequestMeta(ctx, protocol.MetaSessionID); sessionID != "" {
						fields = append(fields, F("session_id", sessionID))
					}
					cfg.logger.Warn("request params over size limit", fields...)
				}
				return nil, protocol.NewInvalidRequest(
					fmt.Sprintf("params size %d exceeds limit %d", len(req.Params), maxBytes))
			}
			return next(ctx, req)
		}
	}
}
