package middleware

import (
	"context"
	"time"

	"github.com/coregate/mcpd/protocol"
)

// Timeout caps how long a single dispatch may run. Handlers that honor
// their context stop when the deadline passes; the caller gets the
// context error back and the transport maps it to an internal error.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}
