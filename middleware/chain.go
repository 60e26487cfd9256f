package middleware

import (
	"context"

	"github.com/coregate/mcpd/protocol"
)

// HandlerFunc is the dispatch signature every middleware wraps: one
// parsed request in, one response or error out. The server's session
// dispatcher sits at the bottom of every chain.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// Middleware wraps a handler with behavior that runs around dispatch.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one. Chain(a, b, c) runs a outermost,
// so a sees the request first and the response last.
func Chain(middlewares ...Middleware) Middleware {
	return func(final HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
