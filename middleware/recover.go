package middleware

import (
	"context"
	"fmt"

	"github.com/coregate/mcpd/protocol"
)

// PanicHandler turns a recovered panic into a response or error.
type PanicHandler func(ctx context.Context, req *protocol.Request, panicVal any) (*protocol.Response, error)

// Recover converts panics below it in the chain into internal errors.
// The tool pipeline contains handler panics on its own; this is the
// outer belt for everything else that runs during dispatch.
func Recover() Middleware {
	return RecoverWithHandler(func(_ context.Context, req *protocol.Request, panicVal any) (*protocol.Response, error) {
		return nil, protocol.NewInternalError(fmt.Sprintf("panic in %s: %v", req.Method, panicVal))
	})
}

// RecoverWithHandler catches panics and hands them to a custom handler,
// for servers that want to log or page before answering.
func RecoverWithHandler(handler PanicHandler) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (resp *protocol.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp, err = handler(ctx, req, r)
				}
			}()
			return next(ctx, req)
		}
	}
}
