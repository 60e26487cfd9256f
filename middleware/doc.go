// Package middleware decorates the server's dispatch path. A Middleware
// wraps a HandlerFunc and sees every request after the transport has
// correlated it to a session and before the method dispatcher runs, so
// it can observe, reject, or time-limit calls uniformly across stdio,
// HTTP, and WebSocket.
//
// Install middleware on a server with Use:
//
//	srv.Use(middleware.DefaultStack(logger)...)
//
// or compose your own order with Chain. The package ships recovery,
// request ids, structured logging, per-request timeouts, payload size
// limits, rate limiting, and OpenTelemetry tracing; session-scoped
// variants (RateLimitBySession, the session_id log and span fields)
// read the session id the transport stored in the request context.
package middleware
