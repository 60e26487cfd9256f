package middleware

import "time"

// DefaultStack is the stack most servers want: panic recovery on the
// outside, then a request id, then logging. Order matters; Recover must
// wrap the logger so a panicking handler still produces a log line.
func DefaultStack(logger Logger) []Middleware {
	return []Middleware{
		Recover(),
		RequestID(),
		Logging(logger),
	}
}

// DefaultStackWithTimeout is DefaultStack plus a per-request deadline,
// applied innermost so the timeout covers only the handler itself.
func DefaultStackWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return append(DefaultStack(logger), Timeout(timeout))
}
