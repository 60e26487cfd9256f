// Package mcpd provides a framework for building session-oriented
// JSON-RPC servers with typed tool handlers and template-addressed
// resources.
//
// Servers expose capabilities through fluent builders, and every client
// conversation runs inside a session negotiated by initialize:
//
//	srv := mcpd.NewServer(mcpd.Info{
//	    Name:    "my-server",
//	    Version: "1.0.0",
//	})
//
//	type SearchInput struct {
//	    Query string `json:"query" jsonschema:"required"`
//	}
//
//	srv.Tool("search").
//	    Description("Search for items").
//	    Handler(func(ctx context.Context, input SearchInput) ([]string, error) {
//	        return []string{"result1", "result2"}, nil
//	    })
//
//	mcpd.ServeStdio(ctx, srv)
package mcpd

import (
	"context"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/coregate/mcpd/middleware"
	"github.com/coregate/mcpd/server"
	"github.com/coregate/mcpd/transport"
)

// Re-export core types for convenience

// Info contains server metadata exposed to clients.
type Info = server.Info

// Server is the session-oriented server instance.
type Server = server.Server

// Option configures a Server.
type Option = server.Option

// Session types
type Session = server.Session
type SessionState = server.SessionState

// Capability types
type ToolInfo = server.ToolInfo
type ToolResult = server.ToolResult
type ContentItem = server.ContentItem
type ResourceContent = server.ResourceContent
type ResourceInfo = server.ResourceInfo
type ResourceResult = server.ResourceResult
type ResourceHandler = server.ResourceHandler

// Sentinel errors surfaced by the session manager.
var (
	ErrDuplicateCapability = server.ErrDuplicateCapability
	ErrSessionNotFound     = server.ErrSessionNotFound
	ErrSessionRequired     = server.ErrSessionRequired
)

// Server option re-exports.
var (
	WithIdleTimeout        = server.WithIdleTimeout
	WithSweepInterval      = server.WithSweepInterval
	WithSessionIDGenerator = server.WithSessionIDGenerator
	WithLogger             = server.WithLogger
)

// Middleware types
type Middleware = middleware.Middleware
type MiddlewareHandlerFunc = middleware.HandlerFunc
type Logger = middleware.Logger
type NopLogger = middleware.NopLogger
type LogField = middleware.Field
type RateLimitOption = middleware.RateLimitOption

// NewSlogLogger wraps a *slog.Logger as a middleware Logger.
var NewSlogLogger = middleware.NewSlogLogger

// RateLimit re-exports for convenience.
var (
	RateLimit            = middleware.RateLimit
	RateLimitByMethod    = middleware.RateLimitByMethod
	RateLimitBySession   = middleware.RateLimitBySession
	WithRateLimitKeyFunc = middleware.WithRateLimitKeyFunc
	WithRateLimitLogger  = middleware.WithRateLimitLogger
)

// SizeLimit re-exports for convenience.
type SizeLimitOption = middleware.SizeLimitOption

var (
	SizeLimit           = middleware.SizeLimit
	WithSizeLimitLogger = middleware.WithSizeLimitLogger
)

// Size limit presets.
const (
	KB = middleware.KB
	MB = middleware.MB
)

// NewServer creates a new server with the given info and options.
func NewServer(info Info, opts ...Option) *Server {
	return server.New(info, opts...)
}

// HTTPOption configures the HTTP transport.
type HTTPOption = transport.HTTPOption

// WebSocketOption configures the WebSocket transport.
type WebSocketOption = transport.WebSocketOption

// ServeStdio runs the server over stdio. The stream carries one implicit
// session, closed when the stream ends. Blocks until the context is
// canceled or an error occurs.
func ServeStdio(ctx context.Context, srv *Server, opts ...transport.StdioOption) error {
	defer srv.Close()
	t := transport.NewStdio(opts...)
	return t.Serve(ctx, srv)
}

// ServeHTTP runs the server over HTTP. Sessions travel in the
// Mcp-Session-Id header. Blocks until the context is canceled or an
// error occurs.
func ServeHTTP(ctx context.Context, srv *Server, addr string, opts ...HTTPOption) error {
	defer srv.Close()
	t := transport.NewHTTP(addr, opts...)
	return t.Serve(ctx, srv)
}

// ServeWebSocket runs the server over WebSocket connections, each
// carrying one implicit session. Blocks until the context is canceled
// or an error occurs.
func ServeWebSocket(ctx context.Context, srv *Server, addr string, opts ...WebSocketOption) error {
	defer srv.Close()
	t := transport.NewWebSocket(addr, opts...)
	return t.Serve(ctx, srv)
}

// Chain composes multiple middleware into a single middleware.
func Chain(middlewares ...Middleware) Middleware {
	return middleware.Chain(middlewares...)
}

// Recover returns middleware that catches panics and converts them to internal errors.
func Recover() Middleware {
	return middleware.Recover()
}

// Timeout returns middleware that enforces a request deadline.
func Timeout(d time.Duration) Middleware {
	return middleware.Timeout(d)
}

// RequestID returns middleware that injects a unique request ID into the context.
func RequestID() Middleware {
	return middleware.RequestID()
}

// RequestIDFromContext returns the request ID from the context, or empty string if not set.
func RequestIDFromContext(ctx context.Context) string {
	return middleware.RequestIDFromContext(ctx)
}

// Logging returns middleware that logs request details.
func Logging(logger Logger) Middleware {
	return middleware.Logging(logger)
}

// DefaultMiddleware returns the recommended production middleware stack.
func DefaultMiddleware(logger Logger) []Middleware {
	return middleware.DefaultStack(logger)
}

// DefaultMiddlewareWithTimeout returns the default stack with a timeout middleware.
func DefaultMiddlewareWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return middleware.DefaultStackWithTimeout(logger, timeout)
}

// LogF creates a new log field with the given key and value.
func LogF(key string, value any) LogField {
	return middleware.F(key, value)
}

// Config captures transport and session settings from the environment.
// Slice values are semicolon-delimited.
type Config struct {
	Addr            string        `env:"MCPD_ADDR,default=:8080"`
	Endpoint        string        `env:"MCPD_ENDPOINT,default=/mcp"`
	AllowedHosts    []string      `env:"MCPD_ALLOWED_HOSTS"`
	ReadTimeout     time.Duration `env:"MCPD_READ_TIMEOUT,default=30s"`
	WriteTimeout    time.Duration `env:"MCPD_WRITE_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"MCPD_SHUTDOWN_TIMEOUT,default=30s"`
	IdleTimeout     time.Duration `env:"MCPD_SESSION_IDLE_TIMEOUT,default=30m"`
	SweepInterval   time.Duration `env:"MCPD_SESSION_SWEEP_INTERVAL,default=0s"`
}

// ConfigFromEnv loads a Config from MCPD_* environment variables,
// falling back to defaults for anything unset.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ServerOptions translates the session settings into server options.
func (c Config) ServerOptions() []Option {
	opts := []Option{WithIdleTimeout(c.IdleTimeout)}
	if c.SweepInterval > 0 {
		opts = append(opts, WithSweepInterval(c.SweepInterval))
	}
	return opts
}

// HTTPOptions translates the transport settings into HTTP options.
func (c Config) HTTPOptions() []HTTPOption {
	opts := []HTTPOption{
		transport.WithEndpoint(c.Endpoint),
		transport.WithReadTimeout(c.ReadTimeout),
		transport.WithWriteTimeout(c.WriteTimeout),
		transport.WithShutdownTimeout(c.ShutdownTimeout),
	}
	if len(c.AllowedHosts) > 0 {
		opts = append(opts, transport.WithAllowedHosts(c.AllowedHosts...))
	}
	return opts
}
