package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/coregate/mcpd/protocol"
)

// Logger is the interface for structured logging.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logging returns middleware that logs request details.
// Successful requests are logged at info level, errors at error level.
func Logging(logger Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			start := time.Now()

			resp, err := next(ctx, req)

			duration := time.Since(start)

			// Build fields
			fields := []Field{
				F("method", req.Method),
				F("duration", duration),
			}

			// Add request ID if present
			if requestID := RequestIDFromContext(ctx); requestID != "" {
				fields = append(fields, F("request_id", requestID))
			}

			// Add the session the transport correlated this request to
			if sessionID := protocol.GetRequestMeta(ctx, protocol.MetaSessionID); sessionID != "" {
				fields = append(fields, F("session_id", sessionID))
			}

			if err != nil {
				fields = append(fields, F("error", err.Error()))
				logger.Error("request failed", fields...)
			} else {
				logger.Info("request completed", fields...)
			}

			return resp, err
		}
	}
}

// NopLogger is a logger that discards all log entries.
type NopLogger struct{}

func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Warn(msg string, fields ...Field)  {}

// SlogLogger adapts a *slog.Logger to the Logger interface.
type SlogLogger struct {
	Logger *slog.Logger
}

// NewSlogLogger wraps l; a nil l uses slog.Default.
func NewSlogLogger(l *slog.Logger) SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return SlogLogger{Logger: l}
}

func (s SlogLogger) Info(msg string, fields ...Field)  { s.Logger.Info(msg, slogArgs(fields)...) }
func (s SlogLogger) Error(msg string, fields ...Field) { s.Logger.Error(msg, slogArgs(fields)...) }
func (s SlogLogger) Debug(msg string, fields ...Field) { s.Logger.Debug(msg, slogArgs(fields)...) }
func (s SlogLogger) Warn(msg string, fields ...Field)  { s.Logger.Warn(msg, slogArgs(fields)...) }

func slogArgs(fields []Field) []any {
	args := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key, f.Value)
	}
	return args
}
