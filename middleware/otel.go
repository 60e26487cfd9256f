package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/coregate/mcpd/protocol"
)

const instrumentationName = "github.com/coregate/mcpd/middleware"

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*otelConfig)

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	skipMethods    map[string]bool
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *otelConfig) { c.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *otelConfig) { c.meterProvider = mp }
}

// WithOTelServiceName sets the service.name attribute stamped on spans
// and metrics.
func WithOTelServiceName(name string) OTelOption {
	return func(c *otelConfig) { c.serviceName = name }
}

// WithOTelSkipMethods excludes methods from instrumentation. Useful for
// ping, which would otherwise dominate the span volume of a chatty
// client.
func WithOTelSkipMethods(methods ...string) OTelOption {
	return func(c *otelConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// OTel traces every dispatched request and records request, error, and
// latency metrics. Spans carry the method, the session the transport
// correlated the request to, and the request id when RequestID runs
// above this middleware in the chain.
func OTel(opts ...OTelOption) Middleware {
	cfg := &otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		serviceName:    "mcpd",
		skipMethods:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(instrumentationName)
	meter := cfg.meterProvider.Meter(instrumentationName)

	requestCounter, _ := meter.Int64Counter(
		"mcpd.server.requests",
		metric.WithDescription("Requests dispatched"),
		metric.WithUnit("{request}"),
	)
	requestDuration, _ := meter.Float64Histogram(
		"mcpd.server.request.duration",
		metric.WithDescription("Dispatch latency"),
		metric.WithUnit("ms"),
	)
	errorCounter, _ := meter.Int64Counter(
		"mcpd.server.errors",
		metric.WithDescription("Requests answered with an error"),
		metric.WithUnit("{error}"),
	)

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if cfg.skipMethods[req.Method] {
				return next(ctx, req)
			}

			ctx, span := tracer.Start(ctx, "rpc "+req.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("rpc.method", req.Method),
					attribute.String("service.name", cfg.serviceName),
				),
			)
			defer span.End()

			if sessionID := protocol.GetRequestMeta(ctx, protocol.MetaSessionID); sessionID != "" {
				span.SetAttributes(attribute.String("rpc.session_id", sessionID))
			}
			if reqID := RequestIDFromContext(ctx); reqID != "" {
				span.SetAttributes(attribute.String("rpc.request_id", reqID))
			}

			attrs := []attribute.KeyValue{
				attribute.String("rpc.method", req.Method),
				attribute.String("service.name", cfg.serviceName),
			}
			requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

			start := time.Now()
			resp, err := next(ctx, req)
			requestDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
				metric.WithAttributes(attrs...))

			recordOutcome(ctx, span, errorCounter, attrs, resp, err)
			return resp, err
		}
	}
}

// recordOutcome marks the span and bumps the error counter from either
// a returned error or an error embedded in the response envelope.
func recordOutcome(ctx context.Context, span trace.Span, errorCounter metric.Int64Counter, attrs []attribute.KeyValue, resp *protocol.Response, err error) {
	code, message := 0, ""
	switch {
	case err != nil:
		span.RecordError(err)
		message = err.Error()
		var rpcErr *protocol.Error
		if errors.As(err, &rpcErr) {
			code = rpcErr.Code
		}
	case resp != nil && resp.Error != nil:
		code = resp.Error.Code
		message = resp.Error.Message
	default:
		span.SetStatus(codes.Ok, "")
		return
	}

	span.SetStatus(codes.Error, message)
	if code != 0 {
		span.SetAttributes(attribute.Int("rpc.error_code", code))
		attrs = append(attrs, attribute.Int("rpc.error_code", code))
	}
	errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// SpanFromContext returns the active span, or a no-op span when tracing
// is not installed. Handlers use it to annotate the dispatch span.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent records an event on the active span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}
