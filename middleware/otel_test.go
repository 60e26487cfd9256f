package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/coregate/mcpd/protocol"
)

func newTestTracer(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	return exporter, tp
}

func spanAttr(s tracetest.SpanStub, key string) (string, bool) {
	for _, attr := range s.Attributes {
		if string(attr.Key) == key {
			return attr.Value.Emit(), true
		}
	}
	return "", false
}

func TestOTel(t *testing.T) {
	okHandler := func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		return &protocol.Response{ID: req.ID}, nil
	}

	t.Run("span carries method and service name", func(t *testing.T) {
		exporter, tp := newTestTracer(t)
		handler := OTel(WithTracerProvider(tp))(okHandler)

		req := &protocol.Request{ID: json.RawMessage("1"), Method: "tools/list"}
		if _, err := handler(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		if spans[0].Name != "rpc tools/list" {
			t.Errorf("span name = %q, want %q", spans[0].Name, "rpc tools/list")
		}
		if method, _ := spanAttr(spans[0], "rpc.method"); method != "tools/list" {
			t.Errorf("rpc.method = %q, want %q", method, "tools/list")
		}
		if svc, _ := spanAttr(spans[0], "service.name"); svc != "mcpd" {
			t.Errorf("service.name = %q, want %q", svc, "mcpd")
		}
	})

	t.Run("span carries the correlated session id", func(t *testing.T) {
		exporter, tp := newTestTracer(t)
		handler := OTel(WithTracerProvider(tp))(okHandler)

		ctx := protocol.SetRequestMeta(context.Background(), protocol.MetaSessionID, "sess-42")
		req := &protocol.Request{ID: json.RawMessage("1"), Method: "resources/read"}
		if _, err := handler(ctx, req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		if sid, ok := spanAttr(spans[0], "rpc.session_id"); !ok || sid != "sess-42" {
			t.Errorf("rpc.session_id = %q, want %q", sid, "sess-42")
		}
	})

	t.Run("handler error records an error event", func(t *testing.T) {
		exporter, tp := newTestTracer(t)
		handler := OTel(WithTracerProvider(tp))(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return nil, errors.New("handler failed")
		})

		req := &protocol.Request{ID: json.RawMessage("1"), Method: "tools/call"}
		if _, err := handler(context.Background(), req); err == nil {
			t.Fatal("expected error")
		}

		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		if len(spans[0].Events) == 0 {
			t.Error("expected error event on span")
		}
	})

	t.Run("dispatch error code lands on the span", func(t *testing.T) {
		exporter, tp := newTestTracer(t)
		handler := OTel(WithTracerProvider(tp))(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return nil, protocol.NewNotFound("tool not found")
		})

		req := &protocol.Request{ID: json.RawMessage("1"), Method: "tools/call"}
		handler(context.Background(), req)

		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		code, ok := spanAttr(spans[0], "rpc.error_code")
		if !ok {
			t.Fatal("expected rpc.error_code attribute")
		}
		if want := strconv.Itoa(protocol.CodeNotFound); code != want {
			t.Errorf("rpc.error_code = %s, want %s", code, want)
		}
	})

	t.Run("skipped methods produce no spans", func(t *testing.T) {
		exporter, tp := newTestTracer(t)
		handler := OTel(WithTracerProvider(tp), WithOTelSkipMethods("ping"))(okHandler)

		req := &protocol.Request{ID: json.RawMessage("1"), Method: "ping"}
		if _, err := handler(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := len(exporter.GetSpans()); n != 0 {
			t.Errorf("expected 0 spans for skipped method, got %d", n)
		}
	})

	t.Run("custom service name", func(t *testing.T) {
		exporter, tp := newTestTracer(t)
		handler := OTel(WithTracerProvider(tp), WithOTelServiceName("billing-tools"))(okHandler)

		req := &protocol.Request{ID: json.RawMessage("1"), Method: "tools/list"}
		handler(context.Background(), req)

		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		if svc, _ := spanAttr(spans[0], "service.name"); svc != "billing-tools" {
			t.Errorf("service.name = %q, want %q", svc, "billing-tools")
		}
	})

	t.Run("global providers by default", func(t *testing.T) {
		if OTel() == nil {
			t.Fatal("expected non-nil middleware")
		}
	})

	t.Run("custom meter provider", func(t *testing.T) {
		mp := sdkmetric.NewMeterProvider()
		defer mp.Shutdown(context.Background())

		handler := OTel(WithMeterProvider(mp))(okHandler)
		req := &protocol.Request{ID: json.RawMessage("1"), Method: "tools/list"}
		if _, err := handler(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestSpanHelpers(t *testing.T) {
	exporter, tp := newTestTracer(t)

	tracer := tp.Tracer("helpers")
	ctx, span := tracer.Start(context.Background(), "dispatch")

	if got := SpanFromContext(ctx); got != span {
		t.Error("SpanFromContext returned a different span")
	}

	AddSpanEvent(ctx, "cache miss")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if len(spans[0].Events) != 1 || spans[0].Events[0].Name != "cache miss" {
		t.Fatalf("expected a single %q event, got %+v", "cache miss", spans[0].Events)
	}
}
