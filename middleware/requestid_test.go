package middleware

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/coregate/mcpd/protocol"
)

func TestRequestID(t *testing.T) {
	req := &protocol.Request{ID: json.RawMessage("1"), Method: "ping"}

	t.Run("stamps a fresh id", func(t *testing.T) {
		var seen string
		handler := RequestID()(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			seen = RequestIDFromContext(ctx)
			return &protocol.Response{ID: req.ID}, nil
		})

		if _, err := handler(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen == "" {
			t.Fatal("expected a request id in the handler context")
		}
	})

	t.Run("ids differ across requests", func(t *testing.T) {
		ids := make(map[string]bool)
		handler := RequestID()(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			ids[RequestIDFromContext(ctx)] = true
			return &protocol.Response{ID: req.ID}, nil
		})

		for range 3 {
			if _, err := handler(context.Background(), req); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if len(ids) != 3 {
			t.Errorf("got %d distinct ids, want 3", len(ids))
		}
	})

	t.Run("keeps an id already on the context", func(t *testing.T) {
		var seen string
		handler := RequestID()(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			seen = RequestIDFromContext(ctx)
			return &protocol.Response{ID: req.ID}, nil
		})

		ctx := ContextWithRequestID(context.Background(), "upstream-id")
		if _, err := handler(ctx, req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen != "upstream-id" {
			t.Errorf("request id = %q, want %q", seen, "upstream-id")
		}
	})

	t.Run("custom generator", func(t *testing.T) {
		var seen string
		handler := RequestIDWithGenerator(func() string { return "fixed" })(
			func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				seen = RequestIDFromContext(ctx)
				return &protocol.Response{ID: req.ID}, nil
			})

		if _, err := handler(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen != "fixed" {
			t.Errorf("request id = %q, want %q", seen, "fixed")
		}
	})

	t.Run("empty context has no id", func(t *testing.T) {
		if id := RequestIDFromContext(context.Background()); id != "" {
			t.Errorf("expected empty id, got %q", id)
		}
	})
}
