package middleware

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/coregate/mcpd/protocol"
)

// tag appends a marker before and after the wrapped handler runs, so
// tests can observe chain ordering.
func tag(order *[]string, name string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			*order = append(*order, name+" in")
			resp, err := next(ctx, req)
			*order = append(*order, name+" out")
			return resp, err
		}
	}
}

func TestChain(t *testing.T) {
	echo := func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		return &protocol.Response{ID: req.ID}, nil
	}
	req := &protocol.Request{ID: json.RawMessage("1"), Method: "ping"}

	t.Run("first middleware is outermost", func(t *testing.T) {
		var order []string
		handler := Chain(tag(&order, "a"), tag(&order, "b"))(echo)

		if _, err := handler(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"a in", "b in", "b out", "a out"}
		if len(order) != len(want) {
			t.Fatalf("order = %v, want %v", order, want)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("order = %v, want %v", order, want)
			}
		}
	})

	t.Run("empty chain is a passthrough", func(t *testing.T) {
		handler := Chain()(echo)
		resp, err := handler(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(resp.ID) != "1" {
			t.Errorf("response id = %s, want 1", resp.ID)
		}
	})

	t.Run("single middleware", func(t *testing.T) {
		var order []string
		handler := Chain(tag(&order, "only"))(echo)
		if _, err := handler(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(order) != 2 {
			t.Fatalf("order = %v, want in/out pair", order)
		}
	})
}
