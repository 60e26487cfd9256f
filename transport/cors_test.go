package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func corsTestHandler(config CORSConfig) http.Handler {
	return CORSHandler(config, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORSHandler_Origins(t *testing.T) {
	t.Run("wildcard allows any origin", func(t *testing.T) {
		handler := corsTestHandler(DefaultCORSConfig())

		req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		req.Header.Set("Origin", "https://anywhere.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Allow-Origin = %q, want %q", got, "*")
		}
	})

	t.Run("listed origin is echoed back", func(t *testing.T) {
		handler := corsTestHandler(CORSConfig{
			AllowOrigins: []string{"https://app.example"},
		})

		req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		req.Header.Set("Origin", "https://app.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
			t.Errorf("Allow-Origin = %q, want the origin echoed", got)
		}
	})

	t.Run("unlisted origin gets no CORS headers but reaches the handler", func(t *testing.T) {
		handler := corsTestHandler(CORSConfig{
			AllowOrigins: []string{"https://app.example"},
		})

		req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want empty", got)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})
}

func TestCORSHandler_Preflight(t *testing.T) {
	handler := corsTestHandler(DefaultCORSConfig())

	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	methods := rec.Header().Get("Access-Control-Allow-Methods")
	if !strings.Contains(methods, http.MethodDelete) {
		t.Errorf("Allow-Methods = %q, want DELETE for session close", methods)
	}

	headers := rec.Header().Get("Access-Control-Allow-Headers")
	if !strings.Contains(headers, SessionIDHeader) {
		t.Errorf("Allow-Headers = %q, want %q", headers, SessionIDHeader)
	}

	if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Max-Age = %q, want %q", got, "86400")
	}
}

func TestCORSHandler_ExposesSessionHeader(t *testing.T) {
	// Scripts need to read the session id off the initialize response.
	handler := corsTestHandler(DefaultCORSConfig())

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	exposed := rec.Header().Get("Access-Control-Expose-Headers")
	if !strings.Contains(exposed, SessionIDHeader) {
		t.Errorf("Expose-Headers = %q, want %q", exposed, SessionIDHeader)
	}
}

func TestCORSHandler_Credentials(t *testing.T) {
	handler := corsTestHandler(CORSConfig{
		AllowOrigins:     []string{"https://app.example"},
		AllowCredentials: true,
	})

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want %q", got, "true")
	}
}

func TestCORSHandler_NoOrigin(t *testing.T) {
	// Same-origin and non-browser requests carry no Origin header and
	// pass through untouched.
	handler := corsTestHandler(CORSConfig{
		AllowOrigins: []string{"https://app.example"},
	})

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty", got)
	}
}
