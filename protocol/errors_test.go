package protocol

import (
	"errors"
	"testing"
)

func TestError_Is(t *testing.T) {
	t.Run("matches by code", func(t *testing.T) {
		err := NewSessionNotFound("session abc expired")
		if !errors.Is(err, &Error{Code: CodeSessionNotFound}) {
			t.Error("expected errors.Is match on code")
		}
	})

	t.Run("does not match other codes", func(t *testing.T) {
		err := NewNotInitialized("handshake required")
		if errors.Is(err, &Error{Code: CodeMethodNotFound}) {
			t.Error("unexpected match on different code")
		}
	})

	t.Run("does not match non-protocol errors", func(t *testing.T) {
		err := NewParseError("bad json")
		if errors.Is(err, errors.New("bad json")) {
			t.Error("unexpected match on plain error")
		}
	})
}

func TestError_WithData(t *testing.T) {
	base := NewInvalidParams("missing field")
	withData := base.WithData(map[string]string{"field": "name"})

	if base.Data != nil {
		t.Error("WithData must not mutate the original")
	}
	if withData.Code != CodeInvalidParams {
		t.Errorf("Code = %d, want %d", withData.Code, CodeInvalidParams)
	}
	if withData.Data == nil {
		t.Error("expected data to be attached")
	}
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		code int
	}{
		{"parse error", NewParseError("x"), -32700},
		{"invalid request", NewInvalidRequest("x"), -32600},
		{"method not found", NewMethodNotFound("x"), -32601},
		{"invalid params", NewInvalidParams("x"), -32602},
		{"internal", NewInternalError("x"), -32603},
		{"not found", NewNotFound("x"), -32001},
		{"not initialized", NewNotInitialized("x"), -32002},
		{"session not found", NewSessionNotFound("x"), -32003},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.code)
			}
		})
	}
}

func TestNegotiateVersion(t *testing.T) {
	t.Run("echoes a supported version", func(t *testing.T) {
		if got := NegotiateVersion("2024-11-05"); got != "2024-11-05" {
			t.Errorf("NegotiateVersion = %q, want %q", got, "2024-11-05")
		}
	})

	t.Run("falls back to latest for unknown versions", func(t *testing.T) {
		if got := NegotiateVersion("1999-01-01"); got != LatestVersion() {
			t.Errorf("NegotiateVersion = %q, want %q", got, LatestVersion())
		}
	})

	t.Run("falls back to latest for empty version", func(t *testing.T) {
		if got := NegotiateVersion(""); got != LatestVersion() {
			t.Errorf("NegotiateVersion = %q, want %q", got, LatestVersion())
		}
	})
}
