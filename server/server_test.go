package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/coregate/mcpd/middleware"
	"github.com/coregate/mcpd/protocol"
)

func newWireFixture(t *testing.T) *Server {
	t.Helper()

	srv := New(Info{Name: "wire-test", Version: "0.1.0"})
	t.Cleanup(srv.Close)

	err := srv.Tool("add").
		Description("Add two numbers").
		Handler(func(ctx context.Context, input calcInput) (string, error) {
			return jsonInt(input.A + input.B), nil
		})
	if err != nil {
		t.Fatalf("registering add: %v", err)
	}

	err = srv.Tool("echo").
		Handler(func(input struct {
			Message string `json:"message" jsonschema:"required"`
		}) (string, error) {
			return input.Message, nil
		})
	if err != nil {
		t.Fatalf("registering echo: %v", err)
	}

	err = srv.Resource("greeting://{name}").
		Name("greeting").
		MimeType("text/plain").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*ResourceContent, error) {
			return &ResourceContent{Text: "Hello, " + params["name"]}, nil
		})
	if err != nil {
		t.Fatalf("registering greeting: %v", err)
	}

	return srv
}

func wireSend(t *testing.T, srv *Server, sessionID, body string) (*protocol.Response, string, error) {
	t.Helper()

	data, sid, err := srv.HandleMessage(context.Background(), sessionID, []byte(body))
	if data == nil {
		return nil, sid, err
	}
	var resp protocol.Response
	if uerr := json.Unmarshal(data, &resp); uerr != nil {
		t.Fatalf("decoding response %q: %v", data, uerr)
	}
	return &resp, sid, err
}

func wireInitialize(t *testing.T, srv *Server) string {
	t.Helper()

	resp, sid, err := wireSend(t, srv, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("initialize failed: %v", resp.Error)
	}
	if sid == "" {
		t.Fatal("initialize returned no session id")
	}
	return sid
}

func TestHandleMessage_ParseError(t *testing.T) {
	srv := newWireFixture(t)

	resp, _, err := wireSend(t, srv, "", `{not json`)
	if err != nil {
		t.Fatalf("HandleMessage returned %v", err)
	}
	if resp.Error == nil || resp.Error.Code != protocol.CodeParseError {
		t.Errorf("error = %+v, want parse error", resp.Error)
	}
}

func TestHandleMessage_InvalidEnvelope(t *testing.T) {
	srv := newWireFixture(t)

	// Valid JSON, wrong protocol version marker.
	resp, _, _ := wireSend(t, srv, "", `{"jsonrpc":"1.0","id":7,"method":"initialize"}`)
	if resp.Error == nil || resp.Error.Code != protocol.CodeInvalidRequest {
		t.Fatalf("error = %+v, want invalid request", resp.Error)
	}
	if string(resp.ID) != "7" {
		t.Errorf("response id = %s, want the request id echoed", resp.ID)
	}
}

func TestHandleMessage_SessionRequired(t *testing.T) {
	srv := newWireFixture(t)

	resp, _, err := wireSend(t, srv, "", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if !errors.Is(err, ErrSessionRequired) {
		t.Errorf("err = %v, want ErrSessionRequired", err)
	}
	if resp.Error == nil || resp.Error.Code != protocol.CodeInvalidRequest {
		t.Errorf("error = %+v, want invalid request", resp.Error)
	}
}

func TestHandleMessage_UnknownSession(t *testing.T) {
	srv := newWireFixture(t)

	resp, _, err := wireSend(t, srv, "ghost", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
	if resp.Error == nil || resp.Error.Code != protocol.CodeSessionNotFound {
		t.Errorf("error = %+v, want session not found", resp.Error)
	}
}

func TestHandleMessage_Lifecycle(t *testing.T) {
	srv := newWireFixture(t)

	sid := wireInitialize(t, srv)

	// tools/list reflects registration order.
	resp, _, _ := wireSend(t, srv, sid, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	if resp.Error != nil {
		t.Fatalf("tools/list failed: %v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	tools := result["tools"].([]any)
	if len(tools) != 2 {
		t.Fatalf("listed %d tools, want 2", len(tools))
	}
	first := tools[0].(map[string]any)
	second := tools[1].(map[string]any)
	if first["name"] != "add" || second["name"] != "echo" {
		t.Errorf("tool order = %v, %v; want add, echo", first["name"], second["name"])
	}

	// tools/call runs the pipeline end to end.
	resp, _, _ = wireSend(t, srv, sid, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"add","arguments":{"a":3,"b":5}}}`)
	if resp.Error != nil {
		t.Fatalf("tools/call failed: %v", resp.Error)
	}
	callResult := resp.Result.(map[string]any)
	content := callResult["content"].([]any)[0].(map[string]any)
	if content["text"] != "8" {
		t.Errorf("text = %v, want %q", content["text"], "8")
	}

	// Clients that quote their numbers get the same answer.
	resp, _, _ = wireSend(t, srv, sid, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"add","arguments":{"a":"5","b":"3"}}}`)
	if resp.Error != nil {
		t.Fatalf("tools/call with quoted arguments failed: %v", resp.Error)
	}
	callResult = resp.Result.(map[string]any)
	content = callResult["content"].([]any)[0].(map[string]any)
	if content["text"] != "8" {
		t.Errorf("text = %v, want %q", content["text"], "8")
	}

	// resources/read resolves the template.
	resp, _, _ = wireSend(t, srv, sid, `{"jsonrpc":"2.0","id":5,"method":"resources/read","params":{"uri":"greeting://Alice"}}`)
	if resp.Error != nil {
		t.Fatalf("resources/read failed: %v", resp.Error)
	}
	readResult := resp.Result.(map[string]any)
	contents := readResult["contents"].([]any)[0].(map[string]any)
	if contents["text"] != "Hello, Alice" {
		t.Errorf("text = %v, want %q", contents["text"], "Hello, Alice")
	}

	// Close, then the id is gone for good.
	if err := srv.CloseSession(context.Background(), sid); err != nil {
		t.Fatalf("CloseSession returned %v", err)
	}
	if err := srv.CloseSession(context.Background(), sid); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second close = %v, want ErrSessionNotFound", err)
	}
	_, _, err := wireSend(t, srv, sid, `{"jsonrpc":"2.0","id":6,"method":"ping"}`)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("dispatch after close = %v, want ErrSessionNotFound", err)
	}
}

func TestHandleMessage_Notification(t *testing.T) {
	srv := newWireFixture(t)
	sid := wireInitialize(t, srv)

	data, _, err := srv.HandleMessage(context.Background(), sid,
		[]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	if err != nil {
		t.Fatalf("HandleMessage returned %v", err)
	}
	if data != nil {
		t.Errorf("notification produced a response: %s", data)
	}
}

func TestHandleMessage_ValidationErrorOnWire(t *testing.T) {
	srv := newWireFixture(t)
	sid := wireInitialize(t, srv)

	resp, _, _ := wireSend(t, srv, sid, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{}}}`)
	if resp.Error == nil || resp.Error.Code != protocol.CodeInvalidParams {
		t.Fatalf("error = %+v, want invalid params", resp.Error)
	}
	if !strings.Contains(resp.Error.Message, "echo") {
		t.Errorf("message %q does not name the tool", resp.Error.Message)
	}
}

func TestHandleMessage_DistinctSessions(t *testing.T) {
	srv := newWireFixture(t)

	first := wireInitialize(t, srv)
	second := wireInitialize(t, srv)

	if first == second {
		t.Fatalf("both initializes returned session %q", first)
	}

	_, _, sessions := srv.Status()
	if sessions != 2 {
		t.Errorf("Status sessions = %d, want 2", sessions)
	}
}

func TestServer_Middleware(t *testing.T) {
	srv := newWireFixture(t)

	var calls int
	srv.Use(func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			calls++
			if got := protocol.GetRequestMeta(ctx, protocol.MetaSessionID); got == "" {
				t.Error("middleware saw no session id in the request metadata")
			}
			return next(ctx, req)
		}
	})

	sid := wireInitialize(t, srv)
	if _, _, err := wireSend(t, srv, sid, `{"jsonrpc":"2.0","id":2,"method":"ping"}`); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	if calls != 2 {
		t.Errorf("middleware ran %d times, want 2", calls)
	}
}

func TestServer_Status(t *testing.T) {
	srv := newWireFixture(t)

	name, version, sessions := srv.Status()
	if name != "wire-test" || version != "0.1.0" {
		t.Errorf("Status identity = %q/%q", name, version)
	}
	if sessions != 0 {
		t.Errorf("sessions = %d, want 0", sessions)
	}
}
