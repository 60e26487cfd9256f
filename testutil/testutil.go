// Package testutil provides testing utilities for mcpd servers.
//
// This package helps developers write tests for their servers by providing
// an in-memory session-aware test client and assertion helpers.
//
// Example usage:
//
//	func TestMyServer(t *testing.T) {
//	    srv := server.New(server.Info{Name: "test", Version: "1.0.0"})
//	    srv.Tool("greet").Handler(func(ctx context.Context, input GreetInput) (string, error) {
//	        return "Hello, " + input.Name, nil
//	    })
//
//	    tc := testutil.NewTestClient(t, srv)
//	    defer tc.Close()
//
//	    result, err := tc.CallTool("greet", map[string]any{"name": "World"})
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	}
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/coregate/mcpd/protocol"
	"github.com/coregate/mcpd/server"
)

// TestClient drives a server through its wire-level message surface,
// carrying the session id between calls the way a real transport would.
type TestClient struct {
	t   testing.TB
	srv *server.Server

	mu        sync.Mutex
	sessionID string
	reqID     int64
}

// NewTestClient creates a test client bound to the given server and opens
// a session by sending initialize.
func NewTestClient(t testing.TB, srv *server.Server) *TestClient {
	t.Helper()

	tc := &TestClient{t: t, srv: srv}

	if _, err := tc.Initialize(); err != nil {
		t.Fatalf("failed to initialize server: %v", err)
	}

	return tc
}

// NewUninitializedClient creates a test client without opening a session.
// Useful for exercising pre-initialize behavior.
func NewUninitializedClient(t testing.TB, srv *server.Server) *TestClient {
	t.Helper()
	return &TestClient{t: t, srv: srv}
}

// SessionID returns the id of the client's session, or "" before initialize.
func (tc *TestClient) SessionID() string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.sessionID
}

// Close closes the client's session.
func (tc *TestClient) Close() {
	tc.mu.Lock()
	sessionID := tc.sessionID
	tc.sessionID = ""
	tc.mu.Unlock()

	if sessionID != "" {
		_ = tc.srv.CloseSession(context.Background(), sessionID)
	}
}

// decodeResult decodes a response result into v. Results arrive as
// map[string]any after the wire round trip, so they are re-marshalled
// into the target type.
func decodeResult(resp *protocol.Response, v any) error {
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return json.Unmarshal(data, v)
}

func (tc *TestClient) nextID() json.RawMessage {
	tc.reqID++
	return json.RawMessage(fmt.Sprintf("%d", tc.reqID))
}

// SendRequest sends a request on the client's session and returns the
// decoded response.
func (tc *TestClient) SendRequest(method string, params any) (*protocol.Response, error) {
	tc.t.Helper()

	tc.mu.Lock()
	defer tc.mu.Unlock()

	var paramsData json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsData = data
	}

	req := protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      tc.nextID(),
		Method:  method,
		Params:  paramsData,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, sessionID, err := tc.srv.HandleMessage(context.Background(), tc.sessionID, body)
	if err != nil && respBody == nil {
		return nil, err
	}
	if sessionID != "" {
		tc.sessionID = sessionID
	}

	var resp protocol.Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// SendNotification sends a notification on the client's session. The empty
// response body is asserted.
func (tc *TestClient) SendNotification(method string, params any) error {
	tc.t.Helper()

	tc.mu.Lock()
	defer tc.mu.Unlock()

	var paramsData json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsData = data
	}

	req := protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  method,
		Params:  paramsData,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, _, err := tc.srv.HandleMessage(context.Background(), tc.sessionID, body)
	if err != nil {
		return err
	}
	if respBody != nil {
		return fmt.Errorf("notification produced a response: %s", respBody)
	}
	return nil
}

// Initialize opens a session and returns the initialize result.
func (tc *TestClient) Initialize() (map[string]any, error) {
	tc.t.Helper()

	resp, err := tc.SendRequest(protocol.MethodInitialize, map[string]any{
		"protocolVersion": protocol.LatestVersion(),
		"clientInfo": map[string]any{
			"name":    "testutil",
			"version": "0.0.0",
		},
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	var result map[string]any
	if err := decodeResult(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode initialize result: %w", err)
	}
	return result, nil
}

// ListTools returns the tool descriptors exposed by the server.
func (tc *TestClient) ListTools() ([]map[string]any, error) {
	tc.t.Helper()

	resp, err := tc.SendRequest(protocol.MethodToolsList, nil)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	var result struct {
		Tools []map[string]any `json:"tools"`
	}
	if err := decodeResult(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode tools list: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a tool and returns the text of its first content item.
func (tc *TestClient) CallTool(name string, args any) (string, error) {
	tc.t.Helper()

	resp, err := tc.CallToolRaw(name, args)
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", resp.Error
	}

	var result server.ToolResult
	if err := decodeResult(resp, &result); err != nil {
		return "", fmt.Errorf("failed to decode tool result: %w", err)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("tool %q returned no content", name)
	}
	return result.Content[0].Text, nil
}

// CallToolRaw invokes a tool and returns the raw response.
func (tc *TestClient) CallToolRaw(name string, args any) (*protocol.Response, error) {
	tc.t.Helper()

	return tc.SendRequest(protocol.MethodToolsCall, map[string]any{
		"name":      name,
		"arguments": args,
	})
}

// ListResources returns the resource descriptors exposed by the server.
func (tc *TestClient) ListResources() ([]map[string]any, error) {
	tc.t.Helper()

	resp, err := tc.SendRequest(protocol.MethodResourcesList, nil)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	var result struct {
		Resources []map[string]any `json:"resources"`
	}
	if err := decodeResult(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode resources list: %w", err)
	}
	return result.Resources, nil
}

// ReadResource reads a resource and returns the text of its first content.
func (tc *TestClient) ReadResource(uri string) (string, error) {
	tc.t.Helper()

	resp, err := tc.SendRequest(protocol.MethodResourcesRead, map[string]any{
		"uri": uri,
	})
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", resp.Error
	}

	var result server.ResourceResult
	if err := decodeResult(resp, &result); err != nil {
		return "", fmt.Errorf("failed to decode resource result: %w", err)
	}
	if len(result.Contents) == 0 {
		return "", fmt.Errorf("resource %q returned no contents", uri)
	}
	return result.Contents[0].Text, nil
}

// Ping sends a ping request.
func (tc *TestClient) Ping() error {
	tc.t.Helper()

	resp, err := tc.SendRequest(protocol.MethodPing, nil)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	return nil
}

// AssertToolExists fails the test if the server does not list the tool.
func (tc *TestClient) AssertToolExists(name string) {
	tc.t.Helper()

	tools, err := tc.ListTools()
	if err != nil {
		tc.t.Fatalf("failed to list tools: %v", err)
	}
	for _, tool := range tools {
		if tool["name"] == name {
			return
		}
	}
	tc.t.Errorf("tool %q not found", name)
}

// AssertResourceExists fails the test if the server does not list a
// resource with the given URI template.
func (tc *TestClient) AssertResourceExists(uriTemplate string) {
	tc.t.Helper()

	resources, err := tc.ListResources()
	if err != nil {
		tc.t.Fatalf("failed to list resources: %v", err)
	}
	for _, res := range resources {
		if res["uri"] == uriTemplate {
			return
		}
	}
	tc.t.Errorf("resource %q not found", uriTemplate)
}
