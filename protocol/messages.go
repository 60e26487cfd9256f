package protocol

import (
	"encoding/json"
	"strings"
)

// JSONRPCVersion is the JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification returns true if this request has no ID (is a notification).
// Notifications never produce a response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// ParseRequest decodes and validates a JSON-RPC request envelope.
//
// A body that is not well-formed JSON yields a parse error (-32700) and a
// nil request. Well-formed JSON missing the "2.0" version tag or the
// method name yields an invalid request error (-32600) alongside the
// decoded request, so callers can still echo its id. Neither requires a
// resolvable session.
func ParseRequest(body []byte) (*Request, *Error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, NewParseError(err.Error())
	}
	if req.JSONRPC != JSONRPCVersion {
		return &req, NewInvalidRequest("jsonrpc version must be " + JSONRPCVersion)
	}
	if strings.TrimSpace(req.Method) == "" {
		return &req, NewInvalidRequest("method is required")
	}
	return &req, nil
}

// Response represents a JSON-RPC 2.0 response. Exactly one of Result and
// Error is set, and ID always mirrors the triggering request's ID.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResponse creates a successful response.
func NewResponse(id json.RawMessage, result any) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id json.RawMessage, err *Error) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   err,
	}
}
