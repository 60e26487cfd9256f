package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coregate/mcpd/protocol"
	"github.com/coregate/mcpd/schema"
)

// dispatcher is the per-session protocol state machine. It assumes its
// caller already serialized dispatch for the session (Session.dispatchMu),
// so state transitions never run concurrently for one id.
type dispatcher struct {
	srv     *Server
	session *Session

	// version is the negotiated protocol version, set by initialize.
	version string
}

// handle routes one parsed request through the state machine and always
// produces a response; the caller drops it for notifications.
func (d *dispatcher) handle(ctx context.Context, req *protocol.Request) *protocol.Response {
	switch d.session.State() {
	case StateClosed, StateClosing:
		return protocol.NewErrorResponse(req.ID,
			protocol.NewSessionNotFound(fmt.Sprintf("session %q is closed", d.session.id)))
	case StateUninitialized:
		if req.Method == protocol.MethodInitialize {
			return d.handleInitialize(req)
		}
		return protocol.NewErrorResponse(req.ID,
			protocol.NewNotInitialized(fmt.Sprintf("method %q requires an initialized session", req.Method)))
	}

	switch req.Method {
	case protocol.MethodInitialize:
		return protocol.NewErrorResponse(req.ID,
			protocol.NewInvalidRequest("session already initialized"))
	case protocol.MethodInitialized:
		// Client-side handshake acknowledgement, nothing to do.
		return protocol.NewResponse(req.ID, struct{}{})
	case protocol.MethodPing:
		return protocol.NewResponse(req.ID, struct{}{})
	case protocol.MethodToolsList:
		return d.handleToolsList(req)
	case protocol.MethodToolsCall:
		return d.handleToolsCall(ctx, req)
	case protocol.MethodResourcesList:
		return d.handleResourcesList(req)
	case protocol.MethodResourcesRead:
		return d.handleResourcesRead(ctx, req)
	default:
		return protocol.NewErrorResponse(req.ID, protocol.NewMethodNotFound(req.Method))
	}
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

func (d *dispatcher) handleInitialize(req *protocol.Request) *protocol.Response {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return protocol.NewErrorResponse(req.ID, protocol.NewInvalidParams(err.Error()))
		}
	}

	d.version = protocol.NegotiateVersion(params.ProtocolVersion)

	// Capability flags reflect whether either registry is non-empty at
	// handshake time.
	capabilities := make(map[string]any)
	if d.srv.tools.size() > 0 {
		capabilities["tools"] = map[string]any{}
	}
	if d.srv.resources.size() > 0 {
		capabilities["resources"] = map[string]any{}
	}

	d.session.activate()

	return protocol.NewResponse(req.ID, map[string]any{
		"protocolVersion": d.version,
		"serverInfo": map[string]any{
			"name":    d.srv.info.Name,
			"version": d.srv.info.Version,
		},
		"capabilities": capabilities,
	})
}

type toolListItem struct {
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	InputSchema *schema.Schema `json:"inputSchema"`
}

func (d *dispatcher) handleToolsList(req *protocol.Request) *protocol.Response {
	tools := d.srv.tools.list()

	items := make([]toolListItem, 0, len(tools))
	for _, t := range tools {
		items = append(items, toolListItem{
			Name:        t.name,
			Title:       t.title,
			Description: t.description,
			InputSchema: t.inputSchema,
		})
	}

	return protocol.NewResponse(req.ID, map[string]any{"tools": items})
}

func (d *dispatcher) handleToolsCall(ctx context.Context, req *protocol.Request) *protocol.Response {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewErrorResponse(req.ID, protocol.NewInvalidParams(err.Error()))
	}

	tool, ok := d.srv.tools.resolve(params.Name)
	if !ok {
		return protocol.NewErrorResponse(req.ID, protocol.NewNotFound("tool not found: "+params.Name))
	}

	result, rpcErr := callTool(ctx, tool, params.Arguments)
	if rpcErr != nil {
		return protocol.NewErrorResponse(req.ID, rpcErr)
	}
	return protocol.NewResponse(req.ID, result)
}

type resourceListItem struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

func (d *dispatcher) handleResourcesList(req *protocol.Request) *protocol.Response {
	resources := d.srv.resources.list()

	items := make([]resourceListItem, 0, len(resources))
	for _, r := range resources {
		items = append(items, resourceListItem{
			URI:         r.uriTemplate,
			Name:        r.name,
			Title:       r.title,
			Description: r.description,
			MimeType:    r.mimeType,
		})
	}

	return protocol.NewResponse(req.ID, map[string]any{"resources": items})
}

func (d *dispatcher) handleResourcesRead(ctx context.Context, req *protocol.Request) *protocol.Response {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewErrorResponse(req.ID, protocol.NewInvalidParams(err.Error()))
	}

	resource, extracted, ok := d.srv.resolveResource(params.URI)
	if !ok {
		return protocol.NewErrorResponse(req.ID, protocol.NewNotFound("resource not found: "+params.URI))
	}

	result, rpcErr := readResource(ctx, resource, params.URI, extracted)
	if rpcErr != nil {
		return protocol.NewErrorResponse(req.ID, rpcErr)
	}
	return protocol.NewResponse(req.ID, result)
}
