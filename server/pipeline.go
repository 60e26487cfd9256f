package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coregate/mcpd/protocol"
	"github.com/coregate/mcpd/schema"
)

// ContentItem is one element of a tool result's content array.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the protocol shape of a successful tools/call.
type ToolResult struct {
	Content []ContentItem `json:"content"`
}

// ResourceResult is the protocol shape of a successful resources/read.
type ResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}

// callTool runs the execution pipeline for a tool: validate and conform
// the raw arguments against the declared schema, invoke the handler,
// contain any panic or error at this edge, and wrap the result into the
// protocol content shape. The pipeline is stateless and reentrant.
//
// Conforming means numeric arguments may arrive quoted; the handler
// decodes the coerced form, never the client's original spelling.
func callTool(ctx context.Context, t *Tool, args json.RawMessage) (*ToolResult, *protocol.Error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	args, err := t.inputSchema.Conform(args)
	if err != nil {
		rpcErr := protocol.NewInvalidParams(fmt.Sprintf("tool %q: %v", t.name, err))
		if field := validationField(err); field != "" {
			rpcErr = rpcErr.WithData(map[string]string{"field": field})
		}
		return nil, rpcErr
	}

	result, err := invoke(func() (any, error) { return t.call(ctx, args) })
	if err != nil {
		return nil, handlerError(err)
	}

	return &ToolResult{
		Content: []ContentItem{{Type: "text", Text: contentText(result)}},
	}, nil
}

// readResource runs the execution pipeline for a resource read. The
// extracted placeholder values come from template resolution.
func readResource(ctx context.Context, r *Resource, uri string, params map[string]string) (*ResourceResult, *protocol.Error) {
	result, err := invoke(func() (any, error) { return r.handler(ctx, uri, params) })
	if err != nil {
		return nil, handlerError(err)
	}

	content, ok := result.(*ResourceContent)
	if !ok || content == nil {
		return nil, protocol.NewInternalError(fmt.Sprintf("resource %q returned no content", r.uriTemplate))
	}
	if content.URI == "" {
		content.URI = uri
	}
	if content.MimeType == "" {
		content.MimeType = r.mimeType
	}

	return &ResourceResult{Contents: []ResourceContent{*content}}, nil
}

// invoke calls fn and converts a panic into an ordinary error. Handler
// faults never propagate as language-native faults across the protocol
// boundary.
func invoke(fn func() (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn()
}

// handlerError maps a handler failure to a protocol error. The message is
// preserved; stack traces and other internal diagnostics are not.
func handlerError(err error) *protocol.Error {
	var rpcErr *protocol.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return protocol.NewInternalError(err.Error())
}

// validationField extracts the offending field path from a schema
// validation failure.
func validationField(err error) string {
	var errs schema.FieldErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		return errs[0].Path
	}
	var ferr *schema.FieldError
	if errors.As(err, &ferr) {
		return ferr.Path
	}
	return ""
}

// contentText renders a tool result into the text content slot. Strings
// pass through as-is; anything else is JSON-encoded.
func contentText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
