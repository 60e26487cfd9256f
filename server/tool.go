package server

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/coregate/mcpd/schema"
)

// Tool is a named, schema-validated callable capability.
type Tool struct {
	name        string
	title       string
	description string
	inputType   reflect.Type
	inputSchema *schema.Schema
	handler     any
	hasContext  bool
}

// Name returns the tool's unique name.
func (t *Tool) Name() string { return t.name }

// ToolInfo is the public metadata a tools/list enumeration returns.
type ToolInfo struct {
	Name        string
	Title       string
	Description string
	InputSchema *schema.Schema
}

// ToolBuilder provides a fluent API for declaring tools.
type ToolBuilder struct {
	tool   *Tool
	server *Server
	err    error
}

// Title sets an optional human-readable title for the tool.
func (b *ToolBuilder) Title(title string) *ToolBuilder {
	if b.err != nil {
		return b
	}
	b.tool.title = title
	return b
}

// Description sets the tool description.
func (b *ToolBuilder) Description(desc string) *ToolBuilder {
	if b.err != nil {
		return b
	}
	b.tool.description = desc
	return b
}

// Handler sets the tool handler function and registers the tool with the
// server. The handler signature must be one of:
//   - func(input T) (R, error)
//   - func(ctx context.Context, input T) (R, error)
//
// The input schema is generated from T and every call is validated
// against it before the handler runs. Registering a second tool under an
// already-taken name fails with ErrDuplicateCapability.
func (b *ToolBuilder) Handler(fn any) error {
	if b.err != nil {
		return b.err
	}
	if err := b.validateHandler(fn); err != nil {
		return fmt.Errorf("tool %q: %w", b.tool.name, err)
	}
	b.tool.handler = fn
	return b.server.tools.register(b.tool.name, b.tool)
}

// validateHandler validates the handler function signature and derives the
// input type and schema.
func (b *ToolBuilder) validateHandler(fn any) error {
	fnType := reflect.TypeOf(fn)

	if fnType == nil || fnType.Kind() != reflect.Func {
		return fmt.Errorf("handler must be a function, got %v", fnType)
	}

	numIn := fnType.NumIn()
	if numIn < 1 || numIn > 2 {
		return fmt.Errorf("handler must have 1 or 2 parameters, got %d", numIn)
	}

	var inputParamIdx int
	if numIn == 2 {
		if !fnType.In(0).Implements(reflect.TypeOf((*context.Context)(nil)).Elem()) {
			return fmt.Errorf("first parameter must be context.Context when using 2 parameters")
		}
		b.tool.hasContext = true
		inputParamIdx = 1
	}

	inputType := fnType.In(inputParamIdx)
	if inputType.Kind() == reflect.Ptr {
		inputType = inputType.Elem()
	}
	b.tool.inputType = inputType

	inputSchema, err := schema.GenerateFromType(inputType)
	if err != nil {
		return fmt.Errorf("failed to generate input schema: %w", err)
	}
	b.tool.inputSchema = inputSchema

	if fnType.NumOut() != 2 {
		return fmt.Errorf("handler must return (result, error), got %d return values", fnType.NumOut())
	}
	errType := reflect.TypeOf((*error)(nil)).Elem()
	if !fnType.Out(1).Implements(errType) {
		return fmt.Errorf("second return value must be error")
	}

	return nil
}

// call decodes the validated arguments into the handler's input type and
// invokes it. Panic containment and result wrapping happen at the
// pipeline edge, not here.
func (t *Tool) call(ctx context.Context, input json.RawMessage) (any, error) {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}

	inputPtr := reflect.New(t.inputType)
	if err := json.Unmarshal(input, inputPtr.Interface()); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}

	fnVal := reflect.ValueOf(t.handler)
	var args []reflect.Value
	if t.hasContext {
		args = append(args, reflect.ValueOf(ctx))
	}
	args = append(args, inputPtr.Elem())

	results := fnVal.Call(args)

	if errVal := results[1].Interface(); errVal != nil {
		return nil, errVal.(error)
	}
	return results[0].Interface(), nil
}
