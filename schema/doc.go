// Package schema derives JSON Schemas from Go types and conforms tool
// arguments against them.
//
// Tool builders never write schemas by hand. Generate reflects over the
// handler's input struct and produces the schema advertised by
// tools/list:
//
//	type AddInput struct {
//	    A int `json:"a" jsonschema:"required,description=First operand"`
//	    B int `json:"b" jsonschema:"required,description=Second operand"`
//	}
//
//	s, err := schema.Generate(AddInput{})
//
// Field names come from the json tag (json:"-" excludes a field), and
// the jsonschema tag adds constraints: required, description=...,
// enum=a|b|c, minimum=..., maximum=... Structs map to objects, slices
// to arrays, ints to integer, floats to number, and pointers follow
// their element type.
//
// Before a tools/call reaches its handler, Conform checks the raw
// arguments against the schema and returns a normalized copy: numbers
// that arrive as quoted strings, as some clients send them, are decoded
// to real numbers so the handler's typed input unmarshals cleanly.
// Violations come back as FieldErrors naming the offending path.
package schema
