package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FieldError reports one argument that failed validation. Path is the
// dotted location of the field inside the arguments object ("a",
// "filter.mode", "tags[2]").
type FieldError struct {
	Path    string
	Message string
}

func (e *FieldError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// FieldErrors collects every failing argument from one pass, so a client
// sees all of its mistakes at once rather than one per round trip.
type FieldErrors []*FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, len(e))
	for i, err := range e {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}

// Conform checks raw JSON arguments against the schema and returns them
// in conformed shape. Values that arrive as strings but are addressed
// to integer or number fields are rewritten as numbers, so a handler's
// typed input decodes the same way no matter how the client quoted its
// arguments. Anything that cannot be conformed fails with FieldErrors.
func (s *Schema) Conform(data json.RawMessage) (json.RawMessage, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, &FieldError{Message: "malformed JSON: " + err.Error()}
	}

	var errs FieldErrors
	value = s.conform("", value, &errs)
	if len(errs) > 0 {
		return nil, errs
	}

	out, err := json.Marshal(value)
	if err != nil {
		return nil, &FieldError{Message: "re-encoding arguments: " + err.Error()}
	}
	return out, nil
}

// conform walks one value against one schema node, appending errors and
// returning the value to keep (coerced where the schema calls for it).
// A JSON null passes any node; required fields are enforced on the
// enclosing object, not on the null itself.
func (s *Schema) conform(path string, value any, errs *FieldErrors) any {
	if value == nil {
		return value
	}

	switch s.Type {
	case "object":
		return s.conformObject(path, value, errs)
	case "array":
		return s.conformArray(path, value, errs)
	case "string":
		s.checkString(path, value, errs)
	case "integer":
		return s.conformInteger(path, value, errs)
	case "number":
		return s.conformNumber(path, value, errs)
	case "boolean":
		if _, ok := value.(bool); !ok {
			fail(errs, path, "must be a boolean")
		}
	}
	return value
}

func (s *Schema) conformObject(path string, value any, errs *FieldErrors) any {
	obj, ok := value.(map[string]any)
	if !ok {
		fail(errs, path, "must be an object")
		return value
	}

	for _, name := range s.Required {
		if _, present := obj[name]; !present {
			fail(errs, childPath(path, name), "required argument is missing")
		}
	}

	for name, prop := range s.Properties {
		if v, present := obj[name]; present {
			obj[name] = prop.conform(childPath(path, name), v, errs)
		}
	}
	return obj
}

func (s *Schema) conformArray(path string, value any, errs *FieldErrors) any {
	items, ok := value.([]any)
	if !ok {
		fail(errs, path, "must be an array")
		return value
	}
	if s.Items == nil {
		return items
	}
	for i, item := range items {
		items[i] = s.Items.conform(fmt.Sprintf("%s[%d]", path, i), item, errs)
	}
	return items
}

func (s *Schema) checkString(path string, value any, errs *FieldErrors) {
	str, ok := value.(string)
	if !ok {
		fail(errs, path, "must be a string")
		return
	}
	if len(s.Enum) == 0 {
		return
	}
	for _, allowed := range s.Enum {
		if allowed == str {
			return
		}
	}
	fail(errs, path, fmt.Sprintf("must be one of %v", s.Enum))
}

// conformInteger accepts a JSON number with no fractional part, or a
// string holding one, and always hands back a number.
func (s *Schema) conformInteger(path string, value any, errs *FieldErrors) any {
	var num float64
	switch v := value.(type) {
	case float64:
		num = v
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fail(errs, path, fmt.Sprintf("must be an integer, got %q", v))
			return value
		}
		num = parsed
	default:
		fail(errs, path, "must be an integer")
		return value
	}

	if num != float64(int64(num)) {
		fail(errs, path, "must be an integer, got a fraction")
		return value
	}
	s.checkBounds(path, num, errs)
	return int64(num)
}

// conformNumber accepts a JSON number or a string holding one.
func (s *Schema) conformNumber(path string, value any, errs *FieldErrors) any {
	var num float64
	switch v := value.(type) {
	case float64:
		num = v
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fail(errs, path, fmt.Sprintf("must be a number, got %q", v))
			return value
		}
		num = parsed
	default:
		fail(errs, path, "must be a number")
		return value
	}

	s.checkBounds(path, num, errs)
	return num
}

func (s *Schema) checkBounds(path string, num float64, errs *FieldErrors) {
	if s.Minimum != nil && num < *s.Minimum {
		fail(errs, path, fmt.Sprintf("%v is below the minimum %v", num, *s.Minimum))
	}
	if s.Maximum != nil && num > *s.Maximum {
		fail(errs, path, fmt.Sprintf("%v is above the maximum %v", num, *s.Maximum))
	}
}

func fail(errs *FieldErrors, path, msg string) {
	*errs = append(*errs, &FieldError{Path: path, Message: msg})
}

func childPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}
