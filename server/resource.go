package server

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ResourceContent is the content returned by a resource read.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"` // Base64 encoded binary data
}

// ResourceHandler is the function signature for resource handlers. It
// receives the concrete URI being read and the placeholder values
// extracted from it.
type ResourceHandler func(ctx context.Context, uri string, params map[string]string) (*ResourceContent, error)

// Resource is a URI-addressable readable capability, matched via a
// templated URI pattern.
type Resource struct {
	uriTemplate string
	name        string
	title       string
	description string
	mimeType    string
	handler     ResourceHandler
	matcher     *uriTemplate
}

// URITemplate returns the resource's URI template.
func (r *Resource) URITemplate() string { return r.uriTemplate }

// ResourceInfo is the public metadata a resources/list enumeration returns.
type ResourceInfo struct {
	URITemplate string
	Name        string
	Title       string
	Description string
	MimeType    string
}

// ResourceBuilder provides a fluent API for declaring resources.
type ResourceBuilder struct {
	resource *Resource
	server   *Server
	err      error
}

// Name sets a human-readable name for the resource.
func (b *ResourceBuilder) Name(name string) *ResourceBuilder {
	if b.err != nil {
		return b
	}
	b.resource.name = name
	return b
}

// Title sets an optional human-readable title for the resource.
func (b *ResourceBuilder) Title(title string) *ResourceBuilder {
	if b.err != nil {
		return b
	}
	b.resource.title = title
	return b
}

// Description sets the resource description.
func (b *ResourceBuilder) Description(desc string) *ResourceBuilder {
	if b.err != nil {
		return b
	}
	b.resource.description = desc
	return b
}

// MimeType sets the MIME type of the resource content.
func (b *ResourceBuilder) MimeType(mimeType string) *ResourceBuilder {
	if b.err != nil {
		return b
	}
	b.resource.mimeType = mimeType
	return b
}

// Handler sets the resource handler and registers the resource with the
// server, keyed by its URI template. The template compiles once here; a
// malformed template or an already-taken template fails registration.
func (b *ResourceBuilder) Handler(fn ResourceHandler) error {
	if b.err != nil {
		return b.err
	}

	matcher, err := compileURITemplate(b.resource.uriTemplate)
	if err != nil {
		return fmt.Errorf("resource %q: %w", b.resource.uriTemplate, err)
	}
	b.resource.matcher = matcher
	b.resource.handler = fn
	return b.server.resources.register(b.resource.uriTemplate, b.resource)
}

// uriTemplate is a compiled URI pattern. Literal segments must match
// exactly; {name} placeholders capture a non-empty value and a trailing
// {name?} placeholder may capture nothing.
type uriTemplate struct {
	raw    string
	re     *regexp.Regexp
	params []string
}

func compileURITemplate(raw string) (*uriTemplate, error) {
	var pattern strings.Builder
	pattern.WriteString("^")

	var params []string
	for i := 0; i < len(raw); {
		if raw[i] != '{' {
			pattern.WriteString(regexp.QuoteMeta(string(raw[i])))
			i++
			continue
		}

		end := strings.IndexByte(raw[i:], '}')
		if end < 0 {
			return nil, fmt.Errorf("unterminated placeholder")
		}

		name := raw[i+1 : i+end]
		optional := strings.HasSuffix(name, "?")
		if optional {
			name = strings.TrimSuffix(name, "?")
		}
		if name == "" {
			return nil, fmt.Errorf("empty placeholder name")
		}
		if optional && i+end+1 != len(raw) {
			return nil, fmt.Errorf("optional placeholder {%s?} must be the trailing segment", name)
		}

		params = append(params, name)
		if optional {
			pattern.WriteString(`([^/]*)`)
		} else {
			pattern.WriteString(`([^/]+)`)
		}
		i += end + 1
	}
	pattern.WriteString("$")

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, fmt.Errorf("compile template: %w", err)
	}

	return &uriTemplate{raw: raw, re: re, params: params}, nil
}

// match reports whether uri satisfies the template and returns the
// placeholder values it captured. Optional placeholders that captured
// nothing are omitted from the map.
func (t *uriTemplate) match(uri string) (map[string]string, bool) {
	groups := t.re.FindStringSubmatch(uri)
	if groups == nil {
		return nil, false
	}

	params := make(map[string]string, len(t.params))
	for i, name := range t.params {
		if v := groups[i+1]; v != "" {
			params[name] = v
		}
	}
	return params, true
}
