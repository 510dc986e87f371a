package upload

import (
	"strings"

	"github.com/GriffinCanCode/pagehook/internal/dom"
)

// PathRule maps pages whose path contains a marker to an endpoint.
type PathRule struct {
	Contains string `yaml:"contains"`
	Endpoint string `yaml:"endpoint"`
}

// EndpointRules is the fallback table used when an element does not name
// its own endpoint.
type EndpointRules struct {
	Paths   []PathRule `yaml:"paths"`
	Default string     `yaml:"default"`
}

// DefaultEndpointRules returns the built-in table.
func DefaultEndpointRules() EndpointRules {
	return EndpointRules{
		Paths: []PathRule{
			{Contains: "cloud", Endpoint: "/api/cloud/upload"},
			{Contains: "homework", Endpoint: "/api/homework/upload"},
		},
		Default: "/api/upload",
	}
}

// Merge returns r with the rules of base appended. r's default wins when
// set.
func (r EndpointRules) Merge(base EndpointRules) EndpointRules {
	out := EndpointRules{
		Paths:   append(append([]PathRule{}, r.Paths...), base.Paths...),
		Default: r.Default,
	}
	if out.Default == "" {
		out.Default = base.Default
	}
	return out
}

// ForPath returns the endpoint of the first rule whose marker appears in
// path, else the default.
func (r EndpointRules) ForPath(path string) string {
	for _, rule := range r.Paths {
		if rule.Contains != "" && strings.Contains(path, rule.Contains) {
			return rule.Endpoint
		}
	}
	if r.Default == "" {
		return "/api/upload"
	}
	return r.Default
}

// Resolver picks the endpoint for an upload started from an element.
type Resolver struct {
	rules EndpointRules
}

// NewResolver creates a resolver over rules.
func NewResolver(rules EndpointRules) *Resolver {
	return &Resolver{rules: rules}
}

// Resolve returns, in order: the action of the nearest enclosing form, the
// element's data-upload-url, data-url, data-action, and finally the path
// based fallback for the element's page. A form without an action
// attribute is skipped rather than posting back to the page URL.
func (r *Resolver) Resolve(el *dom.Element) string {
	if form := el.Form(); form != nil {
		if action := strings.TrimSpace(form.AttrOr("action", "")); action != "" {
			return action
		}
	}
	for _, name := range []string{"data-upload-url", "data-url", "data-action"} {
		if v := strings.TrimSpace(el.AttrOr(name, "")); v != "" {
			return v
		}
	}
	return r.ForPath(el.Document().URL().Path)
}

// ForPath returns the path based fallback endpoint.
func (r *Resolver) ForPath(path string) string {
	return r.rules.ForPath(path)
}
