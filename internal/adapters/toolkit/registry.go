// Package toolkit describes the knowledge-base tools once so every transport
// (HTTP, MCP, NATS) exposes the same names, parameters and handlers.
package toolkit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
	// Items is the element type of an array parameter.
	Items ParamType
}

type Handler func(ctx context.Context, args Args) (any, error)

type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// InputSchema renders the parameters as a JSON schema object.
func (t Tool) InputSchema() map[string]any {
	properties := make(map[string]any, len(t.Params))
	required := make([]string, 0)
	for _, p := range t.Params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if p.Type == TypeArray {
			items := p.Items
			if items == "" {
				items = TypeString
			}
			prop["items"] = map[string]any{"type": string(items)}
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Observer is notified after every call.
type Observer interface {
	ObserveToolCall(tool string, duration time.Duration, err error)
}

type Registry struct {
	tools    map[string]Tool
	observer Observer
}

func NewRegistry(observer Observer) *Registry {
	return &Registry{tools: make(map[string]Tool), observer: observer}
}

func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" || tool.Handler == nil {
		return fmt.Errorf("tool %q: name and handler are required", tool.Name)
	}
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

func (r *Registry) MustRegister(tools ...Tool) {
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			panic(err)
		}
	}
}

// Tools returns every tool sorted by name.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Call validates raw arguments against the tool parameters, fills defaults
// and runs the handler. Unknown tools wrap domain.ErrNotFound and argument
// problems wrap domain.ErrInvalidInput.
func (r *Registry) Call(ctx context.Context, name string, raw map[string]any) (result any, err error) {
	start := time.Now()
	defer func() {
		if r.observer != nil {
			r.observer.ObserveToolCall(name, time.Since(start), err)
		}
		if err != nil {
			slog.Warn("tool_call_failed", "tool", name, "error", err)
		}
	}()

	tool, ok := r.tools[name]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "tool call", fmt.Errorf("unknown tool %q", name))
	}
	args, err := bindArgs(tool.Params, raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, name, err)
	}
	return tool.Handler(ctx, args)
}

func bindArgs(params []Param, raw map[string]any) (Args, error) {
	values := make(map[string]any, len(params))
	for _, p := range params {
		v, present := raw[p.Name]
		if !present || v == nil {
			if p.Required {
				return Args{}, fmt.Errorf("missing required argument %q", p.Name)
			}
			if p.Default != nil {
				values[p.Name] = p.Default
			}
			continue
		}
		if err := checkType(p, v); err != nil {
			return Args{}, err
		}
		values[p.Name] = v
	}
	return Args{values: values}, nil
}

func checkType(p Param, v any) error {
	ok := true
	switch p.Type {
	case TypeString:
		_, ok = v.(string)
	case TypeBoolean:
		_, ok = v.(bool)
	case TypeNumber:
		_, ok = asFloat(v)
	case TypeInteger:
		f, isNum := asFloat(v)
		ok = isNum && f == math.Trunc(f)
	case TypeArray:
		_, ok = v.([]any)
		if !ok {
			_, ok = v.([]string)
		}
	case TypeObject:
		_, ok = v.(map[string]any)
	}
	if !ok {
		return fmt.Errorf("argument %q must be %s", p.Name, p.Type)
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
