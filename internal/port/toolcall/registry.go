// Package toolcall defines the fixed tool registry the reasoning engine
// dispatches against.
package toolcall

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gridsage/gridsage/internal/domain"
	"github.com/gridsage/gridsage/internal/domain/conversation"
)

// ArgType enumerates the argument types the registry can validate.
type ArgType string

// Supported argument types.
const (
	ArgString ArgType = "string"
	ArgNumber ArgType = "number"
)

// ArgSpec describes one named argument of a tool.
type ArgSpec struct {
	Name        string
	Type        ArgType
	Description string
	Required    bool
}

// Handler executes a tool against validated arguments and returns the result
// content. Errors are contained by the registry, never propagated.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Spec is one declarative registry entry: a tool name, its natural-language
// description, its argument schema, and the handler implementing it.
type Spec struct {
	Name        string
	Description string
	Args        []ArgSpec
	Handler     Handler
}

// Registry is a fixed mapping from tool name to Spec, built once at startup.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	order []string
	specs map[string]Spec
}

// NewRegistry builds a registry from the given specs.
// Duplicate names panic: the tool set is a startup-time constant.
func NewRegistry(specs ...Spec) *Registry {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		if _, exists := r.specs[s.Name]; exists {
			panic(fmt.Sprintf("toolcall: duplicate registration for %q", s.Name))
		}
		r.specs[s.Name] = s
		r.order = append(r.order, s.Name)
	}
	return r
}

// Specs returns all registered specs in registration order.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

// Invoke dispatches one ToolRequest. Every failure mode — unknown tool,
// argument mismatch, handler error, handler panic — is converted into a
// ToolResult with IsError set, so one bad tool call can never abort the
// conversation.
func (r *Registry) Invoke(ctx context.Context, req conversation.ToolRequest) (res conversation.ToolResult) {
	res = conversation.ToolResult{CallID: req.CallID, Name: req.Name}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool handler panicked", "tool", req.Name, "panic", rec)
			res.IsError = true
			res.Content = fmt.Sprintf("tool %s failed", req.Name)
		}
	}()

	spec, ok := r.specs[req.Name]
	if !ok {
		// The reasoner requested a tool outside the advertised schema.
		slog.Warn("tool contract violation: unknown tool requested",
			"tool", req.Name, "call_id", req.CallID)
		res.IsError = true
		res.Content = fmt.Sprintf("%s: %q", domain.ErrUnknownTool, req.Name)
		return res
	}

	if err := validateArgs(spec, req.Arguments); err != nil {
		res.IsError = true
		res.Content = err.Error()
		return res
	}

	content, err := spec.Handler(ctx, req.Arguments)
	if err != nil {
		res.IsError = true
		res.Content = err.Error()
		return res
	}

	res.Content = content
	return res
}

// validateArgs checks required fields and types against the spec.
func validateArgs(spec Spec, args map[string]any) error {
	for _, a := range spec.Args {
		v, present := args[a.Name]
		if !present {
			if a.Required {
				return fmt.Errorf("%w: missing required argument %q", domain.ErrInvalidArgument, a.Name)
			}
			continue
		}
		switch a.Type {
		case ArgString:
			if _, ok := v.(string); !ok {
				return fmt.Errorf("%w: argument %q must be a string", domain.ErrInvalidArgument, a.Name)
			}
		case ArgNumber:
			if _, ok := v.(float64); !ok {
				return fmt.Errorf("%w: argument %q must be a number", domain.ErrInvalidArgument, a.Name)
			}
		}
	}
	return nil
}
