package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/hattiebot/toolchat/internal/core"
)

// Tool is one locally executable capability. Each known tool is its own type.
type Tool interface {
	Spec() Spec
	Execute(ctx context.Context, args Args) core.Outcome
}

var (
	ErrDuplicateTool = errors.New("tool already registered")
	ErrInvalidArgs   = errors.New("invalid tool arguments")
)

type entry struct {
	tool   Tool
	schema *gojsonschema.Schema
}

// Registry maps tool names to implementations. It is filled once at startup and
// only read afterwards.
type Registry struct {
	order   []string
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds t. Names must be non-empty and unique.
func (r *Registry) Register(t Tool) error {
	spec := t.Spec()
	if spec.Name == "" {
		return fmt.Errorf("tools: register: empty tool name")
	}
	if _, ok := r.entries[spec.Name]; ok {
		return fmt.Errorf("tools: register %q: %w", spec.Name, ErrDuplicateTool)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(spec.Schema()))
	if err != nil {
		return fmt.Errorf("tools: register %q: schema: %w", spec.Name, err)
	}
	r.entries[spec.Name] = entry{tool: t, schema: schema}
	r.order = append(r.order, spec.Name)
	return nil
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (Tool, bool) {
	e, ok := r.entries[name]
	return e.tool, ok
}

// Specs returns all specs in registration order.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].tool.Spec())
	}
	return out
}

// Definitions returns the tool definitions advertised to the model.
func (r *Registry) Definitions() []core.ToolDefinition {
	specs := r.Specs()
	out := make([]core.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Definition())
	}
	return out
}

// Names returns the registered tool names in order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Arguments decodes argsJSON and checks it against the tool's declared parameters:
// required ones must be present and known ones must have the declared type.
func (r *Registry) Arguments(name, argsJSON string) (Args, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	args, err := ParseArgs(argsJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	res, err := e.schema.Validate(gojsonschema.NewGoLoader(map[string]interface{}(args)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	if !res.Valid() {
		var msgs []string
		for _, re := range res.Errors() {
			msgs = append(msgs, re.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidArgs, strings.Join(msgs, "; "))
	}
	return args, nil
}
