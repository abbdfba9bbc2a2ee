package tools

import (
	"github.com/hattiebot/toolchat/internal/core"
)

// ParamType is the JSON Schema type of a tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
)

// Param declares one named tool parameter.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// Spec is what the model is told about a tool.
type Spec struct {
	Name        string
	Description string
	Params      []Param
}

// Schema renders the parameters as a JSON Schema object. Unknown properties are
// allowed so the model may pass extras through.
func (s Spec) Schema() map[string]interface{} {
	props := make(map[string]interface{}, len(s.Params))
	var required []string
	for _, p := range s.Params {
		prop := map[string]interface{}{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Definition converts the spec to the provider-neutral tool definition.
func (s Spec) Definition() core.ToolDefinition {
	return core.ToolDefinition{
		Type: "function",
		Function: core.FunctionSpec{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.Schema(),
		},
	}
}
