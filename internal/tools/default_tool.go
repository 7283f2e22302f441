package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// DefaultTool is a base implementation of the Tool interface that can be embedded in other tools.
type DefaultTool struct {
	name        string
	description string
	schema      map[string]any
	annotations Annotations
}

// NewDefaultTool creates a new DefaultTool. A nil schema advertises a tool
// without arguments.
func NewDefaultTool(name, description string, schema map[string]any, annotations Annotations) *DefaultTool {
	if schema == nil {
		schema = ObjectSchema(nil)
	}
	if annotations.Title == "" {
		annotations.Title = name
	}
	return &DefaultTool{
		name:        name,
		description: description,
		schema:      schema,
		annotations: annotations,
	}
}

// Name returns the name of the tool.
func (t *DefaultTool) Name() string {
	return t.name
}

// Call is the default implementation of the Tool interface.
// Tools should override this method with their specific implementation.
func (t *DefaultTool) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	return nil, fmt.Errorf("method not implemented for tool: %s", t.name)
}

// Definition returns the tool definition in MCP format.
func (t *DefaultTool) Definition() Definition {
	annotations := t.annotations
	return Definition{
		Name:        t.name,
		Description: t.description,
		InputSchema: t.schema,
		Annotations: &annotations,
	}
}

// ObjectSchema returns a JSON schema for an argument object. Unknown
// properties are rejected.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty describes a string argument.
func StringProperty(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// IntegerProperty describes an integer argument bounded by min and max.
func IntegerProperty(description string, min, max int) map[string]any {
	return map[string]any{"type": "integer", "description": description, "minimum": min, "maximum": max}
}
