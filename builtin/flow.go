package builtin

import (
	"context"
	"fmt"

	"github.com/agentstation/operation"
	"github.com/agentstation/operation/definition"
)

// ResultNodeBuilder builds nodes that return a fixed result.
type ResultNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *ResultNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "result",
		Category:    "flow",
		Description: "Returns a fixed success or failure with a status",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"success": map[string]any{"type": "boolean", "default": true},
				"status":  map[string]any{"type": "string"},
				"data":    map[string]any{"description": "Data attached to the result"},
				"delay":   durationSchema,
			},
			"additionalProperties": false,
		},
		Examples: []Example{
			{
				Name:        "Give up",
				Description: "End the task as failed",
				Config:      map[string]any{"success": false, "status": "GAVE_UP"},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a result node from a definition.
func (b *ResultNodeBuilder) Build(def *definition.NodeDefinition, _ *definition.Loader) (operation.NodeBody, error) {
	delay, err := durationValue(def.Config, "delay", 0)
	if err != nil {
		return nil, err
	}
	status := operation.Status(stringValue(def.Config, "status", ""))
	data := def.Config["data"]

	r := operation.Success(status, data, delay)
	if !boolValue(def.Config, "success", true) {
		r = operation.Fail(status, data, delay)
	}
	return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
		return r
	}), nil
}

// DelayNodeBuilder builds nodes that pause the run.
type DelayNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *DelayNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "delay",
		Category:    "flow",
		Description: "Succeeds and asks the engine to pause for a duration",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"duration": durationSchema,
				"status":   map[string]any{"type": "string"},
			},
			"required":             []string{"duration"},
			"additionalProperties": false,
		},
		Examples: []Example{
			{
				Name:        "Let the animation finish",
				Description: "Pause for 1.5 seconds",
				Config:      map[string]any{"duration": "1.5s"},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a delay node from a definition.
func (b *DelayNodeBuilder) Build(def *definition.NodeDefinition, _ *definition.Loader) (operation.NodeBody, error) {
	duration, err := durationValue(def.Config, "duration", 0)
	if err != nil {
		return nil, err
	}
	status := operation.Status(stringValue(def.Config, "status", ""))

	return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
		return operation.Success(status, nil, duration)
	}), nil
}

// SubNodeBuilder builds nodes that run another library graph as a nested
// operation and route on its result.
type SubNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *SubNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "sub",
		Category:    "flow",
		Description: "Runs a library graph on the same bot and forwards its result",
		Statuses:    []string{string(StatusNotFound)},
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"graph":   map[string]any{"type": "string", "minLength": 1},
				"timeout": durationSchema,
			},
			"required":             []string{"graph"},
			"additionalProperties": false,
		},
		Examples: []Example{
			{
				Name:        "Transport",
				Description: "Teleport before farming",
				Config:      map[string]any{"graph": "transport", "timeout": "1m"},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a sub-graph node from a definition. The graph is resolved
// on first use so graphs may refer to each other.
func (b *SubNodeBuilder) Build(def *definition.NodeDefinition, loader *definition.Loader) (operation.NodeBody, error) {
	name := stringValue(def.Config, "graph", "")
	if !loader.HasGraph(name) {
		return nil, fmt.Errorf("%w: %s", definition.ErrGraphNotFound, name)
	}
	timeout, err := durationValue(def.Config, "timeout", 0)
	if err != nil {
		return nil, err
	}

	return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
		g, err := loader.Graph(name)
		if err != nil {
			bot.Logger.Error(ctx, "sub graph unavailable", "graph", name, "error", err)
			return operation.Fail(StatusNotFound, err.Error())
		}
		child := operation.New(g, bot, operation.WithTimeout(timeout))
		return operation.FromChild(child.Execute(ctx))
	}), nil
}
