package builtin

import (
	"context"
	"errors"

	"github.com/agentstation/operation"
	"github.com/agentstation/operation/builtin/script"
	"github.com/agentstation/operation/definition"
)

// SetNodeBuilder builds nodes that cache a flag in the bot state.
type SetNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *SetNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "set",
		Category:    "state",
		Description: "Stores a value in the bot state",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key":    map[string]any{"type": "string", "minLength": 1},
				"value":  map[string]any{"description": "Value to store; null deletes the key"},
				"status": map[string]any{"type": "string"},
			},
			"required":             []string{"key"},
			"additionalProperties": false,
		},
		Examples: []Example{
			{
				Name:        "Mark claimed",
				Description: "Remember that the daily reward was claimed",
				Config:      map[string]any{"key": "daily_claimed", "value": true},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a set node from a definition.
func (b *SetNodeBuilder) Build(def *definition.NodeDefinition, _ *definition.Loader) (operation.NodeBody, error) {
	key := stringValue(def.Config, "key", "")
	value := def.Config["value"]
	status := operation.Status(stringValue(def.Config, "status", ""))

	return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
		var err error
		if value == nil {
			err = bot.State.Delete(ctx, key)
		} else {
			err = bot.State.Set(ctx, key, value)
		}
		if err != nil {
			return operation.Fail(status, err.Error())
		}
		return operation.Success(status, value)
	}), nil
}

// ScriptNodeBuilder builds nodes whose body is a Lua script.
type ScriptNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *ScriptNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "script",
		Category:    "state",
		Description: "Runs run(input) from an inline or file Lua script and returns what it returns",
		Statuses:    []string{string(StatusScriptError)},
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"source": map[string]any{"type": "string", "minLength": 1},
				"file":   map[string]any{"type": "string", "minLength": 1},
			},
			"oneOf": []any{
				map[string]any{"required": []string{"source"}},
				map[string]any{"required": []string{"file"}},
			},
			"additionalProperties": false,
		},
		Examples: []Example{
			{
				Name:        "Low stamina",
				Description: "Fail when the cached stamina is low",
				Config: map[string]any{
					"source": "function run(input)\n  return (input.state.stamina or 0) >= 20\nend",
				},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a script node from a definition. The script is compiled
// once here and run in a fresh interpreter on every invocation.
func (b *ScriptNodeBuilder) Build(def *definition.NodeDefinition, _ *definition.Loader) (operation.NodeBody, error) {
	var (
		s   *script.Script
		err error
	)
	switch {
	case stringValue(def.Config, "source", "") != "":
		s, err = script.New(def.Name, stringValue(def.Config, "source", ""))
	case stringValue(def.Config, "file", "") != "":
		s, err = script.LoadFile(stringValue(def.Config, "file", ""))
	default:
		err = errors.New("script needs source or file")
	}
	if err != nil {
		return nil, err
	}

	return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
		r, err := s.Run(ctx, bot, script.Input(ctx, bot))
		if err != nil {
			bot.Logger.Error(ctx, "script failed", "node", def.Name, "script", s.Name, "error", err)
			return operation.Fail(StatusScriptError, err.Error())
		}
		return r
	}), nil
}
