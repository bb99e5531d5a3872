package builtin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentstation/operation"
	"github.com/agentstation/operation/definition"
)

func noInput(ctx context.Context, bot *operation.Context, node string) operation.RoundResult {
	bot.Logger.Error(ctx, "no input controller attached", "node", node)
	return operation.Fail(StatusInputFailed, "no input controller")
}

func inputFailed(ctx context.Context, bot *operation.Context, node string, err error) operation.RoundResult {
	bot.Logger.Error(ctx, "input failed", "node", node, "error", err)
	return operation.Retry(StatusInputFailed, time.Second)
}

// ClickNodeBuilder builds nodes that click a fixed point or a recognized label.
type ClickNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *ClickNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "click",
		Category:    "input",
		Description: "Clicks a fixed point, or the position a label holds on a fresh screenshot",
		Statuses:    []string{string(StatusInputFailed), string(StatusNotFound), string(StatusScreenshotFailed)},
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"x":     map[string]any{"type": "number"},
				"y":     map[string]any{"type": "number"},
				"label": map[string]any{"type": "string", "minLength": 1},
				"delay": durationSchema,
			},
			"oneOf": []any{
				map[string]any{"required": []string{"x", "y"}},
				map[string]any{"required": []string{"label"}},
			},
			"additionalProperties": false,
		},
		Examples: []Example{
			{
				Name:        "Close button",
				Description: "Click wherever the close button was matched",
				Config:      map[string]any{"label": "close_button", "delay": "500ms"},
			},
			{
				Name:        "Fixed point",
				Description: "Click the screen center",
				Config:      map[string]any{"x": 640, "y": 360},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a click node from a definition.
func (b *ClickNodeBuilder) Build(def *definition.NodeDefinition, _ *definition.Loader) (operation.NodeBody, error) {
	delay, err := durationValue(def.Config, "delay", 0)
	if err != nil {
		return nil, err
	}
	label := stringValue(def.Config, "label", "")
	fx, okX := intValue(def.Config["x"])
	fy, okY := intValue(def.Config["y"])
	if label == "" && !(okX && okY) {
		return nil, errors.New("click needs x and y or a label")
	}

	return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
		if bot.Input == nil {
			return noInput(ctx, bot, def.Name)
		}

		x, y := fx, fy
		if label != "" {
			frame, err := bot.Screenshot(ctx)
			if err != nil {
				bot.Logger.Error(ctx, "screenshot failed", "node", def.Name, "error", err)
				return operation.Retry(StatusScreenshotFailed, time.Second)
			}
			v, found := frame.Label(label)
			if !found {
				return operation.Fail(StatusNotFound, label)
			}
			var ok bool
			if x, y, ok = pointValue(v); !ok {
				return operation.Fail(StatusNotFound, fmt.Sprintf("%s is not a point", label))
			}
		}

		if err := bot.Input.Click(ctx, x, y); err != nil {
			return inputFailed(ctx, bot, def.Name, err)
		}
		return operation.Success("", []int{x, y}, delay)
	}), nil
}

// PressNodeBuilder builds nodes that press a key.
type PressNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *PressNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "press",
		Category:    "input",
		Description: "Presses a key",
		Statuses:    []string{string(StatusInputFailed)},
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key":   map[string]any{"type": "string", "minLength": 1},
				"delay": durationSchema,
			},
			"required":             []string{"key"},
			"additionalProperties": false,
		},
		Examples: []Example{
			{
				Name:        "Back",
				Description: "Leave the current menu",
				Config:      map[string]any{"key": "esc"},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a press node from a definition.
func (b *PressNodeBuilder) Build(def *definition.NodeDefinition, _ *definition.Loader) (operation.NodeBody, error) {
	delay, err := durationValue(def.Config, "delay", 0)
	if err != nil {
		return nil, err
	}
	key := stringValue(def.Config, "key", "")

	return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
		if bot.Input == nil {
			return noInput(ctx, bot, def.Name)
		}
		if err := bot.Input.Press(ctx, key); err != nil {
			return inputFailed(ctx, bot, def.Name, err)
		}
		return operation.Success("", nil, delay)
	}), nil
}

// SwipeNodeBuilder builds nodes that drag between two points.
type SwipeNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *SwipeNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "swipe",
		Category:    "input",
		Description: "Drags from one point to another",
		Statuses:    []string{string(StatusInputFailed)},
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"from":     pointSchema,
				"to":       pointSchema,
				"duration": durationSchema,
				"delay":    durationSchema,
			},
			"required":             []string{"from", "to"},
			"additionalProperties": false,
		},
		Examples: []Example{
			{
				Name:        "Scroll list",
				Description: "Scroll the character list up",
				Config:      map[string]any{"from": []int{600, 600}, "to": []int{600, 200}, "duration": "400ms"},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a swipe node from a definition.
func (b *SwipeNodeBuilder) Build(def *definition.NodeDefinition, _ *definition.Loader) (operation.NodeBody, error) {
	fromX, fromY, ok := pointValue(def.Config["from"])
	if !ok {
		return nil, errors.New("swipe: from is not a point")
	}
	toX, toY, ok := pointValue(def.Config["to"])
	if !ok {
		return nil, errors.New("swipe: to is not a point")
	}
	duration, err := durationValue(def.Config, "duration", 300*time.Millisecond)
	if err != nil {
		return nil, err
	}
	delay, err := durationValue(def.Config, "delay", 0)
	if err != nil {
		return nil, err
	}

	return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
		if bot.Input == nil {
			return noInput(ctx, bot, def.Name)
		}
		if err := bot.Input.Swipe(ctx, fromX, fromY, toX, toY, duration); err != nil {
			return inputFailed(ctx, bot, def.Name, err)
		}
		return operation.Success("", nil, delay)
	}), nil
}
