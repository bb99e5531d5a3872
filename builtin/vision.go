package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/ohler55/ojg/jp"

	"github.com/agentstation/operation"
	"github.com/agentstation/operation/definition"
)

// probe looks a value up in the labels of a fresh frame or in the bot state.
type probe struct {
	expr   jp.Expr
	source string
	equals any
}

func newProbe(config map[string]any) (*probe, error) {
	path := stringValue(config, "path", "")
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("path %q: %w", path, err)
	}
	return &probe{
		expr:   expr,
		source: stringValue(config, "source", "frame"),
		equals: config["equals"],
	}, nil
}

// look returns the matched value. A screenshot failure is reported as err.
func (p *probe) look(ctx context.Context, bot *operation.Context) (any, bool, error) {
	var data map[string]any
	if p.source == "state" {
		data = bot.State.Snapshot(ctx)
	} else {
		frame, err := bot.Screenshot(ctx)
		if err != nil {
			return nil, false, err
		}
		data = frame.Labels
	}

	for _, v := range p.expr.Get(data) {
		if p.equals == nil || fmt.Sprint(v) == fmt.Sprint(p.equals) {
			return v, true, nil
		}
	}
	return nil, false, nil
}

var probeProperties = map[string]any{
	"path":   map[string]any{"type": "string", "minLength": 1, "description": "JSONPath into the labels or state"},
	"source": map[string]any{"type": "string", "enum": []string{"frame", "state"}, "default": "frame"},
	"equals": map[string]any{"description": "Match only when the value prints the same"},
}

func withProbe(extra map[string]any) map[string]any {
	props := make(map[string]any, len(probeProperties)+len(extra))
	for k, v := range probeProperties {
		props[k] = v
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// CheckNodeBuilder builds nodes that branch on whether a label is present.
type CheckNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *CheckNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "check",
		Category:    "vision",
		Description: "Takes a screenshot and succeeds when the path matches, fails otherwise",
		Statuses:    []string{string(StatusNotFound), string(StatusScreenshotFailed)},
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": withProbe(map[string]any{
				"found_status":   map[string]any{"type": "string"},
				"missing_status": map[string]any{"type": "string"},
			}),
			"required":             []string{"path"},
			"additionalProperties": false,
		},
		Examples: []Example{
			{
				Name:        "Stamina check",
				Description: "Branch when stamina is empty",
				Config: map[string]any{
					"path":         "$.stamina",
					"equals":       0,
					"found_status": "NO_STAMINA",
				},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a check node from a definition. The matched value is the
// result data.
func (b *CheckNodeBuilder) Build(def *definition.NodeDefinition, _ *definition.Loader) (operation.NodeBody, error) {
	p, err := newProbe(def.Config)
	if err != nil {
		return nil, err
	}
	found := operation.Status(stringValue(def.Config, "found_status", ""))
	missing := operation.Status(stringValue(def.Config, "missing_status", string(StatusNotFound)))

	return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
		v, ok, err := p.look(ctx, bot)
		if err != nil {
			bot.Logger.Error(ctx, "screenshot failed", "node", def.Name, "error", err)
			return operation.Retry(StatusScreenshotFailed, time.Second)
		}
		if !ok {
			return operation.Fail(missing, nil)
		}
		return operation.Success(found, v)
	}), nil
}

// WaitForNodeBuilder builds nodes that poll until a label shows up.
type WaitForNodeBuilder struct{}

// Metadata returns the node metadata.
func (b *WaitForNodeBuilder) Metadata() NodeMetadata {
	return NodeMetadata{
		Type:        "wait_for",
		Category:    "vision",
		Description: "Polls the screen until the path matches. Polling does not use up retries; bound it with the node timeout",
		Statuses:    []string{"WAITING", string(StatusScreenshotFailed)},
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": withProbe(map[string]any{
				"interval":     durationSchema,
				"status":       map[string]any{"type": "string"},
				"found_status": map[string]any{"type": "string"},
			}),
			"required":             []string{"path"},
			"additionalProperties": false,
		},
		Examples: []Example{
			{
				Name:        "Loading screen",
				Description: "Wait until the main menu is recognized",
				Config:      map[string]any{"path": "$.scene", "equals": "main_menu", "interval": "1s"},
			},
		},
		Since: "1.0.0",
	}
}

// Build creates a wait_for node from a definition.
func (b *WaitForNodeBuilder) Build(def *definition.NodeDefinition, _ *definition.Loader) (operation.NodeBody, error) {
	p, err := newProbe(def.Config)
	if err != nil {
		return nil, err
	}
	interval, err := durationValue(def.Config, "interval", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	waiting := operation.Status(stringValue(def.Config, "status", "WAITING"))
	found := operation.Status(stringValue(def.Config, "found_status", ""))

	return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
		v, ok, err := p.look(ctx, bot)
		if err != nil {
			bot.Logger.Error(ctx, "screenshot failed", "node", def.Name, "error", err)
			return operation.Retry(StatusScreenshotFailed, interval)
		}
		if !ok {
			return operation.Wait(waiting, interval)
		}
		return operation.Success(found, v)
	}), nil
}
