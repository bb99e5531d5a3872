// Package builtin provides the node types available to YAML graphs.
package builtin

import (
	"errors"
	"fmt"
	"sort"

	"github.com/agentstation/operation"
	"github.com/agentstation/operation/definition"
)

// ErrInvalidConfig is returned when a node config does not match the schema
// of its type.
var ErrInvalidConfig = errors.New("invalid node config")

// Statuses produced by builtin nodes on their own.
const (
	StatusScreenshotFailed operation.Status = "SCREENSHOT_FAILED"
	StatusInputFailed      operation.Status = "INPUT_FAILED"
	StatusNotFound         operation.Status = "NOT_FOUND"
	StatusScriptError      operation.Status = "SCRIPT_ERROR"
)

func init() {
	operation.ReserveStatus(StatusScreenshotFailed, StatusInputFailed, StatusNotFound, StatusScriptError)
}

// NodeBuilder creates node bodies and provides metadata.
type NodeBuilder interface {
	Metadata() NodeMetadata
	Build(def *definition.NodeDefinition, loader *definition.Loader) (operation.NodeBody, error)
}

// Registry manages all built-in nodes.
type Registry struct {
	builders map[string]NodeBuilder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]NodeBuilder),
	}
}

// Register adds a node builder.
func (r *Registry) Register(builder NodeBuilder) {
	r.builders[builder.Metadata().Type] = builder
}

// Get returns a builder by type.
func (r *Registry) Get(nodeType string) (NodeBuilder, bool) {
	builder, exists := r.builders[nodeType]
	return builder, exists
}

// All returns the metadata of every registered builder, sorted by type.
func (r *Registry) All() []NodeMetadata {
	metas := make([]NodeMetadata, 0, len(r.builders))
	for _, b := range r.builders {
		metas = append(metas, b.Metadata())
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Type < metas[j].Type })
	return metas
}

// Default returns a registry holding every built-in node type.
func Default() *Registry {
	registry := NewRegistry()

	// flow
	registry.Register(&ResultNodeBuilder{})
	registry.Register(&DelayNodeBuilder{})
	registry.Register(&SubNodeBuilder{})

	// vision
	registry.Register(&CheckNodeBuilder{})
	registry.Register(&WaitForNodeBuilder{})

	// input
	registry.Register(&ClickNodeBuilder{})
	registry.Register(&PressNodeBuilder{})
	registry.Register(&SwipeNodeBuilder{})

	// state and scripting
	registry.Register(&SetNodeBuilder{})
	registry.Register(&ScriptNodeBuilder{})

	return registry
}

// RegisterAll registers every built-in node with loader and returns the
// registry used.
func RegisterAll(loader *definition.Loader) *Registry {
	registry := Default()
	registry.Install(loader)
	return registry
}

// Install registers the builders of r with loader, validating each node
// config against its schema first.
func (r *Registry) Install(loader *definition.Loader) {
	for _, builder := range r.builders {
		loader.RegisterNodeType(builder.Metadata().Type, validating(builder))
	}
}

func validating(builder NodeBuilder) definition.NodeBuilder {
	return func(def *definition.NodeDefinition, loader *definition.Loader) (operation.NodeBody, error) {
		meta := builder.Metadata()
		if err := ValidateNodeConfig(&meta, def.Config); err != nil {
			return nil, fmt.Errorf("%s config: %w", meta.Type, err)
		}
		return builder.Build(def, loader)
	}
}
