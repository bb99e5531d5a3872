// Package definition provides YAML-based graph definitions for operations.
package definition

import (
	"errors"
	"fmt"
	"time"

	"github.com/agentstation/operation"
)

// ErrInvalid is wrapped by every validation error of a definition.
var ErrInvalid = errors.New("invalid graph definition")

// GraphDefinition represents a complete graph defined in YAML.
type GraphDefinition struct {
	Name        string           `yaml:"name" json:"name"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Timeout     string           `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Start       string           `yaml:"start,omitempty" json:"start,omitempty"`
	Statuses    []string         `yaml:"statuses,omitempty" json:"statuses,omitempty"`
	Nodes       []NodeDefinition `yaml:"nodes" json:"nodes"`
	Edges       []EdgeDefinition `yaml:"edges,omitempty" json:"edges,omitempty"`

	// Source is the file the definition was read from, if any.
	Source string `yaml:"-" json:"-"`
}

// NodeDefinition represents a node in YAML format.
type NodeDefinition struct {
	Name        string             `yaml:"name" json:"name"`
	Type        string             `yaml:"type" json:"type"`
	Description string             `yaml:"description,omitempty" json:"description,omitempty"`
	Config      map[string]any     `yaml:"config,omitempty" json:"config,omitempty"`
	MaxRetries  *int               `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	Timeout     string             `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Backoff     *BackoffDefinition `yaml:"backoff,omitempty" json:"backoff,omitempty"`
}

// BackoffDefinition represents retry backoff in YAML.
type BackoffDefinition struct {
	Initial    string  `yaml:"initial" json:"initial"`
	Max        string  `yaml:"max,omitempty" json:"max,omitempty"`
	Multiplier float64 `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`
	Jitter     bool    `yaml:"jitter,omitempty" json:"jitter,omitempty"`
}

// EdgeDefinition represents a transition between nodes. On is "success"
// (the default) or "fail". A missing status makes the edge a wildcard;
// status: "" matches the empty status exactly.
type EdgeDefinition struct {
	From   string  `yaml:"from" json:"from"`
	To     string  `yaml:"to" json:"to"`
	On     string  `yaml:"on,omitempty" json:"on,omitempty"`
	Status *string `yaml:"status,omitempty" json:"status,omitempty"`
}

const (
	onSuccess = "success"
	onFail    = "fail"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks if the graph definition is valid. It does not resolve
// node types; Loader.Load does.
func (gd *GraphDefinition) Validate() error {
	if gd.Name == "" {
		return invalid("graph name is required")
	}
	if len(gd.Nodes) == 0 {
		return invalid("graph %s: at least one node is required", gd.Name)
	}
	if _, err := parseDuration(gd.Timeout); err != nil {
		return invalid("graph %s: timeout: %v", gd.Name, err)
	}

	nodes := make(map[string]bool, len(gd.Nodes))
	for i := range gd.Nodes {
		node := &gd.Nodes[i]
		if node.Name == "" {
			return invalid("graph %s: node %d: name is required", gd.Name, i)
		}
		if nodes[node.Name] {
			return invalid("graph %s: duplicate node %s", gd.Name, node.Name)
		}
		nodes[node.Name] = true
		if err := node.Validate(); err != nil {
			return invalid("graph %s: node %s: %v", gd.Name, node.Name, err)
		}
	}

	if gd.Start != "" && !nodes[gd.Start] {
		return invalid("graph %s: start node %s not found", gd.Name, gd.Start)
	}

	declared := make(map[string]bool, len(gd.Statuses))
	for _, s := range gd.Statuses {
		declared[s] = true
	}

	for i, edge := range gd.Edges {
		if !nodes[edge.From] {
			return invalid("graph %s: edge %d: from node %s not found", gd.Name, i, edge.From)
		}
		if !nodes[edge.To] {
			return invalid("graph %s: edge %d: to node %s not found", gd.Name, i, edge.To)
		}
		if edge.On != "" && edge.On != onSuccess && edge.On != onFail {
			return invalid("graph %s: edge %d: on must be %q or %q, got %q", gd.Name, i, onSuccess, onFail, edge.On)
		}
		if edge.Status != nil && len(declared) > 0 && *edge.Status != "" &&
			!declared[*edge.Status] && !operation.Status(*edge.Status).Reserved() {
			return invalid("graph %s: edge %d: status %s is not declared", gd.Name, i, *edge.Status)
		}
	}

	return nil
}

// StartNode returns the declared start node, or the first node.
func (gd *GraphDefinition) StartNode() string {
	if gd.Start != "" {
		return gd.Start
	}
	if len(gd.Nodes) > 0 {
		return gd.Nodes[0].Name
	}
	return ""
}

// GetTimeout returns the parsed whole-run timeout.
func (gd *GraphDefinition) GetTimeout() (time.Duration, error) {
	return parseDuration(gd.Timeout)
}

// Validate checks if the node definition is valid.
func (nd *NodeDefinition) Validate() error {
	if nd.Type == "" {
		return fmt.Errorf("type is required")
	}
	if _, err := parseDuration(nd.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if nd.MaxRetries != nil && *nd.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if nd.Backoff != nil {
		if err := nd.Backoff.Validate(); err != nil {
			return fmt.Errorf("invalid backoff: %w", err)
		}
	}
	return nil
}

// GetTimeout returns the parsed per-visit timeout.
func (nd *NodeDefinition) GetTimeout() (time.Duration, error) {
	return parseDuration(nd.Timeout)
}

// Options converts the limits of the definition into node options.
func (nd *NodeDefinition) Options() ([]operation.NodeOption, error) {
	var opts []operation.NodeOption
	if nd.MaxRetries != nil {
		opts = append(opts, operation.WithMaxRetries(*nd.MaxRetries))
	}
	if nd.Timeout != "" {
		d, err := nd.GetTimeout()
		if err != nil {
			return nil, err
		}
		opts = append(opts, operation.WithNodeTimeout(d))
	}
	if nd.Backoff != nil {
		initial, _ := parseDuration(nd.Backoff.Initial)
		maxDelay, _ := parseDuration(nd.Backoff.Max)
		mult := nd.Backoff.Multiplier
		if mult == 0 {
			mult = 2
		}
		opts = append(opts, operation.WithBackoff(initial, maxDelay, mult))
		if nd.Backoff.Jitter {
			opts = append(opts, operation.WithJitter())
		}
	}
	return opts, nil
}

// Validate checks if the backoff definition is valid.
func (bd *BackoffDefinition) Validate() error {
	if bd.Initial == "" {
		return fmt.Errorf("initial is required")
	}
	if _, err := parseDuration(bd.Initial); err != nil {
		return fmt.Errorf("invalid initial: %w", err)
	}
	if _, err := parseDuration(bd.Max); err != nil {
		return fmt.Errorf("invalid max: %w", err)
	}
	if bd.Multiplier < 0 {
		return fmt.Errorf("multiplier cannot be negative")
	}
	return nil
}

// Options converts the edge definition into edge options.
func (ed *EdgeDefinition) Options() []operation.EdgeOption {
	var opts []operation.EdgeOption
	if ed.On == onFail {
		opts = append(opts, operation.OnFail())
	}
	if ed.Status != nil {
		opts = append(opts, operation.OnStatus(operation.Status(*ed.Status)))
	}
	return opts
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
