package builtin

// NodeMetadata describes a node type.
type NodeMetadata struct {
	Type        string `json:"type" yaml:"type"`
	Category    string `json:"category" yaml:"category"`
	Description string `json:"description" yaml:"description"`
	// Statuses lists the statuses the node may produce besides the ones it
	// reads from its config. Graphs with a closed status set must declare them.
	Statuses     []string       `json:"statuses,omitempty" yaml:"statuses,omitempty"`
	ConfigSchema map[string]any `json:"configSchema" yaml:"configSchema"`
	Examples     []Example      `json:"examples,omitempty" yaml:"examples,omitempty"`
	Since        string         `json:"since,omitempty" yaml:"since,omitempty"`
}

// Example shows how to configure a node.
type Example struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Config      map[string]any `json:"config" yaml:"config"`
}
