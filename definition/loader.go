package definition

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/agentstation/operation"
)

var (
	// ErrUnknownNodeType is returned when a node names an unregistered type.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrGraphNotFound is returned when a graph is not in the library.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrDuplicateGraph is returned when two library graphs share a name.
	ErrDuplicateGraph = errors.New("duplicate graph")
)

// NodeBuilder creates the body of a node from its definition. The loader is
// passed so composite nodes can resolve other graphs of the library.
type NodeBuilder func(def *NodeDefinition, loader *Loader) (operation.NodeBody, error)

// Loader turns graph definitions into executable graphs. It also keeps a
// library of named definitions that sub-graph nodes refer to.
type Loader struct {
	mu       sync.Mutex
	builders map[string]NodeBuilder
	library  map[string]*GraphDefinition
	graphs   map[string]*operation.Graph
}

// NewLoader creates a loader with no node types registered.
func NewLoader() *Loader {
	return &Loader{
		builders: make(map[string]NodeBuilder),
		library:  make(map[string]*GraphDefinition),
		graphs:   make(map[string]*operation.Graph),
	}
}

// RegisterNodeType registers a builder for a node type.
func (l *Loader) RegisterNodeType(nodeType string, builder NodeBuilder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.builders[nodeType] = builder
}

// NodeTypes returns the registered node types, sorted.
func (l *Loader) NodeTypes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	types := make([]string, 0, len(l.builders))
	for t := range l.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Add validates def and puts it into the library.
func (l *Loader) Add(def *GraphDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, exists := l.library[def.Name]; exists {
		return fmt.Errorf("%w: %s (%s, %s)", ErrDuplicateGraph, def.Name, prev.Source, def.Source)
	}
	l.library[def.Name] = def
	return nil
}

// AddFiles parses the given files into the library.
func (l *Loader) AddFiles(filenames ...string) error {
	for _, f := range filenames {
		def, err := ParseFile(f)
		if err != nil {
			return err
		}
		if err := l.Add(def); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
	}
	return nil
}

// HasGraph reports whether the library holds a graph with the given name.
func (l *Loader) HasGraph(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.library[name]
	return ok
}

// Definition returns the library definition with the given name.
func (l *Loader) Definition(name string) (*GraphDefinition, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	def, ok := l.library[name]
	return def, ok
}

// Definitions returns the library definitions sorted by name.
func (l *Loader) Definitions() []*GraphDefinition {
	l.mu.Lock()
	defer l.mu.Unlock()
	defs := make([]*GraphDefinition, 0, len(l.library))
	for _, d := range l.library {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Graph builds the named library graph. Built graphs are cached.
func (l *Loader) Graph(name string) (*operation.Graph, error) {
	l.mu.Lock()
	if g, ok := l.graphs[name]; ok {
		l.mu.Unlock()
		return g, nil
	}
	def, ok := l.library[name]
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, name)
	}

	g, err := l.Load(def)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.graphs[name]; ok {
		return cached, nil
	}
	l.graphs[name] = g
	return g, nil
}

// LoadFile parses, validates and builds a graph from a YAML file.
func (l *Loader) LoadFile(filename string) (*operation.Graph, error) {
	def, err := ParseFile(filename)
	if err != nil {
		return nil, err
	}
	g, err := l.Load(def)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return g, nil
}

// Load validates def and builds its graph.
func (l *Loader) Load(def *GraphDefinition) (*operation.Graph, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	b := operation.NewBuilder(def.Name)
	for i := range def.Nodes {
		nd := &def.Nodes[i]

		l.mu.Lock()
		builder, ok := l.builders[nd.Type]
		l.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("node %s: %w: %s", nd.Name, ErrUnknownNodeType, nd.Type)
		}

		body, err := builder(nd, l)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nd.Name, err)
		}
		opts, err := nd.Options()
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nd.Name, err)
		}
		b.Node(nd.Name, body, opts...)
	}

	b.Start(def.StartNode())
	for _, s := range def.Statuses {
		b.Statuses(operation.Status(s))
	}
	timeout, err := def.GetTimeout()
	if err != nil {
		return nil, err
	}
	b.Timeout(timeout)

	for i := range def.Edges {
		e := &def.Edges[i]
		b.Edge(e.From, e.To, e.Options()...)
	}

	return b.Build()
}
