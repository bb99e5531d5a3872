package operation

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/zeebo/blake3"
)

// Graph is the immutable node/edge set of one task type plus its start node.
// One Graph can back any number of Operations, including concurrent ones.
type Graph struct {
	name     string
	start    string
	order    []string
	nodes    map[string]*Node
	edges    map[string][]Edge
	statuses map[Status]bool
	timeout  time.Duration
}

// Name returns the graph's identifier.
func (g *Graph) Name() string {
	return g.name
}

// StartNode returns the start node.
func (g *Graph) StartNode() *Node {
	return g.nodes[g.start]
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns the nodes in declaration order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, name := range g.order {
		nodes = append(nodes, g.nodes[name])
	}
	return nodes
}

// Outgoing returns the edges leaving the named node in declaration order.
func (g *Graph) Outgoing(name string) []Edge {
	edges := g.edges[name]
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

// Statuses returns the declared status set, sorted. It is empty for graphs
// that accept any status.
func (g *Graph) Statuses() []Status {
	out := make([]Status, 0, len(g.statuses))
	for s := range g.statuses {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Closed reports whether the graph declared a closed status set.
func (g *Graph) Closed() bool {
	return len(g.statuses) > 0
}

// Timeout returns the default whole-run timeout declared with the graph.
func (g *Graph) Timeout() time.Duration {
	return g.timeout
}

// accepts reports whether status may appear in a result of this graph.
func (g *Graph) accepts(status Status) bool {
	if !g.Closed() || status == "" || status.Reserved() {
		return true
	}
	return g.statuses[status]
}

// Unreachable returns the nodes that cannot be reached from the start node,
// in declaration order.
func (g *Graph) Unreachable() []string {
	seen := map[string]bool{g.start: true}
	queue := []string{g.start}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, e := range g.edges[name] {
			if !seen[e.To] {
				seen[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}

	var out []string
	for _, name := range g.order {
		if !seen[name] {
			out = append(out, name)
		}
	}
	return out
}

// Fingerprint returns a stable digest of the graph structure. Two graphs with
// the same nodes, limits, edges and start share a fingerprint.
func (g *Graph) Fingerprint() string {
	h := blake3.New()
	fmt.Fprintf(h, "graph %q start %q timeout %d\n", g.name, g.start, g.timeout)
	for _, name := range g.order {
		n := g.nodes[name]
		fmt.Fprintf(h, "node %q retries %d timeout %d\n", name, n.opts.maxRetries, n.opts.timeout)
		for _, e := range g.edges[name] {
			fmt.Fprintf(h, "edge %d %q->%q success=%t status=%q wildcard=%t\n",
				e.order, e.From, e.To, e.ExpectedSuccess, e.ExpectedStatus, e.Wildcard)
		}
	}
	for _, s := range g.Statuses() {
		fmt.Fprintf(h, "status %q\n", s)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Builder provides a fluent API for declaring graphs. Errors are collected
// and reported by Build.
type Builder struct {
	name     string
	start    string
	order    []string
	nodes    map[string]*Node
	edges    []Edge
	statuses []Status
	timeout  time.Duration
	errs     []error
}

// NewBuilder creates a builder for a graph with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:  name,
		nodes: make(map[string]*Node),
	}
}

// Node declares a node. The first declared node is the start node unless
// Start names another one.
func (b *Builder) Node(name string, body NodeBody, opts ...NodeOption) *Builder {
	switch {
	case name == "":
		b.errs = append(b.errs, &ValidationError{Op: "node", Err: fmt.Errorf("%w: empty name", ErrNodeNotFound)})
		return b
	case body == nil:
		b.errs = append(b.errs, &ValidationError{Op: "node", Node: name, Err: ErrNilBody})
		return b
	}
	if _, exists := b.nodes[name]; exists {
		b.errs = append(b.errs, &ValidationError{Op: "node", Node: name, Err: ErrDuplicateNode})
		return b
	}

	b.nodes[name] = newNode(name, body, opts...)
	b.order = append(b.order, name)
	if b.start == "" {
		b.start = name
	}
	return b
}

// Func declares a node whose body is an ordinary function.
func (b *Builder) Func(name string, fn func(ctx context.Context, bot *Context) RoundResult, opts ...NodeOption) *Builder {
	if fn == nil {
		return b.Node(name, nil, opts...)
	}
	return b.Node(name, NodeFunc(fn), opts...)
}

// Start sets the start node.
func (b *Builder) Start(name string) *Builder {
	b.start = name
	return b
}

// Edge declares a transition from one node to another. Declaration order
// breaks ties between equally specific edges.
func (b *Builder) Edge(from, to string, opts ...EdgeOption) *Builder {
	b.edges = append(b.edges, newEdge(from, to, opts...))
	return b
}

// Statuses declares the closed set of statuses this graph's nodes produce.
// Once declared, edges may only expect these statuses and results with
// other non-engine statuses fail with StatusUndeclared.
func (b *Builder) Statuses(statuses ...Status) *Builder {
	b.statuses = append(b.statuses, statuses...)
	return b
}

// Timeout sets the default whole-run timeout for operations on this graph.
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.timeout = d
	return b
}

// Build validates the declaration and creates the graph.
func (b *Builder) Build() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if b.start == "" {
		return nil, &ValidationError{Op: "start", Err: ErrNoStartNode}
	}
	if _, ok := b.nodes[b.start]; !ok {
		return nil, &ValidationError{Op: "start", Node: b.start, Err: ErrNodeNotFound}
	}

	g := &Graph{
		name:     b.name,
		start:    b.start,
		order:    append([]string(nil), b.order...),
		nodes:    make(map[string]*Node, len(b.nodes)),
		edges:    make(map[string][]Edge),
		statuses: make(map[Status]bool, len(b.statuses)),
		timeout:  b.timeout,
	}
	for name, n := range b.nodes {
		g.nodes[name] = n
	}
	for _, s := range b.statuses {
		if s != "" {
			g.statuses[s] = true
		}
	}

	for _, e := range b.edges {
		if _, ok := b.nodes[e.From]; !ok {
			return nil, &ValidationError{Op: "edge", Node: e.From, Err: ErrNodeNotFound}
		}
		if _, ok := b.nodes[e.To]; !ok {
			return nil, &ValidationError{Op: "edge", Node: e.To, Err: ErrNodeNotFound}
		}
		if !e.Wildcard && !g.accepts(e.ExpectedStatus) {
			return nil, &ValidationError{
				Op:   "edge",
				Node: e.From,
				Err:  fmt.Errorf("%w: %q", ErrUndeclaredStatus, e.ExpectedStatus),
			}
		}
		e.order = len(g.edges[e.From])
		g.edges[e.From] = append(g.edges[e.From], e)
	}

	return g, nil
}
