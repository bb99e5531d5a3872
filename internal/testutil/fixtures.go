package testutil

import (
	"github.com/agentstation/operation"
)

// BranchGraph builds the graph
//
//	A --success,"X"--> B
//	A --success,*----> C
//	A --fail---------> D
//
// with A replaying the given results. B, C and D succeed immediately.
func BranchGraph(trace *Trace, a ...operation.RoundResult) (*operation.Graph, error) {
	return operation.NewBuilder("branch").
		Node("A", Script("A", trace, a...)).
		Node("B", Script("B", trace)).
		Node("C", Script("C", trace)).
		Node("D", Script("D", trace)).
		Edge("A", "B", operation.OnStatus("X")).
		Edge("A", "C").
		Edge("A", "D", operation.OnFail()).
		Build()
}

// Linear builds a graph whose nodes succeed in sequence, each wired to the
// next by a wildcard success edge.
func Linear(name string, trace *Trace, nodes ...string) (*operation.Graph, error) {
	b := operation.NewBuilder(name)
	for _, n := range nodes {
		b.Node(n, Script(n, trace))
	}
	for i := 1; i < len(nodes); i++ {
		b.Edge(nodes[i-1], nodes[i])
	}
	return b.Build()
}
