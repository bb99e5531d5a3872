package definition

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/operation"
)

const claimMail = `
name: claim-mail
description: Claims every mail attachment
timeout: 2m
statuses: [EMPTY, CLAIMED]
nodes:
  - name: open
    type: fixed
    max_retries: 3
    timeout: 10s
    backoff:
      initial: 100ms
      max: 1s
      jitter: true
  - name: claim
    type: fixed
    config:
      status: CLAIMED
  - name: close
    type: fixed
edges:
  - from: open
    to: claim
  - from: open
    to: close
    on: fail
    status: EMPTY
  - from: claim
    to: close
`

// fixed returns Success with the configured status.
func fixed(def *NodeDefinition, _ *Loader) (operation.NodeBody, error) {
	status, _ := def.Config["status"].(string)
	return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
		return operation.Success(operation.Status(status), nil)
	}), nil
}

func newTestLoader() *Loader {
	l := NewLoader()
	l.RegisterNodeType("fixed", fixed)
	return l
}

func TestParse(t *testing.T) {
	def, err := Parse([]byte(claimMail))
	require.NoError(t, err)

	assert.Equal(t, "claim-mail", def.Name)
	assert.Equal(t, "open", def.StartNode())
	assert.Equal(t, []string{"EMPTY", "CLAIMED"}, def.Statuses)
	require.Len(t, def.Nodes, 3)
	require.NotNil(t, def.Nodes[0].MaxRetries)
	assert.Equal(t, 3, *def.Nodes[0].MaxRetries)
	assert.Equal(t, "100ms", def.Nodes[0].Backoff.Initial)
	assert.True(t, def.Nodes[0].Backoff.Jitter)

	opts, err := def.Nodes[0].Options()
	require.NoError(t, err)
	assert.Len(t, opts, 4)

	require.Len(t, def.Edges, 3)
	assert.Nil(t, def.Edges[0].Status)
	require.NotNil(t, def.Edges[1].Status)
	assert.Equal(t, "EMPTY", *def.Edges[1].Status)
	assert.Equal(t, "fail", def.Edges[1].On)

	timeout, err := def.GetTimeout()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, timeout)
}

func TestParseError(t *testing.T) {
	_, err := Parse([]byte("name: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	def, err := Parse([]byte(claimMail))
	require.NoError(t, err)

	g, err := newTestLoader().Load(def)
	require.NoError(t, err)

	assert.Equal(t, "claim-mail", g.Name())
	assert.Equal(t, 2*time.Minute, g.Timeout())
	assert.Equal(t, []operation.Status{"CLAIMED", "EMPTY"}, g.Statuses())

	open, ok := g.Node("open")
	require.True(t, ok)
	assert.Equal(t, 3, open.MaxRetries())
	assert.Equal(t, 10*time.Second, open.Timeout())

	edges := g.Outgoing("open")
	require.Len(t, edges, 2)
	assert.True(t, edges[0].Wildcard)
	assert.False(t, edges[1].ExpectedSuccess)
	assert.Equal(t, operation.Status("EMPTY"), edges[1].ExpectedStatus)

	op := operation.New(g, nil)
	result := op.Execute(context.Background())
	assert.True(t, result.Success)
	assert.Equal(t, []string{"open", "claim", "close"}, op.Path())
}

func TestLoadUnknownType(t *testing.T) {
	def, err := Parse([]byte(`
name: g
nodes:
  - name: a
    type: teleport
`))
	require.NoError(t, err)

	_, err = newTestLoader().Load(def)
	assert.ErrorIs(t, err, ErrUnknownNodeType)
}

func TestValidate(t *testing.T) {
	neg := -1
	empty := ""
	undeclared := "NOPE"
	reserved := string(operation.StatusTimeout)
	node := func(name string) NodeDefinition { return NodeDefinition{Name: name, Type: "fixed"} }

	tests := []struct {
		name    string
		def     GraphDefinition
		wantErr bool
	}{
		{
			name: "valid",
			def:  GraphDefinition{Name: "g", Nodes: []NodeDefinition{node("a")}},
		},
		{
			name:    "missing name",
			def:     GraphDefinition{Nodes: []NodeDefinition{node("a")}},
			wantErr: true,
		},
		{
			name:    "no nodes",
			def:     GraphDefinition{Name: "g"},
			wantErr: true,
		},
		{
			name:    "bad timeout",
			def:     GraphDefinition{Name: "g", Timeout: "soon", Nodes: []NodeDefinition{node("a")}},
			wantErr: true,
		},
		{
			name:    "duplicate node",
			def:     GraphDefinition{Name: "g", Nodes: []NodeDefinition{node("a"), node("a")}},
			wantErr: true,
		},
		{
			name:    "missing type",
			def:     GraphDefinition{Name: "g", Nodes: []NodeDefinition{{Name: "a"}}},
			wantErr: true,
		},
		{
			name:    "negative retries",
			def:     GraphDefinition{Name: "g", Nodes: []NodeDefinition{{Name: "a", Type: "fixed", MaxRetries: &neg}}},
			wantErr: true,
		},
		{
			name:    "backoff without initial",
			def:     GraphDefinition{Name: "g", Nodes: []NodeDefinition{{Name: "a", Type: "fixed", Backoff: &BackoffDefinition{}}}},
			wantErr: true,
		},
		{
			name:    "unknown start",
			def:     GraphDefinition{Name: "g", Start: "b", Nodes: []NodeDefinition{node("a")}},
			wantErr: true,
		},
		{
			name:    "edge to unknown node",
			def:     GraphDefinition{Name: "g", Nodes: []NodeDefinition{node("a")}, Edges: []EdgeDefinition{{From: "a", To: "b"}}},
			wantErr: true,
		},
		{
			name:    "bad on",
			def:     GraphDefinition{Name: "g", Nodes: []NodeDefinition{node("a")}, Edges: []EdgeDefinition{{From: "a", To: "a", On: "maybe"}}},
			wantErr: true,
		},
		{
			name: "undeclared edge status",
			def: GraphDefinition{Name: "g", Statuses: []string{"OK"}, Nodes: []NodeDefinition{node("a")},
				Edges: []EdgeDefinition{{From: "a", To: "a", Status: &undeclared}}},
			wantErr: true,
		},
		{
			name: "reserved and empty statuses are always allowed",
			def: GraphDefinition{Name: "g", Statuses: []string{"OK"}, Nodes: []NodeDefinition{node("a")},
				Edges: []EdgeDefinition{
					{From: "a", To: "a", On: "fail", Status: &reserved},
					{From: "a", To: "a", Status: &empty},
				}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLibrary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claim-mail.yaml")
	require.NoError(t, os.WriteFile(path, []byte(claimMail), 0o600))

	l := newTestLoader()
	require.NoError(t, l.AddFiles(path))
	assert.True(t, l.HasGraph("claim-mail"))

	first, err := l.Graph("claim-mail")
	require.NoError(t, err)
	second, err := l.Graph("claim-mail")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = l.Graph("missing")
	assert.ErrorIs(t, err, ErrGraphNotFound)

	err = l.AddFiles(path)
	assert.ErrorIs(t, err, ErrDuplicateGraph)

	defs := l.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, path, defs[0].Source)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "g.yaml")
	require.NoError(t, os.WriteFile(path, []byte(claimMail), 0o600))

	g, err := newTestLoader().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "claim-mail", g.Name())

	_, err = newTestLoader().LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestNodeTypes(t *testing.T) {
	l := newTestLoader()
	l.RegisterNodeType("alpha", fixed)
	assert.Equal(t, []string{"alpha", "fixed"}, l.NodeTypes())
}
