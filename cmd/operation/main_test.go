package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/operation/builtin"
	"github.com/agentstation/operation/definition"
	"github.com/agentstation/operation/record"
)

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeFrame(t *testing.T, dir, name, labels string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name+".png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 2, 2))))
	require.NoError(t, f.Close())
	writeFile(t, dir, name+".yaml", labels)
}

const dailyGraph = `
name: daily
nodes:
  - name: wait-menu
    type: wait_for
    config: {path: "$.scene", equals: menu, interval: 1ms}
  - name: open
    type: click
    config: {label: daily_button}
edges:
  - from: wait-menu
    to: open
`

func TestRunReplay(t *testing.T) {
	dir := t.TempDir()
	graph := writeFile(t, dir, "daily.yaml", dailyGraph)
	frames := filepath.Join(dir, "frames")
	require.NoError(t, os.MkdirAll(frames, 0o755))
	writeFrame(t, frames, "001", "scene: loading\n")
	writeFrame(t, frames, "002", "scene: menu\ndaily_button: [5, 6]\n")
	runs := filepath.Join(dir, "runs.jsonl")
	metrics := filepath.Join(dir, "operation.prom")

	out, err := execute(t, "run", graph,
		"--frames", filepath.Join(frames, "*.png"),
		"--record", runs,
		"--metrics-file", metrics,
		"--output", "json")
	require.NoError(t, err)

	var report runReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Success)
	assert.Equal(t, "daily", report.Operation)
	assert.Equal(t, []string{"wait-menu", "open"}, report.Path)
	assert.Equal(t, 3, report.Invocations)
	assert.Equal(t, []string{"click 5,6"}, report.Actions)

	f, err := os.Open(runs)
	require.NoError(t, err)
	defer f.Close()
	recs, err := record.Read(f)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, report.RunID, recs[0].ID)

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `operation_results_total{operation="daily"`)
	assert.Contains(t, string(prom), "operation_node_invocations_total")
}

func TestRunFailureReturnsError(t *testing.T) {
	dir := t.TempDir()
	graph := writeFile(t, dir, "give-up.yaml", `
name: give-up
nodes:
  - name: end
    type: result
    config: {success: false, status: NO_STAMINA}
`)

	out, err := execute(t, "run", graph)
	require.Error(t, err)
	assert.ErrorIs(t, err, errRunFailed)
	assert.Contains(t, err.Error(), "NO_STAMINA")
	assert.Contains(t, out, "give-up")
}

func TestRunWithLibrary(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib/transport.yaml", `
name: transport
nodes:
  - name: teleport
    type: result
    config: {status: ARRIVED}
`)
	graph := writeFile(t, dir, "farm.yaml", `
name: farm
nodes:
  - name: go
    type: sub
    config: {graph: transport}
`)

	out, err := execute(t, "run", graph, "--library", filepath.Join(dir, "lib", "**", "*.yaml"), "--output", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "status: ARRIVED")

	_, err = execute(t, "run", graph)
	assert.Error(t, err, "sub graph without library must not build")
}

func TestRunGraphShadowedByLibrary(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib/farm.yaml", `
name: farm
nodes:
  - name: old
    type: result
    config: {status: OLD}
`)
	graph := writeFile(t, dir, "farm.yaml", `
name: farm
nodes:
  - name: new
    type: result
    config: {status: NEW}
`)

	_, err := execute(t, "run", graph, "--library", filepath.Join(dir, "lib", "*.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, definition.ErrDuplicateGraph)

	out, err := execute(t, "run", graph, "--library", filepath.Join(dir, "*.yaml"), "--output", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "status: NEW")
}

func TestRunDryRun(t *testing.T) {
	dir := t.TempDir()
	graph := writeFile(t, dir, "daily.yaml", dailyGraph)

	out, err := execute(t, "run", graph, "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, "daily: ok (2 nodes)\n", out)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "graphs/daily.yaml", dailyGraph)
	writeFile(t, dir, "graphs/extra/island.yaml", `
name: island
nodes:
  - name: a
    type: result
  - name: b
    type: result
`)

	out, err := execute(t, "validate", filepath.Join(dir, "graphs", "**", "*.yaml"), "--output", "json")
	require.NoError(t, err)

	var reports []graphReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "daily", reports[0].Graph)
	assert.Empty(t, reports[0].Unreachable)
	assert.Equal(t, "island", reports[1].Graph)
	assert.Equal(t, []string{"b"}, reports[1].Unreachable)

	writeFile(t, dir, "graphs/broken.yaml", `
name: broken
nodes:
  - name: a
    type: teleport
`)
	out, err = execute(t, "validate", filepath.Join(dir, "graphs", "**", "*.yaml"))
	assert.ErrorIs(t, err, errInvalidGraphs)
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "unknown node type")
}

func TestNodes(t *testing.T) {
	out, err := execute(t, "nodes", "--output", "json")
	require.NoError(t, err)

	var nodes []builtin.NodeMetadata
	require.NoError(t, json.Unmarshal([]byte(out), &nodes))
	assert.Len(t, nodes, len(builtin.Default().All()))

	out, err = execute(t, "nodes")
	require.NoError(t, err)
	assert.Contains(t, out, "Vision:")
	assert.Contains(t, out, "wait_for")

	out, err = execute(t, "nodes", "info", "click")
	require.NoError(t, err)
	assert.Contains(t, out, "Node Type: click")
	assert.Contains(t, out, "label: close_button")

	_, err = execute(t, "nodes", "info", "teleport")
	assert.Error(t, err)
}

func TestVersionAndOutputFlag(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "operation version dev"))

	_, err = execute(t, "version", "--output", "xml")
	assert.Error(t, err)
}
