package builtin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/operation"
	"github.com/agentstation/operation/builtin/script"
	"github.com/agentstation/operation/definition"
	"github.com/agentstation/operation/internal/testutil"
)

func newLoader(t *testing.T, library ...string) *definition.Loader {
	t.Helper()
	loader := definition.NewLoader()
	RegisterAll(loader)
	for _, src := range library {
		def, err := definition.Parse([]byte(src))
		require.NoError(t, err)
		require.NoError(t, loader.Add(def))
	}
	return loader
}

func load(t *testing.T, loader *definition.Loader, src string) (*operation.Graph, error) {
	t.Helper()
	def, err := definition.Parse([]byte(src))
	require.NoError(t, err)
	return loader.Load(def)
}

func mustLoad(t *testing.T, loader *definition.Loader, src string) *operation.Graph {
	t.Helper()
	g, err := load(t, loader, src)
	require.NoError(t, err)
	return g
}

func TestRegistry(t *testing.T) {
	registry := Default()

	types := make([]string, 0)
	for _, meta := range registry.All() {
		types = append(types, meta.Type)
	}
	assert.Equal(t, []string{
		"check", "click", "delay", "press", "result",
		"script", "set", "sub", "swipe", "wait_for",
	}, types)

	_, ok := registry.Get("click")
	assert.True(t, ok)
	_, ok = registry.Get("teleport")
	assert.False(t, ok)

	loader := definition.NewLoader()
	registry.Install(loader)
	assert.Equal(t, types, loader.NodeTypes())
}

func TestExamplesMatchSchemas(t *testing.T) {
	for _, meta := range Default().All() {
		meta := meta
		for _, ex := range meta.Examples {
			t.Run(meta.Type+"/"+ex.Name, func(t *testing.T) {
				assert.NoError(t, ValidateNodeConfig(&meta, ex.Config))
			})
		}
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"click without target", `{delay: 1s}`},
		{"click with both targets", `{x: 1, y: 2, label: ok}`},
		{"unknown property", `{label: ok, button: right}`},
		{"bad duration", `{label: ok, delay: soon}`},
	}

	loader := newLoader(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, loader, `
name: bad
nodes:
  - name: tap
    type: click
    config: `+tt.config+`
`)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

const dailyReward = `
name: daily-reward
nodes:
  - name: wait-menu
    type: wait_for
    timeout: 5s
    config:
      path: "$.scene"
      equals: menu
      interval: 100ms
  - name: already-claimed
    type: check
    config:
      path: "$.daily_claimed"
      source: state
      found_status: DONE
  - name: open
    type: click
    config:
      label: daily_button
  - name: scroll
    type: swipe
    config:
      from: [10, 20]
      to: {x: 10, y: 5}
  - name: back
    type: press
    config:
      key: esc
  - name: mark
    type: set
    config:
      key: daily_claimed
      value: true
edges:
  - from: wait-menu
    to: already-claimed
  - from: already-claimed
    to: open
    on: fail
  - from: open
    to: scroll
  - from: scroll
    to: back
  - from: back
    to: mark
`

func TestDailyRewardGraph(t *testing.T) {
	ctx := context.Background()
	g := mustLoad(t, newLoader(t), dailyReward)

	screen := testutil.NewFakeScreen(
		map[string]any{"scene": "loading"},
		map[string]any{"scene": "menu", "daily_button": []any{100, 200}},
	)
	input := testutil.NewRecordingInput()
	bot := operation.NewContext(operation.WithScreen(screen), operation.WithInput(input))
	clock := testutil.NewFakeClock()
	op := operation.New(g, bot, operation.WithClock(clock))

	result := op.Execute(ctx)
	require.True(t, result.Success, "result: %s", result)
	assert.Equal(t, operation.Status(""), result.Status)
	assert.Equal(t, []string{"wait-menu", "already-claimed", "open", "scroll", "back", "mark"}, op.Path())
	assert.Equal(t, []string{
		"click 100,200",
		"swipe 10,20->10,5 300ms",
		"press esc",
	}, input.Actions())

	claimed, ok := bot.State.Get(ctx, "daily_claimed")
	require.True(t, ok)
	assert.Equal(t, true, claimed)

	// The cached flag short-circuits the second run.
	result = op.Execute(ctx)
	assert.True(t, result.Success)
	assert.Equal(t, operation.Status("DONE"), result.Status)
	assert.Equal(t, []string{"wait-menu", "already-claimed"}, op.Path())
	assert.Len(t, input.Actions(), 3)
}

func TestWaitForTimesOut(t *testing.T) {
	g := mustLoad(t, newLoader(t), `
name: stuck
nodes:
  - name: wait
    type: wait_for
    timeout: 1s
    config:
      path: "$.scene"
      equals: menu
      interval: 250ms
`)
	screen := testutil.NewFakeScreen(map[string]any{"scene": "loading"})
	bot := operation.NewContext(operation.WithScreen(screen))
	op := operation.New(g, bot, operation.WithClock(testutil.NewFakeClock()))

	result := op.Execute(context.Background())
	assert.False(t, result.Success)
	assert.Equal(t, operation.StatusTimeout, result.Status)
	assert.Equal(t, operation.Status("WAITING"), result.Data)
	assert.Equal(t, 5, screen.Shots())
}

func TestFlowNodes(t *testing.T) {
	ctx := context.Background()

	t.Run("result", func(t *testing.T) {
		g := mustLoad(t, newLoader(t), `
name: give-up
nodes:
  - name: end
    type: result
    config: {success: false, status: GAVE_UP, data: no stamina}
`)
		result := operation.New(g, nil).Execute(ctx)
		assert.Equal(t, operation.Result{Success: false, Status: "GAVE_UP", Data: "no stamina"}, result)
	})

	t.Run("delay", func(t *testing.T) {
		g := mustLoad(t, newLoader(t), `
name: pause
nodes:
  - name: pause
    type: delay
    config: {duration: 2s, status: RESTED}
`)
		clock := testutil.NewFakeClock()
		start := clock.Now()
		result := operation.New(g, nil, operation.WithClock(clock)).Execute(ctx)
		assert.True(t, result.Success)
		assert.Equal(t, operation.Status("RESTED"), result.Status)
		assert.Equal(t, 2*time.Second, clock.Now().Sub(start))
	})
}

func TestSubNode(t *testing.T) {
	const transport = `
name: transport
nodes:
  - name: teleport
    type: result
    config: {success: false, status: LOCKED}
`
	const farm = `
name: farm
nodes:
  - name: go
    type: sub
    config: {graph: transport}
  - name: walk
    type: set
    config: {key: walked, value: true, status: WALKED}
edges:
  - from: go
    to: walk
    on: fail
    status: LOCKED
`
	loader := newLoader(t, transport, farm)
	g, err := loader.Graph("farm")
	require.NoError(t, err)

	bot := operation.NewContext()
	result := operation.New(g, bot).Execute(context.Background())
	assert.True(t, result.Success)
	assert.Equal(t, operation.Status("WALKED"), result.Status)

	t.Run("missing graph", func(t *testing.T) {
		_, err := load(t, newLoader(t), `
name: orphan
nodes:
  - name: go
    type: sub
    config: {graph: nowhere}
`)
		assert.ErrorIs(t, err, definition.ErrGraphNotFound)
	})
}

func single(t *testing.T, nodeType, config string) *operation.Graph {
	t.Helper()
	return mustLoad(t, newLoader(t), `
name: single
nodes:
  - name: only
    type: `+nodeType+`
    config: `+config+`
`)
}

func TestInputFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("no input controller", func(t *testing.T) {
		g := single(t, "press", `{key: esc}`)
		result := operation.New(g, nil).Execute(ctx)
		assert.False(t, result.Success)
		assert.Equal(t, StatusInputFailed, result.Status)
	})

	t.Run("label not on screen", func(t *testing.T) {
		g := single(t, "click", `{label: close_button}`)
		bot := operation.NewContext(
			operation.WithScreen(testutil.NewFakeScreen(map[string]any{"scene": "menu"})),
			operation.WithInput(testutil.NewRecordingInput()),
		)
		result := operation.New(g, bot).Execute(ctx)
		assert.False(t, result.Success)
		assert.Equal(t, StatusNotFound, result.Status)
		assert.Equal(t, "close_button", result.Data)
	})

	t.Run("screenshot error exhausts retries", func(t *testing.T) {
		g := single(t, "check", `{path: "$.scene"}`)
		screen := testutil.NewFakeScreen()
		screen.Err = errors.New("window minimized")
		bot := operation.NewContext(operation.WithScreen(screen))
		op := operation.New(g, bot, operation.WithClock(testutil.NewFakeClock()))

		result := op.Execute(ctx)
		assert.False(t, result.Success)
		assert.Equal(t, operation.StatusMaxRetriesExceeded, result.Status)
		assert.Equal(t, StatusScreenshotFailed, result.Data)
		assert.Equal(t, 1, op.Invocations())
	})
}

func TestCheckEquals(t *testing.T) {
	g := single(t, "check", `{path: "$.stamina", equals: 0, found_status: NO_STAMINA, missing_status: HAS_STAMINA}`)

	tests := []struct {
		stamina any
		success bool
		status  operation.Status
	}{
		{0, true, "NO_STAMINA"},
		{uint64(0), true, "NO_STAMINA"},
		{42, false, "HAS_STAMINA"},
	}
	for _, tt := range tests {
		screen := testutil.NewFakeScreen(map[string]any{"stamina": tt.stamina})
		bot := operation.NewContext(operation.WithScreen(screen))
		result := operation.New(g, bot).Execute(context.Background())
		assert.Equal(t, tt.success, result.Success, "stamina %v", tt.stamina)
		assert.Equal(t, tt.status, result.Status, "stamina %v", tt.stamina)
	}
}

func TestScriptNode(t *testing.T) {
	ctx := context.Background()

	t.Run("inline", func(t *testing.T) {
		g := single(t, "script", `{source: "function run(input) return input.state.mode end"}`)
		bot := operation.NewContext()
		require.NoError(t, bot.State.Set(ctx, "mode", "ARENA"))
		result := operation.New(g, bot).Execute(ctx)
		assert.True(t, result.Success)
		assert.Equal(t, operation.Status("ARENA"), result.Status)
	})

	t.Run("runtime error", func(t *testing.T) {
		g := single(t, "script", `{source: "function run(input) error('boom') end"}`)
		result := operation.New(g, nil).Execute(ctx)
		assert.False(t, result.Success)
		assert.Equal(t, StatusScriptError, result.Status)
		assert.Contains(t, result.Data, "boom")
	})

	t.Run("missing run", func(t *testing.T) {
		_, err := load(t, newLoader(t), `
name: broken
nodes:
  - name: only
    type: script
    config: {source: "local x = 1"}
`)
		assert.ErrorIs(t, err, script.ErrNoRun)
	})
}

func TestSetNullDeletes(t *testing.T) {
	ctx := context.Background()
	g := single(t, "set", `{key: daily_claimed, value: null}`)
	bot := operation.NewContext()
	require.NoError(t, bot.State.Set(ctx, "daily_claimed", true))

	result := operation.New(g, nil).Execute(ctx)
	assert.True(t, result.Success)

	result = operation.New(g, bot).Execute(ctx)
	assert.True(t, result.Success)
	_, ok := bot.State.Get(ctx, "daily_claimed")
	assert.False(t, ok)
}
