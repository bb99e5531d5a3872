// Package script runs Lua node bodies in a sandboxed interpreter.
//
// A script defines run(input) and returns either a boolean, a status string
// or a table {mode=, status=, data=, delay_ms=}. input.labels holds the
// labels of the last captured frame and input.state a snapshot of the bot
// state. The functions click, press, swipe, screenshot, label, get, set and
// log drive the bot from inside the script.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Shopify/go-lua"

	"github.com/agentstation/operation"
)

// ErrNoRun is returned when a script does not define run.
var ErrNoRun = errors.New("script does not define run(input)")

// Script represents a loaded Lua script.
type Script struct {
	Name        string
	Path        string
	Description string
	Source      string
}

// New creates and validates a script from source.
func New(name, source string) (*Script, error) {
	s := &Script{Name: name, Source: source}
	parseMetadata(s)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile loads and validates a Lua script. Metadata comments at the top
// of the file (-- @name:, -- @description:) override the file name.
func LoadFile(path string) (*Script, error) {
	content, err := os.ReadFile(path) //nolint:gosec // script paths come from graph files
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	base := filepath.Base(path)
	s := &Script{
		Name:   strings.TrimSuffix(base, filepath.Ext(base)),
		Path:   path,
		Source: string(content),
	}
	parseMetadata(s)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func parseMetadata(s *Script) {
	for _, line := range strings.Split(s.Source, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "--") {
			break
		}
		switch {
		case strings.HasPrefix(line, "-- @name:"):
			s.Name = strings.TrimSpace(strings.TrimPrefix(line, "-- @name:"))
		case strings.HasPrefix(line, "-- @description:"):
			s.Description = strings.TrimSpace(strings.TrimPrefix(line, "-- @description:"))
		}
	}
}

// Validate compiles the script and checks that it defines run.
func (s *Script) Validate() error {
	l := lua.NewState()
	setupSandbox(l)

	if err := lua.LoadString(l, s.Source); err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	l.Pop(1)

	if err := lua.DoString(l, s.Source); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	l.Global("run")
	defer l.Pop(1)
	if l.TypeOf(-1) != lua.TypeFunction {
		return ErrNoRun
	}
	return nil
}

// Run executes run(input) in a fresh sandbox and converts its return value.
func (s *Script) Run(ctx context.Context, bot *operation.Context, input map[string]any) (operation.RoundResult, error) {
	l := lua.NewState()
	setupSandbox(l)
	registerBot(ctx, l, bot)

	if err := lua.DoString(l, s.Source); err != nil {
		return operation.RoundResult{}, fmt.Errorf("script %s: %w", s.Name, err)
	}

	l.Global("run")
	if l.TypeOf(-1) != lua.TypeFunction {
		l.Pop(1)
		return operation.RoundResult{}, ErrNoRun
	}
	pushValue(l, input)
	if err := l.ProtectedCall(1, 1, 0); err != nil {
		return operation.RoundResult{}, fmt.Errorf("script %s: run: %w", s.Name, err)
	}
	out := pullValue(l, -1)
	l.Pop(1)

	return toRoundResult(out)
}

// Input builds the run argument from the bot's last frame and state.
func Input(ctx context.Context, bot *operation.Context) map[string]any {
	labels := map[string]any{}
	if f := bot.LastFrame(); f != nil && f.Labels != nil {
		labels = f.Labels
	}
	state := map[string]any{}
	if bot.State != nil {
		state = bot.State.Snapshot(ctx)
	}
	return map[string]any{"labels": labels, "state": state}
}

func toRoundResult(v any) (operation.RoundResult, error) {
	switch val := v.(type) {
	case nil:
		return operation.Success("", nil), nil
	case bool:
		if val {
			return operation.Success("", nil), nil
		}
		return operation.Fail("", nil), nil
	case string:
		return operation.Success(operation.Status(val), nil), nil
	case map[string]any:
		status, _ := val["status"].(string)
		var delay time.Duration
		if ms, ok := val["delay_ms"].(float64); ok && ms > 0 {
			delay = time.Duration(ms * float64(time.Millisecond))
		}

		mode, _ := val["mode"].(string)
		switch mode {
		case "", "success":
			return operation.Success(operation.Status(status), val["data"], delay), nil
		case "fail":
			return operation.Fail(operation.Status(status), val["data"], delay), nil
		case "retry":
			return operation.Retry(operation.Status(status), delay), nil
		case "wait":
			return operation.Wait(operation.Status(status), delay), nil
		default:
			return operation.RoundResult{}, fmt.Errorf("unknown mode %q", mode)
		}
	default:
		return operation.RoundResult{}, fmt.Errorf("run returned %T", v)
	}
}
