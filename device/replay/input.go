package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentstation/operation"
)

// Action is one synthetic input issued against a replay.
type Action struct {
	Kind     string        `json:"kind" yaml:"kind"`
	X        int           `json:"x,omitempty" yaml:"x,omitempty"`
	Y        int           `json:"y,omitempty" yaml:"y,omitempty"`
	ToX      int           `json:"to_x,omitempty" yaml:"to_x,omitempty"`
	ToY      int           `json:"to_y,omitempty" yaml:"to_y,omitempty"`
	Key      string        `json:"key,omitempty" yaml:"key,omitempty"`
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

func (a Action) String() string {
	switch a.Kind {
	case "click":
		return fmt.Sprintf("click %d,%d", a.X, a.Y)
	case "press":
		return "press " + a.Key
	case "swipe":
		return fmt.Sprintf("swipe %d,%d->%d,%d %s", a.X, a.Y, a.ToX, a.ToY, a.Duration)
	default:
		return a.Kind
	}
}

// Input records actions instead of performing them.
type Input struct {
	mu      sync.Mutex
	actions []Action
	logger  operation.Logger
}

// NewInput creates a recording input. A nil logger discards output.
func NewInput(logger operation.Logger) *Input {
	if logger == nil {
		logger = operation.NopLogger()
	}
	return &Input{logger: logger}
}

func (in *Input) record(ctx context.Context, a Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in.mu.Lock()
	in.actions = append(in.actions, a)
	in.mu.Unlock()
	in.logger.Debug(ctx, "replay input", "action", a.String())
	return nil
}

// Click implements operation.Input.
func (in *Input) Click(ctx context.Context, x, y int) error {
	return in.record(ctx, Action{Kind: "click", X: x, Y: y})
}

// Press implements operation.Input.
func (in *Input) Press(ctx context.Context, key string) error {
	return in.record(ctx, Action{Kind: "press", Key: key})
}

// Swipe implements operation.Input.
func (in *Input) Swipe(ctx context.Context, fromX, fromY, toX, toY int, duration time.Duration) error {
	return in.record(ctx, Action{Kind: "swipe", X: fromX, Y: fromY, ToX: toX, ToY: toY, Duration: duration})
}

// Actions returns a copy of the recorded actions.
func (in *Input) Actions() []Action {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]Action, len(in.actions))
	copy(out, in.actions)
	return out
}
