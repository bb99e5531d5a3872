// Package testutil provides testing utilities for operation graphs.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentstation/operation"
)

// Trace records the order in which node bodies were invoked.
type Trace struct {
	mu    sync.Mutex
	calls []string
}

// NewTrace creates an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

// Add appends a node name.
func (t *Trace) Add(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, name)
}

// Calls returns a copy of the recorded node names.
func (t *Trace) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.calls))
	copy(out, t.calls)
	return out
}

// Reset clears the trace.
func (t *Trace) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
}

// ScriptedBody is a node body that replays a fixed sequence of results.
// Once the script is exhausted the last result repeats.
type ScriptedBody struct {
	Name    string
	Results []operation.RoundResult
	Trace   *Trace

	mu    sync.Mutex
	calls int
}

// Script creates a scripted body.
func Script(name string, trace *Trace, results ...operation.RoundResult) *ScriptedBody {
	return &ScriptedBody{Name: name, Results: results, Trace: trace}
}

// Run implements operation.NodeBody.
func (s *ScriptedBody) Run(ctx context.Context, bot *operation.Context) operation.RoundResult {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()

	if s.Trace != nil {
		s.Trace.Add(s.Name)
	}
	if len(s.Results) == 0 {
		return operation.Success("", nil)
	}
	if idx >= len(s.Results) {
		idx = len(s.Results) - 1
	}
	return s.Results[idx]
}

// Calls returns how often the body ran.
func (s *ScriptedBody) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Rewind restarts the script from the first result.
func (s *ScriptedBody) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = 0
}

// FakeClock is a manual clock. Sleep advances it instantly.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock starting at a fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the clock by d without blocking.
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

// Advance moves the clock forward.
func (c *FakeClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// FakeScreen serves prepared frames in order, repeating the last one.
type FakeScreen struct {
	mu     sync.Mutex
	frames []*operation.Frame
	shots  int
	Err    error
}

// NewFakeScreen creates a screen serving frames with the given labels.
func NewFakeScreen(labels ...map[string]any) *FakeScreen {
	s := &FakeScreen{}
	for _, l := range labels {
		s.frames = append(s.frames, &operation.Frame{Labels: l, Captured: time.Now()})
	}
	return s
}

// Screenshot implements operation.Screen.
func (s *FakeScreen) Screenshot(ctx context.Context) (*operation.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.frames) == 0 {
		return &operation.Frame{Captured: time.Now()}, nil
	}
	idx := s.shots
	if idx >= len(s.frames) {
		idx = len(s.frames) - 1
	}
	s.shots++
	return s.frames[idx], nil
}

// Shots returns how many screenshots were taken.
func (s *FakeScreen) Shots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shots
}

// RecordingInput records every synthetic action as a string.
type RecordingInput struct {
	mu      sync.Mutex
	actions []string
}

// NewRecordingInput creates an empty recorder.
func NewRecordingInput() *RecordingInput {
	return &RecordingInput{}
}

func (r *RecordingInput) record(action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

// Click implements operation.Input.
func (r *RecordingInput) Click(ctx context.Context, x, y int) error {
	r.record(fmt.Sprintf("click %d,%d", x, y))
	return nil
}

// Press implements operation.Input.
func (r *RecordingInput) Press(ctx context.Context, key string) error {
	r.record("press " + key)
	return nil
}

// Swipe implements operation.Input.
func (r *RecordingInput) Swipe(ctx context.Context, fromX, fromY, toX, toY int, duration time.Duration) error {
	r.record(fmt.Sprintf("swipe %d,%d->%d,%d %s", fromX, fromY, toX, toY, duration))
	return nil
}

// Actions returns the recorded actions.
func (r *RecordingInput) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.actions))
	copy(out, r.actions)
	return out
}
