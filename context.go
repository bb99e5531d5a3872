package operation

import (
	"context"
	"errors"
	"image"
	"time"
)

// ErrNoScreen is returned when a node asks for a screenshot on a Context
// without a Screen.
var ErrNoScreen = errors.New("operation: no screen attached")

// Frame is one captured screenshot plus whatever the perception layer
// recognized on it.
type Frame struct {
	Image    image.Image
	Captured time.Time
	// Labels holds recognition results keyed by name, e.g. OCR text or
	// matched template positions. It is read-only for node bodies.
	Labels map[string]any
}

// Label returns the named recognition result.
func (f *Frame) Label(name string) (any, bool) {
	if f == nil || f.Labels == nil {
		return nil, false
	}
	v, ok := f.Labels[name]
	return v, ok
}

// Screen captures the game client. Throttling is the implementation's business.
type Screen interface {
	Screenshot(ctx context.Context) (*Frame, error)
}

// Input issues synthetic mouse and keyboard actions. The engine never calls
// it; node bodies do.
type Input interface {
	Click(ctx context.Context, x, y int) error
	Press(ctx context.Context, key string) error
	Swipe(ctx context.Context, fromX, fromY, toX, toY int, duration time.Duration) error
}

// Context is the shared handle passed to every node of a run, including
// nodes of nested operations. It is shared by reference with no locking of
// its own: at most one operation tree drives a Context at a time.
type Context struct {
	Screen Screen
	Input  Input
	Stop   *StopToken
	State  Store
	Logger Logger

	last *Frame
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithScreen attaches the screenshot source.
func WithScreen(s Screen) ContextOption {
	return func(c *Context) {
		c.Screen = s
	}
}

// WithInput attaches the input controller.
func WithInput(in Input) ContextOption {
	return func(c *Context) {
		c.Input = in
	}
}

// WithStopToken shares an existing stop token, e.g. one owned by a UI.
func WithStopToken(t *StopToken) ContextOption {
	return func(c *Context) {
		c.Stop = t
	}
}

// WithState sets the store used for cached game-state flags.
func WithState(s Store) ContextOption {
	return func(c *Context) {
		c.State = s
	}
}

// WithContextLogger sets the logger node bodies should use.
func WithContextLogger(l Logger) ContextOption {
	return func(c *Context) {
		c.Logger = l
	}
}

// NewContext creates a bot context. Missing collaborators get defaults: a
// fresh stop token, an in-memory store and a no-op logger.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{}
	for _, opt := range opts {
		opt(c)
	}
	if c.Stop == nil {
		c.Stop = NewStopToken()
	}
	if c.State == nil {
		c.State = NewStore()
	}
	if c.Logger == nil {
		c.Logger = NopLogger()
	}
	return c
}

// Screenshot captures a new frame and remembers it as the last frame.
func (c *Context) Screenshot(ctx context.Context) (*Frame, error) {
	if c.Screen == nil {
		return nil, ErrNoScreen
	}
	f, err := c.Screen.Screenshot(ctx)
	if err != nil {
		return nil, err
	}
	c.last = f
	return f, nil
}

// LastFrame returns the most recent frame captured through this Context,
// or nil before the first capture.
func (c *Context) LastFrame() *Frame {
	return c.last
}

// StopRequested reports whether an external scheduler or UI asked the bot
// to stop.
func (c *Context) StopRequested() bool {
	return c.Stop != nil && c.Stop.Requested()
}
