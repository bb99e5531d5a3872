package operation

import (
	"context"
	"time"

	"github.com/agentstation/operation/internal/retry"
)

// NodeBody is the work a node performs on each invocation. A body may
// construct and execute a nested Operation and return FromChild of its result.
type NodeBody interface {
	Run(ctx context.Context, bot *Context) RoundResult
}

// NodeFunc adapts an ordinary function to NodeBody.
type NodeFunc func(ctx context.Context, bot *Context) RoundResult

// Run calls f(ctx, bot).
func (f NodeFunc) Run(ctx context.Context, bot *Context) RoundResult {
	return f(ctx, bot)
}

// Node is a named unit of work. It is created once when the graph is
// declared and never mutated afterwards.
type Node struct {
	name string
	body NodeBody
	opts nodeOptions
}

// nodeOptions holds configuration for a Node.
type nodeOptions struct {
	maxRetries int
	timeout    time.Duration
	backoff    *retry.Policy
	jitter     bool
}

// NodeOption configures a Node.
type NodeOption func(*nodeOptions)

// WithMaxRetries sets how many extra invocations a Retry result may trigger
// before the engine converts it into Fail(StatusMaxRetriesExceeded).
func WithMaxRetries(n int) NodeOption {
	return func(o *nodeOptions) {
		if n < 0 {
			n = 0
		}
		o.maxRetries = n
	}
}

// WithNodeTimeout bounds the wall-clock time a node may spend looping on
// Retry/Wait results within one visit.
func WithNodeTimeout(d time.Duration) NodeOption {
	return func(o *nodeOptions) {
		o.timeout = d
	}
}

// WithBackoff grows the pause between retries exponentially, starting at
// initial and capped at maxDelay. A larger delay returned by the body wins.
func WithBackoff(initial, maxDelay time.Duration, multiplier float64) NodeOption {
	return func(o *nodeOptions) {
		o.backoff = &retry.Policy{
			InitialDelay: initial,
			MaxDelay:     maxDelay,
			Multiplier:   multiplier,
		}
	}
}

// WithJitter spreads backoff pauses by up to 20% either way so bots polling
// the same server don't retry in lockstep. It has no effect without
// WithBackoff.
func WithJitter() NodeOption {
	return func(o *nodeOptions) {
		o.jitter = true
	}
}

func newNode(name string, body NodeBody, opts ...NodeOption) *Node {
	n := &Node{
		name: name,
		body: body,
		opts: getNodeDefaults(),
	}
	for _, opt := range opts {
		opt(&n.opts)
	}
	if n.opts.backoff != nil {
		n.opts.backoff.Jitter = n.opts.jitter
	}
	return n
}

// Name returns the node's identifier.
func (n *Node) Name() string {
	return n.name
}

// Body returns the node body.
func (n *Node) Body() NodeBody {
	return n.body
}

// MaxRetries returns the node's retry budget per visit.
func (n *Node) MaxRetries() int {
	return n.opts.maxRetries
}

// Timeout returns the node's per-visit timeout, zero if unbounded.
func (n *Node) Timeout() time.Duration {
	return n.opts.timeout
}

// retryDelay returns the pause to apply before retry number attempt.
func (n *Node) retryDelay(attempt int, requested time.Duration) time.Duration {
	if n.opts.backoff == nil {
		return requested
	}
	if d := n.opts.backoff.Delay(attempt); d > requested {
		return d
	}
	return requested
}
