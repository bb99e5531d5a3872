package operation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time for the run loop.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d. It returns early only when ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Middleware wraps the body of a node. It is applied once per Operation.
type Middleware func(node string, next NodeBody) NodeBody

// options holds configuration for an Operation.
type options struct {
	name       string
	timeout    time.Duration
	onResult   []func(Result)
	logger     Logger
	tracer     Tracer
	clock      Clock
	middleware []Middleware
}

// Option configures an Operation.
type Option func(*options)

// WithName sets the name used in logs and results. Defaults to the graph name.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithTimeout sets the whole-run timeout, measured from the start of each
// Execute call. Zero falls back to the graph's timeout, then to the global
// default; zero everywhere means no limit.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithOnResult registers a callback invoked once with the final result of
// every run, before Execute returns. Callbacks run in registration order.
func WithOnResult(fn func(Result)) Option {
	return func(o *options) {
		if fn != nil {
			o.onResult = append(o.onResult, fn)
		}
	}
}

// WithLogger sets the engine logger. Defaults to the Context logger.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracer opens a span around every node invocation.
func WithTracer(tracer Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithMiddleware wraps every node body of the graph. The first middleware
// is the outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

// Operation runs one graph against one Context. It may be executed any
// number of times; every piece of in-flight state is reset at the start of
// Execute. An Operation must not be executed concurrently with itself.
type Operation struct {
	graph  *Graph
	bot    *Context
	opts   options
	bodies map[string]NodeBody

	running atomic.Bool

	// run state, reset by Execute
	mu          sync.Mutex
	runID       string
	runStart    time.Time
	current     *Node
	retries     int
	visitStart  time.Time
	path        []string
	invocations int
}

// New creates an operation over g driven through bot.
func New(g *Graph, bot *Context, opts ...Option) *Operation {
	if bot == nil {
		bot = NewContext()
	}

	o := &Operation{
		graph: g,
		bot:   bot,
		opts: options{
			name:  g.Name(),
			clock: realClock{},
		},
	}
	for _, opt := range opts {
		opt(&o.opts)
	}
	if o.opts.logger == nil {
		o.opts.logger = bot.Logger
	}
	if o.opts.logger == nil {
		o.opts.logger = NopLogger()
	}

	o.bodies = make(map[string]NodeBody, len(g.nodes))
	for name, n := range g.nodes {
		body := n.body
		for i := len(o.opts.middleware) - 1; i >= 0; i-- {
			body = o.opts.middleware[i](name, body)
		}
		o.bodies[name] = body
	}

	return o
}

// Name returns the operation name.
func (o *Operation) Name() string {
	return o.opts.name
}

// Graph returns the graph the operation runs.
func (o *Operation) Graph() *Graph {
	return o.graph
}

// Context returns the bot context the operation drives.
func (o *Operation) Context() *Context {
	return o.bot
}

// RunID returns the identifier of the current or last run.
func (o *Operation) RunID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runID
}

// Path returns the nodes entered by the current or last run, in order.
// Re-invocations caused by Retry or Wait do not add entries.
func (o *Operation) Path() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.path))
	copy(out, o.path)
	return out
}

// StartedAt returns when the current or last run started.
func (o *Operation) StartedAt() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runStart
}

// OnResult registers another result callback, like WithOnResult. It must not
// be called while the operation is executing.
func (o *Operation) OnResult(fn func(Result)) {
	if fn != nil {
		o.opts.onResult = append(o.opts.onResult, fn)
	}
}

// Invocations returns how many node bodies the current or last run called.
func (o *Operation) Invocations() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.invocations
}

// Execute runs the graph from its start node until a node result has no
// matching outgoing edge, a limit is hit, or the run is stopped.
func (o *Operation) Execute(ctx context.Context) Result {
	if !o.running.CompareAndSwap(false, true) {
		o.opts.logger.Error(ctx, "operation already running", "operation", o.opts.name)
		return Result{Success: false, Status: StatusBusy}
	}
	defer o.running.Store(false)

	o.reset()
	timeout := o.runTimeout()
	o.opts.logger.Info(ctx, "operation started",
		"operation", o.opts.name,
		"run_id", o.RunID(),
		"timeout", timeout)

	result := o.run(ctx, timeout)

	o.opts.logger.Info(ctx, "operation finished",
		"operation", o.opts.name,
		"run_id", o.RunID(),
		"success", result.Success,
		"status", result.Status,
		"aborted", result.Aborted,
		"duration", o.opts.clock.Now().Sub(o.runStart))

	for _, fn := range o.opts.onResult {
		fn(result)
	}
	return result
}

// reset clears every field that tracks in-flight progress.
func (o *Operation) reset() {
	now := o.opts.clock.Now()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.runID = uuid.NewString()
	o.runStart = now
	o.path = o.path[:0]
	o.invocations = 0
	o.current = nil
	o.retries = 0
	o.visitStart = time.Time{}
}

func (o *Operation) runTimeout() time.Duration {
	if o.opts.timeout > 0 {
		return o.opts.timeout
	}
	if o.graph.timeout > 0 {
		return o.graph.timeout
	}
	return GetDefaults().RunTimeout
}

// enter makes n the current node and starts a fresh visit.
func (o *Operation) enter(n *Node) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = n
	o.retries = 0
	o.visitStart = o.opts.clock.Now()
	o.path = append(o.path, n.name)
}

func (o *Operation) run(ctx context.Context, timeout time.Duration) Result {
	o.enter(o.graph.StartNode())

	for {
		if o.bot.StopRequested() || ctx.Err() != nil {
			return o.aborted(ctx)
		}
		if timeout > 0 && o.opts.clock.Now().Sub(o.runStart) > timeout {
			o.opts.logger.Info(ctx, "operation timed out",
				"operation", o.opts.name,
				"node", o.current.name,
				"timeout", timeout)
			return Result{Success: false, Status: StatusTimeout}
		}

		node := o.current
		r := o.invoke(ctx, node)
		if r.Aborted {
			return o.aborted(ctx)
		}

		if err := o.opts.clock.Sleep(ctx, r.Delay); err != nil {
			return o.aborted(ctx)
		}
		if !r.Mode.Routable() {
			continue
		}

		edge := selectEdge(o.graph.edges[node.name], r)
		if edge == nil {
			return Result{Success: r.Success, Status: r.Status, Data: r.Data}
		}

		o.opts.logger.Debug(ctx, "transition",
			"operation", o.opts.name,
			"from", edge.From,
			"to", edge.To,
			"success", r.Success,
			"status", r.Status)
		o.enter(o.graph.nodes[edge.To])
	}
}

func (o *Operation) aborted(ctx context.Context) Result {
	o.opts.logger.Info(ctx, "operation aborted", "operation", o.opts.name, "node", o.current.name)
	return Result{Success: false, Status: StatusAborted, Aborted: true}
}

// invoke runs the node body once and applies the engine's node-level rules:
// closed status sets, the per-visit timeout and the retry ceiling.
func (o *Operation) invoke(ctx context.Context, n *Node) RoundResult {
	o.mu.Lock()
	o.invocations++
	o.mu.Unlock()

	r := o.call(ctx, n)
	if r.Delay < 0 {
		r.Delay = 0
	}

	if !o.graph.accepts(r.Status) {
		o.opts.logger.Error(ctx, "node returned undeclared status",
			"operation", o.opts.name,
			"node", n.name,
			"status", r.Status)
		return Fail(StatusUndeclared, r.Status, r.Delay)
	}

	if r.Mode.Routable() {
		return r
	}

	if n.opts.timeout > 0 && o.opts.clock.Now().Sub(o.visitStart) >= n.opts.timeout {
		o.opts.logger.Info(ctx, "node timed out",
			"operation", o.opts.name,
			"node", n.name,
			"timeout", n.opts.timeout)
		return Fail(StatusTimeout, r.Status, r.Delay)
	}

	if r.Mode == ModeRetry {
		if o.retries >= n.opts.maxRetries {
			o.opts.logger.Info(ctx, "node exceeded retries",
				"operation", o.opts.name,
				"node", n.name,
				"max_retries", n.opts.maxRetries,
				"status", r.Status)
			return Fail(StatusMaxRetriesExceeded, r.Status, r.Delay)
		}
		o.retries++
		r.Delay = n.retryDelay(o.retries, r.Delay)
		o.opts.logger.Debug(ctx, "retrying node",
			"operation", o.opts.name,
			"node", n.name,
			"attempt", o.retries,
			"status", r.Status,
			"delay", r.Delay)
	}

	return r
}

// call runs the wrapped body, turning a panic into a failed result.
func (o *Operation) call(ctx context.Context, n *Node) (r RoundResult) {
	if o.opts.tracer != nil {
		var end func(RoundResult)
		ctx, end = o.opts.tracer.StartSpan(ctx, o.opts.name+"/"+n.name)
		defer func() { end(r) }()
	}

	defer func() {
		if p := recover(); p != nil {
			o.opts.logger.Error(ctx, "node panicked",
				"operation", o.opts.name,
				"node", n.name,
				"panic", fmt.Sprint(p))
			r = Fail(StatusPanic, p)
		}
	}()

	o.opts.logger.Debug(ctx, "invoking node", "operation", o.opts.name, "node", n.name)
	return o.bodies[n.name].Run(ctx, o.bot)
}
