package operation

import "sync"

// StopToken is a level-triggered cancellation flag. The engine checks it once
// per loop iteration; a UI or scheduler raises it from any goroutine.
type StopToken struct {
	mu        sync.Mutex
	requested bool
	done      chan struct{}
}

// NewStopToken creates a token in the running state.
func NewStopToken() *StopToken {
	return &StopToken{done: make(chan struct{})}
}

// Request raises the stop flag. Calling it more than once is harmless.
func (t *StopToken) Request() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.requested {
		return
	}
	t.requested = true
	close(t.done)
}

// Reset lowers the flag so the bot can run again.
func (t *StopToken) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.requested {
		return
	}
	t.requested = false
	t.done = make(chan struct{})
}

// Requested reports whether a stop was requested.
func (t *StopToken) Requested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requested
}

// Done returns a channel closed when a stop is requested. After Reset a new
// channel is returned.
func (t *StopToken) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
