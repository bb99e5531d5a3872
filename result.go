package operation

import (
	"fmt"
	"time"
)

// Mode tells the engine what to do with a RoundResult.
type Mode int

const (
	// ModeSuccess is a terminal success of the node invocation.
	ModeSuccess Mode = iota
	// ModeFail is a terminal failure of the node invocation.
	ModeFail
	// ModeRetry re-invokes the node and counts against its retry budget.
	ModeRetry
	// ModeWait re-invokes the node without touching the retry budget.
	ModeWait
)

// String returns the lower-case mode name.
func (m Mode) String() string {
	switch m {
	case ModeSuccess:
		return "success"
	case ModeFail:
		return "fail"
	case ModeRetry:
		return "retry"
	case ModeWait:
		return "wait"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Routable reports whether results with this mode take part in edge selection.
func (m Mode) Routable() bool {
	return m == ModeSuccess || m == ModeFail
}

// Status is an application-defined tag used for edge matching and display.
// It carries no error semantics by itself.
type Status string

// Statuses injected by the engine itself.
const (
	StatusTimeout            Status = "TIMEOUT"
	StatusMaxRetriesExceeded Status = "MAX_RETRIES_EXCEEDED"
	StatusAborted            Status = "ABORTED"
	StatusUndeclared         Status = "UNDECLARED_STATUS"
	StatusPanic              Status = "PANIC"
	StatusBusy               Status = "BUSY"
)

// Reserved reports whether s is an engine status or was registered with
// ReserveStatus. Graphs with a closed status set accept reserved statuses
// without declaring them.
func (s Status) Reserved() bool {
	switch s {
	case StatusTimeout, StatusMaxRetriesExceeded, StatusAborted,
		StatusUndeclared, StatusPanic, StatusBusy:
		return true
	}
	return globalDefaults.reserved(s)
}

// RoundResult is what a node body returns each time it runs.
type RoundResult struct {
	Success bool
	Status  Status
	Data    any
	Mode    Mode
	// Delay is a lower bound on the pause before the engine moves on.
	Delay time.Duration
	// Aborted marks a failure forwarded from a stopped nested operation. The
	// engine ends the run as aborted instead of routing it.
	Aborted bool
}

func firstDelay(delay []time.Duration) time.Duration {
	if len(delay) == 0 || delay[0] < 0 {
		return 0
	}
	return delay[0]
}

// Success ends the node invocation successfully.
func Success(status Status, data any, delay ...time.Duration) RoundResult {
	return RoundResult{Success: true, Status: status, Data: data, Mode: ModeSuccess, Delay: firstDelay(delay)}
}

// Fail ends the node invocation with a failure. The engine looks for a
// failure edge; without one the whole operation fails with status.
func Fail(status Status, data any, delay ...time.Duration) RoundResult {
	return RoundResult{Success: false, Status: status, Data: data, Mode: ModeFail, Delay: firstDelay(delay)}
}

// Retry asks the engine to run the same node again. Every retry counts
// against the node's retry budget.
func Retry(status Status, delay ...time.Duration) RoundResult {
	return RoundResult{Success: false, Status: status, Mode: ModeRetry, Delay: firstDelay(delay)}
}

// Wait asks the engine to run the same node again after delay without
// counting a retry. It is meant for polling, e.g. waiting for an animation.
func Wait(status Status, delay time.Duration) RoundResult {
	if delay < 0 {
		delay = 0
	}
	return RoundResult{Success: true, Status: status, Mode: ModeWait, Delay: delay}
}

// FromChild folds the result of a nested operation into a RoundResult so the
// parent graph routes on it exactly as if the node had produced it itself.
// An aborted child aborts the parent as well.
func FromChild(r Result, delay ...time.Duration) RoundResult {
	if r.Success {
		return Success(r.Status, r.Data, delay...)
	}
	rr := Fail(r.Status, r.Data, delay...)
	rr.Aborted = r.Aborted
	return rr
}

// Result is the terminal outcome of one Execute call.
type Result struct {
	Success bool
	Status  Status
	Data    any
	// Aborted is set only when the run was stopped cooperatively through the
	// stop token or context cancellation.
	Aborted bool
}

// Err returns a *StatusError describing a failed result, or nil.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &StatusError{Status: r.Status, Aborted: r.Aborted}
}

// String renders the result for operators.
func (r Result) String() string {
	switch {
	case r.Aborted:
		return "aborted"
	case r.Success && r.Status == "":
		return "success"
	case r.Success:
		return "success: " + string(r.Status)
	case r.Status == "":
		return "fail"
	default:
		return "fail: " + string(r.Status)
	}
}
