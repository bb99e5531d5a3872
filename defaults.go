package operation

import (
	"sync"
	"time"
)

// globalDefaults holds the default limits for nodes and operations.
var globalDefaults = &defaults{}

// defaults contains configuration applied to every node and operation that
// does not set its own.
type defaults struct {
	mu sync.RWMutex

	maxRetries  int
	nodeTimeout time.Duration
	runTimeout  time.Duration

	// statuses produced by shared bodies and middleware
	statuses map[Status]bool
}

// Defaults lists the values SetDefaults installs.
type Defaults struct {
	// MaxRetries is the retry budget of nodes declared without WithMaxRetries.
	MaxRetries int
	// NodeTimeout is the per-visit timeout of nodes declared without WithNodeTimeout.
	NodeTimeout time.Duration
	// RunTimeout is the whole-run timeout used when neither the operation
	// nor its graph sets one.
	RunTimeout time.Duration
}

// SetDefaults configures global defaults. Nodes read them when declared,
// operations when executed.
func SetDefaults(d Defaults) {
	globalDefaults.mu.Lock()
	defer globalDefaults.mu.Unlock()

	if d.MaxRetries < 0 {
		d.MaxRetries = 0
	}
	globalDefaults.maxRetries = d.MaxRetries
	globalDefaults.nodeTimeout = d.NodeTimeout
	globalDefaults.runTimeout = d.RunTimeout
}

// GetDefaults returns a copy of the current global defaults.
func GetDefaults() Defaults {
	globalDefaults.mu.RLock()
	defer globalDefaults.mu.RUnlock()

	return Defaults{
		MaxRetries:  globalDefaults.maxRetries,
		NodeTimeout: globalDefaults.nodeTimeout,
		RunTimeout:  globalDefaults.runTimeout,
	}
}

// ResetDefaults resets all global defaults to their initial values.
func ResetDefaults() {
	SetDefaults(Defaults{})
}

// ReserveStatus registers statuses that reusable node bodies or middleware
// produce on their own, such as a circuit breaker's CIRCUIT_OPEN. They are
// accepted by every graph and may be named by edges of closed graphs.
func ReserveStatus(statuses ...Status) {
	globalDefaults.mu.Lock()
	defer globalDefaults.mu.Unlock()

	if globalDefaults.statuses == nil {
		globalDefaults.statuses = make(map[Status]bool)
	}
	for _, s := range statuses {
		if s != "" {
			globalDefaults.statuses[s] = true
		}
	}
}

func (d *defaults) reserved(s Status) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.statuses[s]
}

func getNodeDefaults() nodeOptions {
	d := GetDefaults()
	return nodeOptions{
		maxRetries: d.MaxRetries,
		timeout:    d.NodeTimeout,
	}
}
