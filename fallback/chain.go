// Package fallback builds node bodies that try alternative ways of doing
// the same thing, e.g. clicking a close button and pressing escape when the
// button is not recognized.
package fallback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentstation/operation"
)

// Chain is a node body that runs its links in order until one does not fail.
// A link that asks to Retry or Wait ends the chain for this invocation, so
// the engine re-invokes the whole chain.
type Chain struct {
	name    string
	links   []Link
	metrics *metrics
}

// Link is one alternative of a chain.
type Link struct {
	Name string
	Body operation.NodeBody
	// Condition, when set, skips the link unless it returns true.
	Condition func(ctx context.Context, bot *operation.Context) bool
}

type metrics struct {
	mu        sync.Mutex
	total     int64
	runs      map[string]int64
	successes map[string]int64
	failures  map[string]int64
	latency   map[string]time.Duration
}

// NewChain creates an empty chain.
func NewChain(name string) *Chain {
	return &Chain{
		name: name,
		metrics: &metrics{
			runs:      make(map[string]int64),
			successes: make(map[string]int64),
			failures:  make(map[string]int64),
			latency:   make(map[string]time.Duration),
		},
	}
}

// AddLink appends a link. Chains are built before use and are not safe to
// extend while an operation runs them.
func (c *Chain) AddLink(link Link) *Chain {
	c.links = append(c.links, link)
	return c
}

// Add appends a link running fn.
func (c *Chain) Add(name string, fn func(ctx context.Context, bot *operation.Context) operation.RoundResult) *Chain {
	return c.AddLink(Link{Name: name, Body: operation.NodeFunc(fn)})
}

// SucceededKey is the state key naming the link that last succeeded.
func (c *Chain) SucceededKey() string {
	return fmt.Sprintf("chain:%s:succeeded_at", c.name)
}

// Run implements operation.NodeBody. When every link fails, the result of
// the last one that ran is returned; when none ran, the chain fails with
// an empty status.
func (c *Chain) Run(ctx context.Context, bot *operation.Context) operation.RoundResult {
	c.metrics.mu.Lock()
	c.metrics.total++
	c.metrics.mu.Unlock()

	last := operation.Fail("", nil)
	for _, link := range c.links {
		if link.Condition != nil && !link.Condition(ctx, bot) {
			continue
		}

		start := time.Now()
		r := link.Body.Run(ctx, bot)
		c.observe(link.Name, r, time.Since(start))

		switch r.Mode {
		case operation.ModeFail:
			if r.Aborted {
				return r
			}
			bot.Logger.Debug(ctx, "fallback link failed", "chain", c.name, "link", link.Name, "status", r.Status)
			last = r
			continue
		case operation.ModeSuccess:
			if bot.State != nil {
				_ = bot.State.Set(ctx, c.SucceededKey(), link.Name)
			}
		}
		return r
	}
	return last
}

func (c *Chain) observe(link string, r operation.RoundResult, d time.Duration) {
	c.metrics.mu.Lock()
	defer c.metrics.mu.Unlock()
	c.metrics.runs[link]++
	c.metrics.latency[link] += d
	switch r.Mode {
	case operation.ModeSuccess:
		c.metrics.successes[link]++
	case operation.ModeFail:
		c.metrics.failures[link]++
	}
}

// MetricsSnapshot represents a point-in-time view of chain metrics.
type MetricsSnapshot struct {
	TotalExecutions int64
	LinkStats       map[string]LinkStats
}

// LinkStats contains statistics for a single link.
type LinkStats struct {
	Executions int64
	Successes  int64
	Failures   int64
	AvgLatency time.Duration
}

// Metrics returns chain execution metrics.
func (c *Chain) Metrics() MetricsSnapshot {
	c.metrics.mu.Lock()
	defer c.metrics.mu.Unlock()

	snap := MetricsSnapshot{
		TotalExecutions: c.metrics.total,
		LinkStats:       make(map[string]LinkStats, len(c.metrics.runs)),
	}
	for name, runs := range c.metrics.runs {
		snap.LinkStats[name] = LinkStats{
			Executions: runs,
			Successes:  c.metrics.successes[name],
			Failures:   c.metrics.failures[name],
			AvgLatency: c.metrics.latency[name] / time.Duration(runs),
		}
	}
	return snap
}
