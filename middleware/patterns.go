package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/agentstation/operation"
)

// StatusCircuitOpen is returned by CircuitBreaker while the circuit is open.
const StatusCircuitOpen operation.Status = "CIRCUIT_OPEN"

func init() {
	operation.ReserveStatus(StatusCircuitOpen)
}

// CircuitBreaker fails a node fast after threshold consecutive failed
// invocations. After cooldown one invocation is let through again; a
// success closes the circuit. Breaker state is shared by every operation
// built with the returned middleware.
func CircuitBreaker(threshold int, cooldown time.Duration) operation.Middleware {
	type breaker struct {
		mu       sync.Mutex
		failures int
		openedAt time.Time
	}
	var mu sync.Mutex
	breakers := make(map[string]*breaker)

	return func(node string, next operation.NodeBody) operation.NodeBody {
		mu.Lock()
		b, ok := breakers[node]
		if !ok {
			b = &breaker{}
			breakers[node] = b
		}
		mu.Unlock()

		return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
			b.mu.Lock()
			if b.failures >= threshold && time.Since(b.openedAt) < cooldown {
				b.mu.Unlock()
				return operation.Fail(StatusCircuitOpen, node)
			}
			b.mu.Unlock()

			r := next.Run(ctx, bot)

			b.mu.Lock()
			defer b.mu.Unlock()
			switch r.Mode {
			case operation.ModeFail:
				b.failures++
				if b.failures >= threshold {
					b.openedAt = time.Now()
				}
			case operation.ModeSuccess:
				b.failures = 0
			}
			return r
		})
	}
}

// Throttle enforces a minimum interval between invocations of a node by
// raising the delay of its results. Nothing blocks inside the body.
func Throttle(interval time.Duration) operation.Middleware {
	return func(node string, next operation.NodeBody) operation.NodeBody {
		return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
			start := time.Now()
			r := next.Run(ctx, bot)
			if rest := interval - time.Since(start); rest > r.Delay {
				r.Delay = rest
			}
			return r
		})
	}
}

// MapStatus rewrites the status of node results, e.g. to fold several
// recognizer outcomes into the one status an edge expects.
func MapStatus(mapping map[operation.Status]operation.Status) operation.Middleware {
	return func(node string, next operation.NodeBody) operation.NodeBody {
		return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
			r := next.Run(ctx, bot)
			if to, ok := mapping[r.Status]; ok {
				r.Status = to
			}
			return r
		})
	}
}
