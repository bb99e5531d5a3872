package middleware

import (
	"context"
	"time"

	"github.com/agentstation/operation"
)

// MetricsCollector collects node invocation metrics.
type MetricsCollector interface {
	RecordInvocation(node string, r operation.RoundResult, d time.Duration)
}

// Metrics reports every node invocation to collector.
func Metrics(collector MetricsCollector) operation.Middleware {
	return func(node string, next operation.NodeBody) operation.NodeBody {
		return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
			start := time.Now()
			r := next.Run(ctx, bot)
			collector.RecordInvocation(node, r, time.Since(start))
			return r
		})
	}
}
