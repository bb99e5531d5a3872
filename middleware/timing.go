package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/agentstation/operation"
)

// Timing records invocation timings of every node in the bot state under
// node:<name>:last_duration, total_duration, invocation_count and
// avg_duration.
func Timing() operation.Middleware {
	return func(node string, next operation.NodeBody) operation.NodeBody {
		return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
			start := time.Now()
			r := next.Run(ctx, bot)
			if bot.State != nil {
				saveTiming(ctx, bot.State, node, time.Since(start))
			}
			return r
		})
	}
}

// TimingKey returns the state key holding the named timing metric of a node.
func TimingKey(node, metric string) string {
	return fmt.Sprintf("node:%s:%s", node, metric)
}

func saveTiming(ctx context.Context, state operation.Store, node string, d time.Duration) {
	var total time.Duration
	var count int64
	if v, ok := state.Get(ctx, TimingKey(node, "total_duration")); ok {
		total, _ = v.(time.Duration)
	}
	if v, ok := state.Get(ctx, TimingKey(node, "invocation_count")); ok {
		count, _ = v.(int64)
	}

	total += d
	count++

	_ = state.Set(ctx, TimingKey(node, "last_duration"), d)
	_ = state.Set(ctx, TimingKey(node, "total_duration"), total)
	_ = state.Set(ctx, TimingKey(node, "invocation_count"), count)
	_ = state.Set(ctx, TimingKey(node, "avg_duration"), total/time.Duration(count))
}
