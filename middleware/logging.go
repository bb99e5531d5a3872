package middleware

import (
	"context"
	"time"

	"github.com/agentstation/operation"
)

// Logging logs every node invocation with its outcome. Failures are logged
// at error level, retries and waits at debug level.
func Logging(logger operation.Logger) operation.Middleware {
	return func(node string, next operation.NodeBody) operation.NodeBody {
		return operation.NodeFunc(func(ctx context.Context, bot *operation.Context) operation.RoundResult {
			start := time.Now()
			r := next.Run(ctx, bot)

			kv := []any{
				"node", node,
				"mode", r.Mode.String(),
				"status", r.Status,
				"duration", time.Since(start),
			}
			switch r.Mode {
			case operation.ModeFail:
				logger.Error(ctx, "node failed", kv...)
			case operation.ModeSuccess:
				logger.Info(ctx, "node succeeded", kv...)
			default:
				logger.Debug(ctx, "node looping", append(kv, "delay", r.Delay)...)
			}
			return r
		})
	}
}
