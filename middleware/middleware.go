// Package middleware provides node wrappers for cross-cutting concerns
// like logging, timing, metrics, tracing and circuit breaking.
package middleware

import (
	"github.com/agentstation/operation"
)

// Chain combines multiple middlewares into a single middleware.
// The first middleware is the outermost, as with operation.WithMiddleware.
func Chain(middlewares ...operation.Middleware) operation.Middleware {
	return func(node string, next operation.NodeBody) operation.NodeBody {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](node, next)
		}
		return next
	}
}

// Apply wraps a single body, e.g. one that is run outside an Operation.
func Apply(node string, body operation.NodeBody, middlewares ...operation.Middleware) operation.NodeBody {
	return Chain(middlewares...)(node, body)
}

// Only restricts mw to the named nodes. Other nodes are left untouched.
func Only(mw operation.Middleware, nodes ...string) operation.Middleware {
	set := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		set[n] = true
	}
	return func(node string, next operation.NodeBody) operation.NodeBody {
		if !set[node] {
			return next
		}
		return mw(node, next)
	}
}
