// Package kit defines the transport-agnostic endpoint abstraction shared by
// the HTTP and MCP surfaces. A handler is written once as an Endpoint and
// exposed over any transport through a thin adapter.
package kit

import "context"

// Endpoint is a transport-agnostic request handler.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares left to right: the first middleware is the
// outermost. Chain(a, b, c)(e) runs a before b before c before e.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
