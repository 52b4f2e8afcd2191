// Package transport selects between the synchronous HTTP transport and the
// RPC channel for each downstream call. Callers only ever see a normalized
// forward.Outcome; transport selection can fall back but never fail.
package transport

import (
	"context"

	"lexgate/internal/forward"
	"lexgate/pkg/requestcontext"
)

// Transport issues one downstream call and normalizes the result.
type Transport interface {
	Invoke(ctx context.Context, req forward.Request) forward.Outcome
	Name() string
}

// HTTPTransport adapts the forwarder to the Transport interface. It is the
// default for every service.
type HTTPTransport struct {
	forwarder *forward.Forwarder
}

func NewHTTPTransport(f *forward.Forwarder) *HTTPTransport {
	return &HTTPTransport{forwarder: f}
}

func (t *HTTPTransport) Invoke(ctx context.Context, req forward.Request) forward.Outcome {
	return t.forwarder.Forward(ctx, req)
}

func (t *HTTPTransport) Name() string { return "http" }

// Selector picks a transport per request. The RPC channel is used only when
// the caller signaled preference and the channel for that service connected
// at startup; availability is a process-lifetime fact, never re-checked per
// call.
type Selector struct {
	httpTransport Transport
	rpc           *RPCClient
}

func NewSelector(httpTransport Transport, rpc *RPCClient) *Selector {
	return &Selector{httpTransport: httpTransport, rpc: rpc}
}

// Select returns the transport for one call. Fallback to HTTP is silent.
func (s *Selector) Select(ctx context.Context, service string) Transport {
	if requestcontext.PreferRPC(ctx) && s.rpc.Available(service) {
		return s.rpc.Transport(service)
	}
	return s.httpTransport
}
