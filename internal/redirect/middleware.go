package redirect

import (
	"context"

	"github.com/tlsgatedev/tlsgate/internal/pipeline"
)

// Middleware wraps a downstream handler with a redirect policy. Per
// dispatch it consults the policy exactly once: a continue decision
// forwards the request downstream and wraps the pending result, an
// intercept decision answers immediately without touching downstream.
//
// A Middleware owns its handler and policy and holds no other state, so
// shallow copies serve concurrent requests independently.
type Middleware struct {
	next   pipeline.Handler
	policy Redirector
}

// Compile-time assertion that Middleware implements pipeline.Handler.
var _ pipeline.Handler = (*Middleware)(nil)

// NewMiddleware creates a Middleware around the downstream handler.
func NewMiddleware(next pipeline.Handler, policy Redirector) *Middleware {
	return &Middleware{next: next, policy: policy}
}

// Ready reports exactly the downstream handler's readiness. The
// middleware introduces no capacity limit of its own.
func (m *Middleware) Ready(ctx context.Context) error {
	return m.next.Ready(ctx)
}

// Dispatch consults the policy and either forwards or intercepts.
func (m *Middleware) Dispatch(ctx context.Context, req *pipeline.Request) *pipeline.Result {
	if d := m.policy.Redirect(req); d.Intercepted() {
		return pipeline.NewImmediate(d.Response())
	}
	return pipeline.NewForwarding(m.next.Dispatch(ctx, req))
}

// Layer slots a redirect policy into a handler chain built with
// pipeline.Compose.
type Layer struct {
	policy Redirector
}

// Compile-time assertion that Layer implements pipeline.Layer.
var _ pipeline.Layer = Layer{}

// NewLayer creates a Layer that wraps handlers with the given policy.
func NewLayer(policy Redirector) Layer {
	return Layer{policy: policy}
}

// Wrap implements the pipeline.Layer interface.
func (l Layer) Wrap(next pipeline.Handler) pipeline.Handler {
	return NewMiddleware(next, l.policy)
}
