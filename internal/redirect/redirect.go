// Package redirect decides, per request, whether the pipeline should keep
// going or answer immediately with a synthesized response. The shipped
// policy enforces HTTPS, but any Redirector can be installed.
package redirect

import (
	"github.com/tlsgatedev/tlsgate/internal/pipeline"
)

// Decision is the outcome of a Redirector call. Both variants are valid,
// expected outcomes; neither is an error.
type Decision struct {
	response *pipeline.Response
}

// Continue signals that the request should proceed downstream, possibly
// mutated in place by the policy.
func Continue() Decision {
	return Decision{}
}

// Intercept short-circuits the request with an immediate response. The
// downstream handler is never touched on this path.
func Intercept(resp *pipeline.Response) Decision {
	return Decision{response: resp}
}

// Intercepted reports whether the decision short-circuits the request.
func (d Decision) Intercepted() bool {
	return d.response != nil
}

// Response returns the intercept response, or nil for a continue decision.
func (d Decision) Response() *pipeline.Response {
	return d.response
}

// Redirector is a pluggable per-request policy. Implementations may
// mutate the request in place even when continuing, must decide
// synchronously and cheaply, and must never perform I/O.
type Redirector interface {
	Redirect(req *pipeline.Request) Decision
}

// RedirectorFunc adapts a plain function to the Redirector interface, so
// simple policies need no named type.
type RedirectorFunc func(req *pipeline.Request) Decision

func (f RedirectorFunc) Redirect(req *pipeline.Request) Decision { return f(req) }
