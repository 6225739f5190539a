package pipeline

import "context"

// Handler is the two-phase dispatch contract every pipeline stage speaks.
// Callers must affirm readiness before each dispatch; a Handler is never
// dispatched against while it reports not-ready. That discipline is owned
// by the caller and not re-validated here.
type Handler interface {
	// Ready waits until the handler can accept one dispatch. It returns
	// nil when the handler is ready, or the context error if ctx is
	// cancelled first. It must wait cooperatively, never by spinning.
	Ready(ctx context.Context) error

	// Dispatch accepts exactly one request and returns its pending result.
	// Dispatch itself must not block on the work; the Result carries it.
	Dispatch(ctx context.Context, req *Request) *Result
}

// HandlerFunc adapts a plain function to the Handler interface. The
// function runs synchronously inside Dispatch and its outcome is returned
// as an already-resolved Result. A HandlerFunc is always ready.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Ready reports readiness immediately, honoring a cancelled context.
func (f HandlerFunc) Ready(ctx context.Context) error {
	return ctx.Err()
}

// Dispatch invokes the function and wraps its outcome in a resolved Result.
func (f HandlerFunc) Dispatch(ctx context.Context, req *Request) *Result {
	res, resolve := NewPending()
	resp, err := f(ctx, req)
	resolve(resp, err)
	return res
}

// Layer wraps a Handler with additional behaviour, producing a new Handler.
type Layer interface {
	Wrap(next Handler) Handler
}

// LayerFunc adapts a plain function to the Layer interface.
type LayerFunc func(next Handler) Handler

func (f LayerFunc) Wrap(next Handler) Handler { return f(next) }

// Compose applies layers around h. The first layer becomes the outermost
// wrapper, so requests traverse layers in the order given.
func Compose(h Handler, layers ...Layer) Handler {
	for i := len(layers) - 1; i >= 0; i-- {
		h = layers[i].Wrap(h)
	}
	return h
}
