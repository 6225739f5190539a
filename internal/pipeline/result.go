package pipeline

import (
	"context"
	"errors"
	"sync"
)

// ErrResolved is returned when an already-consumed immediate Result is
// awaited again. Resolving twice is a caller contract violation; failing
// loudly beats silently fabricating a second response.
var ErrResolved = errors.New("pipeline: result already resolved")

// State identifies which variant a Result is. The state is fixed at
// construction; a Result never transitions between states, it only
// progresses toward resolution.
type State int

const (
	// StatePending is a leaf result that a handler resolves asynchronously.
	StatePending State = iota
	// StateForwarding delegates every resolution to a wrapped inner result.
	StateForwarding
	// StateImmediate holds exactly one unconsumed response.
	StateImmediate
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateForwarding:
		return "forwarding"
	case StateImmediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// Result is the asynchronous outcome of a dispatch. It is created per
// dispatch and consumed exactly once by whoever drives the pipeline.
//
// A forwarding Result passes its inner result's value, error, and
// readiness through unchanged. An immediate Result resolves on its first
// Await and holds nothing afterwards; it can never carry an error.
type Result struct {
	state State

	// forwarding
	inner *Result

	// pending
	done chan struct{}
	resp *Response
	err  error

	// immediate
	mu        sync.Mutex
	immediate *Response
	consumed  bool
}

// ResolveFunc completes a pending Result. It is one-shot; calls after the
// first are ignored.
type ResolveFunc func(*Response, error)

// NewPending creates a leaf Result and the function that resolves it.
// Handlers that complete work asynchronously hand the Result to the caller
// and invoke the resolve function when done.
func NewPending() (*Result, ResolveFunc) {
	r := &Result{
		state: StatePending,
		done:  make(chan struct{}),
	}
	var once sync.Once
	resolve := func(resp *Response, err error) {
		once.Do(func() {
			r.resp = resp
			r.err = err
			close(r.done)
		})
	}
	return r, resolve
}

// NewForwarding wraps a downstream pending result. Every resolution
// attempt delegates verbatim to inner.
func NewForwarding(inner *Result) *Result {
	return &Result{state: StateForwarding, inner: inner}
}

// NewImmediate creates an already-resolved Result holding resp.
func NewImmediate(resp *Response) *Result {
	return &Result{state: StateImmediate, immediate: resp}
}

// State reports which variant this Result is.
func (r *Result) State() State {
	return r.state
}

// Await resolves the Result. For a forwarding Result it waits on the
// downstream computation, returning its response or error untranslated;
// cancelling ctx abandons the wait. For an immediate Result it returns
// the held response without suspending; a second Await fails with
// ErrResolved.
func (r *Result) Await(ctx context.Context) (*Response, error) {
	switch r.state {
	case StateForwarding:
		return r.inner.Await(ctx)
	case StateImmediate:
		return r.take()
	default:
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.done:
			return r.resp, r.err
		}
	}
}

// Done returns a channel that is closed once the Result is resolvable
// without suspending. For an immediate Result the channel is already
// closed.
func (r *Result) Done() <-chan struct{} {
	switch r.state {
	case StateForwarding:
		return r.inner.Done()
	case StateImmediate:
		return closedChan
	default:
		return r.done
	}
}

// take removes and returns the held response of an immediate Result.
func (r *Result) take() (*Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed {
		return nil, ErrResolved
	}
	r.consumed = true
	resp := r.immediate
	r.immediate = nil
	return resp, nil
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
