package redirect

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/tlsgatedev/tlsgate/internal/pipeline"
)

// ---------------------------------------------------------------------------
// Mock downstream handler
// ---------------------------------------------------------------------------

type mockHandler struct {
	dispatches int
	readyErr   error
	lastReq    *pipeline.Request
	respond    func(req *pipeline.Request) (*pipeline.Response, error)
}

func (m *mockHandler) Ready(ctx context.Context) error {
	return m.readyErr
}

func (m *mockHandler) Dispatch(ctx context.Context, req *pipeline.Request) *pipeline.Result {
	m.dispatches++
	m.lastReq = req
	res, resolve := pipeline.NewPending()
	if m.respond != nil {
		resolve(m.respond(req))
	} else {
		resolve(pipeline.NewResponse(http.StatusOK), nil)
	}
	return res
}

// countingPolicy wraps a Redirector and counts decision calls.
type countingPolicy struct {
	inner Redirector
	calls int
}

func (c *countingPolicy) Redirect(req *pipeline.Request) Decision {
	c.calls++
	return c.inner.Redirect(req)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestMiddlewareForwardsSecureRequest(t *testing.T) {
	downstream := &mockHandler{}
	policy := &countingPolicy{inner: newPolicy(t, "localhost")}
	mw := NewMiddleware(downstream, policy)

	req := newReq(t, http.MethodGet, "https://localhost/foo")
	res := mw.Dispatch(context.Background(), req)

	if res.State() != pipeline.StateForwarding {
		t.Fatalf("expected a forwarding result, got %v", res.State())
	}
	if downstream.dispatches != 1 {
		t.Fatalf("downstream must be invoked exactly once, got %d", downstream.dispatches)
	}
	if policy.calls != 1 {
		t.Fatalf("policy must be consulted exactly once, got %d", policy.calls)
	}
	if downstream.lastReq != req {
		t.Fatal("downstream must receive the same request value")
	}

	resp, err := res.Await(context.Background())
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected downstream response unchanged, got %d", resp.StatusCode)
	}
}

func TestMiddlewareInterceptsInsecureRequest(t *testing.T) {
	downstream := &mockHandler{}
	mw := NewMiddleware(downstream, newPolicy(t, "localhost"))

	req := newReq(t, http.MethodGet, "http://localhost/foo?x=1")
	res := mw.Dispatch(context.Background(), req)

	if res.State() != pipeline.StateImmediate {
		t.Fatalf("expected an immediate result, got %v", res.State())
	}
	if downstream.dispatches != 0 {
		t.Fatal("downstream must never be invoked on the intercept path")
	}

	resp, err := res.Await(context.Background())
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if resp.StatusCode != http.StatusMovedPermanently {
		t.Fatalf("expected 301, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://localhost/foo?x=1" {
		t.Fatalf("unexpected Location %q", loc)
	}
}

func TestMiddlewareEchoesDownstreamResponse(t *testing.T) {
	downstream := &mockHandler{
		respond: func(req *pipeline.Request) (*pipeline.Response, error) {
			resp := pipeline.NewResponse(http.StatusAccepted)
			resp.Header.Set("X-Upstream", "yes")
			resp.Body = []byte("hello")
			return resp, nil
		},
	}
	mw := NewMiddleware(downstream, newPolicy(t, "localhost"))

	req := newReq(t, http.MethodGet, "https://localhost/foo")
	req.Header.Set(ForwardedProtoHeader, "https")

	resp, err := mw.Dispatch(context.Background(), req).Await(context.Background())
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted || resp.Header.Get("X-Upstream") != "yes" || string(resp.Body) != "hello" {
		t.Fatalf("downstream response was not returned unchanged: %+v", resp)
	}
}

func TestMiddlewarePassesDownstreamErrorThrough(t *testing.T) {
	downstreamErr := errors.New("connection refused")
	downstream := &mockHandler{
		respond: func(req *pipeline.Request) (*pipeline.Response, error) {
			return nil, downstreamErr
		},
	}
	mw := NewMiddleware(downstream, newPolicy(t, "localhost"))

	req := newReq(t, http.MethodGet, "https://localhost/")
	_, err := mw.Dispatch(context.Background(), req).Await(context.Background())
	if !errors.Is(err, downstreamErr) {
		t.Fatalf("expected the downstream error untranslated, got %v", err)
	}
}

func TestMiddlewareReadinessPassthrough(t *testing.T) {
	downstream := &mockHandler{}
	mw := NewMiddleware(downstream, newPolicy(t, "localhost"))

	if err := mw.Ready(context.Background()); err != nil {
		t.Fatalf("expected ready when downstream is ready: %v", err)
	}

	notReady := errors.New("at capacity")
	downstream.readyErr = notReady
	if err := mw.Ready(context.Background()); !errors.Is(err, notReady) {
		t.Fatalf("middleware readiness must mirror downstream, got %v", err)
	}
}

func TestLayerWiresMiddleware(t *testing.T) {
	downstream := &mockHandler{}
	h := pipeline.Compose(downstream, NewLayer(newPolicy(t, "localhost")))

	req := newReq(t, http.MethodGet, "http://localhost/bar")
	resp, err := h.Dispatch(context.Background(), req).Await(context.Background())
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if resp.StatusCode != http.StatusMovedPermanently {
		t.Fatalf("expected 301 through the layer, got %d", resp.StatusCode)
	}
	if downstream.dispatches != 0 {
		t.Fatal("downstream must not be reached through the layer on intercept")
	}
}
