package pipeline

import (
	"context"
	"net/http"
	"testing"
)

func TestHandlerFuncDispatch(t *testing.T) {
	var calls int
	h := HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
		calls++
		return NewResponse(http.StatusNoContent), nil
	})

	if err := h.Ready(context.Background()); err != nil {
		t.Fatalf("HandlerFunc should always be ready: %v", err)
	}

	req, err := NewRequest(http.MethodGet, "http://localhost/")
	if err != nil {
		t.Fatalf("building request: %v", err)
	}

	res := h.Dispatch(context.Background(), req)
	resp, err := res.Await(context.Background())
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one invocation, got %d", calls)
	}
}

func TestHandlerFuncNotReadyWhenCancelled(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
		return NewResponse(http.StatusOK), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Ready(ctx); err == nil {
		t.Fatal("expected readiness to fail under a cancelled context")
	}
}

func TestComposeOrder(t *testing.T) {
	var order []string

	tag := func(name string) Layer {
		return LayerFunc(func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
				order = append(order, name)
				res := next.Dispatch(ctx, req)
				return res.Await(ctx)
			})
		})
	}

	leaf := HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
		order = append(order, "leaf")
		return NewResponse(http.StatusOK), nil
	})

	h := Compose(leaf, tag("outer"), tag("inner"))

	req, _ := NewRequest(http.MethodGet, "/")
	if _, err := h.Dispatch(context.Background(), req).Await(context.Background()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	want := []string{"outer", "inner", "leaf"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestNewRequestRejectsBadURL(t *testing.T) {
	if _, err := NewRequest(http.MethodGet, "http://exa mple.com/"); err == nil {
		t.Fatal("expected an error for an unparsable url")
	}
}
