package metrics

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.RecordIntercept()
	c.RecordIntercept()
	c.RecordForward(false)
	c.RecordForward(true)

	stats := c.Stats()
	if stats.Dispatches != 4 {
		t.Errorf("Dispatches: got %d, want 4", stats.Dispatches)
	}
	if stats.Intercepts != 2 {
		t.Errorf("Intercepts: got %d, want 2", stats.Intercepts)
	}
	if stats.Forwards != 2 {
		t.Errorf("Forwards: got %d, want 2", stats.Forwards)
	}
	if stats.DownstreamErrors != 1 {
		t.Errorf("DownstreamErrors: got %d, want 1", stats.DownstreamErrors)
	}
	if stats.InterceptRate != 50 {
		t.Errorf("InterceptRate: got %g, want 50", stats.InterceptRate)
	}
}

func TestCollectorActiveRequests(t *testing.T) {
	c := NewCollector()

	c.IncrementActive()
	c.IncrementActive()
	c.DecrementActive()

	if got := c.Stats().ActiveRequests; got != 1 {
		t.Errorf("ActiveRequests: got %d, want 1", got)
	}
}

func TestCollectorConcurrentUpdates(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordIntercept()
			c.RecordForward(false)
		}()
	}
	wg.Wait()

	stats := c.Stats()
	if stats.Dispatches != 100 || stats.Intercepts != 50 || stats.Forwards != 50 {
		t.Errorf("unexpected stats after concurrent updates: %+v", stats)
	}
}

func TestPrometheusHandler(t *testing.T) {
	c := NewCollector()
	c.RecordIntercept()
	c.RecordForward(false)

	rec := httptest.NewRecorder()
	PrometheusHandler(c)(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
	for _, want := range []string{
		"tlsgate_dispatches_total 2",
		"tlsgate_intercepts_total 1",
		"tlsgate_forwards_total 1",
		"# TYPE tlsgate_intercept_rate gauge",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q:\n%s", want, body)
		}
	}
}
