package testutil

import (
	"testing"
	"time"

	"github.com/tlsgatedev/tlsgate/internal/pipeline"
	"github.com/tlsgatedev/tlsgate/internal/redirect"
	"github.com/tlsgatedev/tlsgate/internal/store"
)

// InsecureRequest builds a plain-HTTP request for the given path,
// the kind the redirect policy intercepts.
func InsecureRequest(t *testing.T, path string) *pipeline.Request {
	t.Helper()
	req, err := pipeline.NewRequest("GET", "http://example.com"+path)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	return req
}

// SecureRequest builds a request that already arrived over HTTPS.
func SecureRequest(t *testing.T, path string) *pipeline.Request {
	t.Helper()
	req, err := pipeline.NewRequest("GET", "https://example.com"+path)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	return req
}

// ForwardedSecureRequest builds a plain-scheme request carrying the
// forwarded-proto header a TLS-terminating proxy would set.
func ForwardedSecureRequest(t *testing.T, path string) *pipeline.Request {
	t.Helper()
	req := InsecureRequest(t, path)
	req.Header.Set(redirect.ForwardedProtoHeader, "https")
	return req
}

// SampleDecision returns an audit row suitable for store tests.
func SampleDecision() *store.Decision {
	return &store.Decision{
		ID:         "test-decision-123",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Method:     "GET",
		Host:       "example.com",
		Path:       "/foo",
		Query:      "x=1",
		Outcome:    store.OutcomeIntercept,
		Location:   "https://localhost/foo?x=1",
		StatusCode: 301,
		LatencyMs:  2,
		RemoteAddr: "192.0.2.1:50000",
	}
}
