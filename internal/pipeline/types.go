package pipeline

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Request is a single HTTP-shaped request flowing through the pipeline.
// It carries already-parsed metadata only; transport concerns live with
// whichever server produced it. Policies may mutate it in place while
// deciding what to do with it.
type Request struct {
	ID         string
	ReceivedAt time.Time
	Method     string
	URL        *url.URL
	Header     http.Header
	Body       io.ReadCloser
	RemoteAddr string
}

// NewRequest builds a Request from a method and an absolute or relative URL.
// The header map is initialized empty and the body is nil.
func NewRequest(method, rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("pipeline: parsing url %q: %w", rawURL, err)
	}
	return &Request{
		ReceivedAt: time.Now(),
		Method:     method,
		URL:        u,
		Header:     make(http.Header),
	}, nil
}

// Scheme returns the request URL scheme, or the empty string when the URL
// is absent or relative.
func (r *Request) Scheme() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Scheme
}

// Response is the result of dispatching a Request. A nil body is valid;
// synthesized responses (redirects, health probes) carry no body at all.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewResponse creates a Response with the given status code, an empty
// header map, and an empty body.
func NewResponse(status int) *Response {
	return &Response{
		StatusCode: status,
		Header:     make(http.Header),
	}
}
