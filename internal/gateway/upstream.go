package gateway

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tlsgatedev/tlsgate/internal/pipeline"
)

// Upstream is the pipeline.Handler that forwards requests to the service
// tlsgate fronts. It limits concurrent in-flight requests with a slot
// semaphore: Ready reserves a slot, the following Dispatch consumes it,
// and the slot is released once the result resolves. An unconsumed
// reservation carries over to the next dispatch.
type Upstream struct {
	base     *url.URL
	client   *http.Client
	slots    chan struct{}
	reserved atomic.Bool
	logger   zerolog.Logger
}

// Compile-time assertion that Upstream implements pipeline.Handler.
var _ pipeline.Handler = (*Upstream)(nil)

// NewUpstream creates an Upstream for the given base URL with connection
// pooling, a per-request timeout, and at most maxInflight concurrent
// requests.
func NewUpstream(baseURL string, timeout time.Duration, maxInflight int, logger zerolog.Logger) (*Upstream, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: parsing upstream url %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: upstream url %q must be absolute", baseURL)
	}
	if maxInflight < 1 {
		maxInflight = 1
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Upstream{
		base: base,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		slots:  make(chan struct{}, maxInflight),
		logger: logger,
	}, nil
}

// Ready waits until an in-flight slot is free and reserves it for the
// next dispatch. A reservation that is already held makes Ready return
// immediately.
func (u *Upstream) Ready(ctx context.Context) error {
	if u.reserved.Load() {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case u.slots <- struct{}{}:
		u.reserved.Store(true)
		return nil
	}
}

// Dispatch forwards the request to the upstream asynchronously and
// returns the pending result. Any error from the upstream resolves the
// result untranslated.
func (u *Upstream) Dispatch(ctx context.Context, req *pipeline.Request) *pipeline.Result {
	res, resolve := pipeline.NewPending()
	hadReservation := u.reserved.CompareAndSwap(true, false)

	go func() {
		if !hadReservation {
			// Dispatched without an affirmed reservation; acquire one now.
			select {
			case <-ctx.Done():
				resolve(nil, ctx.Err())
				return
			case u.slots <- struct{}{}:
			}
		}
		defer func() { <-u.slots }()

		resolve(u.roundTrip(ctx, req))
	}()

	return res
}

// roundTrip performs the actual upstream HTTP exchange.
func (u *Upstream) roundTrip(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	target := *u.base
	if req.URL != nil {
		target.Path = req.URL.Path
		target.RawQuery = req.URL.RawQuery
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), req.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: building upstream request: %w", err)
	}
	for key, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(key, v)
		}
	}

	start := time.Now()
	httpResp, err := u.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway: forwarding to %s: %w", target.String(), err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: reading upstream response: %w", err)
	}

	u.logger.Debug().
		Str("request_id", req.ID).
		Str("path", target.Path).
		Int("status", httpResp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("upstream response")

	resp := pipeline.NewResponse(httpResp.StatusCode)
	resp.Header = httpResp.Header.Clone()
	resp.Body = body
	return resp, nil
}
