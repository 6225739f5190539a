package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tlsgatedev/tlsgate/internal/metrics"
	"github.com/tlsgatedev/tlsgate/internal/pipeline"
	"github.com/tlsgatedev/tlsgate/internal/store"
)

// Handler bridges net/http onto the pipeline. Per request it affirms
// readiness, dispatches through the handler chain, drives the result to
// completion, and records the decision in metrics and the audit log.
type Handler struct {
	chain     pipeline.Handler
	collector *metrics.Collector
	store     *store.Store // may be nil
	logger    zerolog.Logger
}

// NewHandler creates the bridge around the composed handler chain. The
// store may be nil to disable audit logging.
func NewHandler(chain pipeline.Handler, collector *metrics.Collector, st *store.Store, logger zerolog.Logger) *Handler {
	return &Handler{
		chain:     chain,
		collector: collector,
		store:     st,
		logger:    logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := requestFromHTTP(r)

	h.collector.IncrementActive()
	defer h.collector.DecrementActive()

	if err := h.chain.Ready(r.Context()); err != nil {
		h.logger.Warn().Err(err).Str("request_id", req.ID).Msg("pipeline not ready")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	res := h.chain.Dispatch(r.Context(), req)
	intercepted := res.State() == pipeline.StateImmediate

	resp, err := res.Await(r.Context())
	latency := time.Since(start)

	if err != nil {
		h.collector.RecordForward(true)
		h.logger.Error().Err(err).
			Str("request_id", req.ID).
			Str("path", r.URL.Path).
			Msg("downstream error")
		h.audit(req, r, store.OutcomeForward, "", http.StatusBadGateway, latency, err.Error())
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	location := resp.Header.Get("Location")
	if intercepted {
		h.collector.RecordIntercept()
		h.audit(req, r, store.OutcomeIntercept, location, resp.StatusCode, latency, "")
	} else {
		h.collector.RecordForward(false)
		h.audit(req, r, store.OutcomeForward, "", resp.StatusCode, latency, "")
	}

	h.logger.Info().
		Str("request_id", req.ID).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", resp.StatusCode).
		Bool("intercepted", intercepted).
		Dur("duration", latency).
		Msg("request completed")

	writeResponse(w, resp)
}

// audit records a decision row, logging failures instead of surfacing
// them to the client.
func (h *Handler) audit(req *pipeline.Request, r *http.Request, outcome, location string, status int, latency time.Duration, errMsg string) {
	if h.store == nil {
		return
	}
	d := &store.Decision{
		ID:           req.ID,
		Timestamp:    req.ReceivedAt.UTC().Format(time.RFC3339),
		Method:       req.Method,
		Host:         r.Host,
		Path:         r.URL.Path,
		Query:        r.URL.RawQuery,
		Outcome:      outcome,
		Location:     location,
		StatusCode:   status,
		LatencyMs:    latency.Milliseconds(),
		ErrorMessage: errMsg,
		RemoteAddr:   req.RemoteAddr,
	}
	if err := h.store.InsertDecision(d); err != nil {
		h.logger.Error().Err(err).Str("request_id", req.ID).Msg("audit insert failed")
	}
}

// requestFromHTTP builds a pipeline request from a server request. Server
// requests carry relative URLs; the scheme is recovered from the TLS
// state and the authority from the Host header so that policies see an
// absolute URL.
func requestFromHTTP(r *http.Request) *pipeline.Request {
	u := *r.URL
	if u.Scheme == "" {
		if r.TLS != nil {
			u.Scheme = "https"
		} else {
			u.Scheme = "http"
		}
	}
	if u.Host == "" {
		u.Host = r.Host
	}

	return &pipeline.Request{
		ID:         uuid.New().String(),
		ReceivedAt: time.Now(),
		Method:     r.Method,
		URL:        &u,
		Header:     r.Header,
		Body:       r.Body,
		RemoteAddr: r.RemoteAddr,
	}
}

// writeResponse copies a pipeline response onto the wire.
func writeResponse(w http.ResponseWriter, resp *pipeline.Response) {
	for key, vals := range resp.Header {
		for _, v := range vals {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		w.Write(resp.Body) //nolint:errcheck
	}
}
