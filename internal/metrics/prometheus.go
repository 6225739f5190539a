package metrics

import (
	"fmt"
	"net/http"
	"time"
)

// PrometheusHandler returns an http.HandlerFunc that writes metrics in
// Prometheus text exposition format (version 0.0.4). It does not require
// the Prometheus client library; metrics are formatted manually.
func PrometheusHandler(collector *Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := collector.Stats()
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		uptimeSeconds := time.Since(collector.startTime).Seconds()

		writeMetric(w, "tlsgate_dispatches_total",
			"Total number of dispatched requests.",
			"counter", stats.Dispatches)

		writeMetric(w, "tlsgate_intercepts_total",
			"Total number of requests answered with a redirect.",
			"counter", stats.Intercepts)

		writeMetric(w, "tlsgate_forwards_total",
			"Total number of requests forwarded to the upstream.",
			"counter", stats.Forwards)

		writeMetric(w, "tlsgate_downstream_errors_total",
			"Total number of forwarded requests that failed downstream.",
			"counter", stats.DownstreamErrors)

		writeMetricFloat(w, "tlsgate_intercept_rate",
			"Percentage of dispatches answered with a redirect.",
			"gauge", stats.InterceptRate)

		writeMetric(w, "tlsgate_active_requests",
			"Number of requests currently being processed.",
			"gauge", stats.ActiveRequests)

		writeMetricFloat(w, "tlsgate_uptime_seconds",
			"Number of seconds since the service started.",
			"gauge", uptimeSeconds)
	}
}

// writeMetric writes a single integer metric in Prometheus text format.
func writeMetric(w http.ResponseWriter, name, help, metricType string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, metricType)
	fmt.Fprintf(w, "%s %d\n", name, value)
}

// writeMetricFloat writes a single float64 metric in Prometheus text format.
func writeMetricFloat(w http.ResponseWriter, name, help, metricType string, value float64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, metricType)
	fmt.Fprintf(w, "%s %g\n", name, value)
}
