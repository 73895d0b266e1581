// Package metrics exposes prometheus instrumentation for the pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline bundles the counters and histograms shared by handlers.
type Pipeline struct {
	EventsProcessed *prometheus.CounterVec
	StockDecrements *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPLatencyMS   *prometheus.HistogramVec
}

// New registers the pipeline metrics on reg and returns them. Passing a
// fresh registry keeps tests isolated from the default one.
func New(reg prometheus.Registerer) *Pipeline {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderpipeline",
		Name:      "events_processed_total",
		Help:      "Handler invocations by handler and outcome.",
	}, []string{"handler", "outcome"})
	decrements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderpipeline",
		Name:      "stock_decrements_total",
		Help:      "Stock decrement attempts by outcome.",
	}, []string{"outcome"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderpipeline",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orderpipeline",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(events, decrements, requests, latency)
	return &Pipeline{
		EventsProcessed: events,
		StockDecrements: decrements,
		HTTPRequests:    requests,
		HTTPLatencyMS:   latency,
	}
}

// Handler serves the registry over HTTP.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
