package main

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics lives on its own registry so every Server (and every test) starts
// from zero.
type metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	responseBytes     prometheus.Counter
	sendFailures      prometheus.Counter
	activeConnections prometheus.Gauge
	requestDuration   prometheus.Histogram
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &metrics{
		registry: registry,

		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "minihttpd",
				Name:      "requests_total",
				Help:      "Total number of answered requests by status code",
			},
			[]string{"code"},
		),

		responseBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "minihttpd",
				Name:      "response_bytes_total",
				Help:      "Total bytes written to clients, headers included",
			},
		),

		sendFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "minihttpd",
				Name:      "send_failures_total",
				Help:      "Total number of responses that could not be fully written",
			},
		),

		activeConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "minihttpd",
				Name:      "connections_active",
				Help:      "Number of connections currently being handled",
			},
		),

		requestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "minihttpd",
				Name:      "request_duration_seconds",
				Help:      "Time from accept to close",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

func (m *metrics) observeResponse(status int, written int64) {
	m.requests.WithLabelValues(strconv.Itoa(status)).Inc()
	m.responseBytes.Add(float64(written))
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
