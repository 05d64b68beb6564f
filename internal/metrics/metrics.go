// Package metrics exposes the Prometheus collectors shared across the HTTP
// layer, the voice channel and the store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	InvoiceOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_operations_total",
		Help: "Invoice confirms and cancels by outcome.",
	}, []string{"operation", "status"})

	BusinessOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "business_operations_total",
		Help: "Dispatched intents by outcome.",
	}, []string{"operation", "status"})

	VoiceSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_sessions_total",
		Help: "Voice sessions opened since process start.",
	})
)
