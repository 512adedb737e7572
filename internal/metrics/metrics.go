// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package metrics provides Prometheus instrumentation for the coordinator.
// Metrics are exposed at the /metrics endpoint in Prometheus text format.
//
// Available metrics:
//   - roomcast_connections: live websocket connections (gauge)
//   - roomcast_rooms: live rooms (gauge)
//   - roomcast_events_total: inbound protocol events (counter, label event)
//   - roomcast_events_rejected_total: events dropped by validation or
//     authorization (counter, label reason)
//   - roomcast_broadcasts_total: room broadcasts emitted (counter, label event)
//   - roomcast_rate_limited_total: events dropped by the rate limiter (counter)
//   - roomcast_media_jobs_total: finished media jobs (counter, label status)
//   - roomcast_http_requests_total: HTTP requests (counter, labels method,
//     endpoint, status)
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connections tracks live websocket connections.
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roomcast_connections",
		Help: "Number of live websocket connections.",
	})

	// Rooms tracks live rooms.
	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roomcast_rooms",
		Help: "Number of live rooms.",
	})

	// Events counts inbound protocol events by name.
	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomcast_events_total",
		Help: "Inbound protocol events.",
	}, []string{"event"})

	// EventsRejected counts dropped events by reason.
	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomcast_events_rejected_total",
		Help: "Events dropped by validation or authorization.",
	}, []string{"reason"})

	// Broadcasts counts room broadcasts by event name.
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomcast_broadcasts_total",
		Help: "Room broadcasts emitted.",
	}, []string{"event"})

	// RateLimited counts events dropped by the per-address limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomcast_rate_limited_total",
		Help: "Events dropped by the rate limiter.",
	})

	// MediaJobs counts finished media jobs by terminal status.
	MediaJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomcast_media_jobs_total",
		Help: "Finished media jobs.",
	}, []string{"status"})

	// HTTPRequests counts HTTP requests.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomcast_http_requests_total",
		Help: "HTTP requests served.",
	}, []string{"method", "endpoint", "status"})

	// HTTPDuration observes request latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roomcast_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"method", "endpoint"})
)

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response status for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments a route group with request count and latency.
// endpoint should be the group name, not the raw path.
func Middleware(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			HTTPRequests.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
			HTTPDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		})
	}
}
