// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package srr

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the processor's Prometheus collectors. The collectors
// always exist; they are registered only when a Registerer is given.
type metrics struct {
	requests *prometheus.CounterVec   // requests by operation and outcome
	features *prometheus.CounterVec   // feature results by operation, feature and status
	states   *prometheus.CounterVec   // request state transitions
	duration *prometheus.HistogramVec // request handling time
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "srr",
			Subsystem: "processor",
			Name:      "requests_total",
			Help:      "Requests handled, by operation and outcome",
		}, []string{"operation", "outcome"}),

		features: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "srr",
			Subsystem: "processor",
			Name:      "feature_results_total",
			Help:      "Per-feature results, by operation, feature and status",
		}, []string{"operation", "feature", "status"}),

		states: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "srr",
			Subsystem: "processor",
			Name:      "request_states_total",
			Help:      "Request state transitions, by operation and state entered",
		}, []string{"operation", "state"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "srr",
			Subsystem: "processor",
			Name:      "request_duration_seconds",
			Help:      "Time from receiving a request to aggregating its response",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"operation"}),
	}
	if registerer == nil {
		return m, nil
	}
	for _, collector := range []prometheus.Collector{m.requests, m.features, m.states, m.duration} {
		if err := registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("registering processor metrics: %w", err)
		}
	}
	return m, nil
}

func (m *metrics) observeFeature(operation, feature string, status Status) {
	m.features.WithLabelValues(operation, feature, string(status)).Inc()
}

func (m *metrics) observeRequest(operation string, outcome string, started time.Time) {
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
