// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the gateway.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the chat
// pipeline. Metrics include:
//   - Request counters (by intent and status)
//   - Pipeline latency histograms
//   - PII detection counters (by category)
//   - Search trigger counters
//   - Backend failure counters (by backend and kind)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "caremesh"

// Subsystem for chat pipeline metrics
const chatSubsystem = "chat"

// PipelineMetrics holds all Prometheus metrics for chat pipeline operations.
//
// # Fields
//
//   - RequestsTotal: Counter of chat requests by intent and status
//   - PipelineDurationSeconds: Histogram of end-to-end pipeline latency
//   - PIIDetectionsTotal: Counter of PII detections by category
//   - SearchTriggersTotal: Counter of search decisions by outcome
//   - BackendFailuresTotal: Counter of backend failures by backend and kind
//   - ActiveRequests: Gauge of in-flight pipeline executions
type PipelineMetrics struct {
	// RequestsTotal counts chat requests.
	// Labels: intent (symptoms, screening, ...), status (success, fallback)
	RequestsTotal *prometheus.CounterVec

	// PipelineDurationSeconds measures end-to-end pipeline latency.
	// Labels: status (success, fallback)
	PipelineDurationSeconds *prometheus.HistogramVec

	// PIIDetectionsTotal counts PII detections by category label.
	// Labels: category (names, phone, processing_error, ...)
	PIIDetectionsTotal *prometheus.CounterVec

	// SearchTriggersTotal counts search decisions.
	// Labels: outcome (triggered, skipped, failed)
	SearchTriggersTotal *prometheus.CounterVec

	// BackendFailuresTotal counts external backend failures.
	// Labels: backend (llm, sanitizer, search), kind (timeout, connection, status, decode)
	BackendFailuresTotal *prometheus.CounterVec

	// ActiveRequests tracks in-flight pipeline executions.
	ActiveRequests prometheus.Gauge
}

// DefaultMetrics is the singleton instance of PipelineMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *PipelineMetrics

// InitMetrics creates and registers all Prometheus metrics. Call once at
// application startup; a second call panics on duplicate registration.
func InitMetrics() *PipelineMetrics {
	DefaultMetrics = &PipelineMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "requests_total",
				Help:      "Total number of chat requests by intent and status",
			},
			[]string{"intent", "status"},
		),

		PipelineDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "pipeline_duration_seconds",
				Help:      "End-to-end chat pipeline latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"status"},
		),

		PIIDetectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "pii_detections_total",
				Help:      "Total PII detections by category",
			},
			[]string{"category"},
		),

		SearchTriggersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "search_triggers_total",
				Help:      "Total web search decisions by outcome",
			},
			[]string{"outcome"},
		),

		BackendFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "backend_failures_total",
				Help:      "Total external backend failures by backend and kind",
			},
			[]string{"backend", "kind"},
		),

		ActiveRequests: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "active_requests",
				Help:      "Number of chat pipeline executions in flight",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Recording Helpers
// =============================================================================

// RecordRequest increments the request counter for an intent and outcome.
func (m *PipelineMetrics) RecordRequest(intent string, success bool) {
	status := StatusSuccess
	if !success {
		status = StatusFallback
	}
	m.RequestsTotal.WithLabelValues(intent, status).Inc()
}

// RecordDuration observes one pipeline execution's latency in seconds.
func (m *PipelineMetrics) RecordDuration(seconds float64, success bool) {
	status := StatusSuccess
	if !success {
		status = StatusFallback
	}
	m.PipelineDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordPIIDetection increments the detection counter for each category.
func (m *PipelineMetrics) RecordPIIDetection(categories []string) {
	for _, category := range categories {
		m.PIIDetectionsTotal.WithLabelValues(category).Inc()
	}
}

// RecordSearchOutcome increments the search decision counter.
func (m *PipelineMetrics) RecordSearchOutcome(outcome string) {
	m.SearchTriggersTotal.WithLabelValues(outcome).Inc()
}

// RecordBackendFailure increments the failure counter for a backend.
func (m *PipelineMetrics) RecordBackendFailure(backend, kind string) {
	m.BackendFailuresTotal.WithLabelValues(backend, kind).Inc()
}

// RequestStarted marks a pipeline execution as in flight.
func (m *PipelineMetrics) RequestStarted() {
	m.ActiveRequests.Inc()
}

// RequestEnded marks a pipeline execution as finished.
func (m *PipelineMetrics) RequestEnded() {
	m.ActiveRequests.Dec()
}

// =============================================================================
// Label Values
// =============================================================================

// Pipeline status labels.
const (
	StatusSuccess  = "success"
	StatusFallback = "fallback"
)

// Search decision outcome labels.
const (
	SearchTriggered = "triggered"
	SearchSkipped   = "skipped"
	SearchFailed    = "failed"
)
