// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability exposes Prometheus metrics for the assist proxy.
//
// Metrics live under the "intaste" namespace, "proxy" subsystem. Call
// InitMetrics once at startup; handlers read the DefaultMetrics
// singleton and must tolerate it being nil so tests can run without
// registering collectors.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "intaste"

const proxySubsystem = "proxy"

// Endpoint labels metrics by proxied route.
type Endpoint string

const (
	EndpointQueryStream Endpoint = "assist_query_stream"
	EndpointQuery       Endpoint = "assist_query"
	EndpointFeedback    Endpoint = "assist_feedback"
)

// ErrorCode labels error metrics with a bounded set of causes.
type ErrorCode string

const (
	ErrorCodeValidation       ErrorCode = "validation"
	ErrorCodeUpstream         ErrorCode = "upstream"
	ErrorCodeUpstreamStatus   ErrorCode = "upstream_status"
	ErrorCodeStreamUnsupported ErrorCode = "stream_unsupported"
	ErrorCodeClientDisconnect ErrorCode = "client_disconnect"
	ErrorCodeInternal         ErrorCode = "internal"
)

// ProxyMetrics bundles every collector the proxy emits.
type ProxyMetrics struct {
	RequestsTotal          *prometheus.CounterVec
	ErrorsTotal            *prometheus.CounterVec
	ActiveStreams          *prometheus.GaugeVec
	StreamDurationSeconds  *prometheus.HistogramVec
	StreamEventsTotal      *prometheus.CounterVec
	UpstreamLatencySeconds *prometheus.HistogramVec
}

// DefaultMetrics is the process-wide metrics instance. Nil until
// InitMetrics runs; every call site nil-checks it.
var DefaultMetrics *ProxyMetrics

// InitMetrics registers all proxy collectors with the default registry
// and installs the singleton. Call exactly once per process.
func InitMetrics() *ProxyMetrics {
	m := &ProxyMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: proxySubsystem,
				Name:      "requests_total",
				Help:      "Proxied assist requests by endpoint and outcome.",
			},
			[]string{"endpoint", "success"},
		),
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: proxySubsystem,
				Name:      "errors_total",
				Help:      "Proxy errors by endpoint and cause.",
			},
			[]string{"endpoint", "code"},
		),
		ActiveStreams: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: proxySubsystem,
				Name:      "active_streams",
				Help:      "Currently open SSE streams.",
			},
			[]string{"endpoint"},
		),
		StreamDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: proxySubsystem,
				Name:      "stream_duration_seconds",
				Help:      "Wall time of proxied SSE streams.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"endpoint", "success"},
		),
		StreamEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: proxySubsystem,
				Name:      "stream_events_total",
				Help:      "SSE messages forwarded to clients.",
			},
			[]string{"endpoint"},
		),
		UpstreamLatencySeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: proxySubsystem,
				Name:      "upstream_latency_seconds",
				Help:      "Time to the upstream response header.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
	}
	DefaultMetrics = m
	return m
}

// RecordRequest counts one finished request.
func (m *ProxyMetrics) RecordRequest(endpoint Endpoint, success bool) {
	m.RequestsTotal.WithLabelValues(string(endpoint), boolLabel(success)).Inc()
}

// RecordError counts one classified failure.
func (m *ProxyMetrics) RecordError(endpoint Endpoint, code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(endpoint), string(code)).Inc()
}

// StreamStarted marks a stream open.
func (m *ProxyMetrics) StreamStarted(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Inc()
}

// StreamEnded marks a stream closed.
func (m *ProxyMetrics) StreamEnded(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Dec()
}

// RecordStreamDuration records total stream wall time.
func (m *ProxyMetrics) RecordStreamDuration(endpoint Endpoint, seconds float64, success bool) {
	m.StreamDurationSeconds.WithLabelValues(string(endpoint), boolLabel(success)).Observe(seconds)
}

// RecordStreamEvents adds forwarded SSE message count.
func (m *ProxyMetrics) RecordStreamEvents(endpoint Endpoint, n int) {
	m.StreamEventsTotal.WithLabelValues(string(endpoint)).Add(float64(n))
}

// RecordUpstreamLatency records time to the upstream response header.
func (m *ProxyMetrics) RecordUpstreamLatency(endpoint Endpoint, seconds float64) {
	m.UpstreamLatencySeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
