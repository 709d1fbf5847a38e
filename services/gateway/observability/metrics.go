// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics for the gateway.
//
// # Description
//
// This package implements Prometheus metrics for the reasoning backend
// channels and the mediated path. Metrics include:
//   - Probe results and latency
//   - Backend call outcomes by operation
//   - Streams by terminal outcome
//   - Answers by source, fallback reasons and fallback failures
//   - Circuit breaker state
//   - Gateway HTTP requests by route and status
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/tutorgate/services/gateway/brain"
	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
	"github.com/AleutianAI/tutorgate/services/gateway/fallback"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "tutorgate"

const (
	backendSubsystem  = "backend"
	mediatedSubsystem = "mediated"
	httpSubsystem     = "http"
)

var (
	_ brain.Observer    = (*Metrics)(nil)
	_ fallback.Recorder = (*Metrics)(nil)
)

// Metrics holds every Prometheus collector of the gateway.
//
// # Description
//
// Metrics implements brain.Observer and fallback.Recorder, so one instance
// is handed to both the channel client and the fallback controller.
//
// # Fields
//
//   - ProbesTotal: Probe results. Labels: healthy
//   - ProbeDurationSeconds: Probe latency
//   - CallsTotal: Backend calls. Labels: op, outcome
//   - CallDurationSeconds: Backend call latency. Labels: op
//   - StreamsTotal: Finished streams. Labels: outcome
//   - StreamEvents: Events read per stream
//   - AnswersTotal: Mediated answers. Labels: source
//   - AnswerDurationSeconds: Mediated latency. Labels: source
//   - FallbacksTotal: Questions moved to the single-model path. Labels: reason
//   - FallbackFailuresTotal: Single-model failures. Labels: reason
//   - BreakerState: 0 closed, 1 open, 2 half-open
//   - RequestsTotal: Gateway HTTP requests. Labels: route, status
type Metrics struct {
	ProbesTotal           *prometheus.CounterVec
	ProbeDurationSeconds  prometheus.Histogram
	CallsTotal            *prometheus.CounterVec
	CallDurationSeconds   *prometheus.HistogramVec
	StreamsTotal          *prometheus.CounterVec
	StreamEvents          prometheus.Histogram
	AnswersTotal          *prometheus.CounterVec
	AnswerDurationSeconds *prometheus.HistogramVec
	FallbacksTotal        *prometheus.CounterVec
	FallbackFailuresTotal *prometheus.CounterVec
	BreakerState          prometheus.Gauge
	RequestsTotal         *prometheus.CounterVec
}

// NewMetrics creates and registers every collector on reg.
//
// # Description
//
// Tests pass a fresh prometheus.NewRegistry(); binaries pass
// prometheus.DefaultRegisterer or their own registry.
//
// # Limitations
//
//   - Panics if called twice with the same registerer (duplicate registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProbesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: backendSubsystem,
				Name:      "probes_total",
				Help:      "Liveness probes of the reasoning backend by result",
			},
			[]string{"healthy"},
		),

		ProbeDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: backendSubsystem,
				Name:      "probe_duration_seconds",
				Help:      "Liveness probe latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),

		CallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: backendSubsystem,
				Name:      "calls_total",
				Help:      "Reasoning backend calls by operation and outcome",
			},
			[]string{"op", "outcome"},
		),

		CallDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: backendSubsystem,
				Name:      "call_duration_seconds",
				Help:      "Reasoning backend call latency in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 240, 360},
			},
			[]string{"op"},
		),

		StreamsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: backendSubsystem,
				Name:      "streams_total",
				Help:      "Finished streams by terminal outcome",
			},
			[]string{"outcome"},
		),

		StreamEvents: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: backendSubsystem,
				Name:      "stream_events",
				Help:      "Events read per stream",
				Buckets:   prometheus.LinearBuckets(0, 10, 10),
			},
		),

		AnswersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: mediatedSubsystem,
				Name:      "answers_total",
				Help:      "Mediated answers by source",
			},
			[]string{"source"},
		),

		AnswerDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: mediatedSubsystem,
				Name:      "answer_duration_seconds",
				Help:      "Mediated answer latency in seconds by source",
				Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 360},
			},
			[]string{"source"},
		),

		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: mediatedSubsystem,
				Name:      "fallbacks_total",
				Help:      "Questions answered on the single-model path by reason",
			},
			[]string{"reason"},
		),

		FallbackFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: mediatedSubsystem,
				Name:      "fallback_failures_total",
				Help:      "Single-model failures by the reason the primary path was abandoned",
			},
			[]string{"reason"},
		),

		BreakerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: mediatedSubsystem,
				Name:      "breaker_state",
				Help:      "Primary-path circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_total",
				Help:      "Gateway HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
	}
}

// =============================================================================
// brain.Observer
// =============================================================================

// ObserveProbe records one liveness probe.
func (m *Metrics) ObserveProbe(healthy bool, d time.Duration) {
	m.ProbesTotal.WithLabelValues(strconv.FormatBool(healthy)).Inc()
	m.ProbeDurationSeconds.Observe(d.Seconds())
}

// ObserveCall records one blocking or auxiliary backend call.
func (m *Metrics) ObserveCall(op, outcome string, d time.Duration) {
	m.CallsTotal.WithLabelValues(op, outcome).Inc()
	m.CallDurationSeconds.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveStreamEnd records a stream reaching its end.
func (m *Metrics) ObserveStreamEnd(outcome string, events int) {
	m.StreamsTotal.WithLabelValues(outcome).Inc()
	m.StreamEvents.Observe(float64(events))
}

// =============================================================================
// fallback.Recorder
// =============================================================================

// ObservePath records a mediated answer and the path that produced it.
func (m *Metrics) ObservePath(source datatypes.Source, d time.Duration) {
	m.AnswersTotal.WithLabelValues(string(source)).Inc()
	m.AnswerDurationSeconds.WithLabelValues(string(source)).Observe(d.Seconds())
}

// ObserveFallback records a question moving to the single-model path.
func (m *Metrics) ObserveFallback(reason string) {
	m.FallbacksTotal.WithLabelValues(reason).Inc()
}

// ObserveFallbackFailure records a failed single-model call.
func (m *Metrics) ObserveFallbackFailure(reason string) {
	m.FallbackFailuresTotal.WithLabelValues(reason).Inc()
}

// =============================================================================
// Gateway
// =============================================================================

// SetBreakerState exports the breaker state. Pass it as
// fallback.BreakerConfig.OnStateChange.
func (m *Metrics) SetBreakerState(_, to fallback.BreakerState) {
	m.BreakerState.Set(float64(to))
}

// RecordRequest counts one gateway HTTP request.
func (m *Metrics) RecordRequest(route string, status int) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
