// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
	"github.com/AleutianAI/tutorgate/services/gateway/fallback"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics(reg), reg
}

func TestMetrics_ObserveProbe(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.ObserveProbe(true, 20*time.Millisecond)
	m.ObserveProbe(false, time.Second)
	m.ObserveProbe(false, time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProbesTotal.WithLabelValues("true")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ProbesTotal.WithLabelValues("false")))
}

func TestMetrics_ObserveCall(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.ObserveCall("ask", "ok", 3*time.Second)
	m.ObserveCall("ask", "timeout", 6*time.Minute)
	m.ObserveCall("exam", "ok", time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CallsTotal.WithLabelValues("ask", "timeout")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.CallsTotal))
}

func TestMetrics_ObserveStreamEnd(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.ObserveStreamEnd("incomplete", 4)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StreamsTotal.WithLabelValues("incomplete")))
}

func TestMetrics_Recorder(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.ObservePath(datatypes.SourceFallback, time.Second)
	m.ObserveFallback(string(fallback.ReasonProbeFailed))
	m.ObserveFallbackFailure(string(fallback.ReasonProbeFailed))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AnswersTotal.WithLabelValues("fallback")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("probe_failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FallbackFailuresTotal.WithLabelValues("probe_failed")))
}

func TestMetrics_BreakerState(t *testing.T) {
	m, _ := newTestMetrics(t)
	breaker := fallback.NewBreaker(fallback.BreakerConfig{FailureThreshold: 1, OnStateChange: m.SetBreakerState})

	breaker.RecordFailure()
	assert.Equal(t, float64(fallback.BreakerOpen), testutil.ToFloat64(m.BreakerState))

	breaker.Reset()
	assert.Equal(t, float64(fallback.BreakerClosed), testutil.ToFloat64(m.BreakerState))
}

func TestMetrics_RecordRequest(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.RecordRequest("/v1/ask", 200)
	m.RecordRequest("/v1/ask", 502)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/v1/ask", "502")))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
