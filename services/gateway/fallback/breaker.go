// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fallback

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState is the state of the primary-path circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets every question try the primary path.
	BreakerClosed BreakerState = iota

	// BreakerOpen sends every question straight to the fallback.
	BreakerOpen

	// BreakerHalfOpen lets questions through to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive primary-path failures
	// that opens the breaker. Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of successes in half-open state that
	// closes the breaker again. Default: 1
	SuccessThreshold int

	// OpenTimeout is how long the breaker stays open before letting a
	// question probe the backend again. Default: 30s
	OpenTimeout time.Duration

	// OnStateChange is called synchronously, outside the breaker lock,
	// whenever the state changes (optional).
	OnStateChange func(from, to BreakerState)
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		OpenTimeout:      30 * time.Second,
	}
}

// Breaker short-circuits the primary path after repeated failures.
//
// # Description
//
// While closed, every question goes through PROBE and PRIMARY. After
// FailureThreshold consecutive failures the breaker opens and questions skip
// straight to FALLBACK with reason circuit_open. Once OpenTimeout elapses
// the breaker half-opens; the next success closes it, the next failure
// reopens it.
//
// # Thread Safety
//
// Safe for concurrent use.
type Breaker struct {
	config      BreakerConfig
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewBreaker creates a closed breaker. Non-positive settings take defaults.
func NewBreaker(config BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = def.OpenTimeout
	}
	return &Breaker{config: config, state: BreakerClosed, now: time.Now}
}

// Allow reports whether a question may try the primary path.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	allowed := true
	var from, to BreakerState
	changed := false
	if b.state == BreakerOpen {
		if b.now().Sub(b.lastFailure) >= b.config.OpenTimeout {
			from, to, changed = b.transition(BreakerHalfOpen)
		} else {
			allowed = false
		}
	}
	b.mu.Unlock()

	b.notify(from, to, changed)
	return allowed
}

// RecordFailure counts one primary-path failure.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	b.failures++
	b.successes = 0
	b.lastFailure = b.now()

	var from, to BreakerState
	changed := false
	switch b.state {
	case BreakerClosed:
		if b.failures >= b.config.FailureThreshold {
			from, to, changed = b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		from, to, changed = b.transition(BreakerOpen)
	}
	b.mu.Unlock()

	b.notify(from, to, changed)
}

// RecordSuccess counts one primary-path success.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	b.successes++

	var from, to BreakerState
	changed := false
	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		if b.successes >= b.config.SuccessThreshold {
			b.failures = 0
			from, to, changed = b.transition(BreakerClosed)
		}
	}
	b.mu.Unlock()

	b.notify(from, to, changed)
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.failures = 0
	b.successes = 0
	from, to, changed := b.transition(BreakerClosed)
	b.mu.Unlock()

	b.notify(from, to, changed)
}

// transition must be called with mu held.
func (b *Breaker) transition(state BreakerState) (from, to BreakerState, changed bool) {
	if b.state == state {
		return state, state, false
	}
	from = b.state
	b.state = state
	b.successes = 0
	return from, state, true
}

func (b *Breaker) notify(from, to BreakerState, changed bool) {
	if changed && b.config.OnStateChange != nil {
		b.config.OnStateChange(from, to)
	}
}
