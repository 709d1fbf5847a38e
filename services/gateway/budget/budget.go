// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package budget defines the time budgets applied to each outbound channel.
package budget

import (
	"context"
	"time"
)

// Budget constants define minimum and default values for each channel.
//
// The primary attempt budget must cover a full multi-participant
// deliberation, so it is measured in minutes.
const (
	// MinAttempt is the absolute minimum for any attempt budget.
	MinAttempt = 1 * time.Second

	// MinProbe is the absolute minimum for a liveness probe.
	MinProbe = 500 * time.Millisecond

	// DefaultPrimaryAttempt bounds a blocking or streaming primary call.
	DefaultPrimaryAttempt = 6 * time.Minute

	// DefaultPrimaryProbe bounds the liveness probe.
	DefaultPrimaryProbe = 5 * time.Second

	// DefaultAuxiliaryAttempt bounds exam generation.
	DefaultAuxiliaryAttempt = 90 * time.Second

	// DefaultFallbackAttempt bounds the single-model call on the mediated path.
	DefaultFallbackAttempt = 60 * time.Second
)

// EnforceMinTimeout returns at least the minimum timeout.
//
// # Description
//
// Ensures a timeout is never below the specified minimum. If the requested
// timeout is zero, negative, or below the minimum, returns the minimum
// instead.
//
// # Inputs
//
//   - requested: The timeout value requested by the caller
//   - minimum: The absolute minimum acceptable timeout
//
// # Outputs
//
//   - time.Duration: The requested timeout if valid, otherwise the minimum
//
// # Example
//
//	probe := EnforceMinTimeout(cfg.Probe, MinProbe)
//
// # Limitations
//
//   - Does not enforce maximum timeouts
func EnforceMinTimeout(requested, minimum time.Duration) time.Duration {
	if requested <= 0 || requested < minimum {
		return minimum
	}
	return requested
}

// EnforceDefaultTimeout returns the default if the requested is zero or negative.
func EnforceDefaultTimeout(requested, defaultVal time.Duration) time.Duration {
	if requested <= 0 {
		return defaultVal
	}
	return requested
}

// Budget is the (attempt, probe) pair for one channel.
//
// # Description
//
// A Budget is a value type; copies never affect the original. Use
// Primary, Auxiliary or Fallback for the defaults and Validated before use
// when values come from configuration.
//
// # Example
//
//	b := budget.Primary()
//	ctx, cancel := b.AttemptContext(ctx)
//	defer cancel()
type Budget struct {
	// Attempt bounds the whole request, including reading a streamed body.
	Attempt time.Duration

	// Probe bounds a liveness check. Zero for channels without a probe.
	Probe time.Duration
}

// Primary returns the default budget for the reasoning backend.
func Primary() Budget {
	return Budget{Attempt: DefaultPrimaryAttempt, Probe: DefaultPrimaryProbe}
}

// Auxiliary returns the default budget for exam generation.
func Auxiliary() Budget {
	return Budget{Attempt: DefaultAuxiliaryAttempt}
}

// Fallback returns the default budget for the single-model path.
func Fallback() Budget {
	return Budget{Attempt: DefaultFallbackAttempt}
}

// Validated returns a copy with every value raised to its minimum.
func (b Budget) Validated() Budget {
	return Budget{
		Attempt: EnforceMinTimeout(b.Attempt, MinAttempt),
		Probe:   EnforceMinTimeout(b.Probe, MinProbe),
	}
}

// WithDefaults returns a copy where zero or negative values are replaced by
// those of def.
func (b Budget) WithDefaults(def Budget) Budget {
	return Budget{
		Attempt: EnforceDefaultTimeout(b.Attempt, def.Attempt),
		Probe:   EnforceDefaultTimeout(b.Probe, def.Probe),
	}
}

// AttemptContext derives a context bounded by the attempt budget.
func (b Budget) AttemptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, EnforceMinTimeout(b.Attempt, MinAttempt))
}

// ProbeContext derives a context bounded by the probe budget.
func (b Budget) ProbeContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, EnforceMinTimeout(b.Probe, MinProbe))
}

// Set groups the per-channel budgets carried by configuration.
type Set struct {
	Primary   Budget
	Auxiliary Budget
	Fallback  Budget
}

// DefaultSet returns the built-in budgets.
func DefaultSet() Set {
	return Set{Primary: Primary(), Auxiliary: Auxiliary(), Fallback: Fallback()}
}

// Validated fills unset values from the defaults and enforces minimums.
func (s Set) Validated() Set {
	return Set{
		Primary:   s.Primary.WithDefaults(Primary()).Validated(),
		Auxiliary: s.Auxiliary.WithDefaults(Auxiliary()).Validated(),
		Fallback:  s.Fallback.WithDefaults(Fallback()).Validated(),
	}
}
