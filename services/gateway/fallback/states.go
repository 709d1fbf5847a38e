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

import "fmt"

// State is a step of the per-question state machine.
//
//	START -> PROBE -> PRIMARY -> DONE
//	                     |
//	           PROBE ----+--> FALLBACK -> DONE
type State int

const (
	StateStart State = iota
	StateProbe
	StatePrimary
	StateFallback
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateProbe:
		return "PROBE"
	case StatePrimary:
		return "PRIMARY"
	case StateFallback:
		return "FALLBACK"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Reason records why the primary path was abandoned.
type Reason string

const (
	ReasonProbeFailed  Reason = "probe_failed"
	ReasonTimeout      Reason = "timeout"
	ReasonUnavailable  Reason = "unavailable"
	ReasonBackendError Reason = "backend_error"
	ReasonCircuitOpen  Reason = "circuit_open"
	ReasonPrimaryError Reason = "primary_error"
)
