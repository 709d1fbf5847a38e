// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package progress folds a session's event sequence into a display-ready
// view of stage completion and per-participant status.
//
// The fold is pure: Apply never mutates its input and the returned View
// shares no mutable state with the argument. A View belongs to exactly one
// session; nothing in this package is shared between sessions.
package progress

import (
	"slices"

	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
)

// ParticipantState is the last known status of one named contributor within
// one stage.
type ParticipantState struct {
	Name   string
	Status datatypes.ProgressStatus
	Detail string
}

type stageEntry struct {
	stage        datatypes.Stage
	complete     bool
	participants []ParticipantState
	// lastRefAt is the applied count at the latest progress event naming
	// this stage; zero when only reconcile created the entry.
	lastRefAt int
}

// View is the Session Progress View.
//
// The zero value is an empty view, equivalent to NewView().
type View struct {
	entries []stageEntry

	hasResult bool
	result    datatypes.ResultEvent

	hasError  bool
	errorMsg  string
	errorCode datatypes.ErrorCode

	applied int
}

// NewView returns the empty view.
func NewView() View {
	return View{}
}

func (v View) clone() View {
	n := v
	n.entries = make([]stageEntry, len(v.entries))
	for i, e := range v.entries {
		n.entries[i] = stageEntry{
			stage:        e.stage,
			complete:     e.complete,
			participants: slices.Clone(e.participants),
			lastRefAt:    e.lastRefAt,
		}
	}
	if v.result.Visual != nil {
		visual := *v.result.Visual
		n.result.Visual = &visual
	}
	return n
}

func (v *View) find(stage datatypes.Stage) int {
	for i := range v.entries {
		if v.entries[i].stage == stage {
			return i
		}
	}
	return -1
}

func (v *View) ensure(stage datatypes.Stage) int {
	if i := v.find(stage); i >= 0 {
		return i
	}
	v.entries = append(v.entries, stageEntry{stage: stage})
	return len(v.entries) - 1
}

// =============================================================================
// QUERIES
// =============================================================================

// StageComplete reports whether stage has been marked complete.
func (v View) StageComplete(stage datatypes.Stage) bool {
	if i := v.find(stage); i >= 0 {
		return v.entries[i].complete
	}
	return false
}

// Participants returns the named contributors recorded for stage in the order
// they were first seen. The slice is a copy.
func (v View) Participants(stage datatypes.Stage) []ParticipantState {
	if i := v.find(stage); i >= 0 {
		return slices.Clone(v.entries[i].participants)
	}
	return nil
}

// Participant returns the state recorded for name under stage.
func (v View) Participant(stage datatypes.Stage, name string) (ParticipantState, bool) {
	i := v.find(stage)
	if i < 0 {
		return ParticipantState{}, false
	}
	for _, p := range v.entries[i].participants {
		if p.Name == name {
			return p, true
		}
	}
	return ParticipantState{}, false
}

// Stages lists the pipeline stages in pipeline order, followed by any other
// observed stage in first-seen order.
func (v View) Stages() []datatypes.Stage {
	out := slices.Clone(datatypes.PipelineStages)
	for _, e := range v.entries {
		if datatypes.PipelineIndex(e.stage) < 0 {
			out = append(out, e.stage)
		}
	}
	return out
}

// ActiveStage returns the incomplete stage most recently referenced by a
// progress event. Stage events may interleave, so a later reference to a
// finished stage does not hide an earlier one still running. There is no
// active stage once a result has been applied.
func (v View) ActiveStage() (datatypes.Stage, bool) {
	if v.hasResult {
		return "", false
	}
	best := -1
	for i, e := range v.entries {
		if e.complete || e.lastRefAt == 0 {
			continue
		}
		if best < 0 || e.lastRefAt > v.entries[best].lastRefAt {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return v.entries[best].stage, true
}

// CompletedPipelineStages counts complete stages among PipelineStages.
func (v View) CompletedPipelineStages() int {
	n := 0
	for _, s := range datatypes.PipelineStages {
		if v.StageComplete(s) {
			n++
		}
	}
	return n
}

// HasResult reports whether a result event has been applied.
func (v View) HasResult() bool { return v.hasResult }

// Result returns a copy of the applied result event.
func (v View) Result() (datatypes.ResultEvent, bool) {
	if !v.hasResult {
		return datatypes.ResultEvent{}, false
	}
	r := v.result
	if r.Visual != nil {
		visual := *r.Visual
		r.Visual = &visual
	}
	return r, true
}

// HasError reports whether an error event has been applied.
func (v View) HasError() bool { return v.hasError }

// ErrorMessage returns the message of the applied error event.
func (v View) ErrorMessage() string { return v.errorMsg }

// ErrorCode returns the code of the applied error event.
func (v View) ErrorCode() datatypes.ErrorCode { return v.errorCode }

// Terminal reports whether a result or error has been applied.
func (v View) Terminal() bool { return v.hasResult || v.hasError }

// Applied returns the number of events folded into the view.
func (v View) Applied() int { return v.applied }
