// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the wire vocabulary shared by the brain client, the
// gateway and the CLI: progress/result/error events, request and response
// bodies, and the normalized result handed to persistence.
package datatypes

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// STAGES, PARTICIPANTS, STATUSES
// =============================================================================

// Stage names one phase of the reasoning pipeline.
type Stage string

const (
	StageRetrieving   Stage = "retrieving"
	StageCollecting   Stage = "collecting"
	StageRanking      Stage = "ranking"
	StageSynthesizing Stage = "synthesizing"
	StageReviewing    Stage = "reviewing"

	// StageVisualizing is only emitted when the request asked for a visual.
	StageVisualizing Stage = "visualizing"
)

// PipelineStages is the conventional stage order. The event stream does not
// enforce it; events for different stages may interleave.
var PipelineStages = []Stage{
	StageRetrieving,
	StageCollecting,
	StageRanking,
	StageSynthesizing,
	StageReviewing,
}

// PipelineIndex returns the position of s in PipelineStages, or -1 for stages
// outside the fixed set.
func PipelineIndex(s Stage) int {
	for i, p := range PipelineStages {
		if p == s {
			return i
		}
	}
	return -1
}

// ParticipantSystem is the sentinel participant meaning "the stage itself".
const ParticipantSystem = "system"

// ProgressStatus is the status carried by a progress event.
type ProgressStatus string

const (
	StatusStarted ProgressStatus = "started"
	StatusDone    ProgressStatus = "done"
	StatusError   ProgressStatus = "error"
)

// Valid reports whether s is one of the three known statuses.
func (s ProgressStatus) Valid() bool {
	switch s {
	case StatusStarted, StatusDone, StatusError:
		return true
	}
	return false
}

// =============================================================================
// EVENT UNION
// =============================================================================

// EventKind discriminates the Event variants.
type EventKind string

const (
	KindProgress EventKind = "progress"
	KindResult   EventKind = "result"
	KindError    EventKind = "error"
)

// ErrorCode classifies an ErrorEvent.
type ErrorCode string

const (
	// ErrorCodeBackend marks an error event emitted by the reasoning backend.
	ErrorCodeBackend ErrorCode = "backend"

	// ErrorCodeIncompleteStream marks the synthetic event produced when the
	// transport closed before any terminal event arrived.
	ErrorCodeIncompleteStream ErrorCode = "incomplete_stream"
)

// Event is a single notification emitted during one question-answering
// session. It is a closed union: the only implementations are
// *ProgressEvent, *ResultEvent and *ErrorEvent.
//
// # Examples
//
//	switch ev := event.(type) {
//	case *datatypes.ProgressEvent:
//	    fmt.Println(ev.Stage, ev.Participant, ev.Status)
//	case *datatypes.ResultEvent:
//	    fmt.Println(ev.Answer)
//	case *datatypes.ErrorEvent:
//	    fmt.Println(ev.Message)
//	}
type Event interface {
	Kind() EventKind
	sealed()
}

// ProgressEvent reports the status of one participant, or of the stage itself
// when Participant is ParticipantSystem.
type ProgressEvent struct {
	Stage       Stage
	Participant string
	Status      ProgressStatus
	Detail      string
}

// Kind implements Event.
func (*ProgressEvent) Kind() EventKind { return KindProgress }
func (*ProgressEvent) sealed()         {}

// IsSystem reports whether the event describes the stage rather than a
// named contributor.
func (e *ProgressEvent) IsSystem() bool {
	return e.Participant == ParticipantSystem
}

// Visual is the optional generated image attached to a result.
type Visual struct {
	Path   string `json:"visualPath,omitempty"`
	Base64 string `json:"visualBase64,omitempty"`
}

// ResultEvent carries the final answer. It is terminal.
type ResultEvent struct {
	Answer   string
	Critique string
	Success  bool
	Visual   *Visual
}

// Kind implements Event.
func (*ResultEvent) Kind() EventKind { return KindResult }
func (*ResultEvent) sealed()         {}

// ErrorEvent carries a failure description. It is terminal.
type ErrorEvent struct {
	Code    ErrorCode
	Message string
}

// Kind implements Event.
func (*ErrorEvent) Kind() EventKind { return KindError }
func (*ErrorEvent) sealed()         {}

// IsIncomplete reports whether this is the synthetic incomplete-stream event.
func (e *ErrorEvent) IsIncomplete() bool {
	return e.Code == ErrorCodeIncompleteStream
}

// IsTerminal reports whether ev ends a session's event sequence.
func IsTerminal(ev Event) bool {
	if ev == nil {
		return false
	}
	k := ev.Kind()
	return k == KindResult || k == KindError
}

// NewIncompleteStreamEvent builds the synthetic terminal event for a stream
// that closed without a result or error.
func NewIncompleteStreamEvent(cause error) *ErrorEvent {
	msg := "stream closed before a result was received"
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &ErrorEvent{Code: ErrorCodeIncompleteStream, Message: msg}
}

// =============================================================================
// WIRE ENVELOPE
// =============================================================================

// ErrUnknownEventType is returned by DecodeEvent for frames whose "type" is
// not progress, result or error.
var ErrUnknownEventType = errors.New("unknown event type")

// wireEvent is the loosely typed JSON envelope the backend emits. It exists
// only at the decode/encode boundary.
type wireEvent struct {
	Type         string `json:"type"`
	Stage        string `json:"stage,omitempty"`
	Agent        string `json:"agent,omitempty"`
	Status       string `json:"status,omitempty"`
	Detail       string `json:"detail,omitempty"`
	Answer       string `json:"answer,omitempty"`
	Critique     string `json:"critique,omitempty"`
	Success      *bool  `json:"success,omitempty"`
	VisualPath   string `json:"visualPath,omitempty"`
	VisualBase64 string `json:"visualBase64,omitempty"`
	Message      string `json:"message,omitempty"`
	Code         string `json:"code,omitempty"`
}

// DecodeEvent converts one JSON frame payload into its Event variant.
//
// # Description
//
// Progress frames must name a stage and carry a known status; an empty agent
// is normalized to ParticipantSystem. Result frames without an explicit
// success flag are treated as successful, matching the backend which always
// sets it. Error frames without a code are backend errors.
//
// # Inputs
//
//   - data: the JSON text after the "data: " prefix
//
// # Outputs
//
//   - Event: the decoded variant
//   - error: JSON errors, ErrUnknownEventType, or a validation error
func DecodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch EventKind(w.Type) {
	case KindProgress:
		stage := strings.TrimSpace(w.Stage)
		if stage == "" {
			return nil, fmt.Errorf("progress event without stage")
		}
		status := ProgressStatus(w.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("progress event with unknown status %q", w.Status)
		}
		participant := strings.TrimSpace(w.Agent)
		if participant == "" {
			participant = ParticipantSystem
		}
		return &ProgressEvent{
			Stage:       Stage(stage),
			Participant: participant,
			Status:      status,
			Detail:      w.Detail,
		}, nil

	case KindResult:
		success := true
		if w.Success != nil {
			success = *w.Success
		}
		ev := &ResultEvent{
			Answer:   w.Answer,
			Critique: w.Critique,
			Success:  success,
		}
		if w.VisualPath != "" || w.VisualBase64 != "" {
			ev.Visual = &Visual{Path: w.VisualPath, Base64: w.VisualBase64}
		}
		return ev, nil

	case KindError:
		code := ErrorCode(w.Code)
		if code == "" {
			code = ErrorCodeBackend
		}
		return &ErrorEvent{Code: code, Message: w.Message}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, w.Type)
}

// EncodeEvent is the inverse of DecodeEvent.
func EncodeEvent(ev Event) ([]byte, error) {
	var w wireEvent
	switch e := ev.(type) {
	case *ProgressEvent:
		w = wireEvent{
			Type:   string(KindProgress),
			Stage:  string(e.Stage),
			Agent:  e.Participant,
			Status: string(e.Status),
			Detail: e.Detail,
		}
	case *ResultEvent:
		success := e.Success
		w = wireEvent{
			Type:     string(KindResult),
			Answer:   e.Answer,
			Critique: e.Critique,
			Success:  &success,
		}
		if e.Visual != nil {
			w.VisualPath = e.Visual.Path
			w.VisualBase64 = e.Visual.Base64
		}
	case *ErrorEvent:
		w = wireEvent{Type: string(KindError), Message: e.Message}
		if e.Code != "" && e.Code != ErrorCodeBackend {
			w.Code = string(e.Code)
		}
	default:
		return nil, fmt.Errorf("encode event: unsupported %T", ev)
	}
	return json.Marshal(w)
}
