// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent_Progress(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"progress","stage":"collecting","agent":"DeepSeek","status":"started","detail":"drafting"}`))
	require.NoError(t, err)

	p, ok := ev.(*ProgressEvent)
	require.True(t, ok, "expected *ProgressEvent, got %T", ev)
	assert.Equal(t, StageCollecting, p.Stage)
	assert.Equal(t, "DeepSeek", p.Participant)
	assert.Equal(t, StatusStarted, p.Status)
	assert.Equal(t, "drafting", p.Detail)
	assert.False(t, p.IsSystem())
	assert.False(t, IsTerminal(ev))
}

func TestDecodeEvent_EmptyAgentIsSystem(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"progress","stage":"ranking","status":"done"}`))
	require.NoError(t, err)
	assert.True(t, ev.(*ProgressEvent).IsSystem())
}

func TestDecodeEvent_UnknownStageIsKept(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"progress","stage":"visualizing","agent":"Visualizer","status":"done"}`))
	require.NoError(t, err)
	assert.Equal(t, StageVisualizing, ev.(*ProgressEvent).Stage)
	assert.Equal(t, -1, PipelineIndex(StageVisualizing))
}

func TestDecodeEvent_Result(t *testing.T) {
	t.Run("explicit success", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"type":"result","answer":"A","critique":"B","success":true,"visualPath":"/tmp/v.png"}`))
		require.NoError(t, err)
		r := ev.(*ResultEvent)
		assert.Equal(t, "A", r.Answer)
		assert.Equal(t, "B", r.Critique)
		assert.True(t, r.Success)
		require.NotNil(t, r.Visual)
		assert.Equal(t, "/tmp/v.png", r.Visual.Path)
		assert.True(t, IsTerminal(ev))
	})

	t.Run("missing success defaults to true", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"type":"result","answer":"Z"}`))
		require.NoError(t, err)
		assert.True(t, ev.(*ResultEvent).Success)
		assert.Nil(t, ev.(*ResultEvent).Visual)
	})

	t.Run("success false is preserved", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"type":"result","answer":"","success":false}`))
		require.NoError(t, err)
		assert.False(t, ev.(*ResultEvent).Success)
	})
}

func TestDecodeEvent_Error(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"error","message":"council unavailable"}`))
	require.NoError(t, err)
	e := ev.(*ErrorEvent)
	assert.Equal(t, ErrorCodeBackend, e.Code)
	assert.Equal(t, "council unavailable", e.Message)
	assert.False(t, e.IsIncomplete())
	assert.True(t, IsTerminal(ev))
}

func TestDecodeEvent_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{"type":`},
		{"unknown type", `{"type":"token","content":"x"}`},
		{"progress without stage", `{"type":"progress","agent":"A","status":"done"}`},
		{"progress bad status", `{"type":"progress","stage":"ranking","status":"finished"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tt.data))
			assert.Error(t, err)
			assert.Nil(t, ev)
		})
	}

	_, err := DecodeEvent([]byte(`{"type":"token"}`))
	assert.True(t, errors.Is(err, ErrUnknownEventType))
}

func TestEncodeEvent_RoundTripsEachVariant(t *testing.T) {
	events := []Event{
		&ProgressEvent{Stage: StageReviewing, Participant: "Critic", Status: StatusDone, Detail: "ok"},
		&ResultEvent{Answer: "A", Critique: "B", Success: true, Visual: &Visual{Base64: "aGk="}},
		&ErrorEvent{Code: ErrorCodeBackend, Message: "boom"},
		NewIncompleteStreamEvent(errors.New("eof")),
	}
	for _, ev := range events {
		data, err := EncodeEvent(ev)
		require.NoError(t, err)
		back, err := DecodeEvent(data)
		require.NoError(t, err)
		assert.Equal(t, ev, back)
	}
}

func TestNewIncompleteStreamEvent(t *testing.T) {
	ev := NewIncompleteStreamEvent(nil)
	assert.True(t, ev.IsIncomplete())
	assert.Equal(t, "stream closed before a result was received", ev.Message)

	ev = NewIncompleteStreamEvent(errors.New("connection reset"))
	assert.Contains(t, ev.Message, "connection reset")
}

func TestIsTerminal_Nil(t *testing.T) {
	assert.False(t, IsTerminal(nil))
}
