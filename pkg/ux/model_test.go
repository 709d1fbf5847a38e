// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"errors"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dt "github.com/AleutianAI/tutorgate/services/gateway/datatypes"
)

type sliceSource struct {
	events []dt.Event
	err    error
}

func (s *sliceSource) Next() (dt.Event, error) {
	if len(s.events) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

// drive runs the model's event loop by hand until it quits.
func drive(t *testing.T, m ProgressModel) ProgressModel {
	t.Helper()
	cmd := m.waitForEvent()
	for i := 0; i < 100; i++ {
		next, out := m.Update(cmd())
		m = next.(ProgressModel)
		if m.done {
			require.True(t, isQuit(out))
			return m
		}
		require.NotNil(t, out)
		cmd = out
	}
	t.Fatal("model did not finish")
	return m
}

func TestProgressModel_FoldsUntilResult(t *testing.T) {
	src := &sliceSource{events: []dt.Event{
		prog(dt.StageRetrieving, dt.ParticipantSystem, dt.StatusDone, ""),
		prog(dt.StageCollecting, "DeepSeek", dt.StatusStarted, ""),
		&dt.ResultEvent{Answer: "42", Success: true},
		prog(dt.StageRanking, "never", dt.StatusStarted, ""),
	}}

	m := drive(t, NewProgressModel(src))

	view := m.Progress()
	assert.True(t, view.HasResult())
	assert.Equal(t, 3, view.Applied())
	assert.Len(t, src.events, 1, "events after the terminal one are not read")
	assert.False(t, m.Interrupted())
	assert.NoError(t, m.Err())
	assert.Contains(t, m.View(), "Collecting")
	assert.NotContains(t, m.View(), "ctrl+c")
}

func TestProgressModel_ErrorEventIsTerminal(t *testing.T) {
	src := &sliceSource{events: []dt.Event{
		dt.NewIncompleteStreamEvent(nil),
	}}
	m := drive(t, NewProgressModel(src))
	assert.True(t, m.Progress().HasError())
	assert.Equal(t, dt.ErrorCodeIncompleteStream, m.Progress().ErrorCode())
}

func TestProgressModel_SourceErrorIsReported(t *testing.T) {
	boom := errors.New("connection reset")
	m := drive(t, NewProgressModel(&sliceSource{err: boom}))
	assert.ErrorIs(t, m.Err(), boom)
}

func TestProgressModel_EOFIsNotAnError(t *testing.T) {
	m := drive(t, NewProgressModel(&sliceSource{}))
	assert.NoError(t, m.Err())
}

func TestProgressModel_CtrlCInterrupts(t *testing.T) {
	m := NewProgressModel(&sliceSource{})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(ProgressModel)

	assert.True(t, m.Interrupted())
	assert.True(t, isQuit(cmd))
}

func TestProgressModel_OtherKeysIgnored(t *testing.T) {
	m := NewProgressModel(&sliceSource{})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Nil(t, cmd)
	assert.False(t, next.(ProgressModel).Interrupted())
	assert.Contains(t, next.(ProgressModel).View(), "ctrl+c to stop")
}
