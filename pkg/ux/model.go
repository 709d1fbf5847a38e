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

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
	"github.com/AleutianAI/tutorgate/services/gateway/progress"
)

// EventSource yields session events one at a time.
type EventSource interface {
	Next() (datatypes.Event, error)
}

// EventMsg carries one event into the model.
type EventMsg struct {
	Event datatypes.Event
}

// SourceDoneMsg reports that the source returned an error or io.EOF.
type SourceDoneMsg struct {
	Err error
}

// ProgressModel is the live progress panel.
//
// # Description
//
// The model pulls events from its source one at a time, folds each into a
// progress.View and quits once a terminal event arrives, the source ends,
// or the user presses ctrl+c.
//
// # Example
//
//	m := ux.NewProgressModel(stream)
//	final, err := tea.NewProgram(m, tea.WithOutput(os.Stderr)).Run()
//	view := final.(ux.ProgressModel).Progress()
type ProgressModel struct {
	source      EventSource
	spinner     spinner.Model
	view        progress.View
	done        bool
	interrupted bool
	err         error
}

// NewProgressModel creates a model reading from source.
func NewProgressModel(source EventSource) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = Styles.Highlight
	return ProgressModel{source: source, spinner: s}
}

// Init implements tea.Model
func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

func (m ProgressModel) waitForEvent() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ev, err := source.Next()
		if err != nil {
			return SourceDoneMsg{Err: err}
		}
		return EventMsg{Event: ev}
	}
}

// Update implements tea.Model
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.interrupted = true
			m.done = true
			return m, tea.Quit
		}
		return m, nil

	case EventMsg:
		m.view = progress.Apply(m.view, msg.Event)
		if datatypes.IsTerminal(msg.Event) {
			m.done = true
			return m, tea.Quit
		}
		return m, m.waitForEvent()

	case SourceDoneMsg:
		m.done = true
		if !errors.Is(msg.Err, io.EOF) {
			m.err = msg.Err
		}
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m ProgressModel) View() string {
	panel := RenderView(m.view, ModeRich, m.spinner.View())
	if m.done {
		return panel + "\n"
	}
	return panel + "\n" + Styles.Muted.Render("ctrl+c to stop") + "\n"
}

// Progress returns the view folded so far.
func (m ProgressModel) Progress() progress.View { return m.view }

// Interrupted reports whether the user stopped the display.
func (m ProgressModel) Interrupted() bool { return m.interrupted }

// Err returns the source error that ended the display, if any. io.EOF is
// not reported.
func (m ProgressModel) Err() error { return m.err }
