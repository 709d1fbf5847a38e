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
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// InputReader reads one line of user input at a time.
type InputReader interface {
	// ReadLine returns the next line with surrounding whitespace trimmed,
	// or io.EOF when input is exhausted.
	ReadLine() (string, error)
}

// LineReader reads newline-terminated input from any reader. It is used
// for pipes and tests.
type LineReader struct {
	scanner *bufio.Scanner
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), 64*1024)
	return &LineReader{scanner: s}
}

// ReadLine implements InputReader.
func (r *LineReader) ReadLine() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(r.scanner.Text()), nil
}

// InteractiveReader edits a line in place with up/down history.
//
// # Description
//
// Each ReadLine runs a short bubbletea program around a textinput. Enter
// submits, ctrl+c clears the line and returns "", ctrl+d returns io.EOF.
// Submitted non-empty lines are kept in a bounded history.
//
// # Limitations
//
//   - Requires a terminal; use NewInputReader to pick automatically
type InteractiveReader struct {
	prompt     string
	output     io.Writer
	history    []string
	maxHistory int
}

// NewInputReader returns an InteractiveReader when in is a terminal and a
// LineReader otherwise.
func NewInputReader(in io.Reader, fd uintptr, output io.Writer, prompt string) InputReader {
	if !IsTerminal(fd) {
		return NewLineReader(in)
	}
	return &InteractiveReader{prompt: prompt, output: output, maxHistory: 50}
}

// ReadLine implements InputReader.
func (r *InteractiveReader) ReadLine() (string, error) {
	ti := textinput.New()
	ti.Prompt = r.prompt
	ti.CharLimit = 4096
	ti.Width = 80
	ti.Focus()

	final, err := tea.NewProgram(newInputModel(ti, r.history), tea.WithOutput(r.output)).Run()
	if err != nil {
		return "", err
	}
	m, ok := final.(inputModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type from bubbletea: %T", final)
	}
	if m.eof {
		return "", io.EOF
	}

	line := strings.TrimSpace(m.input.Value())
	r.remember(line)
	return line, nil
}

func (r *InteractiveReader) remember(line string) {
	if line == "" || (len(r.history) > 0 && r.history[len(r.history)-1] == line) {
		return
	}
	r.history = append(r.history, line)
	if len(r.history) > r.maxHistory {
		r.history = r.history[1:]
	}
}

type inputModel struct {
	input   textinput.Model
	history []string
	index   int
	draft   string
	done    bool
	eof     bool
}

func newInputModel(ti textinput.Model, history []string) inputModel {
	return inputModel{input: ti, history: history, index: -1}
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC:
			m.input.SetValue("")
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlD:
			m.input.SetValue("")
			m.eof = true
			m.done = true
			return m, tea.Quit
		case tea.KeyUp:
			if len(m.history) == 0 {
				return m, nil
			}
			if m.index == -1 {
				m.draft = m.input.Value()
				m.index = len(m.history) - 1
			} else if m.index > 0 {
				m.index--
			}
			m.input.SetValue(m.history[m.index])
			m.input.CursorEnd()
			return m, nil
		case tea.KeyDown:
			if m.index == -1 {
				return m, nil
			}
			if m.index < len(m.history)-1 {
				m.index++
				m.input.SetValue(m.history[m.index])
			} else {
				m.index = -1
				m.input.SetValue(m.draft)
			}
			m.input.CursorEnd()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done {
		return ""
	}
	return m.input.View()
}
