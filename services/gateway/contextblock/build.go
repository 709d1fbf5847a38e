// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package contextblock assembles the context text sent along with a question.
package contextblock

import (
	"strings"

	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
)

const (
	// DefaultMaxTurns is the number of recent turns kept in the history section.
	DefaultMaxTurns = 6

	// DefaultMaxTurnChars is the per-turn rune limit before truncation.
	DefaultMaxTurnChars = 400

	// Ellipsis marks a truncated turn.
	Ellipsis = "…"
)

const (
	projectHeader = "Project:"
	historyHeader = "Recent conversation:"
)

// Build renders the project and history sections of a context block.
//
// # Description
//
// The project section is present only when project has at least one
// non-blank field; blank fields are omitted. The history section holds at
// most maxTurns of the most recent non-blank turns, oldest first, each cut
// to maxTurnChars runes with Ellipsis appended when cut. maxTurns <= 0
// drops the history section; maxTurnChars <= 0 disables truncation.
//
// # Inputs
//
//   - project: The selected project, or nil.
//   - history: Conversation turns, oldest first. Not modified.
//   - maxTurns: Window size for the history section.
//   - maxTurnChars: Per-turn rune limit.
//
// # Outputs
//
//   - string: The block, sections separated by a blank line
//   - bool: false when both sections are empty; the string is then ""
//
// # Example
//
//	block, ok := contextblock.Build(project, turns, contextblock.DefaultMaxTurns, contextblock.DefaultMaxTurnChars)
//	if ok {
//	    req.Context = block
//	}
func Build(project *datatypes.Project, history []datatypes.Turn, maxTurns, maxTurnChars int) (string, bool) {
	var sections []string
	if s := projectSection(project); s != "" {
		sections = append(sections, s)
	}
	if s := historySection(history, maxTurns, maxTurnChars); s != "" {
		sections = append(sections, s)
	}
	if len(sections) == 0 {
		return "", false
	}
	return strings.Join(sections, "\n\n"), true
}

func projectSection(p *datatypes.Project) string {
	if p.IsBlank() {
		return ""
	}
	var b strings.Builder
	b.WriteString(projectHeader)
	for _, f := range []struct{ label, value string }{
		{"Title", p.Title},
		{"Description", p.Description},
		{"Objectives", p.Objectives},
		{"Background", p.Background},
	} {
		if v := strings.TrimSpace(f.value); v != "" {
			b.WriteString("\n")
			b.WriteString(f.label)
			b.WriteString(": ")
			b.WriteString(v)
		}
	}
	return b.String()
}

func historySection(history []datatypes.Turn, maxTurns, maxTurnChars int) string {
	if maxTurns <= 0 {
		return ""
	}
	kept := make([]datatypes.Turn, 0, len(history))
	for _, t := range history {
		if strings.TrimSpace(t.Content) != "" {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	if len(kept) > maxTurns {
		kept = kept[len(kept)-maxTurns:]
	}

	var b strings.Builder
	b.WriteString(historyHeader)
	for _, t := range kept {
		b.WriteString("\n")
		b.WriteString(speaker(t.Role))
		b.WriteString(": ")
		b.WriteString(Truncate(strings.TrimSpace(t.Content), maxTurnChars))
	}
	return b.String()
}

func speaker(r datatypes.Role) string {
	switch r {
	case datatypes.RoleAssistant:
		return "Tutor"
	case datatypes.RoleUser:
		return "Student"
	}
	return string(r)
}

// Truncate cuts s to at most limit runes and appends Ellipsis when it cut
// anything. limit <= 0 returns s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + Ellipsis
		}
		n++
	}
	return s
}
