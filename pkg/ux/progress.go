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
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
	"github.com/AleutianAI/tutorgate/services/gateway/progress"
)

// StageLabel returns the display name of a stage.
func StageLabel(s datatypes.Stage) string {
	name := string(s)
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// RenderView projects a progress view into a multi-line panel.
//
// # Description
//
// Every pipeline stage is listed in order, followed by any extra stage the
// stream mentioned. Complete stages get a check, the active stage gets
// activeGlyph (typically a spinner frame) and the rest are pending. Named
// participants are listed under their stage with their last status.
//
// # Inputs
//
//   - v: The view to render
//   - mode: Styling mode; colors are applied only in ModeRich
//   - activeGlyph: Marker for the active stage; empty uses IconActive
//
// # Outputs
//
//   - string: The panel, one line per stage or participant, no trailing newline
//
// # Limitations
//
//   - The view is rendered as-is; no width wrapping is applied
func RenderView(v progress.View, mode Mode, activeGlyph string) string {
	active, hasActive := v.ActiveStage()
	if activeGlyph == "" {
		activeGlyph = IconActive.styled(mode)
	}

	var lines []string
	for _, stage := range v.Stages() {
		var marker, label string
		switch {
		case v.StageComplete(stage):
			marker = IconSuccess.styled(mode)
			label = StageLabel(stage)
		case hasActive && stage == active:
			marker = activeGlyph
			label = render(mode, Styles.Highlight, StageLabel(stage))
		default:
			marker = IconPending.styled(mode)
			label = render(mode, Styles.Muted, StageLabel(stage))
		}
		lines = append(lines, marker+" "+label)

		for _, p := range v.Participants(stage) {
			lines = append(lines, "    "+participantLine(p, mode))
		}
	}

	if v.HasError() {
		lines = append(lines, IconError.styled(mode)+" "+render(mode, Styles.Error, v.ErrorMessage()))
	}
	return strings.Join(lines, "\n")
}

func participantLine(p progress.ParticipantState, mode Mode) string {
	var icon Icon
	switch p.Status {
	case datatypes.StatusDone:
		icon = IconSuccess
	case datatypes.StatusError:
		icon = IconError
	default:
		icon = IconBullet
	}
	line := icon.styled(mode) + " " + p.Name
	if p.Detail != "" {
		line += " " + render(mode, Styles.Muted, p.Detail)
	}
	return line
}

// LineRenderer writes one line per event for output that cannot redraw,
// such as pipes and log files.
//
// # Description
//
// Render returns the updated view so callers can keep folding with the
// same value. Result events print nothing; the caller prints the answer.
//
// # Thread Safety
//
// Not safe for concurrent use.
type LineRenderer struct {
	w    io.Writer
	mode Mode
	view progress.View
}

// NewLineRenderer creates a renderer writing to w.
func NewLineRenderer(w io.Writer, mode Mode) *LineRenderer {
	return &LineRenderer{w: w, mode: mode}
}

// Render applies ev and prints its line.
func (r *LineRenderer) Render(ev datatypes.Event) progress.View {
	r.view = progress.Apply(r.view, ev)
	if line := DescribeEvent(ev, r.mode); line != "" {
		fmt.Fprintln(r.w, line)
	}
	return r.view
}

// View returns the view folded so far.
func (r *LineRenderer) View() progress.View { return r.view }

// DescribeEvent renders a single event as one line. It returns "" for
// result events and nil.
func DescribeEvent(ev datatypes.Event, mode Mode) string {
	switch e := ev.(type) {
	case *datatypes.ProgressEvent:
		if mode == ModeMachine {
			return strings.Join([]string{"progress", string(e.Stage), e.Participant, string(e.Status), oneLine(e.Detail)}, "\t")
		}
		prefix := "[" + string(e.Stage) + "]"
		if e.IsSystem() {
			switch e.Status {
			case datatypes.StatusDone:
				return fmt.Sprintf("%s %s stage complete", prefix, IconSuccess)
			case datatypes.StatusError:
				return fmt.Sprintf("%s %s stage failed %s", prefix, IconError, e.Detail)
			}
			return strings.TrimSpace(fmt.Sprintf("%s %s", prefix, e.Detail))
		}
		line := fmt.Sprintf("%s %s %s", prefix, e.Participant, e.Status)
		if e.Detail != "" {
			line += ": " + e.Detail
		}
		return line
	case *datatypes.ErrorEvent:
		if mode == ModeMachine {
			return "error\t" + string(e.Code) + "\t" + oneLine(e.Message)
		}
		return fmt.Sprintf("%s %s", IconError, e.Message)
	}
	return ""
}
