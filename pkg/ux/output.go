// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling and the live progress display
// for the tutor CLI.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
)

// Color palette - deep ocean teals
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconActive  Icon = "●"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	case IconActive:
		return Styles.Highlight.Render(string(i))
	default:
		return string(i)
	}
}

// styled renders i only in rich mode.
func (i Icon) styled(mode Mode) string {
	if mode.Live() {
		return i.Render()
	}
	return string(i)
}

// render applies s only in rich mode.
func render(mode Mode, s lipgloss.Style, text string) string {
	if mode.Live() {
		return s.Render(text)
	}
	return text
}

// Printer writes styled messages according to a Mode.
//
// # Description
//
// Regular output goes to out. In machine mode warnings and errors go to
// errOut so that scripts can parse stdout alone.
//
// # Thread Safety
//
// Printer holds no mutable state; concurrent calls interleave lines.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
}

// NewPrinter creates a Printer. A nil errOut falls back to out.
func NewPrinter(out, errOut io.Writer, mode Mode) *Printer {
	if errOut == nil {
		errOut = out
	}
	return &Printer{out: out, errOut: errOut, mode: mode}
}

// Mode returns the printer's output mode.
func (p *Printer) Mode() Mode { return p.mode }

// Out returns the primary writer.
func (p *Printer) Out() io.Writer { return p.out }

// Title prints a styled title
func (p *Printer) Title(text string) {
	if p.mode == ModeMachine {
		return
	}
	fmt.Fprintln(p.out, render(p.mode, Styles.Title, text))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.out, "OK: %s\n", text)
	case ModePlain:
		fmt.Fprintf(p.out, "%s %s\n", IconSuccess, text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.errOut, "WARN: %s\n", text)
	case ModePlain:
		fmt.Fprintf(p.out, "%s %s\n", IconWarning, text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func (p *Printer) Error(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.errOut, "ERROR: %s\n", text)
	case ModePlain:
		fmt.Fprintf(p.out, "%s %s\n", IconError, text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func (p *Printer) Info(text string) {
	if p.mode == ModeMachine {
		fmt.Fprintln(p.out, text)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", render(p.mode, Styles.Muted, "│"), text)
}

// Muted prints secondary text. Machine mode drops it.
func (p *Printer) Muted(text string) {
	if p.mode == ModeMachine {
		return
	}
	fmt.Fprintln(p.out, render(p.mode, Styles.Muted, text))
}

// KeyValue prints one labelled value.
func (p *Printer) KeyValue(key, value string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.out, "%s\t%s\n", key, value)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", render(p.mode, Styles.Muted, key+":"), value)
}

// Box prints text in a rounded box
func (p *Printer) Box(title, content string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.out, "%s: %s\n", title, content)
	case ModePlain:
		fmt.Fprintf(p.out, "== %s ==\n%s\n", title, content)
	default:
		fmt.Fprintln(p.out, Styles.Box.Width(72).Render(Styles.Title.Render(title)+"\n"+content))
	}
}

// Answer prints a final answer with its critique and provenance.
//
// # Description
//
// The answer is always printed. The critique is printed only when present.
// Answers produced by the single-model fallback are marked so the user
// knows the full deliberation did not run.
//
// # Example
//
//	p.Answer(result.Response())
func (p *Printer) Answer(resp datatypes.GatewayAskResponse) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.out, "answer\t%s\n", oneLine(resp.Answer))
		if resp.Critique != "" {
			fmt.Fprintf(p.out, "critique\t%s\n", oneLine(resp.Critique))
		}
		if resp.Source != "" {
			fmt.Fprintf(p.out, "source\t%s\n", resp.Source)
		}
		if resp.VisualPath != "" {
			fmt.Fprintf(p.out, "visual\t%s\n", resp.VisualPath)
		}
		return
	}

	p.Box("Answer", strings.TrimSpace(resp.Answer))
	if c := strings.TrimSpace(resp.Critique); c != "" {
		p.Box("Critique", c)
	}
	if resp.VisualPath != "" {
		p.KeyValue("Visual", resp.VisualPath)
	}
	if resp.Source == datatypes.SourceFallback {
		p.Warning("Answered by the single-model fallback; the full pipeline was unavailable.")
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
