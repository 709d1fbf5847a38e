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
	"strings"

	"github.com/mattn/go-isatty"
)

// Mode defines how much styling the CLI applies to its output.
type Mode string

const (
	// ModeRich enables colors, boxes and the live progress panel.
	ModeRich Mode = "rich"

	// ModePlain keeps icons but drops colors and live redraws.
	ModePlain Mode = "plain"

	// ModeMachine outputs tab-separated lines suitable for scripting.
	ModeMachine Mode = "machine"
)

// ModeEnv overrides terminal detection when set.
const ModeEnv = "TUTOR_OUTPUT"

// ParseMode converts a string to a Mode. Unknown values yield ModePlain.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rich", "full", "r":
		return ModeRich
	case "machine", "quiet", "q":
		return ModeMachine
	default:
		return ModePlain
	}
}

// Live reports whether the mode redraws a multi-line panel in place.
func (m Mode) Live() bool {
	return m == ModeRich
}

// IsTerminal reports whether fd refers to an interactive terminal.
func IsTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// DetectMode picks the output mode for a stream.
//
// # Description
//
// TUTOR_OUTPUT wins when set. Otherwise a terminal gets ModeRich, unless
// NO_COLOR is set, in which case it gets ModePlain. Anything that is not a
// terminal (pipes, files, CI logs) gets ModePlain so that progress is still
// readable line by line.
//
// # Inputs
//
//   - fd: File descriptor of the output stream, usually os.Stderr.Fd()
//   - getenv: Environment lookup, usually os.Getenv
//
// # Outputs
//
//   - Mode: The selected mode
func DetectMode(fd uintptr, getenv func(string) string) Mode {
	if v := getenv(ModeEnv); v != "" {
		return ParseMode(v)
	}
	if !IsTerminal(fd) {
		return ModePlain
	}
	if getenv("NO_COLOR") != "" {
		return ModePlain
	}
	return ModeRich
}
