// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sse

import (
	"bufio"
	"io"
	"log/slog"

	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
)

// Reader decodes events from an SSE body one at a time.
//
// # Description
//
// Reader is a pull-style decoder: each call to Next blocks until one event
// has been decoded or the body ends. Frames that are not valid events are
// skipped and logged at warn level so a single bad frame never ends an
// otherwise healthy session.
//
// # Thread Safety
//
// Not safe for concurrent use. One goroutine owns a Reader.
//
// Lines have no length limit. Result frames carry the generated visual
// inline as base64 and routinely exceed several MiB.
type Reader struct {
	buf     *bufio.Reader
	parser  Parser
	logger  *slog.Logger
	skipped int
}

// NewReader wraps r. The caller remains responsible for closing r.
// A nil logger uses slog.Default().
func NewReader(r io.Reader, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{buf: bufio.NewReaderSize(r, 64*1024), logger: logger}
}

// Next returns the next decoded event.
//
// # Outputs
//
//   - datatypes.Event: The decoded event
//   - error: io.EOF on a clean end of body, otherwise the read error
func (r *Reader) Next() (datatypes.Event, error) {
	for {
		line, readErr := r.buf.ReadString('\n')
		if line != "" {
			if ev, ok := r.decode(line); ok {
				return ev, nil
			}
		}
		if readErr != nil {
			return nil, readErr
		}
	}
}

func (r *Reader) decode(line string) (datatypes.Event, bool) {
	payload, ok := r.parser.ParseLine(line)
	if !ok {
		return nil, false
	}
	ev, err := datatypes.DecodeEvent(payload)
	if err != nil {
		r.skipped++
		r.logger.Warn("Skipping malformed stream frame",
			"error", err,
			"frame_bytes", len(payload))
		return nil, false
	}
	return ev, true
}

// Skipped returns how many malformed frames were dropped so far.
func (r *Reader) Skipped() int {
	return r.skipped
}
