// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sse implements the Server-Sent Events framing used by the reasoning
// backend's streaming channel.
//
// Wire format (https://developer.mozilla.org/en-US/docs/Web/API/Server-sent_events):
//
//	data: {"type":"progress","stage":"retrieving","agent":"Librarian","status":"started","detail":""}\n
//	\n
//	data: {"type":"result","answer":"...","critique":"...","success":true}\n
//	\n
//
// Parsers only parse, readers only read, writers only write.
package sse

import "strings"

// Parser extracts frame payloads from single SSE lines.
//
// The zero value is ready to use and is safe for concurrent use.
type Parser struct{}

// ParseLine returns the JSON payload carried by a data line.
//
// # Description
//
// Accepts both "data: {json}" and "data:{json}". Blank lines (frame
// delimiters), comment lines starting with ":", and the event:, id: and
// retry: fields return ok=false.
//
// # Inputs
//
//   - line: A single line without its trailing newline
//
// # Outputs
//
//   - []byte: The payload, trimmed
//   - bool: false when the line carries no payload
//
// # Example
//
//	var p sse.Parser
//	payload, ok := p.ParseLine(`data: {"type":"error","message":"x"}`)
func (Parser) ParseLine(line string) ([]byte, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ":") {
		return nil, false
	}

	payload, found := strings.CutPrefix(line, "data:")
	if !found {
		return nil, false
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, false
	}
	return []byte(payload), true
}
