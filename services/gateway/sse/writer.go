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
	"fmt"
	"net/http"
	"sync"

	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
)

// Writer emits events as SSE frames and flushes after each one.
//
// # Description
//
// Each event is written as a single "data: {json}\n\n" frame. The writer
// does not add event: or id: fields; the payload's "type" is the only
// discriminator.
//
// # Thread Safety
//
// Safe for concurrent use. Frames are never interleaved.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewWriter wraps w, which must implement http.Flusher.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent encodes ev and writes it as one frame.
func (w *Writer) WriteEvent(ev datatypes.Event) error {
	data, err := datatypes.EncodeEvent(ev)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// WriteProgress is a shorthand for a progress frame.
func (w *Writer) WriteProgress(stage datatypes.Stage, participant string, status datatypes.ProgressStatus, detail string) error {
	return w.WriteEvent(&datatypes.ProgressEvent{
		Stage:       stage,
		Participant: participant,
		Status:      status,
		Detail:      detail,
	})
}

// WriteError is a shorthand for a backend error frame.
func (w *Writer) WriteError(message string) error {
	return w.WriteEvent(&datatypes.ErrorEvent{Code: datatypes.ErrorCodeBackend, Message: message})
}

// WriteKeepAlive writes an SSE comment that clients ignore.
func (w *Writer) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprint(w.w, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// SetHeaders sets the response headers required for SSE. Call it before the
// first write.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
