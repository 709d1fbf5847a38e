// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTimeout is returned when the attempt budget elapsed before the
	// backend answered.
	ErrTimeout = errors.New("reasoning backend: attempt budget exceeded")

	// ErrUnavailable is returned when the backend could not be reached or
	// answered with a gateway-class status (502, 503, 504).
	ErrUnavailable = errors.New("reasoning backend: unavailable")

	// ErrIncompleteStream is returned by Collect when the stream ended
	// without a result or error event.
	ErrIncompleteStream = errors.New("reasoning backend: stream ended without a result")
)

// BackendError is a failure reported by the backend itself: an explicit
// success=false, an unexpected status, or a body that could not be decoded.
type BackendError struct {
	// StatusCode is the HTTP status, or 0 when the failure was reported in a
	// 2xx body or an error event.
	StatusCode int

	// Message is the backend's own description when it gave one.
	Message string
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("reasoning backend error (%d): %s", e.StatusCode, e.Message)
	}
	return "reasoning backend error: " + e.Message
}

// IsBackendError reports whether err wraps a *BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// classifyTransport maps an error from HTTPClient.Do or a body read into the
// client's taxonomy. Caller cancellation is returned untouched.
func classifyTransport(caller, attempt context.Context, err error) error {
	if cerr := caller.Err(); cerr != nil {
		return cerr
	}
	if errors.Is(attempt.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// classifyStatus maps a non-2xx response into the client's taxonomy.
func classifyStatus(status int, body []byte) error {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", ErrUnavailable, status)
	}
	return &BackendError{StatusCode: status, Message: errorMessage(body)}
}

// errorMessage extracts a readable message from an error body. FastAPI-style
// {"detail": ...} and {"error": ...} bodies are unwrapped; anything else is
// returned as trimmed text.
func errorMessage(body []byte) string {
	var payload struct {
		Detail  any    `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error != "":
			return payload.Error
		case payload.Message != "":
			return payload.Message
		case payload.Detail != nil:
			if s, ok := payload.Detail.(string); ok {
				return s
			}
			if b, err := json.Marshal(payload.Detail); err == nil {
				return string(b)
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	if msg == "" {
		msg = "no error message"
	}
	return msg
}

const maxErrorBody = 512

func isTimeout(err error) bool     { return errors.Is(err, ErrTimeout) }
func isUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
