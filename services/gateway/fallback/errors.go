// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fallback

import (
	"errors"
	"fmt"
)

var (
	// ErrFallbackFailed matches every *FallbackFailedError through errors.Is.
	ErrFallbackFailed = errors.New("fallback failed")

	// ErrEmptyAnswer is the cause recorded when the single model answered
	// with nothing but whitespace.
	ErrEmptyAnswer = errors.New("single-model answer was empty")

	// ErrInvalidRequest wraps validation failures of the incoming question.
	ErrInvalidRequest = errors.New("invalid request")
)

// FallbackFailedError is the terminal failure of the mediated path: the
// primary path was abandoned and the single-model request failed too.
type FallbackFailedError struct {
	// Reason is why the primary path was abandoned.
	Reason Reason

	// PrimaryErr is the primary-path error, nil when the probe failed or the
	// circuit was open.
	PrimaryErr error

	// Err is the single-model failure.
	Err error
}

func (e *FallbackFailedError) Error() string {
	return fmt.Sprintf("fallback failed after primary %s: %v", e.Reason, e.Err)
}

// Unwrap exposes the single-model failure.
func (e *FallbackFailedError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFallbackFailed) succeed.
func (e *FallbackFailedError) Is(target error) bool { return target == ErrFallbackFailed }
