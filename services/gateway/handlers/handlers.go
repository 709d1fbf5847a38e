// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the gateway's HTTP endpoints.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/tutorgate/services/gateway/brain"
	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
)

// StatusClientClosedRequest is reported when the caller went away before
// the answer was ready.
const StatusClientClosedRequest = 499

// Backend is the part of the channel client the handlers call directly.
// *brain.Client satisfies it.
type Backend interface {
	Probe(ctx context.Context) bool
	GenerateExam(ctx context.Context, req datatypes.ExamRequest) (datatypes.ExamResponse, error)
	SystemInfo(ctx context.Context) (brain.SystemInfo, error)
}

// Answerer runs the mediated path. *fallback.Controller satisfies it.
type Answerer interface {
	Answer(ctx context.Context, req datatypes.AskRequest) (datatypes.NormalizedResult, error)
}

// abortWithError writes the gateway's error body and stops the chain.
func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, datatypes.ErrorResponse{
		Error:     message,
		RequestID: c.GetString(RequestIDKey),
	})
}

// cancellationStatus maps a caller-side context error, or returns 0 when
// the caller is still there.
func cancellationStatus(c *gin.Context, err error) int {
	if c.Request.Context().Err() == nil {
		return 0
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return StatusClientClosedRequest
}
