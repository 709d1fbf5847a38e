// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/tutorgate/services/gateway/contextblock"
	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
	"github.com/AleutianAI/tutorgate/services/gateway/fallback"
)

// ContextLimits bounds the history section the gateway assembles.
type ContextLimits struct {
	MaxTurns     int
	MaxTurnChars int
}

// HandleAsk serves POST /v1/ask, the mediated path.
//
// # Description
//
// Decodes a GatewayAskRequest. When the caller sent no context block but
// did send a project or history, the block is assembled here. The
// question then goes through the fallback controller; the response is the
// normalized result with its source tag. Primary-path failures never show
// up here, only a failure of the single-model path does.
//
// # Outputs
//
//   - 200: datatypes.GatewayAskResponse
//   - 400: malformed or invalid request
//   - 499: caller cancelled
//   - 502: both paths failed
//   - 504: caller deadline exceeded
func HandleAsk(answerer Answerer, limits ContextLimits) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.GatewayAskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := req.Validate(); err != nil {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}

		ask := req.AskRequest
		if strings.TrimSpace(ask.Context) == "" {
			if block, ok := contextblock.Build(req.Project, req.History, limits.MaxTurns, limits.MaxTurnChars); ok {
				ask.Context = block
			}
		}

		ctx := c.Request.Context()
		result, err := answerer.Answer(ctx, ask)
		if err != nil {
			if status := cancellationStatus(c, err); status != 0 {
				slog.InfoContext(ctx, "Caller left before the answer was ready", "error", err)
				abortWithError(c, status, "request cancelled")
				return
			}
			switch {
			case errors.Is(err, fallback.ErrInvalidRequest):
				abortWithError(c, http.StatusBadRequest, err.Error())
			case errors.Is(err, fallback.ErrFallbackFailed):
				abortWithError(c, http.StatusBadGateway, err.Error())
			default:
				slog.ErrorContext(ctx, "Mediated answer failed", "error", err)
				abortWithError(c, http.StatusInternalServerError, "internal error")
			}
			return
		}

		slog.InfoContext(ctx, "Answered question", "source", string(result.Source()))
		c.JSON(http.StatusOK, result.Response())
	}
}
