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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/tutorgate/services/gateway/brain"
	"github.com/AleutianAI/tutorgate/services/gateway/datatypes"
)

// HandleExam serves POST /v1/exam through the auxiliary channel. There is
// no fallback for exams: 504 when the auxiliary budget ran out, 502 for
// any other backend failure.
func HandleExam(backend Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ExamRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}

		exam, err := backend.GenerateExam(c.Request.Context(), req)
		if err != nil {
			if status := cancellationStatus(c, err); status != 0 {
				abortWithError(c, status, "request cancelled")
				return
			}
			if errors.Is(err, brain.ErrTimeout) {
				abortWithError(c, http.StatusGatewayTimeout, err.Error())
				return
			}
			abortWithError(c, http.StatusBadGateway, err.Error())
			return
		}
		c.JSON(http.StatusOK, exam)
	}
}
