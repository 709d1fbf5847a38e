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
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports gateway liveness. It never contacts the backend.
func HealthCheck(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "tutorgate-gateway",
			"version": version,
		})
	}
}

// HandleBackendHealth probes the reasoning backend. The probe never fails,
// so the endpoint always answers 200 with {"healthy": bool}.
func HandleBackendHealth(backend Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"healthy": backend.Probe(c.Request.Context())})
	}
}

// HandleBackendInfo relays the backend's participant and capability list.
func HandleBackendInfo(backend Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := backend.SystemInfo(c.Request.Context())
		if err != nil {
			if status := cancellationStatus(c, err); status != 0 {
				abortWithError(c, status, "request cancelled")
				return
			}
			abortWithError(c, http.StatusBadGateway, err.Error())
			return
		}
		c.JSON(http.StatusOK, info)
	}
}
