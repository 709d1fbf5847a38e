// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/tutorgate/services/gateway/handlers"
)

// Deps are the collaborators the gateway routes call.
type Deps struct {
	Backend  handlers.Backend
	Answerer handlers.Answerer
	Limits   handlers.ContextLimits
	Version  string

	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
}

// SetupRoutes registers every gateway endpoint on router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck(deps.Version))
	router.GET("/metrics", gin.WrapH(metricsHandler(deps.Gatherer)))

	v1 := router.Group("/v1")
	{
		v1.POST("/ask", handlers.HandleAsk(deps.Answerer, deps.Limits))
		v1.POST("/exam", handlers.HandleExam(deps.Backend))

		backend := v1.Group("/backend")
		{
			backend.GET("/health", handlers.HandleBackendHealth(deps.Backend))
			backend.GET("/info", handlers.HandleBackendInfo(deps.Backend))
		}
	}
}

func metricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
