// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/CareMeshAI/CareMeshGateway/services/llm"
	"github.com/gin-gonic/gin"
)

const healthProbeTimeout = 5 * time.Second

// HealthCheck reports service liveness plus the language model backend's
// reachability. The endpoint always answers 200; a failed probe downgrades
// status to "degraded" so load balancers keep routing while alerts fire.
func HealthCheck(llmClient llm.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		backend := "ok"

		ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
		defer cancel()
		if err := llmClient.HealthCheck(ctx); err != nil {
			status = "degraded"
			backend = "unreachable"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      status,
			"llm_backend": backend,
			"timestamp":   time.Now().UTC(),
		})
	}
}
