// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/handlers"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/middleware"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/pipeline"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/session"
	"github.com/CareMeshAI/CareMeshGateway/services/llm"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RateLimitConfig bounds the chat message endpoint.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

func SetupRoutes(router *gin.Engine, p *pipeline.Pipeline, store *session.Store,
	llmClient llm.Client, rl RateLimitConfig) {

	router.GET("/health", handlers.HealthCheck(llmClient))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		chat := v1.Group("/chat")
		{
			chat.POST("/message", middleware.RateLimit(rl.RPS, rl.Burst), handlers.HandleChatMessage(p))
			chat.GET("/history", handlers.HandleChatHistory(store))
			chat.DELETE("/session/:sessionId", handlers.HandleClearChatSession(store))
		}

		// Session administration routes
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handlers.HandleCreateSession(store))
			sessions.GET("/stats", handlers.HandleSessionStats(store))
			sessions.POST("/cleanup", handlers.HandleSessionCleanup(store))
			sessions.POST("/:sessionId/locale", handlers.HandleSetLocale(store))
			sessions.GET("/:sessionId", handlers.HandleSessionInfo(store))
			sessions.DELETE("/:sessionId", handlers.HandleDeleteSession(store))
		}
	}
}
