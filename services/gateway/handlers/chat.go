// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers provides Gin HTTP handlers for the gateway service.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/CareMeshAI/CareMeshGateway/services/gateway/datatypes"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/pipeline"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/session"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var chatTracer = otel.Tracer("caremesh.gateway.handlers")

// HandleChatMessage processes one chat turn through the pipeline.
func HandleChatMessage(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChatMessage")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse chat request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "validation failed")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := p.Process(ctx, &req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// HandleChatHistory returns a session's history, optionally limited to the
// most recent N messages via the limit query parameter.
func HandleChatHistory(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Query("session_id")
		if sessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
			return
		}

		info, ok := store.Info(sessionID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		messages := store.History(sessionID)
		if limitStr := c.Query("limit"); limitStr != "" {
			limit, err := strconv.Atoi(limitStr)
			if err != nil || limit < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			if limit < len(messages) {
				messages = messages[len(messages)-limit:]
			}
		}

		c.JSON(http.StatusOK, datatypes.ChatHistoryResponse{
			SessionID:  sessionID,
			Messages:   messages,
			TotalCount: len(messages),
			SessionInfo: &datatypes.SessionInfoResponse{
				SessionID:    info.SessionID,
				CreatedAt:    info.CreatedAt,
				LastActivity: info.LastActivity,
				MessageCount: info.MessageCount,
				Language:     info.Locale,
			},
		})
	}
}

// HandleClearChatSession empties a session's history without deleting the
// session itself.
func HandleClearChatSession(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		if !store.Clear(sessionID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "session cleared", "session_id": sessionID})
	}
}
