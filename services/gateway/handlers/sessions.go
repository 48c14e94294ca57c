// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/CareMeshAI/CareMeshGateway/services/gateway/datatypes"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/session"
	"github.com/gin-gonic/gin"
)

// Cleanup age bounds in hours. One hour to one week.
const (
	minCleanupHours     = 1
	maxCleanupHours     = 168
	defaultCleanupHours = 24
)

// HandleCreateSession creates a fresh session, optionally with a locale.
func HandleCreateSession(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.NewSessionRequest
		// Body is optional; ignore EOF from an empty body.
		_ = c.ShouldBindJSON(&req)
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		id := store.CreateSession("")
		if req.Language != "" {
			store.SetLocale(id, req.Language)
		}

		info, _ := store.Info(id)
		c.JSON(http.StatusCreated, datatypes.NewSessionResponse{
			SessionID: id,
			Language:  info.Locale,
			CreatedAt: info.CreatedAt,
		})
	}
}

// HandleSetLocale validates and records a session's language preference.
// The response carries the text direction for the UI (rtl for Arabic).
func HandleSetLocale(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")

		var req datatypes.SetLocaleRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if !store.Exists(sessionID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		store.SetLocale(sessionID, req.Locale)

		direction := "ltr"
		if req.Locale == "ar" {
			direction = "rtl"
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionID,
			"locale":     req.Locale,
			"direction":  direction,
		})
	}
}

// HandleSessionInfo returns one session's metadata.
func HandleSessionInfo(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		info, ok := store.Info(sessionID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		c.JSON(http.StatusOK, datatypes.SessionInfoResponse{
			SessionID:    info.SessionID,
			CreatedAt:    info.CreatedAt,
			LastActivity: info.LastActivity,
			MessageCount: info.MessageCount,
			Language:     info.Locale,
		})
	}
}

// HandleDeleteSession removes a session entirely.
func HandleDeleteSession(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		if !store.Delete(sessionID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "session deleted", "session_id": sessionID})
	}
}

// HandleSessionStats returns store-wide statistics.
func HandleSessionStats(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := store.Stats()
		c.JSON(http.StatusOK, datatypes.SessionStatsResponse{
			ActiveSessions:        stats.ActiveSessions,
			TotalMessages:         stats.TotalMessages,
			AverageMessagesPerSes: stats.AverageMessagesPerSes,
			MaxMessagesPerSession: stats.MaxMessagesPerSession,
			Timestamp:             time.Now().UTC(),
		})
	}
}

// HandleSessionCleanup removes sessions idle longer than max_age_hours.
// The age is bounds-checked to 1..168 hours.
func HandleSessionCleanup(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		hours := defaultCleanupHours
		if raw := c.Query("max_age_hours"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "max_age_hours must be an integer"})
				return
			}
			hours = parsed
		}
		if hours < minCleanupHours || hours > maxCleanupHours {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "max_age_hours must be between 1 and 168",
			})
			return
		}

		removed := store.Cleanup(time.Duration(hours) * time.Hour)
		c.JSON(http.StatusOK, gin.H{
			"removed_sessions": removed,
			"max_age_hours":    hours,
		})
	}
}
