// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// NewSessionRequest is the body of POST /v1/sessions.
type NewSessionRequest struct {
	Language string `json:"language" validate:"omitempty,oneof=en es ar zh pt"`
}

// Validate validates the NewSessionRequest fields.
func (r *NewSessionRequest) Validate() error {
	return chatValidate.Struct(r)
}

// NewSessionResponse is returned when a session is created.
type NewSessionResponse struct {
	SessionID string    `json:"session_id"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

// SetLocaleRequest is the body of POST /v1/sessions/:sessionId/locale.
type SetLocaleRequest struct {
	Locale string `json:"locale" validate:"required,oneof=en es ar zh pt"`
}

// Validate validates the SetLocaleRequest fields.
func (r *SetLocaleRequest) Validate() error {
	return chatValidate.Struct(r)
}

// SessionInfoResponse describes one session's metadata.
type SessionInfoResponse struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
	Language     string    `json:"language"`
}

// SessionStatsResponse is the body of GET /v1/sessions/stats.
type SessionStatsResponse struct {
	ActiveSessions        int       `json:"active_sessions"`
	TotalMessages         int       `json:"total_messages"`
	AverageMessagesPerSes float64   `json:"average_messages_per_session"`
	MaxMessagesPerSession int       `json:"max_messages_per_session"`
	Timestamp             time.Time `json:"timestamp"`
}
