// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the gateway service.
//
// This file contains the request and response types for the chat endpoint.
// Session administration types live in session.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxMessageChars is the maximum length of a user message in characters.
	// Longer messages are rejected before the pipeline runs.
	MaxMessageChars = 2000

	// MaxMessageBytes bounds the raw byte size of a message so that
	// multi-byte payloads cannot blow past the character limit unnoticed.
	MaxMessageBytes = 8 * 1024
)

// SupportedLocales is the set of locale tags the gateway can respond in.
// English is the fallback for everything else.
var SupportedLocales = []string{"en", "es", "ar", "zh", "pt"}

// IsSupportedLocale reports whether the given tag is one the gateway
// localizes for.
func IsSupportedLocale(tag string) bool {
	for _, l := range SupportedLocales {
		if l == tag {
			return true
		}
	}
	return false
}

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()

	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes checks byte length (not rune count) against
// MaxMessageBytes to prevent oversized multi-byte payloads.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageBytes
}

// =============================================================================
// Core Message Types
// =============================================================================

// Message is a single conversation turn.
//
// # Description
//
// Role is "user" or "assistant". For user turns the Content field always
// holds the sanitized form of the utterance; raw user input is never stored
// in a Message.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ActionButton is a follow-up action attached to an assistant reply.
// Type is one of "call", "schedule", or "resource".
type ActionButton struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Citation is a source reference attached to an assistant reply.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SearchSource is a web search result surfaced to the caller alongside the
// assistant reply.
type SearchSource struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Snippet string   `json:"snippet"`
	Score   *float64 `json:"score,omitempty"`
}

// PIIDetectionResult summarizes what the sanitizer found and removed from
// one user utterance. It is transient: produced and consumed within a single
// request, surfaced in the response envelope, and never stored.
type PIIDetectionResult struct {
	HasPII          bool     `json:"has_pii"`
	DetectedTypes   []string `json:"detected_types"`
	RedactionNotice string   `json:"redaction_notice,omitempty"`
	Confidence      float64  `json:"confidence"`
	OriginalLength  int      `json:"original_length"`
	SanitizedLength int      `json:"sanitized_length"`
}

// =============================================================================
// Chat Request / Response
// =============================================================================

// ChatRequest is the body of POST /v1/chat/message.
//
// # Description
//
// SessionID identifies the conversation; the session is lazily created if it
// does not exist yet. Message is the raw user utterance; it is sanitized
// before anything else touches it. Language selects the response locale and
// must be one of SupportedLocales when set (defaults to "en").
//
// # Validation
//
//   - SessionID: required
//   - Message: required, 1..2000 characters, at most 8KB raw bytes
//   - Language: empty or one of en/es/ar/zh/pt
type ChatRequest struct {
	SessionID string                 `json:"session_id" validate:"required"`
	Message   string                 `json:"message" validate:"required,min=1,max=2000,maxbytes"`
	Language  string                 `json:"language" validate:"omitempty,oneof=en es ar zh pt"`
	Intent    string                 `json:"intent,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Validate validates the ChatRequest fields using the shared validator.
// Call this after binding the JSON body and before the pipeline runs.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// EnsureDefaults populates default values for optional fields.
func (r *ChatRequest) EnsureDefaults() {
	if r.Language == "" {
		r.Language = "en"
	}
}

// ChatResponse is the envelope returned for every chat request, success or
// fallback. It is constructed once per request and never mutated afterwards.
//
// # Fields
//
//   - SessionID: Echo of the request's session id.
//   - Message: Final assistant text (redaction notice prepended when PII
//     was removed from the user's input).
//   - Language: The resolved response locale.
//   - Actions: Follow-up action buttons, always at least a "call" action.
//   - Citations: Localized source references.
//   - SearchSources: Web results used to augment the reply, when search ran.
//   - Intent: Coarse classification of the (sanitized) user utterance.
//   - PIIDetection: Detection summary for this request, when available.
//   - ProcessingTimeMs: Wall-clock latency from receipt to envelope
//     construction, reported on failures as well.
type ChatResponse struct {
	SessionID        string              `json:"session_id"`
	Message          string              `json:"message"`
	Language         string              `json:"language"`
	Actions          []ActionButton      `json:"actions,omitempty"`
	Citations        []Citation          `json:"citations,omitempty"`
	SearchSources    []SearchSource      `json:"search_sources,omitempty"`
	Intent           string              `json:"intent,omitempty"`
	PIIDetection     *PIIDetectionResult `json:"pii_detection,omitempty"`
	Timestamp        time.Time           `json:"timestamp"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
}

// ChatHistoryResponse is the body of GET /v1/chat/history.
type ChatHistoryResponse struct {
	SessionID   string               `json:"session_id"`
	Messages    []Message            `json:"messages"`
	TotalCount  int                  `json:"total_count"`
	SessionInfo *SessionInfoResponse `json:"session_info,omitempty"`
}
