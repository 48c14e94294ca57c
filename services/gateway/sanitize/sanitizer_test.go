// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sanitize

import (
	"context"
	"errors"
	"testing"

	"github.com/CareMeshAI/CareMeshGateway/services/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLLMClient is a testify mock of llm.Client.
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Complete(ctx context.Context, messages []llm.Message, opts llm.CompletionOptions) (*llm.Completion, error) {
	args := m.Called(ctx, messages, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Completion), args.Error(1)
}

func (m *MockLLMClient) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func replyWith(text string) *llm.Completion {
	return &llm.Completion{Text: text}
}

// TestSanitizer_Sanitize_DetectsPII verifies the happy detection path with
// notice construction.
func TestSanitizer_Sanitize_DetectsPII(t *testing.T) {
	client := new(MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(replyWith(
		"PII_DETECTED: [YES]\nDETECTED_TYPES: names, medical\nSANITIZED_TEXT: [REDACTED] has a headache\nCONFIDENCE: 0.9"), nil)

	result := NewSanitizer(client).Sanitize(context.Background(), "John Smith MRN 12345 has a headache")

	assert.True(t, result.HasPII)
	assert.Equal(t, []string{"names", "medical"}, result.DetectedTypes)
	assert.Equal(t, "[REDACTED] has a headache", result.SanitizedText)
	assert.Equal(t, "We detected and removed names and medical identifiers to protect confidentiality.", result.RedactionNotice)
	assert.InDelta(t, 0.9, result.Confidence, 0.001)
	assert.Equal(t, len("John Smith MRN 12345 has a headache"), result.OriginalLength)
	assert.Equal(t, len("[REDACTED] has a headache"), result.SanitizedLength)
}

// TestSanitizer_Sanitize_CleanText verifies a no-detection reply passes the
// sanitized text through with no notice.
func TestSanitizer_Sanitize_CleanText(t *testing.T) {
	client := new(MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(replyWith(
		"PII_DETECTED: [NO]\nDETECTED_TYPES: NONE\nSANITIZED_TEXT: what are screening hours?\nCONFIDENCE: 0.99"), nil)

	result := NewSanitizer(client).Sanitize(context.Background(), "what are screening hours?")

	assert.False(t, result.HasPII)
	assert.Empty(t, result.RedactionNotice)
	assert.Equal(t, "what are screening hours?", result.SanitizedText)
}

// TestSanitizer_Sanitize_BackendFailureFailsClosed verifies total backend
// failure replaces the utterance with the placeholder.
func TestSanitizer_Sanitize_BackendFailureFailsClosed(t *testing.T) {
	client := new(MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	original := "John Smith needs an appointment"
	result := NewSanitizer(client).Sanitize(context.Background(), original)

	assert.True(t, result.HasPII)
	assert.Equal(t, failClosedText, result.SanitizedText)
	assert.Equal(t, []string{"processing_error"}, result.DetectedTypes)
	assert.Equal(t, failClosedNotice, result.RedactionNotice)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, len(original), result.OriginalLength)
	assert.Equal(t, 0, result.SanitizedLength)
}

// TestSanitizer_Sanitize_ParseFailurePassesThrough verifies the deliberate
// asymmetry: an unusable reply keeps the original text unredacted.
func TestSanitizer_Sanitize_ParseFailurePassesThrough(t *testing.T) {
	client := new(MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(replyWith(
		"Sure! I looked at the text and it seems fine to me."), nil)

	original := "what are screening hours?"
	result := NewSanitizer(client).Sanitize(context.Background(), original)

	assert.False(t, result.HasPII)
	assert.Equal(t, original, result.SanitizedText)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, len(original), result.SanitizedLength)
}

// TestSanitizer_Sanitize_EmptySanitizedTextFallsBack verifies a detected
// reply with an empty sanitized line keeps the original text.
func TestSanitizer_Sanitize_EmptySanitizedTextFallsBack(t *testing.T) {
	client := new(MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(replyWith(
		"PII_DETECTED: NO\nSANITIZED_TEXT:\nCONFIDENCE: 0.5"), nil)

	result := NewSanitizer(client).Sanitize(context.Background(), "hello")

	assert.Equal(t, "hello", result.SanitizedText)
	assert.Equal(t, len("hello"), result.SanitizedLength)
}

// TestSanitizer_Sanitize_SendsDetectionPrompt verifies the prompt carries
// the utterance and the mandated reply format.
func TestSanitizer_Sanitize_SendsDetectionPrompt(t *testing.T) {
	client := new(MockLLMClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(messages []llm.Message) bool {
		require.Len(t, messages, 1)
		return assert.Contains(t, messages[0].Content, "PII_DETECTED:") &&
			assert.Contains(t, messages[0].Content, "my text here")
	}), mock.Anything).Return(replyWith("PII_DETECTED: NO\nSANITIZED_TEXT: my text here"), nil)

	NewSanitizer(client).Sanitize(context.Background(), "my text here")

	client.AssertExpectations(t)
}
