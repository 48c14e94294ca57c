// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sanitize removes personally identifiable information from user
// utterances before anything downstream sees them.
//
// # Description
//
// Detection is delegated to the language model with a prompt that mandates
// a strict labeled-line reply format. The failure policy is asymmetric on
// purpose: if the backend call itself fails we fail closed and replace the
// entire utterance with a placeholder, but if the backend replied and only
// the parse is unusable we pass the original text through unredacted. A
// reply we received but cannot parse almost always means the model answered
// conversationally about a clean utterance.
//
// # Limitations
//
//   - Detection quality is bounded by the backing model.
//   - No local regex pass; the model is the single detector.
package sanitize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CareMeshAI/CareMeshGateway/services/llm"
)

// detectionTimeout bounds the sanitization call so a slow model cannot
// stall the whole pipeline.
const detectionTimeout = 15 * time.Second

const (
	failClosedText   = "[QUERY SANITIZED DUE TO PROCESSING ERROR]"
	failClosedNotice = "Query was sanitized due to a processing error to ensure privacy protection."
)

// detectionPrompt mandates the exact reply format parseDetection expects.
const detectionPrompt = `You are a privacy protection system for a healthcare service.
Analyze the user text below for personally identifiable information (PII).

PII categories to detect: names, ages, dates, addresses, contact, medical, insurance, ssn, phone, email.

Reply in EXACTLY this format and nothing else:
PII_DETECTED: [YES/NO]
DETECTED_TYPES: comma-separated list of categories, or NONE
SANITIZED_TEXT: the text with each piece of PII replaced by [REDACTED]
CONFIDENCE: a number between 0.0 and 1.0

User text:
%s`

// Result summarizes one sanitization pass.
type Result struct {
	HasPII          bool
	DetectedTypes   []string
	SanitizedText   string
	Confidence      float64
	RedactionNotice string
	OriginalLength  int
	SanitizedLength int
}

// Sanitizer runs model-backed PII detection.
type Sanitizer struct {
	client  llm.Client
	timeout time.Duration
}

// NewSanitizer creates a Sanitizer backed by the given model client.
func NewSanitizer(client llm.Client) *Sanitizer {
	return &Sanitizer{client: client, timeout: detectionTimeout}
}

// Sanitize analyzes text for PII and returns the sanitized form. It never
// returns an error: backend failure fails closed, parse failure passes the
// original text through.
func (s *Sanitizer) Sanitize(ctx context.Context, text string) *Result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := fmt.Sprintf(detectionPrompt, text)
	completion, err := s.client.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, llm.CompletionOptions{
		MaxTokens:   600,
		Temperature: 0.1,
	})
	if err != nil {
		slog.Error("PII detection backend call failed, failing closed", "error", err)
		return failClosed(len(text))
	}

	parsed, ok := parseDetection(completion.Text)
	if !ok {
		slog.Warn("PII detection reply unparseable, passing text through", "reply_length", len(completion.Text))
		return &Result{
			HasPII:          false,
			SanitizedText:   text,
			Confidence:      0,
			OriginalLength:  len(text),
			SanitizedLength: len(text),
		}
	}

	result := &Result{
		HasPII:          parsed.detected,
		DetectedTypes:   parsed.types,
		SanitizedText:   parsed.sanitized,
		Confidence:      parsed.confidence,
		OriginalLength:  len(text),
		SanitizedLength: len(parsed.sanitized),
	}
	if result.SanitizedText == "" {
		result.SanitizedText = text
		result.SanitizedLength = len(text)
	}
	if result.HasPII {
		result.RedactionNotice = buildRedactionNotice(result.DetectedTypes)
		slog.Info("PII detected and removed", "types", result.DetectedTypes, "confidence", result.Confidence)
	}
	return result
}

// failClosed builds the placeholder result used when detection itself fails.
func failClosed(originalLength int) *Result {
	return &Result{
		HasPII:          true,
		DetectedTypes:   []string{"processing_error"},
		SanitizedText:   failClosedText,
		Confidence:      0,
		RedactionNotice: failClosedNotice,
		OriginalLength:  originalLength,
		SanitizedLength: 0,
	}
}

// friendlyNames maps detector category labels to patient-facing phrasing.
var friendlyNames = map[string]string{
	"names":     "names",
	"ages":      "age information",
	"contact":   "contact information",
	"medical":   "medical identifiers",
	"insurance": "insurance information",
	"ssn":       "social security numbers",
	"phone":     "phone numbers",
	"email":     "email addresses",
}

// buildRedactionNotice renders the patient-facing notice for a set of
// detected categories: one item "X", two "X and Y", three or more
// "X, Y, and Z".
func buildRedactionNotice(types []string) string {
	if len(types) == 0 {
		return ""
	}

	named := make([]string, 0, len(types))
	for _, t := range types {
		if friendly, ok := friendlyNames[t]; ok {
			named = append(named, friendly)
		} else {
			named = append(named, strings.ReplaceAll(t, "_", " "))
		}
	}

	var joined string
	switch len(named) {
	case 1:
		joined = named[0]
	case 2:
		joined = named[0] + " and " + named[1]
	default:
		joined = strings.Join(named[:len(named)-1], ", ") + ", and " + named[len(named)-1]
	}

	return fmt.Sprintf("We detected and removed %s to protect confidentiality.", joined)
}
