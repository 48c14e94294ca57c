// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline orchestrates the per-message chat flow.
//
// # Description
//
// Each request moves through a fixed sequence of states: Received,
// Sanitizing, ContextBuilding, optionally SearchDecision and Searching,
// Generating, PostProcessing, Responded. Failed is the terminal state
// reachable from any step. Sanitization always runs first; no raw user
// text is stored or sent downstream.
//
// Any failure after sanitization produces a well-formed fallback envelope
// (localized apology plus a call action) rather than an error. External
// calls are never retried.
//
// # Thread Safety
//
// Process is safe for concurrent use. Requests for different sessions run
// fully in parallel; same-session appends are serialized by the store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CareMeshAI/CareMeshGateway/services/gateway/datatypes"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/enhance"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/observability"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/sanitize"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/search"
	"github.com/CareMeshAI/CareMeshGateway/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// pipelineTracer is the OpenTelemetry tracer for pipeline operations.
var pipelineTracer = otel.Tracer("caremesh.gateway.pipeline")

// =============================================================================
// States
// =============================================================================

// State labels one step of the per-request flow, recorded on the span as
// the request advances.
type State string

const (
	StateReceived        State = "received"
	StateSanitizing      State = "sanitizing"
	StateContextBuilding State = "context_building"
	StateSearchDecision  State = "search_decision"
	StateSearching       State = "searching"
	StateGenerating      State = "generating"
	StatePostProcessing  State = "post_processing"
	StateResponded       State = "responded"
	StateFailed          State = "failed"
)

// =============================================================================
// Dependency Contracts
// =============================================================================

// SessionStore is the slice of the session store the pipeline needs.
type SessionStore interface {
	CreateSession(id string) string
	Append(id, role, content string)
	ContextForModel(id string) []datatypes.Message
	SetLocale(id, locale string)
}

// Sanitizer removes PII from one utterance.
type Sanitizer interface {
	Sanitize(ctx context.Context, text string) *sanitize.Result
}

// Searcher is the optional web search dependency.
type Searcher interface {
	Available() bool
	ShouldSearch(ctx context.Context, utterance string) bool
	BuildQuery(ctx context.Context, utterance string) string
	Search(ctx context.Context, query string) ([]datatypes.SearchSource, error)
}

// =============================================================================
// Pipeline
// =============================================================================

// Pipeline executes the chat flow with injected dependencies. The search
// dependency may be nil; every other field is required.
type Pipeline struct {
	store     SessionStore
	sanitizer Sanitizer
	search    Searcher
	llmClient llm.Client
	metrics   *observability.PipelineMetrics
}

// New creates a Pipeline. metrics may be nil, which disables recording.
func New(store SessionStore, sanitizer Sanitizer, searcher Searcher, llmClient llm.Client, metrics *observability.PipelineMetrics) *Pipeline {
	return &Pipeline{
		store:     store,
		sanitizer: sanitizer,
		search:    searcher,
		llmClient: llmClient,
		metrics:   metrics,
	}
}

// Process runs one chat request end to end.
//
// # Description
//
// The flow is:
//  1. Validate and apply request defaults.
//  2. Sanitize the raw message; everything downstream sees sanitized text.
//  3. Ensure the session exists, set its locale, append the user turn.
//  4. Build the model context from session history.
//  5. If search is configured and warranted, retrieve and format results
//     as an auxiliary system message.
//  6. Call the language model.
//  7. Prepend the redaction notice when PII was removed.
//  8. Append the assistant turn and derive intent, actions, citations.
//  9. Assemble the envelope with wall-clock processing time.
//
// An error is returned only for validation failure; any later failure
// yields the fallback envelope with a nil error.
func (p *Pipeline) Process(ctx context.Context, req *datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	start := time.Now()

	ctx, span := pipelineTracer.Start(ctx, "Pipeline.Process")
	defer span.End()
	setState(span, StateReceived)

	if p.metrics != nil {
		p.metrics.RequestStarted()
		defer p.metrics.RequestEnded()
	}

	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		setState(span, StateFailed)
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	span.SetAttributes(
		attribute.String("session.id", req.SessionID),
		attribute.String("request.language", req.Language),
	)

	// Step 2: sanitize before anything else touches the text.
	setState(span, StateSanitizing)
	detection := p.sanitizer.Sanitize(ctx, req.Message)
	sanitized := detection.SanitizedText
	span.SetAttributes(attribute.Bool("pii.detected", detection.HasPII))
	if p.metrics != nil && detection.HasPII {
		p.metrics.RecordPIIDetection(detection.DetectedTypes)
	}

	// Step 3: session bookkeeping with sanitized text only.
	p.store.CreateSession(req.SessionID)
	p.store.SetLocale(req.SessionID, req.Language)
	p.store.Append(req.SessionID, "user", sanitized)

	// Step 4: model context from history.
	setState(span, StateContextBuilding)
	history := p.store.ContextForModel(req.SessionID)
	messages := toLLMMessages(history)

	// Step 5: optional search augmentation.
	var sources []datatypes.SearchSource
	if p.search != nil && p.search.Available() {
		setState(span, StateSearchDecision)
		if p.search.ShouldSearch(ctx, sanitized) {
			setState(span, StateSearching)
			messages, sources = p.runSearch(ctx, span, sanitized, messages)
		} else if p.metrics != nil {
			p.metrics.RecordSearchOutcome(observability.SearchSkipped)
		}
	}

	// Step 6: generation.
	setState(span, StateGenerating)
	completion, err := p.llmClient.Complete(ctx, messages, llm.CompletionOptions{Locale: req.Language})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		setState(span, StateFailed)
		slog.Error("Language model call failed, returning fallback", "session_id", req.SessionID, "error", err)
		if p.metrics != nil {
			p.metrics.RecordBackendFailure("llm", failureKind(err))
		}
		return p.fallbackResponse(req, detection, start), nil
	}

	// Steps 7 and 8: notice, history append, enhancements.
	setState(span, StatePostProcessing)
	finalText := completion.Text
	if detection.HasPII && detection.RedactionNotice != "" {
		finalText = detection.RedactionNotice + "\n\n" + finalText
	}
	p.store.Append(req.SessionID, "assistant", finalText)

	intent := enhance.ClassifyIntent(sanitized)
	actions := toDatatypeActions(enhance.Actions(finalText, req.Language))
	citations := toDatatypeCitations(enhance.Citations(req.Language))

	setState(span, StateResponded)
	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordRequest(intent, true)
		p.metrics.RecordDuration(elapsed.Seconds(), true)
	}
	span.SetAttributes(
		attribute.String("response.intent", intent),
		attribute.Int("response.sources_count", len(sources)),
	)

	return &datatypes.ChatResponse{
		SessionID:        req.SessionID,
		Message:          finalText,
		Language:         req.Language,
		Actions:          actions,
		Citations:        citations,
		SearchSources:    sources,
		Intent:           intent,
		PIIDetection:     detectionSummary(detection),
		Timestamp:        time.Now().UTC(),
		ProcessingTimeMs: elapsed.Milliseconds(),
	}, nil
}

// runSearch executes the query build, retrieval, and context injection.
// Failures degrade to the unaugmented message list.
func (p *Pipeline) runSearch(ctx context.Context, span trace.Span, sanitized string, messages []llm.Message) ([]llm.Message, []datatypes.SearchSource) {
	query := p.search.BuildQuery(ctx, sanitized)
	sources, err := p.search.Search(ctx, query)
	if err != nil {
		span.AddEvent("search failed")
		slog.Warn("Web search failed, continuing without results", "error", err)
		if p.metrics != nil {
			p.metrics.RecordSearchOutcome(observability.SearchFailed)
		}
		return messages, nil
	}

	if p.metrics != nil {
		p.metrics.RecordSearchOutcome(observability.SearchTriggered)
	}
	if formatted := search.FormatForContext(sources); formatted != "" {
		messages = append(messages, llm.Message{Role: "system", Content: formatted})
	}
	return messages, sources
}

// fallbackResponse builds the well-formed envelope for any post-sanitization
// failure: localized apology, a single call action, elapsed time.
func (p *Pipeline) fallbackResponse(req *datatypes.ChatRequest, detection *sanitize.Result, start time.Time) *datatypes.ChatResponse {
	call := enhance.CallAction(req.Language)
	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordRequest(enhance.IntentUnknown, false)
		p.metrics.RecordDuration(elapsed.Seconds(), false)
	}
	return &datatypes.ChatResponse{
		SessionID: req.SessionID,
		Message:   enhance.ApologyMessage(req.Language),
		Language:  req.Language,
		Actions: []datatypes.ActionButton{{
			Type:  call.Type,
			Label: call.Label,
			Href:  call.Href,
		}},
		PIIDetection:     detectionSummary(detection),
		Timestamp:        time.Now().UTC(),
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
}

// =============================================================================
// Helpers
// =============================================================================

func setState(span trace.Span, state State) {
	span.SetAttributes(attribute.String("pipeline.state", string(state)))
}

func toLLMMessages(history []datatypes.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		out = append(out, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

func toDatatypeActions(actions []enhance.ActionButton) []datatypes.ActionButton {
	out := make([]datatypes.ActionButton, 0, len(actions))
	for _, a := range actions {
		out = append(out, datatypes.ActionButton{Type: a.Type, Label: a.Label, Href: a.Href})
	}
	return out
}

func toDatatypeCitations(citations []enhance.Citation) []datatypes.Citation {
	out := make([]datatypes.Citation, 0, len(citations))
	for _, c := range citations {
		out = append(out, datatypes.Citation{Title: c.Title, URL: c.URL})
	}
	return out
}

func detectionSummary(detection *sanitize.Result) *datatypes.PIIDetectionResult {
	if detection == nil {
		return nil
	}
	return &datatypes.PIIDetectionResult{
		HasPII:          detection.HasPII,
		DetectedTypes:   detection.DetectedTypes,
		RedactionNotice: detection.RedactionNotice,
		Confidence:      detection.Confidence,
		OriginalLength:  detection.OriginalLength,
		SanitizedLength: detection.SanitizedLength,
	}
}

func failureKind(err error) string {
	var ge *llm.GenerationError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return "unknown"
}
