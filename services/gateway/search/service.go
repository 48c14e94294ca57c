// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package search decides when a chat turn needs fresh web context and
// retrieves it from the Tavily search API.
//
// Search is strictly optional: a missing API key disables the service
// without error, and every failure inside it degrades to "no results" so
// the chat pipeline proceeds unaugmented.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CareMeshAI/CareMeshGateway/services/gateway/datatypes"
	"github.com/CareMeshAI/CareMeshGateway/services/llm"
)

const (
	tavilyEndpoint = "https://api.tavily.com/search"
	searchTimeout  = 10 * time.Second

	// maxQueryChars is the hard ceiling on an outgoing search query,
	// enforced even when the model produced the query.
	maxQueryChars = 350

	// maxResults caps how many results one search may return.
	maxResults = 5
)

// recencyKeywords is the heuristic fallback for the search decision when
// the model is unavailable.
var recencyKeywords = []string{"latest", "recent", "new", "current", "update", "statistics", "data"}

// Service performs search decisions and retrieval. The zero-value check is
// Available(); all other methods assume it returned true.
type Service struct {
	httpClient *http.Client
	llmClient  llm.Client
	apiKey     string
	endpoint   string
}

// NewService creates a search Service. A blank API key yields a disabled
// service, logged but never an error.
func NewService(apiKey string, llmClient llm.Client) *Service {
	if apiKey == "" {
		slog.Info("Search API key not configured, web search disabled")
	} else {
		slog.Info("Search service initialized")
	}
	return &Service{
		httpClient: &http.Client{Timeout: searchTimeout},
		llmClient:  llmClient,
		apiKey:     apiKey,
		endpoint:   tavilyEndpoint,
	}
}

// Available reports whether search can run at all.
func (s *Service) Available() bool {
	return s != nil && s.apiKey != ""
}

// ShouldSearch asks the model whether the utterance needs fresh web data.
// On model failure it falls back to a recency-keyword heuristic.
func (s *Service) ShouldSearch(ctx context.Context, utterance string) bool {
	prompt := fmt.Sprintf(
		"Does answering the following patient question require up-to-date information from the web, "+
			"such as current statistics, recent guidelines, or news? Answer with exactly YES or NO.\n\nQuestion: %s",
		utterance)

	completion, err := s.llmClient.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, llm.CompletionOptions{
		MaxTokens:   5,
		Temperature: 0.1,
	})
	if err != nil {
		slog.Warn("Search decision model call failed, using keyword heuristic", "error", err)
		lower := strings.ToLower(utterance)
		for _, kw := range recencyKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}

	return strings.Contains(strings.ToUpper(completion.Text), "YES")
}

// BuildQuery compresses the utterance into a search query via the model.
// The result is always hard-truncated to maxQueryChars; on model failure
// the raw utterance is truncated instead.
func (s *Service) BuildQuery(ctx context.Context, utterance string) string {
	prompt := fmt.Sprintf(
		"Rewrite the following patient question as a short web search query. "+
			"Reply with the query only, no explanation.\n\nQuestion: %s",
		utterance)

	completion, err := s.llmClient.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, llm.CompletionOptions{
		MaxTokens:   100,
		Temperature: 0.3,
	})
	if err != nil {
		slog.Warn("Search query model call failed, truncating raw utterance", "error", err)
		return truncate(utterance, maxQueryChars)
	}

	query := strings.TrimSpace(completion.Text)
	if query == "" {
		query = utterance
	}
	return truncate(query, maxQueryChars)
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// Search runs the query against Tavily and normalizes whatever shape comes
// back. An unknown shape yields an empty slice, not an error.
func (s *Service) Search(ctx context.Context, query string) ([]datatypes.SearchSource, error) {
	body, err := json.Marshal(tavilyRequest{APIKey: s.apiKey, Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	return normalizeResults(respBytes), nil
}

// normalizeResults tolerates the three result shapes seen from the API:
// a bare array of result objects, an object wrapping a "results" array, and
// a bare string. Anything else is logged and dropped.
func normalizeResults(body []byte) []datatypes.SearchSource {
	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		slog.Warn("Search response is not JSON, ignoring", "body_length", len(body))
		return nil
	}

	switch v := raw.(type) {
	case []interface{}:
		return sourcesFromList(v)
	case map[string]interface{}:
		if list, ok := v["results"].([]interface{}); ok {
			return sourcesFromList(list)
		}
	case string:
		score := 1.0
		return []datatypes.SearchSource{{Title: "Search Result", Snippet: v, Score: &score}}
	}

	slog.Warn("Unrecognized search response shape, ignoring")
	return nil
}

func sourcesFromList(list []interface{}) []datatypes.SearchSource {
	var sources []datatypes.SearchSource
	for _, item := range list {
		if len(sources) >= maxResults {
			break
		}
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		source := datatypes.SearchSource{}
		source.Title, _ = m["title"].(string)
		source.URL, _ = m["url"].(string)
		source.Snippet, _ = m["content"].(string)
		if score, ok := m["score"].(float64); ok {
			source.Score = &score
		}
		sources = append(sources, source)
	}
	return sources
}

// FormatForContext renders up to three results as a system-context block
// for the model. Snippets are truncated to 200 characters.
func FormatForContext(results []datatypes.SearchSource) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Recent search results:\n\n")
	for i, r := range results {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "%d. **%s**\n   Source: %s\n   %s...\n\n", i+1, r.Title, r.URL, truncate(r.Snippet, 200))
	}
	return b.String()
}

// truncate cuts s to at most n characters, rune-safe.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
