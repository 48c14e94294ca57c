// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/CareMeshAI/CareMeshGateway/services/gateway/datatypes"
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

// TestService_Available verifies the disabled-without-key behavior,
// including on a nil receiver.
func TestService_Available(t *testing.T) {
	assert.True(t, NewService("key", nil).Available())
	assert.False(t, NewService("", nil).Available())

	var s *Service
	assert.False(t, s.Available())
}

// TestService_ShouldSearch_ModelDecision verifies the YES/NO answer drives
// the decision.
func TestService_ShouldSearch_ModelDecision(t *testing.T) {
	client := new(MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(&llm.Completion{Text: "YES"}, nil).Once()
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(&llm.Completion{Text: "No."}, nil).Once()

	s := NewService("key", client)

	assert.True(t, s.ShouldSearch(context.Background(), "latest screening guidelines?"))
	assert.False(t, s.ShouldSearch(context.Background(), "where do I park?"))
}

// TestService_ShouldSearch_KeywordFallback verifies the recency-keyword
// heuristic when the model is down.
func TestService_ShouldSearch_KeywordFallback(t *testing.T) {
	client := new(MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("down"))

	s := NewService("key", client)

	assert.True(t, s.ShouldSearch(context.Background(), "what are the LATEST statistics?"))
	assert.False(t, s.ShouldSearch(context.Background(), "where do I park?"))
}

// TestService_BuildQuery_HardTruncation verifies the 350-char ceiling holds
// for model output and for the raw-utterance fallback.
func TestService_BuildQuery_HardTruncation(t *testing.T) {
	long := strings.Repeat("q", 500)

	client := new(MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(&llm.Completion{Text: long}, nil).Once()
	s := NewService("key", client)
	assert.Len(t, s.BuildQuery(context.Background(), "anything"), maxQueryChars)

	failing := new(MockLLMClient)
	failing.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("down"))
	s = NewService("key", failing)
	assert.Len(t, s.BuildQuery(context.Background(), long), maxQueryChars)
}

// TestService_BuildQuery_UsesModelOutput verifies a short model rewrite is
// passed through trimmed.
func TestService_BuildQuery_UsesModelOutput(t *testing.T) {
	client := new(MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(&llm.Completion{Text: "  breast cancer screening age guidelines  "}, nil)

	s := NewService("key", client)

	assert.Equal(t, "breast cancer screening age guidelines", s.BuildQuery(context.Background(), "at what age should I get screened?"))
}

// TestService_Search_ResultShapes walks the three tolerated response shapes
// plus the unknown-shape case.
func TestService_Search_ResultShapes(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		count int
	}{
		{"array of objects", `[{"title":"A","url":"http://a","content":"aa","score":0.7},{"title":"B","url":"http://b","content":"bb"}]`, 2},
		{"results wrapper", `{"results":[{"title":"A","url":"http://a","content":"aa"}]}`, 1},
		{"bare string", `"just some text"`, 1},
		{"unknown shape", `{"weird":42}`, 0},
		{"caps at five", `[{},{},{},{},{},{},{}]`, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			s := NewService("key", nil)
			s.endpoint = server.URL

			sources, err := s.Search(context.Background(), "query")
			require.NoError(t, err)
			assert.Len(t, sources, tc.count)
		})
	}
}

// TestService_Search_BareStringSynthesis verifies the synthesized result
// for a bare-string response.
func TestService_Search_BareStringSynthesis(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"plain answer text"`))
	}))
	defer server.Close()

	s := NewService("key", nil)
	s.endpoint = server.URL

	sources, err := s.Search(context.Background(), "query")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "Search Result", sources[0].Title)
	assert.Equal(t, "plain answer text", sources[0].Snippet)
	require.NotNil(t, sources[0].Score)
	assert.Equal(t, 1.0, *sources[0].Score)
}

// TestService_Search_HTTPError verifies non-200 surfaces as an error the
// pipeline can absorb.
func TestService_Search_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	s := NewService("key", nil)
	s.endpoint = server.URL

	_, err := s.Search(context.Background(), "query")
	assert.Error(t, err)
}

// TestFormatForContext verifies the rendered block: header, top three only,
// and 200-char snippet truncation.
func TestFormatForContext(t *testing.T) {
	longSnippet := strings.Repeat("s", 300)
	results := []datatypes.SearchSource{
		{Title: "One", URL: "http://1", Snippet: "first"},
		{Title: "Two", URL: "http://2", Snippet: longSnippet},
		{Title: "Three", URL: "http://3", Snippet: "third"},
		{Title: "Four", URL: "http://4", Snippet: "never shown"},
	}

	formatted := FormatForContext(results)

	assert.True(t, strings.HasPrefix(formatted, "Recent search results:\n\n"))
	assert.Contains(t, formatted, "1. **One**\n   Source: http://1\n   first...")
	assert.Contains(t, formatted, "**Three**")
	assert.NotContains(t, formatted, "Four")
	assert.NotContains(t, formatted, strings.Repeat("s", 201))

	assert.Equal(t, "", FormatForContext(nil))
}
