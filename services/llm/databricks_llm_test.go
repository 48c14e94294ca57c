package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *DatabricksClient {
	return &DatabricksClient{
		httpClient: http.DefaultClient,
		endpoint:   url,
		token:      "test-token",
	}
}

// TestExtractContent_Shapes walks every response shape the serving endpoint
// is known to produce.
func TestExtractContent_Shapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
		ok   bool
	}{
		{"openai chat", `{"choices":[{"message":{"content":"hello"}}]}`, "hello", true},
		{"openai completion", `{"choices":[{"text":"hello"}]}`, "hello", true},
		{"content block list", `{"content":[{"text":"hel"},{"text":"lo"}]}`, "hello", true},
		{"content string", `{"content":"hello"}`, "hello", true},
		{"message string", `{"message":"hello"}`, "hello", true},
		{"message object", `{"message":{"content":"hello"}}`, "hello", true},
		{"response string", `{"response":"hello"}`, "hello", true},
		{"text string", `{"text":"hello"}`, "hello", true},
		{"unknown shape", `{"data":{"output":"hello"}}`, "", false},
		{"not json", `plainly not json`, "", false},
		{"empty choices", `{"choices":[]}`, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := extractContent([]byte(tc.body))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

// TestDatabricksClient_Complete_Success verifies the request payload shape,
// auth header, and system prompt assembly on the happy path.
func TestDatabricksClient_Complete_Success(t *testing.T) {
	var captured databricksRequest
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"generated reply"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	completion, err := client.Complete(context.Background(), []Message{
		{Role: "system", Content: "extra context"},
		{Role: "user", Content: "what screenings do I need?"},
	}, CompletionOptions{Locale: "es"})

	require.NoError(t, err)
	assert.Equal(t, "generated reply", completion.Text)
	assert.Equal(t, "Bearer test-token", authHeader)

	assert.False(t, captured.Stream)
	assert.Equal(t, defaultMaxTokens, captured.MaxTokens)
	assert.InDelta(t, float64(defaultTopP), float64(captured.TopP), 0.001)

	require.GreaterOrEqual(t, len(captured.Messages), 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "Responde en español")
	assert.Contains(t, captured.Messages[0].Content, "extra context")
	assert.Equal(t, "user", captured.Messages[1].Role)
}

// TestDatabricksClient_Complete_FiltersRoles verifies that only user and
// assistant turns reach the wire, with caller system content folded into the
// single leading system turn.
func TestDatabricksClient_Complete_FiltersRoles(t *testing.T) {
	var captured databricksRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), []Message{
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
		{Role: "tool", Content: "dropped"},
		{Role: "user", Content: "q2"},
	}, CompletionOptions{})
	require.NoError(t, err)

	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "system", captured.Messages[0].Role)
	for _, msg := range captured.Messages[1:] {
		assert.NotEqual(t, "tool", msg.Role)
	}
}

// TestDatabricksClient_Complete_UnknownShapeFallsBack verifies a 200 with an
// unrecognized body yields the apology fallback, not an error.
func TestDatabricksClient_Complete_UnknownShapeFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totally":"unexpected"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	completion, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, CompletionOptions{})

	require.NoError(t, err)
	assert.Equal(t, fallbackReply, completion.Text)
}

// TestDatabricksClient_Complete_Non200 verifies a non-200 status surfaces as
// a GenerationError with the status kind.
func TestDatabricksClient_Complete_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, CompletionOptions{})

	require.Error(t, err)
	require.True(t, IsGenerationError(err))
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, KindStatus, ge.Kind)
	assert.Equal(t, http.StatusTooManyRequests, ge.StatusCode)
}

// TestDatabricksClient_Complete_ConnectionError verifies transport failures
// surface as a GenerationError with the connection kind.
func TestDatabricksClient_Complete_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, CompletionOptions{})

	require.Error(t, err)
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, KindConnection, ge.Kind)
}

// TestNewDatabricksClient_MissingConfig verifies both endpoint and token are
// required.
func TestNewDatabricksClient_MissingConfig(t *testing.T) {
	t.Setenv("DATABRICKS_ENDPOINT", "")
	t.Setenv("DATABRICKS_TOKEN", "")

	_, err := NewDatabricksClient("", "tok")
	assert.Error(t, err)

	_, err = NewDatabricksClient("https://example.test/serving", "")
	assert.Error(t, err)

	client, err := NewDatabricksClient("https://example.test/serving", "tok")
	require.NoError(t, err)
	assert.NotNil(t, client)
}
