package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	databricksTimeout  = 30 * time.Second
	defaultMaxTokens   = 512
	defaultTemperature = float32(0.7)
	defaultTopP        = float32(0.9)

	// fallbackReply is returned when the backend answers 200 with a body we
	// cannot extract text from. The caller gets a usable reply either way.
	fallbackReply = "I apologize, but I could not process your request right now. Please try again or contact your care team."
)

type databricksRequest struct {
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
	TopP        float32   `json:"top_p"`
	Stream      bool      `json:"stream"`
}

// DatabricksClient talks to a Databricks-style serving endpoint over raw
// HTTP with a personal access token. It is the default backend.
type DatabricksClient struct {
	httpClient *http.Client
	endpoint   string
	token      string
}

// NewDatabricksClient builds the client from explicit values, falling back
// to DATABRICKS_ENDPOINT / DATABRICKS_TOKEN and the mounted secret file.
// Both endpoint and token are required.
func NewDatabricksClient(endpoint, token string) (*DatabricksClient, error) {
	if endpoint == "" {
		endpoint = os.Getenv("DATABRICKS_ENDPOINT")
	}
	if token == "" {
		token = os.Getenv("DATABRICKS_TOKEN")
	}
	if token == "" {
		secretPath := "/run/secrets/databricks_token"
		if content, err := os.ReadFile(secretPath); err == nil {
			token = strings.TrimSpace(string(content))
			slog.Info("Read Databricks token from mounted secret")
		}
	}

	if endpoint == "" {
		return nil, fmt.Errorf("databricks endpoint is missing")
	}
	if token == "" {
		return nil, fmt.Errorf("databricks token is missing")
	}

	slog.Info("Initializing Databricks client", "endpoint", endpoint)
	return &DatabricksClient{
		httpClient: &http.Client{Timeout: databricksTimeout},
		endpoint:   endpoint,
		token:      token,
	}, nil
}

// Complete implements the Client interface.
func (d *DatabricksClient) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (*Completion, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP <= 0 {
		opts.TopP = defaultTopP
	}

	payload := databricksRequest{
		Messages:    assembleMessages(messages, opts.Locale),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		Stream:      false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.token)
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("Sending completion request to Databricks", "message_count", len(payload.Messages))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		kind := KindConnection
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			kind = KindTimeout
			slog.Error("Databricks request timed out", "error", err)
		} else {
			slog.Error("Databricks connection failed", "error", err)
		}
		return nil, &GenerationError{Backend: "databricks", Kind: kind, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	respBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		slog.Error("Databricks returned non-200", "status", resp.StatusCode, "body_length", len(respBytes))
		return nil, &GenerationError{
			Backend:    "databricks",
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Message:    string(respBytes),
		}
	}

	text, ok := extractContent(respBytes)
	if !ok {
		slog.Warn("Unrecognized Databricks response shape, using fallback reply", "body_length", len(respBytes))
		text = fallbackReply
	}

	return &Completion{Text: text, ModelID: "databricks"}, nil
}

// HealthCheck issues a minimal one-token probe against the endpoint.
func (d *DatabricksClient) HealthCheck(ctx context.Context) error {
	_, err := d.Complete(ctx, []Message{{Role: "user", Content: "ping"}}, CompletionOptions{MaxTokens: 1})
	return err
}

// extractContent normalizes the serving endpoint's reply. Endpoints in the
// wild answer in several shapes; each is tried in order:
//
//  1. choices[0].message.content (OpenAI chat shape)
//  2. choices[0].text (OpenAI completion shape)
//  3. content as a list of {text} blocks
//  4. content as a plain string
//  5. message as a string, or message.content
//  6. response as a string
//  7. text as a string
//
// Returns ok=false when no shape matches.
func extractContent(body []byte) (string, bool) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", false
	}

	if choices, ok := raw["choices"].([]interface{}); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]interface{}); ok {
			if msg, ok := choice["message"].(map[string]interface{}); ok {
				if content, ok := msg["content"].(string); ok {
					return content, true
				}
			}
			if text, ok := choice["text"].(string); ok {
				return text, true
			}
		}
	}

	switch content := raw["content"].(type) {
	case []interface{}:
		var parts []string
		for _, block := range content {
			if m, ok := block.(map[string]interface{}); ok {
				if text, ok := m["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ""), true
		}
	case string:
		return content, true
	}

	switch message := raw["message"].(type) {
	case string:
		return message, true
	case map[string]interface{}:
		if content, ok := message["content"].(string); ok {
			return content, true
		}
	}

	if response, ok := raw["response"].(string); ok {
		return response, true
	}
	if text, ok := raw["text"].(string); ok {
		return text, true
	}

	return "", false
}
