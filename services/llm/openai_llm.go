package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient is the alternate backend, selected by configuration.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds the client from explicit values, falling back to
// OPENAI_API_KEY / OPENAI_MODEL and the mounted secret file.
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		if content, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(content))
			slog.Info("Read the OpenAI API Key from mounted secret")
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is missing")
	}

	if model == "" {
		model = os.Getenv("OPENAI_MODEL")
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}

	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Complete implements the Client interface.
func (o *OpenAIClient) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (*Completion, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP <= 0 {
		opts.TopP = defaultTopP
	}

	var apiMessages []openai.ChatCompletionMessage
	for _, msg := range assembleMessages(messages, opts.Locale) {
		apiMessages = append(apiMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               o.model,
		Messages:            apiMessages,
		MaxCompletionTokens: opts.MaxTokens,
		Temperature:         opts.Temperature,
		TopP:                opts.TopP,
	})
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return nil, &GenerationError{Backend: "openai", Kind: KindConnection, Message: err.Error(), Err: err}
	}

	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices")
		return nil, &GenerationError{Backend: "openai", Kind: KindDecode, Message: "no choices in response"}
	}

	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return &Completion{Text: resp.Choices[0].Message.Content, ModelID: resp.Model}, nil
}

// HealthCheck verifies the API key by listing available models.
func (o *OpenAIClient) HealthCheck(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai health check failed: %w", err)
	}
	return nil
}
