package llm

import (
	"context"
	"errors"
	"fmt"
)

// Message is one turn handed to a language model backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionOptions carries per-call generation parameters. Zero values are
// replaced by backend defaults.
type CompletionOptions struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
	Locale      string
}

// Completion is a normalized model reply.
type Completion struct {
	Text    string
	ModelID string
}

// Client defines the standard interface for any language model backend.
type Client interface {
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (*Completion, error)
	HealthCheck(ctx context.Context) error
}

// Failure kinds recorded on GenerationError.
const (
	KindTimeout    = "timeout"
	KindConnection = "connection"
	KindStatus     = "status"
	KindDecode     = "decode"
)

// GenerationError describes a failed backend call. Kind distinguishes
// timeouts, connection failures, non-2xx statuses, and undecodable bodies so
// callers can log them separately.
type GenerationError struct {
	Backend    string
	Kind       string
	StatusCode int
	Message    string
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s generation failed (%s, status %d): %s", e.Backend, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s generation failed (%s): %s", e.Backend, e.Kind, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsGenerationError reports whether err is (or wraps) a GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
