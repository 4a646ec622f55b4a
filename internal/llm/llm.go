// Package llm talks to a locally hosted model-serving endpoint and builds the
// prompts the generation pipeline sends to it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flash-quiz/internal/config"
)

var (
	// ErrAIUnavailable is returned when no model backend is configured.
	ErrAIUnavailable = errors.New("model backend is not configured")

	// ErrEmptyResponse is returned when the model answers with no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// Generator produces a completion for a single prompt. Implementations carry
// the model identifier they send with each request.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// New returns the Generator selected by cfg.LLMBackend.
func New(cfg config.Config) (Generator, error) {
	timeout := cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	switch cfg.LLMBackend {
	case config.BackendOpenAI:
		return NewOpenAIGenerator(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, timeout), nil
	case config.BackendOllama:
		return NewOllamaGenerator(cfg.LLMBaseURL, cfg.LLMModel, timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.LLMBackend)
	}
}
