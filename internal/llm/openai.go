package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator calls an OpenAI-compatible chat endpoint. Ollama, LM Studio
// and vLLM all expose one under /v1.
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

var _ Generator = (*OpenAIGenerator)(nil)

func NewOpenAIGenerator(apiKey, baseURL, model string, timeout time.Duration) *OpenAIGenerator {
	if apiKey == "" {
		// Local servers ignore the key but the client requires one.
		apiKey = "ollama"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

func (g *OpenAIGenerator) Model() string {
	return g.model
}

// Generate sends prompt as a single user message and returns the reply text.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.client == nil || g.model == "" {
		return "", ErrAIUnavailable
	}

	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.4,
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
