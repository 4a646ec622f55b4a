package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaGenerator calls Ollama's native /api/generate endpoint.
type OllamaGenerator struct {
	url    string
	model  string
	client *http.Client
}

var _ Generator = (*OllamaGenerator)(nil)

func NewOllamaGenerator(url, model string, timeout time.Duration) *OllamaGenerator {
	return &OllamaGenerator{
		url:   strings.TrimRight(url, "/"),
		model: model,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (g *OllamaGenerator) Model() string {
	return g.model
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Generate blocks until the model has produced the full response.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.url == "" || g.model == "" {
		return "", ErrAIUnavailable
	}

	body, err := json.Marshal(generateRequest{Model: g.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}

	content := strings.TrimSpace(out.Response)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
