// Package llm provides generator adapters implementing ports.LLMService.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaGenerator implements ports.LLMService using the Ollama generate API.
type OllamaGenerator struct {
	client  *api.Client
	baseURL string
	model   string
}

// NewOllamaGenerator creates a new Ollama generator.
func NewOllamaGenerator(baseURL, model string, timeout time.Duration) (*OllamaGenerator, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama url %q: %w", baseURL, err)
	}

	return &OllamaGenerator{
		client:  api.NewClient(u, &http.Client{Timeout: timeout}),
		baseURL: baseURL,
		model:   model,
	}, nil
}

// Generate produces a response for the prompt. The documents are already part of it.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, docs []string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: &stream,
	}

	var sb strings.Builder
	err := g.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("calling Ollama: %w", err)
	}
	return sb.String(), nil
}
