// Package embedding provides embedding adapters.
// Adapters implement ports.EmbeddingService; the domain layer does not know which one it gets.
package embedding

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaEmbedder implements ports.EmbeddingService using the Ollama embed API.
// A batch is sent as one request.
type OllamaEmbedder struct {
	client  *api.Client
	baseURL string
	model   string
}

// NewOllamaEmbedder creates a new Ollama embedding adapter.
func NewOllamaEmbedder(baseURL, model string, timeout time.Duration) (*OllamaEmbedder, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama url %q: %w", baseURL, err)
	}

	return &OllamaEmbedder{
		client:  api.NewClient(u, &http.Client{Timeout: timeout}),
		baseURL: baseURL,
		model:   model,
	}, nil
}

// Embed generates an embedding for a single text.
func (a *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one call, preserving order.
func (a *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	log.Printf("[DEBUG] Embedding %d texts with %s at %s", len(texts), a.model, a.baseURL)

	resp, err := a.client.Embed(ctx, &api.EmbedRequest{
		Model: a.model,
		Input: texts,
	})
	if err != nil {
		log.Printf("[ERROR] Ollama embed call failed: %v", err)
		return nil, fmt.Errorf("%w: calling Ollama: %v", entities.ErrEmbedding, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: Ollama returned %d embeddings for %d texts", entities.ErrEmbedding, len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}
