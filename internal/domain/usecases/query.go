// Package usecases - query.go handles retrieval and response generation.
package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
	"github.com/0xcro3dile/chatrag-go/internal/domain/ports"
)

// QueryUseCase embeds a question, retrieves matching messages and asks the generator.
type QueryUseCase struct {
	embedder ports.EmbeddingService
	index    ports.VectorIndex
	llm      ports.LLMService
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
// The embedder must be the one used for ingestion.
func NewQueryUseCase(embedder ports.EmbeddingService, index ports.VectorIndex, llm ports.LLMService) *QueryUseCase {
	return &QueryUseCase{
		embedder: embedder,
		index:    index,
		llm:      llm,
	}
}

// Query retrieves up to k messages and generates a grounded response.
func (uc *QueryUseCase) Query(ctx context.Context, text string, k int, filters *entities.FilterSpec) (*entities.QueryResult, error) {
	matches, err := uc.Search(ctx, text, k, filters)
	if err != nil {
		return nil, err
	}

	docs := make([]string, len(matches))
	for i, m := range matches {
		docs[i] = m.Document
	}
	prompt := BuildPrompt(text, BuildContext(docs))

	response, err := uc.llm.Generate(ctx, prompt, docs)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}

	return &entities.QueryResult{
		Query:    text,
		Prompt:   prompt,
		Response: response,
		Matches:  matches,
	}, nil
}

// Search only retrieves matches without LLM generation.
// System messages are excluded unless filters set IsSystem explicitly.
func (uc *QueryUseCase) Search(ctx context.Context, text string, k int, filters *entities.FilterSpec) ([]entities.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, entities.ErrInvalidArgument)
	}
	if filters != nil {
		if err := filters.Validate(); err != nil {
			return nil, err
		}
	}

	embedding, err := uc.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", wrapKind(entities.ErrEmbedding, err))
	}

	matches, err := uc.index.Query(ctx, embedding, k, entities.ComposeFilter(filters))
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", wrapKind(entities.ErrIndexQuery, err))
	}
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// BuildContext renders retrieved documents as a bulleted block.
func BuildContext(docs []string) string {
	lines := make([]string, len(docs))
	for i, d := range docs {
		lines[i] = "- " + d
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt creates the generator prompt with context.
func BuildPrompt(query, context string) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nUser Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nResponse:")
	return sb.String()
}
