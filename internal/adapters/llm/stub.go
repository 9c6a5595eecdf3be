package llm

import (
	"context"
	"fmt"
)

// StubGenerator answers without a model. The response reports how many
// documents were retrieved so callers can see retrieval worked.
type StubGenerator struct{}

func NewStubGenerator() *StubGenerator {
	return &StubGenerator{}
}

func (g *StubGenerator) Generate(ctx context.Context, prompt string, docs []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("[Mock LLM Response based on %d chunks]", len(docs)), nil
}
