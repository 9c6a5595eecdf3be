// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
)

// EmbeddingService maps text to fixed-dimension vectors.
// Ingestion and querying must share one instance so both sides land in the same space.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts in order. The result has one vector per input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMService turns an assembled prompt into a response.
type LLMService interface {
	// Generate answers prompt. docs are the retrieved documents already
	// rendered into the prompt, in rank order.
	Generate(ctx context.Context, prompt string, docs []string) (string, error)
}

// VectorIndex persists message records and answers k-nearest-neighbour queries
// constrained by a metadata predicate.
type VectorIndex interface {
	// Upsert stores records by id. An existing id is overwritten.
	Upsert(ctx context.Context, records []entities.IndexRecord) error

	// Query returns at most k matches in ascending distance order.
	// A nil filter means no constraint.
	Query(ctx context.Context, embedding []float32, k int, filter *entities.FilterSpec) ([]entities.Match, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Clear removes all records.
	Clear(ctx context.Context) error

	Close() error
}

// CorpusLoader reads raw chat messages from a source.
type CorpusLoader interface {
	Load(ctx context.Context, source string) ([]entities.RawMessage, error)
}

// CheckpointStore remembers how far an ingestion run got.
type CheckpointStore interface {
	// Load returns the number of records already written for runKey, 0 if none.
	Load(runKey string) (int, error)
	Save(runKey string, processed int) error
	Clear(runKey string) error
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
