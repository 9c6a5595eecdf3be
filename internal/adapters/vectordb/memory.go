// Package vectordb provides vector index adapters implementing ports.VectorIndex.
package vectordb

import (
	"context"
	"fmt"
	"sync"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
)

// MemoryIndex is a brute-force cosine index held in process memory.
type MemoryIndex struct {
	mu        sync.RWMutex
	records   map[string]entities.IndexRecord
	dimension int
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]entities.IndexRecord)}
}

// Upsert stores records by id. The whole batch is validated before any write.
func (s *MemoryIndex) Upsert(ctx context.Context, records []entities.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := checkRecords(records, s.dimension)
	if err != nil {
		return err
	}
	s.dimension = dim

	for _, r := range records {
		r.Embedding = append([]float32(nil), r.Embedding...)
		s.records[r.ID] = r
	}
	return nil
}

// Query scans every record that passes the filter.
func (s *MemoryIndex) Query(ctx context.Context, embedding []float32, k int, filter *entities.FilterSpec) ([]entities.Match, error) {
	if err := checkQuery(embedding, k, filter); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return []entities.Match{}, nil
	}
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", entities.ErrIndexQuery, len(embedding), s.dimension)
	}

	q := newQueryVector(embedding)
	matches := make([]entities.Match, 0, len(s.records))
	for _, r := range s.records {
		if filter != nil && !filter.Matches(r.Metadata) {
			continue
		}
		matches = append(matches, entities.Match{
			ID:       r.ID,
			Document: r.Document,
			Distance: q.distance(r.Embedding),
			Metadata: r.Metadata,
		})
	}
	return topK(matches, k), nil
}

func (s *MemoryIndex) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Clear removes all records and releases the fixed dimension.
func (s *MemoryIndex) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]entities.IndexRecord)
	s.dimension = 0
	return nil
}

func (s *MemoryIndex) Close() error { return nil }
