package vectordb

import (
	"fmt"
	"sort"

	"github.com/viant/vec/search"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
)

// queryVector caches the magnitude of the query so each candidate costs one pass.
type queryVector struct {
	vec       search.Float32s
	magnitude float32
}

func newQueryVector(v []float32) queryVector {
	q := search.Float32s(v)
	return queryVector{vec: q, magnitude: q.Magnitude()}
}

// distance returns the cosine distance in [0, 2]. A zero vector on either
// side has no direction and is treated as orthogonal.
func (q queryVector) distance(v []float32) float64 {
	m := search.Float32s(v).Magnitude()
	if q.magnitude == 0 || m == 0 {
		return 1
	}
	return float64(q.vec.CosineDistanceWithMagnitude(v, q.magnitude, m))
}

// topK orders matches by ascending distance, ties by id, and keeps the first k.
func topK(matches []entities.Match, k int) []entities.Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// checkQuery validates the arguments every index receives.
func checkQuery(embedding []float32, k int, filter *entities.FilterSpec) error {
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", entities.ErrIndexQuery, k)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty query vector", entities.ErrIndexQuery)
	}
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return fmt.Errorf("%w: %w", entities.ErrIndexQuery, err)
		}
	}
	return nil
}

// checkRecords validates a batch against the index dimension (0 = not yet fixed)
// and returns the dimension the batch implies.
func checkRecords(records []entities.IndexRecord, dim int) (int, error) {
	for _, r := range records {
		if r.ID == "" {
			return 0, fmt.Errorf("%w: record without id", entities.ErrIndexWrite)
		}
		if len(r.Embedding) == 0 {
			return 0, fmt.Errorf("%w: record %s has no embedding", entities.ErrIndexWrite, r.ID)
		}
		if dim == 0 {
			dim = len(r.Embedding)
		}
		if len(r.Embedding) != dim {
			return 0, fmt.Errorf("%w: record %s has dimension %d, index expects %d", entities.ErrIndexWrite, r.ID, len(r.Embedding), dim)
		}
	}
	return dim, nil
}
