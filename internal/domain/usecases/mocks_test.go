package usecases

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
	"github.com/0xcro3dile/chatrag-go/internal/domain/ports"
)

// mockEmbedder implements ports.EmbeddingService with hash-derived vectors.
type mockEmbedder struct {
	batchFn func(texts []string) ([][]float32, error)
	calls   int
	queries []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.queries = append(m.queries, text)
	return hashVector(text), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.batchFn != nil {
		return m.batchFn(texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t)
	}
	return out, nil
}

// hashVector buckets lowercase words so texts sharing words land close together.
func hashVector(text string) []float32 {
	v := make([]float32, 16)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(w, ".,:!?")))
		v[h.Sum32()%16]++
	}
	return v
}

// mockIndex implements ports.VectorIndex with brute-force cosine search.
type mockIndex struct {
	records  map[string]entities.IndexRecord
	upserts  int
	upsertFn func(records []entities.IndexRecord) error
	queryFn  func(filter *entities.FilterSpec) error
	filters  []*entities.FilterSpec
}

func newMockIndex() *mockIndex {
	return &mockIndex{records: make(map[string]entities.IndexRecord)}
}

func (m *mockIndex) Upsert(ctx context.Context, records []entities.IndexRecord) error {
	if m.upsertFn != nil {
		if err := m.upsertFn(records); err != nil {
			return err
		}
	}
	m.upserts++
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *mockIndex) Query(ctx context.Context, emb []float32, k int, filter *entities.FilterSpec) ([]entities.Match, error) {
	m.filters = append(m.filters, filter)
	if m.queryFn != nil {
		if err := m.queryFn(filter); err != nil {
			return nil, err
		}
	}
	var out []entities.Match
	for _, r := range m.records {
		if filter != nil && !filter.Matches(r.Metadata) {
			continue
		}
		out = append(out, entities.Match{
			ID:       r.ID,
			Document: r.Document,
			Distance: 1 - cosine(emb, r.Embedding),
			Metadata: r.Metadata,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *mockIndex) Count(ctx context.Context) (int, error) { return len(m.records), nil }

func (m *mockIndex) Clear(ctx context.Context) error {
	m.records = make(map[string]entities.IndexRecord)
	return nil
}

func (m *mockIndex) Close() error { return nil }

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// mockLLM echoes the prompt unless a fixed response is set.
type mockLLM struct {
	response string
	err      error
	prompts  []string
	docs     [][]string
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, docs []string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.docs = append(m.docs, docs)
	if m.err != nil {
		return "", m.err
	}
	if m.response != "" {
		return m.response, nil
	}
	return prompt, nil
}

type mockCheckpoints struct {
	saved   map[string]int
	cleared []string
}

func newMockCheckpoints() *mockCheckpoints {
	return &mockCheckpoints{saved: make(map[string]int)}
}

func (m *mockCheckpoints) Load(key string) (int, error) { return m.saved[key], nil }

func (m *mockCheckpoints) Save(key string, processed int) error {
	m.saved[key] = processed
	return nil
}

func (m *mockCheckpoints) Clear(key string) error {
	delete(m.saved, key)
	m.cleared = append(m.cleared, key)
	return nil
}

type mockLoader struct {
	msgs  []entities.RawMessage
	err   error
	loads int
}

func (m *mockLoader) Load(ctx context.Context, source string) ([]entities.RawMessage, error) {
	m.loads++
	return m.msgs, m.err
}

type mockWatcher struct {
	events chan ports.FileEvent
	dir    string
}

func (m *mockWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	m.dir = dir
	return m.events, nil
}

func (m *mockWatcher) Stop() error { return nil }

func sampleMessages() []entities.RawMessage {
	return []entities.RawMessage{
		{ID: "1", Sender: "Alice", Message: "ship the API", Timestamp: "2024-01-02T10:00:00"},
		{ID: "2", Sender: "Bob", Message: "", Timestamp: "2024-01-02T10:01:00"},
		{ID: "3", Sender: "Bob", Message: "API docs are late", Timestamp: "2024-01-20T09:00:00"},
		{ID: "4", Sender: "System", Message: "API deploy started", Timestamp: "2024-01-20T09:05:00", IsSystem: true},
		{ID: "5", Message: "lunch anyone?", Timestamp: "2024-02-01T12:00:00"},
	}
}
