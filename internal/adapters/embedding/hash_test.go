package embedding

import (
	"context"
	"math"
	"testing"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	a := NewHashEmbedder(64)
	b := NewHashEmbedder(64)

	va, _ := a.Embed(context.Background(), "Alice: ship the API")
	vb, _ := b.Embed(context.Background(), "Alice: ship the API")

	for i := range va {
		if va[i] != vb[i] {
			t.Fatal("same text should give the same vector across instances")
		}
	}
}

func TestHashEmbedder_Normalized(t *testing.T) {
	e := NewHashEmbedder(0)
	if e.Dimension() != DefaultHashDimension {
		t.Errorf("expected default dimension, got %d", e.Dimension())
	}

	v, _ := e.Embed(context.Background(), "deploy the release candidate tonight")
	if len(v) != DefaultHashDimension {
		t.Fatalf("expected %d dims, got %d", DefaultHashDimension, len(v))
	}
	if n := math.Sqrt(dot(v, v)); math.Abs(n-1) > 1e-5 {
		t.Errorf("expected unit norm, got %f", n)
	}
}

func TestHashEmbedder_StopwordsOnly(t *testing.T) {
	v, _ := NewHashEmbedder(32).Embed(context.Background(), "the and of")
	if dot(v, v) != 0 {
		t.Error("text without content tokens should give the zero vector")
	}
}

func TestHashEmbedder_SimilarTextsCloser(t *testing.T) {
	e := NewHashEmbedder(512)
	ctx := context.Background()

	query, _ := e.Embed(ctx, "API release")
	related, _ := e.Embed(ctx, "Alice: the API release is ready")
	unrelated, _ := e.Embed(ctx, "Bob: lunch at noon tomorrow")

	if dot(query, related) <= dot(query, unrelated) {
		t.Errorf("related text should score higher: %f vs %f", dot(query, related), dot(query, unrelated))
	}
}

func TestHashEmbedder_EmbedBatchOrder(t *testing.T) {
	e := NewHashEmbedder(32)
	ctx := context.Background()
	texts := []string{"first message", "second message", "third"}

	batch, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		if dot(batch[i], single) < 0.9999 {
			t.Errorf("batch vector %d does not match its text", i)
		}
	}
}

func TestHashEmbedder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashEmbedder(8).EmbedBatch(ctx, []string{"x"}); err == nil {
		t.Error("expected cancellation error")
	}
}
