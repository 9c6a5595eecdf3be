package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
)

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	var gotInput []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "test-model" {
			t.Errorf("unexpected model: %s", req.Model)
		}
		gotInput = req.Input

		embeddings := make([][]float32, len(req.Input))
		for i := range embeddings {
			embeddings[i] = []float32{float32(i), 0.5}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"model": req.Model, "embeddings": embeddings})
	}))
	defer server.Close()

	adapter, err := NewOllamaEmbedder(server.URL, "test-model", 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	results, err := adapter.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	if len(gotInput) != 3 {
		t.Errorf("batch should be sent in one request, got input %v", gotInput)
	}
	if len(results) != 3 || results[2][0] != 2 {
		t.Errorf("unexpected results: %v", results)
	}
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer server.Close()

	adapter, _ := NewOllamaEmbedder(server.URL, "test-model", 0)
	emb, err := adapter.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(emb) != 3 {
		t.Errorf("expected 3 dims, got %d", len(emb))
	}
}

func TestOllamaEmbedder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer server.Close()

	adapter, _ := NewOllamaEmbedder(server.URL, "test", 0)
	_, err := adapter.Embed(context.Background(), "test")
	if !errors.Is(err, entities.ErrEmbedding) {
		t.Errorf("expected embedding error on 500, got %v", err)
	}
}

func TestOllamaEmbedder_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": [][]float32{{1}}})
	}))
	defer server.Close()

	adapter, _ := NewOllamaEmbedder(server.URL, "test", 0)
	_, err := adapter.EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, entities.ErrEmbedding) {
		t.Errorf("expected embedding error on short response, got %v", err)
	}
}

func TestOllamaEmbedder_DefaultValues(t *testing.T) {
	adapter, err := NewOllamaEmbedder("", "", 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if adapter.baseURL != "http://localhost:11434" {
		t.Error("should default to localhost")
	}
	if adapter.model != "nomic-embed-text" {
		t.Error("should default to nomic-embed-text")
	}
}
