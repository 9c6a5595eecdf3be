package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaGenerator_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["stream"] != false {
			t.Errorf("expected non-streaming request, got %v", req["stream"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": "Hello there!",
			"done":     true,
		})
	}))
	defer server.Close()

	adapter, err := NewOllamaGenerator(server.URL, "test-model", 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	resp, err := adapter.Generate(context.Background(), "Hi", nil)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if resp != "Hello there!" {
		t.Errorf("unexpected response: %s", resp)
	}
}

func TestOllamaGenerator_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'test' not found"}`))
	}))
	defer server.Close()

	adapter, _ := NewOllamaGenerator(server.URL, "test", 0)
	if _, err := adapter.Generate(context.Background(), "test", nil); err == nil {
		t.Error("should error on 404")
	}
}

func TestOllamaGenerator_DefaultValues(t *testing.T) {
	adapter, _ := NewOllamaGenerator("", "", 0)
	if adapter.baseURL != "http://localhost:11434" {
		t.Error("should default to localhost")
	}
	if adapter.model != "llama3.2" {
		t.Error("should default to llama3.2")
	}
}

func TestStubGenerator_CountsChunks(t *testing.T) {
	docs := []string{"Alice: ship the API", "Bob: docs"}
	prompt := "Context:\n- Alice: ship the API\n- Bob: docs\n\nUser Query: API\n\nResponse:"

	resp, err := NewStubGenerator().Generate(context.Background(), prompt, docs)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if resp != "[Mock LLM Response based on 2 chunks]" {
		t.Errorf("unexpected response: %s", resp)
	}

	resp, _ = NewStubGenerator().Generate(context.Background(), "Context:\n\n\nUser Query: x\n\nResponse:", nil)
	if resp != "[Mock LLM Response based on 0 chunks]" {
		t.Errorf("unexpected response for empty context: %s", resp)
	}
}

func TestStubGenerator_MultiLineMessages(t *testing.T) {
	docs := []string{
		"Alice: todo\n- fix API\n- ship docs",
		"Bob: see below\n\nUser Query: not really",
	}
	prompt := "Context:\n- " + docs[0] + "\n- " + docs[1] + "\n\nUser Query: API\n\nResponse:"

	resp, _ := NewStubGenerator().Generate(context.Background(), prompt, docs)
	if resp != "[Mock LLM Response based on 2 chunks]" {
		t.Errorf("each message is one chunk however many lines it has, got %s", resp)
	}
}
