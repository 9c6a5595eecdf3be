package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/0xcro3dile/chatrag-go/internal/config"
	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
)

func TestBuildFilters(t *testing.T) {
	if f := buildFilters("", false, "", ""); f != nil {
		t.Errorf("no flags should give nil filters, got %+v", f)
	}

	f := buildFilters("Alice", true, "2024-01-01", "")
	if f == nil || *f.Sender != "Alice" || !*f.IsSystem {
		t.Fatalf("unexpected filters: %+v", f)
	}
	if f.Timestamp == nil || f.Timestamp.Gte != "2024-01-01" || f.Timestamp.Lte != "" {
		t.Errorf("unexpected range: %+v", f.Timestamp)
	}

	md := entities.Metadata{Sender: "Alice", IsSystem: true, Timestamp: "2024-02-01T00:00:00"}
	if !f.Matches(md) {
		t.Errorf("expected %+v to match", md)
	}
}

func TestNewApp_MemoryIndexSkipsCheckpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	cfg := &config.AppConfig{
		Embedder:  config.EmbedderConfig{Type: "hash"},
		Generator: config.GeneratorConfig{Type: "stub"},
		Index:     config.IndexConfig{Type: "memory"},
		Ingest:    config.IngestConfig{BatchSize: 2, CheckpointPath: path},
	}

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer a.Close()

	if a.checkpoints != nil {
		t.Error("memory index should not get a checkpoint store")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("checkpoint file should not be created, stat err %v", err)
	}
}
