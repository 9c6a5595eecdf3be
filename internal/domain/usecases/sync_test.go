package usecases

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/0xcro3dile/chatrag-go/internal/domain/ports"
)

func TestSyncUseCase_ReindexesOnChange(t *testing.T) {
	index := newMockIndex()
	loader := &mockLoader{msgs: sampleMessages()}
	uc := NewSyncUseCase(NewIngestUseCase(&mockEmbedder{}, index, IngestOptions{}), loader)

	source := filepath.Join("data", "chat.json")
	watcher := &mockWatcher{events: make(chan ports.FileEvent, 4)}
	watcher.events <- ports.FileEvent{Path: filepath.Join("data", "other.json"), Operation: ports.FileModified}
	watcher.events <- ports.FileEvent{Path: source, Operation: ports.FileModified}
	watcher.events <- ports.FileEvent{Path: source, Operation: ports.FileDeleted}
	close(watcher.events)

	if err := uc.Run(context.Background(), watcher, source); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if watcher.dir != "data" {
		t.Errorf("expected to watch the corpus directory, got %s", watcher.dir)
	}
	if loader.loads != 1 {
		t.Errorf("expected 1 reload, got %d", loader.loads)
	}
	if len(index.records) != 4 {
		t.Errorf("expected 4 records, got %d", len(index.records))
	}
}

func TestSyncUseCase_ContinuesAfterFailure(t *testing.T) {
	loader := &mockLoader{err: errors.New("truncated file")}
	uc := NewSyncUseCase(NewIngestUseCase(&mockEmbedder{}, newMockIndex(), IngestOptions{}), loader)

	watcher := &mockWatcher{events: make(chan ports.FileEvent, 2)}
	watcher.events <- ports.FileEvent{Path: "chat.json", Operation: ports.FileCreated}
	watcher.events <- ports.FileEvent{Path: "chat.json", Operation: ports.FileModified}
	close(watcher.events)

	if err := uc.Run(context.Background(), watcher, "chat.json"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if loader.loads != 2 {
		t.Errorf("expected both events handled, got %d loads", loader.loads)
	}
}

func TestSyncUseCase_StopsOnCancel(t *testing.T) {
	uc := NewSyncUseCase(NewIngestUseCase(&mockEmbedder{}, newMockIndex(), IngestOptions{}), &mockLoader{})
	watcher := &mockWatcher{events: make(chan ports.FileEvent)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- uc.Run(ctx, watcher, "chat.json") }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop after cancel")
	}
}
