package usecases

import (
	"context"
	"log"
	"path/filepath"

	"github.com/0xcro3dile/chatrag-go/internal/domain/ports"
)

// SyncUseCase re-indexes the corpus file whenever it changes on disk.
type SyncUseCase struct {
	ingest *IngestUseCase
	loader ports.CorpusLoader
}

func NewSyncUseCase(ingest *IngestUseCase, loader ports.CorpusLoader) *SyncUseCase {
	return &SyncUseCase{ingest: ingest, loader: loader}
}

// Run blocks until ctx is cancelled or the watcher closes its channel.
// Failed re-ingestions are logged and the loop keeps going.
func (uc *SyncUseCase) Run(ctx context.Context, watcher ports.FileWatcher, source string) error {
	target := filepath.Clean(source)
	events, err := watcher.Watch(ctx, filepath.Dir(target))
	if err != nil {
		return err
	}
	log.Printf("[INFO] Watching %s for changes", target)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Path) != target {
				continue
			}
			if ev.Operation == ports.FileDeleted {
				log.Printf("[WARN] Corpus %s was removed, keeping current index", target)
				continue
			}

			stats, err := uc.ingest.IngestSource(ctx, uc.loader, target)
			if err != nil {
				log.Printf("[ERROR] Re-index of %s failed: %v", target, err)
				continue
			}
			log.Printf("[INFO] Re-indexed %s: %d indexed, %d skipped", target, stats.Indexed, stats.Skipped)
		}
	}
}
