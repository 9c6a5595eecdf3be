// Package usecases contains application business rules.
// Usecases orchestrate entities and depend on port interfaces only.
package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
	"github.com/0xcro3dile/chatrag-go/internal/domain/ports"
)

const (
	DefaultBatchSize = 100

	retryBaseDelay = 200 * time.Millisecond
	retryMaxDelay  = 5 * time.Second
)

// ProgressFunc is called after every written batch.
type ProgressFunc func(processed, total int)

// IngestOptions tunes an IngestUseCase. The zero value is usable.
type IngestOptions struct {
	BatchSize   int
	MaxRetries  int                   // extra attempts per failed batch, 0 disables
	Checkpoints ports.CheckpointStore // optional resume support
	Progress    ProgressFunc
}

// IngestUseCase turns raw messages into embedded index records.
type IngestUseCase struct {
	embedder    ports.EmbeddingService
	index       ports.VectorIndex
	batchSize   int
	maxRetries  int
	checkpoints ports.CheckpointStore
	progress    ProgressFunc
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(embedder ports.EmbeddingService, index ports.VectorIndex, opts IngestOptions) *IngestUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Progress == nil {
		opts.Progress = logProgress
	}
	return &IngestUseCase{
		embedder:    embedder,
		index:       index,
		batchSize:   opts.BatchSize,
		maxRetries:  opts.MaxRetries,
		checkpoints: opts.Checkpoints,
		progress:    opts.Progress,
		sleep:       sleepContext,
	}
}

// IngestSource loads a corpus and indexes it, tagging failures with the stage they came from.
func (uc *IngestUseCase) IngestSource(ctx context.Context, loader ports.CorpusLoader, source string) (*entities.IngestStats, error) {
	msgs, err := loader.Load(ctx, source)
	if err != nil {
		return nil, &entities.StageError{Stage: "load", Err: err}
	}
	stats, err := uc.BuildIndex(ctx, msgs)
	if err != nil {
		return stats, &entities.StageError{Stage: "build", Err: err}
	}
	return stats, nil
}

// BuildIndex filters, embeds and writes messages batch by batch.
// It stops at the first failed batch; batches written before it stay in the index.
func (uc *IngestUseCase) BuildIndex(ctx context.Context, msgs []entities.RawMessage) (*entities.IngestStats, error) {
	stats := &entities.IngestStats{Total: len(msgs)}

	records := make([]entities.IndexRecord, 0, len(msgs))
	for _, m := range msgs {
		if !m.Indexable() {
			stats.Skipped++
			continue
		}
		records = append(records, m.IndexRecord())
	}
	if len(records) == 0 {
		log.Printf("[INFO] Nothing to index (%d messages, %d without text)", stats.Total, stats.Skipped)
		return stats, nil
	}

	runKey := RunKey(records)
	start := uc.resumeOffset(ctx, runKey, len(records))
	stats.Resumed = start
	if start > 0 {
		log.Printf("[INFO] Resuming ingestion at %d/%d", start, len(records))
	}

	for lo := start; lo < len(records); lo += uc.batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		hi := min(lo+uc.batchSize, len(records))

		if err := uc.writeBatchWithRetry(ctx, records[lo:hi]); err != nil {
			return stats, &entities.BatchError{Start: lo, End: hi, Err: err}
		}
		stats.Indexed += hi - lo
		stats.Batches++

		if uc.checkpoints != nil {
			if err := uc.checkpoints.Save(runKey, hi); err != nil {
				log.Printf("[WARN] Failed to save checkpoint: %v", err)
			}
		}
		uc.progress(hi, len(records))
	}

	if uc.checkpoints != nil {
		if err := uc.checkpoints.Clear(runKey); err != nil {
			log.Printf("[WARN] Failed to clear checkpoint: %v", err)
		}
	}
	return stats, nil
}

// resumeOffset returns where a previous run of runKey stopped. The checkpoint
// is trusted only while the index still holds at least that many records.
func (uc *IngestUseCase) resumeOffset(ctx context.Context, runKey string, total int) int {
	if uc.checkpoints == nil {
		return 0
	}
	done, err := uc.checkpoints.Load(runKey)
	if err != nil {
		log.Printf("[WARN] Ignoring unreadable checkpoint: %v", err)
		return 0
	}
	if done <= 0 || done >= total {
		return 0
	}
	n, err := uc.index.Count(ctx)
	if err != nil {
		log.Printf("[WARN] Cannot verify checkpoint, starting over: %v", err)
		return 0
	}
	if n < done {
		log.Printf("[WARN] Checkpoint at %d but index holds %d records, starting over", done, n)
		return 0
	}
	return done
}

func (uc *IngestUseCase) writeBatchWithRetry(ctx context.Context, batch []entities.IndexRecord) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = uc.writeBatch(ctx, batch)
		if err == nil || attempt >= uc.maxRetries || ctx.Err() != nil {
			return err
		}
		delay := retryDelay(attempt)
		log.Printf("[WARN] Batch failed (attempt %d/%d), retrying in %s: %v", attempt+1, uc.maxRetries+1, delay, err)
		if serr := uc.sleep(ctx, delay); serr != nil {
			return err
		}
	}
}

func (uc *IngestUseCase) writeBatch(ctx context.Context, batch []entities.IndexRecord) error {
	texts := make([]string, len(batch))
	for i, r := range batch {
		texts[i] = r.Document
	}

	embeddings, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return wrapKind(entities.ErrEmbedding, err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("%w: got %d embeddings for %d documents", entities.ErrEmbedding, len(embeddings), len(batch))
	}

	out := make([]entities.IndexRecord, len(batch))
	for i := range batch {
		out[i] = batch[i]
		out[i].Embedding = embeddings[i]
	}

	if err := uc.index.Upsert(ctx, out); err != nil {
		return wrapKind(entities.ErrIndexWrite, err)
	}
	return nil
}

// RunKey identifies an ingestion run by its ordered record ids and documents.
// Editing any message text yields a new key, so stale checkpoints are not reused.
func RunKey(records []entities.IndexRecord) string {
	h := sha256.New()
	for _, r := range records {
		h.Write([]byte(r.ID))
		h.Write([]byte{0})
		h.Write([]byte(r.Document))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func retryDelay(attempt int) time.Duration {
	d := retryBaseDelay << attempt
	if d > retryMaxDelay || d <= 0 {
		return retryMaxDelay
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func logProgress(processed, total int) {
	log.Printf("[INFO] Processed %d/%d messages", processed, total)
}

// wrapKind tags err with kind unless an adapter already did.
func wrapKind(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
