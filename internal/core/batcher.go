package core

import (
	"context"

	"go.uber.org/zap"
)

// DefaultBatchSize is the largest number of items sent to the oracle in one call
const DefaultBatchSize = 25

// Batcher submits items to the oracle in fixed-size chunks, one at a time.
// A failed chunk contributes nothing; the remaining chunks still run.
type Batcher struct {
	oracle   Oracle
	pacer    Pacer
	size     int
	logger   *zap.Logger
	observer Observer
}

// NewBatcher creates a batcher; a non-positive size falls back to DefaultBatchSize
func NewBatcher(oracle Oracle, pacer Pacer, size int, logger *zap.Logger, observer Observer) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if pacer == nil {
		pacer = NoPacer{}
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Batcher{
		oracle:   oracle,
		pacer:    pacer,
		size:     size,
		logger:   logger,
		observer: observer,
	}
}

// Classify returns a verdict for every item the oracle resolved. Ids the oracle
// returns that were not part of the chunk are ignored. The only error is the
// cancellation of ctx, in which case the verdicts gathered so far are returned too.
func (b *Batcher) Classify(ctx context.Context, items []BatchItem) (map[string]Verdict, error) {
	results := make(map[string]Verdict, len(items))
	total := (len(items) + b.size - 1) / b.size

	for i := 0; i < total; i++ {
		start := i * b.size
		end := min(start+b.size, len(items))
		chunk := items[start:end]
		index := i + 1

		if err := b.pacer.Wait(ctx); err != nil {
			return results, err
		}

		b.observer.BatchStarted(index, total, len(chunk))
		b.logger.Debug("Submitting batch to oracle",
			zap.Int("batch", index),
			zap.Int("total", total),
			zap.Int("size", len(chunk)))

		verdicts, err := b.oracle.ClassifyBatch(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			b.logger.Error("Oracle batch failed",
				zap.Int("batch", index),
				zap.Int("size", len(chunk)),
				zap.Error(err))
			b.observer.BatchFinished(index, 0, err)
			continue
		}

		resolved := 0
		for _, item := range chunk {
			if v, ok := verdicts[item.ID]; ok {
				results[item.ID] = v
				resolved++
			}
		}
		if resolved < len(chunk) {
			b.logger.Warn("Oracle left items unresolved",
				zap.Int("batch", index),
				zap.Int("resolved", resolved),
				zap.Int("size", len(chunk)))
		}
		b.observer.BatchFinished(index, resolved, nil)
	}
	return results, nil
}
