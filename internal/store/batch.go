package store

import (
	"context"

	"github.com/gyeh/mrfingest/internal/model"
)

// DefaultBatchSize is the flush threshold when the caller does not set one.
const DefaultBatchSize = 500

// Doc is a writable document: self-validating and self-describing.
type Doc interface {
	Validate() error
	Label() string
}

// FlushFunc writes one batch of valid documents and reports per-batch
// outcomes. Returned ProcessingErrors are indexed relative to docs; a non-nil
// error is systemic and aborts the run.
type FlushFunc[D Doc] func(ctx context.Context, docs []D) (model.WriteStats, []*model.ProcessingError, error)

// Batcher accumulates documents and flushes them in fixed-size batches.
// Validation happens at flush time: an invalid document consumes its slot,
// counts as failed, and is excluded from the write. Callers must Flush once
// input is exhausted to persist a partial final batch.
type Batcher[D Doc] struct {
	size    int
	flush   FlushFunc[D]
	pending []D
	seq     int
	stats   model.WriteStats
	errs    []*model.ProcessingError
}

// NewBatcher returns a batcher flushing every size documents through flush.
func NewBatcher[D Doc](size int, flush FlushFunc[D]) *Batcher[D] {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batcher[D]{size: size, flush: flush}
}

// Add queues one document, flushing when the batch fills.
func (b *Batcher[D]) Add(ctx context.Context, doc D) error {
	b.pending = append(b.pending, doc)
	b.seq++
	if len(b.pending) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Flush validates and writes the pending batch.
func (b *Batcher[D]) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	base := b.seq - len(b.pending)
	valid := make([]D, 0, len(b.pending))
	ords := make([]int, 0, len(b.pending))
	for i, doc := range b.pending {
		if err := doc.Validate(); err != nil {
			b.stats.Failed++
			b.errs = append(b.errs, model.NewValidationError(base+i, doc.Label(), err))
			continue
		}
		valid = append(valid, doc)
		ords = append(ords, base+i)
	}
	b.pending = b.pending[:0]
	if len(valid) == 0 {
		return nil
	}

	stats, errs, err := b.flush(ctx, valid)
	b.stats.Add(stats)
	for _, pe := range errs {
		// Remap batch-relative indexes onto the document sequence.
		if pe.Index >= 0 && pe.Index < len(ords) {
			pe.Index = ords[pe.Index]
		}
		b.errs = append(b.errs, pe)
	}
	return err
}

// Stats returns the accumulated write outcomes.
func (b *Batcher[D]) Stats() model.WriteStats {
	return b.stats
}

// Errors returns every validation and write error recorded so far.
func (b *Batcher[D]) Errors() []*model.ProcessingError {
	return b.errs
}

// Pending returns the number of queued, unflushed documents.
func (b *Batcher[D]) Pending() int {
	return len(b.pending)
}
