// Package ingest drives the pipeline for one file or a directory of files:
// detect the format, stream records through the normalizer into batched
// store writes, then finalize the hospital record. One file's failure never
// stops the files after it.
package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gyeh/mrfingest/internal/model"
	"github.com/gyeh/mrfingest/internal/normalize"
	"github.com/gyeh/mrfingest/internal/store"
)

// Pipeline phases, used to label fatal errors.
const (
	PhaseDetect   = "detect"
	PhaseParse    = "parse"
	PhaseWrite    = "write"
	PhaseHospital = "hospital"
	PhaseFinalize = "finalize"
)

// PipelineError wraps a fatal error with the phase where it occurred. It
// fails the current file only; directory runs continue with the next file.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Store is the persistence surface the orchestrator needs. *store.Store
// satisfies it; tests substitute fakes, and dry runs pass nil.
type Store interface {
	HospitalExists(ctx context.Context, hospitalID string) (bool, error)
	DeleteHospitalData(ctx context.Context, hospitalID string) (int64, int64, error)
	UpsertCharges(ctx context.Context, docs []model.ChargeDoc) (model.WriteStats, []*model.ProcessingError, error)
	UpsertModifiers(ctx context.Context, docs []model.ModifierDoc) (model.WriteStats, []*model.ProcessingError, error)
	UpsertHospital(ctx context.Context, doc model.HospitalDoc) error
}

var _ Store = (*store.Store)(nil)

// Options are the operator-facing knobs for one run.
type Options struct {
	// BatchSize is the upsert batch threshold; zero means the default.
	BatchSize int
	// MaxRecords caps parsed records per file; zero means no cap.
	MaxRecords int64
	// ProgressEvery is the progress-log cadence in records.
	ProgressEvery int64
	// DryRun parses and normalizes fully but issues no writes.
	DryRun bool
	// SkipExisting short-circuits files whose hospital id is already stored.
	SkipExisting bool
	// Clean deletes the hospital's charges and modifiers before streaming.
	Clean bool
	// Strict aborts a file on its first record-level error.
	Strict bool
	// CodePriority overrides the primary-code selection order.
	CodePriority []string
	// Extensions are the file suffixes picked up by a directory run.
	Extensions []string
}

// Runner executes ingestion runs against one store.
type Runner struct {
	store Store
	log   zerolog.Logger
	opts  Options
}

// New returns a Runner. st may be nil only for dry runs.
func New(st Store, log zerolog.Logger, opts Options) *Runner {
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".json", ".csv"}
	}
	if opts.CodePriority == nil {
		opts.CodePriority = normalize.DefaultCodePriority
	}
	return &Runner{store: st, log: log, opts: opts}
}
