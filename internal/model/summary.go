package model

import (
	"time"

	"github.com/google/uuid"
)

// WriteStats accumulates upsert outcomes for one document kind.
type WriteStats struct {
	Inserted int64
	Updated  int64
	Failed   int64
}

// Add folds another stats value into s.
func (s *WriteStats) Add(o WriteStats) {
	s.Inserted += o.Inserted
	s.Updated += o.Updated
	s.Failed += o.Failed
}

// Written returns the number of documents that reached the store.
func (s WriteStats) Written() int64 {
	return s.Inserted + s.Updated
}

// Terminal states for a single file's ingestion.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// FileResult captures the outcome of ingesting a single file. Completed runs
// may still carry recorded record-level errors; Err is set only when a fatal
// error aborted the file.
type FileResult struct {
	FilePath        string
	HospitalID      string
	Status          string
	Format          Format
	Version         SchemaVersion
	Skipped         bool
	ReachedCap      bool
	RecordsParsed   int64
	ModifiersParsed int64
	Charges         WriteStats
	Modifiers       WriteStats
	Errors          []*ProcessingError
	Err             error
	BytesRead       int64
	Duration        time.Duration
}

// RunSummary aggregates FileResults across one run, single file or directory.
type RunSummary struct {
	RunID         string
	Files         int
	Completed     int
	Failed        int
	Skipped       int
	Charges       WriteStats
	Modifiers     WriteStats
	RecordsParsed int64
	ErrorCount    int
	Duration      time.Duration
	Results       []*FileResult
}

// NewRunSummary returns an empty summary tagged with a fresh run id.
func NewRunSummary() *RunSummary {
	return &RunSummary{RunID: uuid.New().String()}
}

// Add folds one file's result into the run totals.
func (r *RunSummary) Add(fr *FileResult) {
	r.Files++
	switch fr.Status {
	case StatusCompleted:
		r.Completed++
	case StatusFailed:
		r.Failed++
	}
	if fr.Skipped {
		r.Skipped++
	}
	r.Charges.Add(fr.Charges)
	r.Modifiers.Add(fr.Modifiers)
	r.RecordsParsed += fr.RecordsParsed
	r.ErrorCount += len(fr.Errors)
	r.Results = append(r.Results, fr)
}

// Throughput returns parsed records per second for the whole run.
func (r *RunSummary) Throughput() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.RecordsParsed) / r.Duration.Seconds()
}
