package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/gyeh/mrfingest/internal/detect"
	"github.com/gyeh/mrfingest/internal/model"
	"github.com/gyeh/mrfingest/internal/normalize"
	"github.com/gyeh/mrfingest/internal/parse"
	"github.com/gyeh/mrfingest/internal/store"
)

// RunFile ingests one file end to end: detect → parse/normalize/write →
// flush → hospital record. It never returns an error; fatal problems land in
// the result's Err with status failed so directory runs can keep going.
func (r *Runner) RunFile(ctx context.Context, path string) *model.FileResult {
	start := time.Now()
	fr := &model.FileResult{
		FilePath:   path,
		HospitalID: normalize.HospitalIDFromFilename(path),
		Status:     model.StatusFailed,
	}
	defer func() { fr.Duration = time.Since(start) }()

	flog := r.log.With().
		Str("file", filepath.Base(path)).
		Str("hospital_id", fr.HospitalID).
		Logger()

	if r.opts.SkipExisting && !r.opts.DryRun && r.store != nil {
		exists, err := r.store.HospitalExists(ctx, fr.HospitalID)
		if err != nil {
			fr.Err = &PipelineError{Phase: PhaseHospital, Err: err}
			return fr
		}
		if exists {
			flog.Info().Msg("hospital already ingested, skipping")
			fr.Status = model.StatusCompleted
			fr.Skipped = true
			return fr
		}
	}

	det, err := detect.File(path)
	if err != nil {
		fr.Err = &PipelineError{Phase: PhaseDetect, Err: err}
		return fr
	}
	fr.Format = det.Format
	fr.Version = det.Version
	flog.Info().
		Str("format", string(det.Format)).
		Str("version", string(det.Version)).
		Int64("size_bytes", det.FileSize).
		Int64("estimated_records", det.EstimatedRecords).
		Msg("detected source file")

	if r.opts.Clean {
		if r.opts.DryRun || r.store == nil {
			flog.Info().Msg("dry run, skipping clean delete")
		} else {
			charges, modifiers, err := r.store.DeleteHospitalData(ctx, fr.HospitalID)
			if err != nil {
				fr.Err = &PipelineError{Phase: PhaseHospital, Err: err}
				return fr
			}
			flog.Info().
				Int64("charges", charges).
				Int64("modifiers", modifiers).
				Msg("deleted previous hospital data")
		}
	}

	chargeBatch := store.NewBatcher(r.opts.BatchSize, r.chargeFlush())
	modifierBatch := store.NewBatcher(r.opts.BatchSize, r.modifierFlush())

	// Detection decides the version until the file's own metadata improves
	// on it; vendor files keep the vendor tag.
	version := det.Version
	var meta *model.RawHospital

	cb := parse.Callbacks{
		OnMetadata: func(m *model.RawHospital) error {
			meta = m
			if det.Version != model.SchemaVendor && m.Version != "" {
				if v := model.SchemaVersionFromString(m.Version); v != model.SchemaUnknown {
					version = v
				}
			}
			return nil
		},
		OnCharge: func(rec *model.RawCharge, index int) error {
			docs, err := normalize.ChargeDocs(rec, fr.HospitalID, metaName(meta), version, r.opts.CodePriority)
			if err != nil {
				pe := model.NewValidationError(index, rec.Description, err)
				if r.opts.Strict {
					return pe
				}
				flog.Warn().
					Int("index", index).
					Str("description", rec.Description).
					Err(err).
					Msg("record failed normalization")
				fr.Errors = append(fr.Errors, pe)
				return nil
			}
			for _, doc := range docs {
				if err := chargeBatch.Add(ctx, doc); err != nil {
					return &PipelineError{Phase: PhaseWrite, Err: err}
				}
			}
			if r.opts.Strict && len(chargeBatch.Errors()) > 0 {
				return &PipelineError{Phase: PhaseWrite, Err: chargeBatch.Errors()[0]}
			}
			return nil
		},
		OnModifier: func(rec *model.RawModifier, index int) error {
			doc, err := normalize.ModifierDoc(rec, fr.HospitalID, metaName(meta))
			if err != nil {
				pe := model.NewValidationError(index, rec.Code, err)
				if r.opts.Strict {
					return pe
				}
				flog.Warn().
					Int("index", index).
					Str("code", rec.Code).
					Err(err).
					Msg("modifier failed normalization")
				fr.Errors = append(fr.Errors, pe)
				return nil
			}
			if err := modifierBatch.Add(ctx, *doc); err != nil {
				return &PipelineError{Phase: PhaseWrite, Err: err}
			}
			if r.opts.Strict && len(modifierBatch.Errors()) > 0 {
				return &PipelineError{Phase: PhaseWrite, Err: modifierBatch.Errors()[0]}
			}
			return nil
		},
		OnProgress: func(p parse.Progress) {
			flog.Info().
				Int64("processed", p.Processed).
				Int64("estimated_total", p.EstimatedTotal).
				Int64("bytes_read", p.BytesRead).
				Msg("parsing")
		},
	}

	res, err := parse.File(path, det.Format, cb, parse.Options{
		MaxItems:       r.opts.MaxRecords,
		EstimatedTotal: det.EstimatedRecords,
		ProgressEvery:  r.opts.ProgressEvery,
		Strict:         r.opts.Strict,
	})
	if err != nil {
		var pe *PipelineError
		if !errors.As(err, &pe) {
			pe = &PipelineError{Phase: PhaseParse, Err: err}
		}
		fr.Err = pe
		return fr
	}

	fr.RecordsParsed = res.Charges
	fr.ModifiersParsed = res.Modifiers
	fr.BytesRead = res.BytesRead
	fr.ReachedCap = res.ReachedCap
	for _, pe := range res.Errors {
		flog.Warn().
			Int("index", pe.Index).
			Str("description", pe.Description).
			Err(pe.Err).
			Msg("record skipped during parse")
	}
	fr.Errors = append(fr.Errors, res.Errors...)
	if res.ReachedCap {
		flog.Info().Int64("max_records", r.opts.MaxRecords).Msg("record cap reached, stopping early")
	}

	if err := chargeBatch.Flush(ctx); err != nil {
		fr.Err = &PipelineError{Phase: PhaseWrite, Err: err}
		return fr
	}
	if err := modifierBatch.Flush(ctx); err != nil {
		fr.Err = &PipelineError{Phase: PhaseWrite, Err: err}
		return fr
	}
	fr.Charges = chargeBatch.Stats()
	fr.Modifiers = modifierBatch.Stats()
	fr.Errors = append(fr.Errors, chargeBatch.Errors()...)
	fr.Errors = append(fr.Errors, modifierBatch.Errors()...)

	// In strict mode every earlier error already aborted the parse, so any
	// error left here came from the final flushes.
	if r.opts.Strict && len(fr.Errors) > 0 {
		fr.Err = &PipelineError{Phase: PhaseWrite, Err: fr.Errors[0]}
		return fr
	}

	hospital := res.Hospital
	if hospital == nil {
		hospital = meta
	}
	hdoc := normalize.HospitalDoc(hospital, fr.HospitalID, path, det.Format, version)
	hdoc.ChargeCount = fr.Charges.Written()
	hdoc.ModifierCount = fr.Modifiers.Written()
	if !r.opts.DryRun && r.store != nil {
		if err := r.store.UpsertHospital(ctx, hdoc); err != nil {
			fr.Err = &PipelineError{Phase: PhaseHospital, Err: err}
			return fr
		}
	}

	fr.Version = version
	fr.Status = model.StatusCompleted
	flog.Info().
		Int64("records", fr.RecordsParsed).
		Int64("charges_written", fr.Charges.Written()).
		Int64("modifiers_written", fr.Modifiers.Written()).
		Int64("failed", fr.Charges.Failed+fr.Modifiers.Failed).
		Int("errors", len(fr.Errors)).
		Dur("elapsed", time.Since(start)).
		Msg("file completed")
	return fr
}

func metaName(meta *model.RawHospital) string {
	if meta == nil {
		return ""
	}
	return meta.Name
}

// chargeFlush picks the batch write seam: real upserts, or an as-if-inserted
// counter for dry runs.
func (r *Runner) chargeFlush() store.FlushFunc[model.ChargeDoc] {
	if r.opts.DryRun || r.store == nil {
		return func(_ context.Context, docs []model.ChargeDoc) (model.WriteStats, []*model.ProcessingError, error) {
			return model.WriteStats{Inserted: int64(len(docs))}, nil, nil
		}
	}
	return r.store.UpsertCharges
}

func (r *Runner) modifierFlush() store.FlushFunc[model.ModifierDoc] {
	if r.opts.DryRun || r.store == nil {
		return func(_ context.Context, docs []model.ModifierDoc) (model.WriteStats, []*model.ProcessingError, error) {
			return model.WriteStats{Inserted: int64(len(docs))}, nil, nil
		}
	}
	return r.store.UpsertModifiers
}
