// Package store persists normalized hospital, charge, and modifier documents
// in PostgreSQL. Writes are natural-key upserts so re-ingesting a file updates
// rows in place; batches are pipelined and fall back to per-document writes
// when a batch fails.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/mrfingest/internal/model"
)

// Store wraps a pgx pool with the document operations the pipeline needs.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Connect opens a pool against dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	// Bulk-load sessions must not be killed mid-batch.
	cfg.ConnConfig.RuntimeParams["statement_timeout"] = "0"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// NewWithPool wraps an existing pool; the caller keeps ownership of it.
func NewWithPool(pool *pgxpool.Pool, log zerolog.Logger) *Store {
	return &Store{pool: pool, log: log}
}

func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pool for ad-hoc queries, mostly in tests.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// HospitalExists reports whether a hospital row is already present, used by
// skip-existing mode before any parsing work starts.
func (s *Store) HospitalExists(ctx context.Context, hospitalID string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, hospitalExistsSQL, hospitalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check hospital %s: %w", hospitalID, err)
	}
	return exists, nil
}

// DeleteHospitalData removes all charges and modifiers for one hospital,
// returning the deleted counts. The hospital row itself stays; the following
// ingest overwrites it.
func (s *Store) DeleteHospitalData(ctx context.Context, hospitalID string) (int64, int64, error) {
	charges, err := s.pool.Exec(ctx, deleteChargesSQL, hospitalID)
	if err != nil {
		return 0, 0, fmt.Errorf("delete charges for %s: %w", hospitalID, err)
	}
	modifiers, err := s.pool.Exec(ctx, deleteModifiersSQL, hospitalID)
	if err != nil {
		return charges.RowsAffected(), 0, fmt.Errorf("delete modifiers for %s: %w", hospitalID, err)
	}
	return charges.RowsAffected(), modifiers.RowsAffected(), nil
}

// UpsertHospital writes the hospital document, overwriting a previous ingest
// of the same hospital id.
func (s *Store) UpsertHospital(ctx context.Context, doc model.HospitalDoc) error {
	_, err := s.pool.Exec(ctx, upsertHospitalSQL,
		doc.HospitalID,
		doc.Name,
		doc.Addresses,
		doc.Locations,
		doc.NPINumbers,
		doc.LicenseNumber,
		doc.LicenseState,
		doc.Affirmation,
		doc.AttesterName,
		doc.SchemaVersion,
		doc.LastUpdatedOn,
		doc.SourceFile,
		doc.SourceFormat,
		doc.ChargeCount,
		doc.ModifierCount,
	)
	if err != nil {
		return fmt.Errorf("upsert hospital %s: %w", doc.HospitalID, err)
	}
	return nil
}

// UpsertCharges writes one batch of charge documents. See runUpserts for the
// accounting and fallback contract.
func (s *Store) UpsertCharges(ctx context.Context, docs []model.ChargeDoc) (model.WriteStats, []*model.ProcessingError, error) {
	return runUpserts(ctx, s, upsertChargeSQL, chargeArgs, docs)
}

// UpsertModifiers writes one batch of modifier documents.
func (s *Store) UpsertModifiers(ctx context.Context, docs []model.ModifierDoc) (model.WriteStats, []*model.ProcessingError, error) {
	return runUpserts(ctx, s, upsertModifierSQL, modifierArgs, docs)
}

func chargeArgs(d model.ChargeDoc) []any {
	codes := d.Codes
	if codes == nil {
		codes = []model.RawCode{}
	}
	payers := d.PayerCharges
	if payers == nil {
		payers = []model.PayerCharge{}
	}
	return []any{
		d.HospitalID,
		d.ChargeKey,
		d.HospitalName,
		d.Description,
		d.Code,
		d.CodeType,
		codes,
		d.Setting,
		d.DrugUnit,
		d.DrugType,
		d.GrossCharge,
		d.DiscountedCash,
		d.MinNegotiated,
		d.MaxNegotiated,
		d.Modifiers,
		payers,
		d.Notes,
		d.SchemaVersion,
	}
}

func modifierArgs(d model.ModifierDoc) []any {
	payers := d.Payers
	if payers == nil {
		payers = []model.ModifierPayer{}
	}
	return []any{
		d.HospitalID,
		d.Code,
		d.HospitalName,
		d.Description,
		d.Setting,
		payers,
	}
}

// runUpserts pipelines the whole batch first. If any statement fails, the
// implicit batch transaction has discarded every row in it, so the collected
// counts are thrown away and each document is retried on its own; per-document
// Postgres errors count as failed without blocking the rest of the batch. Any
// other error is systemic and aborts.
//
// Each upsert statement returns (xmax = 0), which is true only for rows
// created by this statement, distinguishing inserts from updates.
func runUpserts[D Doc](ctx context.Context, s *Store, sqlText string, args func(D) []any, docs []D) (model.WriteStats, []*model.ProcessingError, error) {
	var stats model.WriteStats
	if len(docs) == 0 {
		return stats, nil, nil
	}

	b := &pgx.Batch{}
	for _, d := range docs {
		b.Queue(sqlText, args(d)...)
	}
	br := s.pool.SendBatch(ctx, b)
	var batchErr error
	for range docs {
		var inserted bool
		if err := br.QueryRow().Scan(&inserted); err != nil {
			batchErr = err
			break
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Updated++
		}
	}
	closeErr := br.Close()
	if batchErr == nil && closeErr == nil {
		return stats, nil, nil
	}
	if batchErr == nil {
		batchErr = closeErr
	}

	s.log.Warn().Err(batchErr).Int("batch_size", len(docs)).
		Msg("batch write failed, retrying documents individually")

	stats = model.WriteStats{}
	var errs []*model.ProcessingError
	for i, d := range docs {
		var inserted bool
		err := s.pool.QueryRow(ctx, sqlText, args(d)...).Scan(&inserted)
		if err == nil {
			if inserted {
				stats.Inserted++
			} else {
				stats.Updated++
			}
			continue
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			stats.Failed++
			errs = append(errs, model.NewDatabaseError(i, d.Label(), err))
			continue
		}
		return stats, errs, fmt.Errorf("retry write: %w", err)
	}
	return stats, errs, nil
}

// CodeTypeCount is one code system's share of the charge table.
type CodeTypeCount struct {
	CodeType string
	Charges  int64
}

// HospitalStat is one hospital's row counts for the stats report.
type HospitalStat struct {
	HospitalID string
	Name       string
	Charges    int64
	Modifiers  int64
	IngestedAt time.Time
}

// Stats are store-level aggregates for the stats command.
type Stats struct {
	Hospitals    int64
	Charges      int64
	Modifiers    int64
	PayerEntries int64
	LastIngested *time.Time
	CodeTypes    []CodeTypeCount
	TopHospitals []HospitalStat
}

// Stats gathers store-level aggregates.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	err := s.pool.QueryRow(ctx, statsTotalsSQL).Scan(
		&st.Hospitals, &st.Charges, &st.Modifiers, &st.PayerEntries, &st.LastIngested,
	)
	if err != nil {
		return nil, fmt.Errorf("stats totals: %w", err)
	}

	rows, err := s.pool.Query(ctx, statsCodeTypesSQL)
	if err != nil {
		return nil, fmt.Errorf("stats code types: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c CodeTypeCount
		if err := rows.Scan(&c.CodeType, &c.Charges); err != nil {
			return nil, fmt.Errorf("scan code type: %w", err)
		}
		st.CodeTypes = append(st.CodeTypes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats code types: %w", err)
	}

	rows, err = s.pool.Query(ctx, statsHospitalsSQL)
	if err != nil {
		return nil, fmt.Errorf("stats hospitals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h HospitalStat
		if err := rows.Scan(&h.HospitalID, &h.Name, &h.Charges, &h.Modifiers, &h.IngestedAt); err != nil {
			return nil, fmt.Errorf("scan hospital stat: %w", err)
		}
		st.TopHospitals = append(st.TopHospitals, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats hospitals: %w", err)
	}
	return st, nil
}

// StreamExportRows feeds each charge row for one hospital (or every hospital
// when hospitalID is empty) to fn in stable key order, returning the number
// of rows delivered.
func (s *Store) StreamExportRows(ctx context.Context, hospitalID string, fn func(model.ChargeExportRow) error) (int64, error) {
	rows, err := s.pool.Query(ctx, exportChargesSQL, hospitalID)
	if err != nil {
		return 0, fmt.Errorf("query export rows: %w", err)
	}
	defer rows.Close()

	var n int64
	for rows.Next() {
		var r model.ChargeExportRow
		err := rows.Scan(
			&r.HospitalID, &r.HospitalName, &r.ChargeKey, &r.Description,
			&r.Code, &r.CodeType, &r.Setting,
			&r.DrugUnit, &r.DrugType,
			&r.GrossCharge, &r.DiscountedCash, &r.MinNegotiated, &r.MaxNegotiated,
			&r.PayerChargesJSON, &r.SchemaVersion,
		)
		if err != nil {
			return n, fmt.Errorf("scan export row: %w", err)
		}
		if err := fn(r); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("read export rows: %w", err)
	}
	return n, nil
}
