// Package export streams persisted charge documents into a Parquet file so
// analytical tools can query them without touching PostgreSQL.
package export

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/rs/zerolog"

	"github.com/gyeh/mrfingest/internal/model"
)

// flushRows bounds writer memory by cutting a row group periodically.
const flushRows = 4096

// RowSource streams export rows for one hospital, or all hospitals when the
// id is empty. The store's StreamExportRows satisfies it; tests substitute
// in-memory sources.
type RowSource func(ctx context.Context, hospitalID string, fn func(model.ChargeExportRow) error) (int64, error)

// Writer wraps a parquet GenericWriter for charge export rows.
type Writer struct {
	file    *os.File
	writer  *parquet.GenericWriter[model.ChargeExportRow]
	count   int64
	pending int
}

// NewWriter creates the output file and a zstd-compressed Parquet writer.
func NewWriter(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	w := parquet.NewGenericWriter[model.ChargeExportRow](file,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.CreatedBy("mrfingest", "", ""),
	)
	return &Writer{file: file, writer: w}, nil
}

// Add writes one row, flushing a row group every flushRows rows.
func (w *Writer) Add(row model.ChargeExportRow) error {
	if _, err := w.writer.Write([]model.ChargeExportRow{row}); err != nil {
		return fmt.Errorf("write parquet row: %w", err)
	}
	w.count++
	w.pending++
	if w.pending >= flushRows {
		if err := w.writer.Flush(); err != nil {
			return fmt.Errorf("flush parquet row group: %w", err)
		}
		w.pending = 0
	}
	return nil
}

// Close flushes the final row group and closes the file.
func (w *Writer) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return w.file.Close()
}

// Count returns the number of rows written so far.
func (w *Writer) Count() int64 {
	return w.count
}

// Run streams rows from src into a new Parquet file at outPath. hospitalID
// narrows the export to one hospital; empty exports everything.
func Run(ctx context.Context, src RowSource, hospitalID, outPath string, log zerolog.Logger) (int64, error) {
	start := time.Now()

	w, err := NewWriter(outPath)
	if err != nil {
		return 0, err
	}

	n, err := src(ctx, hospitalID, w.Add)
	if err != nil {
		_ = w.Close()
		_ = os.Remove(outPath)
		return 0, fmt.Errorf("stream charges: %w", err)
	}
	if err := w.Close(); err != nil {
		return n, err
	}

	log.Info().
		Int64("rows", n).
		Str("out", outPath).
		Dur("elapsed", time.Since(start)).
		Msg("export completed")
	return n, nil
}
