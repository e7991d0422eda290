// Package parse streams hospital standard-charges files record by record.
// One charge or modifier record is in memory at a time regardless of file
// size; callers receive records through callbacks in file order.
package parse

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gyeh/mrfingest/internal/model"
)

const (
	readBufferSize   = 256 * 1024
	vendorSampleSize = 64 * 1024

	// DefaultProgressEvery is the record cadence for OnProgress callbacks.
	DefaultProgressEvery = 5000
)

// Callbacks receive the stream as it is parsed. Metadata is delivered once,
// before the first charge record when the file layout allows it. Any
// callback error aborts the file.
type Callbacks struct {
	OnMetadata func(meta *model.RawHospital) error
	OnCharge   func(rec *model.RawCharge, index int) error
	OnModifier func(rec *model.RawModifier, index int) error
	OnProgress func(p Progress)
}

// Progress is a point-in-time snapshot of a running parse.
type Progress struct {
	Processed      int64
	EstimatedTotal int64
	BytesRead      int64
}

// Options tune a single parse run.
type Options struct {
	// MaxItems stops the parse after this many records. Zero means no cap.
	MaxItems int64
	// EstimatedTotal is echoed into Progress for reporting.
	EstimatedTotal int64
	// ProgressEvery is the record cadence for OnProgress.
	ProgressEvery int64
	// Strict turns the first contained record error into a fatal one.
	Strict bool
}

// Result summarizes one file's parse: the recovered hospital metadata, the
// emitted record counts, and the record-level errors that were contained.
type Result struct {
	Hospital   *model.RawHospital
	Charges    int64
	Modifiers  int64
	Errors     []*model.ProcessingError
	BytesRead  int64
	ReachedCap bool
}

// File parses one source file in the given format. Record-level problems
// are recorded in Result.Errors and parsing continues; a returned error
// means the file itself is unusable (or a callback failed) and the parse
// stopped.
func File(path string, format model.Format, cb Callbacks, opts Options) (*Result, error) {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	switch format {
	case model.FormatJSON:
		return parseJSON(path, cb, opts)
	case model.FormatCSVTall, model.FormatCSVWide:
		return parseCSV(path, cb, opts)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// countingReader tracks raw bytes consumed beneath the buffered reader.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// openSource opens a file behind a byte-counting buffered reader, skipping
// a UTF-8 BOM when present.
func openSource(path string) (*os.File, *countingReader, *bufio.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	cr := &countingReader{r: f}
	br := bufio.NewReaderSize(cr, readBufferSize)
	if bom, err := br.Peek(3); err == nil && len(bom) == 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		br.Discard(3)
	}
	return f, cr, br, nil
}

// sanitize trims and replaces invalid UTF-8, which some hospitals publish
// as Windows-1252 bytes.
func sanitize(s string) string {
	return strings.ToValidUTF8(strings.TrimSpace(s), "�")
}
