// Package detect classifies a source file's format and schema version from
// its extension and a bounded content sample, never a full parse.
package detect

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gyeh/mrfingest/internal/model"
	"github.com/gyeh/mrfingest/internal/parse"
)

const sampleSize = 256 * 1024

var versionMarker = regexp.MustCompile(`"version"\s*:\s*"([^"]+)"`)

// Detection classifies one source file. EstimatedRecords is a progress
// heuristic, not a promise.
type Detection struct {
	Format           model.Format
	Version          model.SchemaVersion
	FileSize         int64
	EstimatedRecords int64
	// Vendor names the matched adapter when Version is SchemaVendor.
	Vendor string
}

// File classifies path. Files too malformed to classify are fatal here so
// the parser is never pointed at garbage.
func File(path string) (*Detection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	sample, err := readSample(path)
	if err != nil {
		return nil, err
	}

	d := &Detection{FileSize: info.Size()}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		d.Format = model.FormatJSON
		detectJSON(d, sample, filepath.Base(path))
	case ".csv":
		if err := detectCSV(d, sample); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unrecognized file extension %q", filepath.Ext(path))
	}
	return d, nil
}

func readSample(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, sampleSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return bytes.TrimPrefix(buf[:n], []byte{0xEF, 0xBB, 0xBF}), nil
}

func detectJSON(d *Detection, sample []byte, filename string) {
	if ad := parse.MatchVendor(sample, filename); ad != nil {
		d.Version = model.SchemaVendor
		d.Vendor = ad.Name
	} else if m := versionMarker.FindSubmatch(sample); m != nil {
		d.Version = model.SchemaVersionFromString(string(m[1]))
	} else {
		d.Version = model.SchemaUnknown
	}
	d.EstimatedRecords = estimateByMarker(sample, d.FileSize, []byte(`"description"`))
}

func detectCSV(d *Detection, sample []byte) error {
	rd := csv.NewReader(bytes.NewReader(sample))
	rd.LazyQuotes = true
	rd.FieldsPerRecord = -1

	var rows [][]string
	for len(rows) < 3 {
		row, err := rd.Read()
		if err != nil {
			return fmt.Errorf("read csv header rows: %w", err)
		}
		rows = append(rows, row)
	}

	layout, err := parse.ClassifyCSVLayout(rows[2])
	if err != nil {
		return err
	}
	d.Format = layout

	d.Version = model.SchemaUnknown
	for i, name := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(name), "version") && i < len(rows[1]) {
			d.Version = model.SchemaVersionFromString(rows[1][i])
			break
		}
	}

	d.EstimatedRecords = estimateRows(sample, d.FileSize)
	return nil
}

// estimateByMarker extrapolates the record count from marker occurrences in
// the sample, scaled to the full file size.
func estimateByMarker(sample []byte, fileSize int64, marker []byte) int64 {
	count := int64(bytes.Count(bytes.ToLower(sample), marker))
	if count == 0 {
		return 0
	}
	if int64(len(sample)) >= fileSize {
		return count
	}
	return count * fileSize / int64(len(sample))
}

// estimateRows extrapolates the data row count from the average line length
// in the sample, minus the three header rows.
func estimateRows(sample []byte, fileSize int64) int64 {
	lines := int64(bytes.Count(sample, []byte{'\n'}))
	if lines == 0 {
		return 0
	}
	if int64(len(sample)) >= fileSize {
		if lines > 3 {
			return lines - 3
		}
		return 0
	}
	avg := int64(len(sample)) / lines
	if avg == 0 {
		return 0
	}
	est := fileSize/avg - 3
	if est < 0 {
		est = 0
	}
	return est
}
