package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gyeh/mrfingest/internal/model"
)

// Run ingests a single file or every matching file in a directory, returning
// the aggregated summary. The error covers run-level problems only (an
// unreadable path, an empty directory); per-file failures are reported in
// the summary.
func (r *Runner) Run(ctx context.Context, path string) (*model.RunSummary, error) {
	summary := model.NewRunSummary()
	run := *r
	run.log = r.log.With().Str("run_id", summary.RunID).Logger()
	start := time.Now()
	defer func() { summary.Duration = time.Since(start) }()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		summary.Add(run.RunFile(ctx, path))
		return summary, nil
	}

	files, err := run.scan(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files in %s", strings.Join(r.opts.Extensions, "/"), path)
	}
	run.log.Info().Int("files", len(files)).Str("dir", path).Msg("starting directory run")

	for _, f := range files {
		summary.Add(run.RunFile(ctx, f))
	}
	return summary, nil
}

// scan lists the directory's ingestible files in sorted order so runs are
// deterministic.
func (r *Runner) scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range r.opts.Extensions {
			if ext == want {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
