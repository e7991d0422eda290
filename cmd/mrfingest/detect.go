package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyeh/mrfingest/internal/detect"
	"github.com/gyeh/mrfingest/internal/exitcode"
	"github.com/gyeh/mrfingest/internal/logging"
	"github.com/gyeh/mrfingest/internal/model"
	"github.com/gyeh/mrfingest/internal/normalize"
	"github.com/gyeh/mrfingest/internal/parse"
)

const previewRecords = 3

var detectCmd = &cobra.Command{
	Use:   "detect <file-or-dir>",
	Short: "Classify files and preview sample records without a database",
	Args:  cobra.ExactArgs(1),
	RunE:  runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, verbose)
	path := args[0]

	info, err := os.Stat(path)
	if err != nil {
		log.Error().Err(err).Msg("path not accessible")
		os.Exit(exitcode.UsageError)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = listFiles(path)
		if err != nil {
			log.Error().Err(err).Msg("directory scan failed")
			os.Exit(exitcode.UsageError)
		}
		if len(files) == 0 {
			log.Error().Str("dir", path).Msg("no ingestible files found")
			os.Exit(exitcode.UsageError)
		}
	}

	failed := 0
	for _, f := range files {
		if err := previewFile(f); err != nil {
			fmt.Printf("\n%s\n  ERROR: %v\n", filepath.Base(f), err)
			failed++
		}
	}

	if failed == len(files) {
		os.Exit(exitcode.PipelineFatal)
	}
	if failed > 0 {
		os.Exit(exitcode.PartialSuccess)
	}
	return nil
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".csv":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func previewFile(path string) error {
	det, err := detect.File(path)
	if err != nil {
		return err
	}

	fmt.Printf("\n%s\n", filepath.Base(path))
	fmt.Printf("  hospital id:   %s\n", normalize.HospitalIDFromFilename(path))
	fmt.Printf("  format:        %s\n", det.Format)
	fmt.Printf("  version:       %s\n", det.Version)
	if det.Vendor != "" {
		fmt.Printf("  vendor:        %s\n", det.Vendor)
	}
	fmt.Printf("  size:          %d bytes\n", det.FileSize)
	fmt.Printf("  est. records:  ~%d\n", det.EstimatedRecords)

	var records []*model.RawCharge
	cb := parse.Callbacks{
		OnCharge: func(rec *model.RawCharge, _ int) error {
			records = append(records, rec)
			return nil
		},
	}
	if _, err := parse.File(path, det.Format, cb, parse.Options{MaxItems: previewRecords}); err != nil {
		return err
	}

	if len(records) > 0 {
		fmt.Println("  sample records:")
	}
	for _, rec := range records {
		code := "(no code)"
		if c, ok := normalize.PrimaryCode(rec.Codes, normalize.DefaultCodePriority); ok {
			code = c.Code
			if c.Type != "" {
				code += " " + c.Type
			}
		}
		settings := make([]string, 0, len(rec.Scopes))
		gross := "-"
		for _, sc := range rec.Scopes {
			settings = append(settings, sc.Setting)
			if g := sc.Gross(); g != nil && gross == "-" {
				gross = fmt.Sprintf("%.2f", *g)
			}
		}
		fmt.Printf("    %-40.40s  %-14s  %-20s  gross %s\n",
			rec.Description, code, strings.Join(settings, ","), gross)
	}
	return nil
}
