package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/mrfingest/internal/config"
	"github.com/gyeh/mrfingest/internal/exitcode"
	"github.com/gyeh/mrfingest/internal/ingest"
	"github.com/gyeh/mrfingest/internal/logging"
	"github.com/gyeh/mrfingest/internal/store"
)

var configFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-dir>",
	Short: "Parse standard-charges files and load them into the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.IntVar(&cfg.BatchSize, "batch-size", 0, "Documents per write batch (default 500)")
	f.Int64Var(&cfg.MaxRecords, "max-records", 0, "Stop after this many records per file (0 = no cap)")
	f.Int64Var(&cfg.ProgressEvery, "progress-every", 0, "Log progress every N records (default 5000)")
	f.BoolVar(&cfg.DryRun, "dry-run", false, "Parse and validate without writing")
	f.BoolVar(&cfg.SkipExisting, "skip-existing", false, "Skip files whose hospital is already loaded")
	f.BoolVar(&cfg.Clean, "clean", false, "Delete the hospital's previous rows before loading")
	f.BoolVar(&cfg.Strict, "strict", false, "Fail a file on its first bad record")
	f.StringVar(&configFile, "config", "", "Optional YAML config file")
	rootCmd.AddCommand(ingestCmd)
}

// mergeConfigFile overlays file values onto cfg for every tuning field whose
// flag was not set explicitly; flags always win.
func mergeConfigFile(cmd *cobra.Command) error {
	if configFile == "" {
		return nil
	}
	var fc config.Config
	if err := fc.LoadFromFile(configFile); err != nil {
		return err
	}
	f := cmd.Flags()
	if !f.Changed("batch-size") && fc.BatchSize > 0 {
		cfg.BatchSize = fc.BatchSize
	}
	if !f.Changed("max-records") && fc.MaxRecords > 0 {
		cfg.MaxRecords = fc.MaxRecords
	}
	if !f.Changed("progress-every") && fc.ProgressEvery > 0 {
		cfg.ProgressEvery = fc.ProgressEvery
	}
	if !rootCmd.PersistentFlags().Changed("log-format") && fc.LogFormat != "" {
		cfg.LogFormat = fc.LogFormat
	}
	cfg.Extensions = fc.Extensions
	cfg.CodePriority = fc.CodePriority
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg.Path = args[0]
	ctx := context.Background()

	if err := mergeConfigFile(cmd); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcode.UsageError)
	}
	cfg.ApplyDefaults()
	log := logging.Setup(cfg.LogFormat, verbose)

	if cfg.DryRun {
		if err := cfg.Validate(); err != nil {
			log.Error().Err(err).Msg("config validation failed")
			os.Exit(exitcode.UsageError)
		}
	} else if err := cfg.ValidateWithDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	opts := ingest.Options{
		BatchSize:     cfg.BatchSize,
		MaxRecords:    cfg.MaxRecords,
		ProgressEvery: cfg.ProgressEvery,
		DryRun:        cfg.DryRun,
		SkipExisting:  cfg.SkipExisting,
		Clean:         cfg.Clean,
		Strict:        cfg.Strict,
		CodePriority:  cfg.CodePriority,
		Extensions:    cfg.Extensions,
	}

	// A typed-nil *store.Store must not reach the Store interface, so the
	// dry-run path constructs the runner with an untyped nil.
	var r *ingest.Runner
	if cfg.DryRun {
		r = ingest.New(nil, log, opts)
	} else {
		st, err := store.Connect(ctx, cfg.DSN, log)
		if err != nil {
			log.Error().Err(err).Msg("database connection failed")
			os.Exit(exitcode.DBConnError)
		}
		defer st.Close()
		r = ingest.New(st, log, opts)
	}

	summary, err := r.Run(ctx, cfg.Path)
	if err != nil {
		log.Error().Err(err).Msg("ingest failed")
		os.Exit(exitcode.PipelineFatal)
	}

	fmt.Printf("Ingest complete: %d files (%d completed, %d failed, %d skipped)\n",
		summary.Files, summary.Completed, summary.Failed, summary.Skipped)
	fmt.Printf("  charges: %d inserted, %d updated, %d failed\n",
		summary.Charges.Inserted, summary.Charges.Updated, summary.Charges.Failed)
	fmt.Printf("  modifiers: %d inserted, %d updated, %d failed\n",
		summary.Modifiers.Inserted, summary.Modifiers.Updated, summary.Modifiers.Failed)
	fmt.Printf("  %d records, %d record errors (%.1fs, %.0f rec/s)\n",
		summary.RecordsParsed, summary.ErrorCount,
		summary.Duration.Seconds(), summary.Throughput())

	if summary.Failed > 0 {
		os.Exit(exitcode.PartialSuccess)
	}
	return nil
}
