package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/mrfingest/internal/exitcode"
	"github.com/gyeh/mrfingest/internal/export"
	"github.com/gyeh/mrfingest/internal/logging"
	"github.com/gyeh/mrfingest/internal/store"
)

var (
	exportOut      string
	exportHospital string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export charge documents to a Parquet file",
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportOut, "out", "", "Output Parquet path (required)")
	f.StringVar(&exportHospital, "hospital", "", "Limit to one hospital id (default: all)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, verbose)
	ctx := context.Background()

	if err := cfg.RequireDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	st, err := store.Connect(ctx, cfg.DSN, log)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer st.Close()

	n, err := export.Run(ctx, st.StreamExportRows, exportHospital, exportOut, log)
	if err != nil {
		log.Error().Err(err).Msg("export failed")
		os.Exit(exitcode.PipelineFatal)
	}

	fmt.Printf("Exported %d rows to %s\n", n, exportOut)
	return nil
}
