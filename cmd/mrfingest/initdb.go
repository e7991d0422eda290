package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/mrfingest/internal/exitcode"
	"github.com/gyeh/mrfingest/internal/logging"
	"github.com/gyeh/mrfingest/internal/store"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Apply database schema migrations",
	RunE:  runInitDB,
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}

func runInitDB(cmd *cobra.Command, args []string) error {
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

	if err := st.Migrate(ctx); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(exitcode.PipelineFatal)
	}

	log.Info().Msg("all migrations applied successfully")
	return nil
}
