package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/mrfingest/internal/exitcode"
	"github.com/gyeh/mrfingest/internal/logging"
	"github.com/gyeh/mrfingest/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print store-level aggregates",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	stats, err := st.Stats(ctx)
	if err != nil {
		log.Error().Err(err).Msg("stats query failed")
		os.Exit(exitcode.PipelineFatal)
	}

	fmt.Println("=== mrfingest stats ===")
	fmt.Printf("Hospitals:     %d\n", stats.Hospitals)
	fmt.Printf("Charges:       %d\n", stats.Charges)
	fmt.Printf("Modifiers:     %d\n", stats.Modifiers)
	fmt.Printf("Payer entries: %d\n", stats.PayerEntries)
	if stats.LastIngested != nil {
		fmt.Printf("Last ingested: %s\n", stats.LastIngested.Format("2006-01-02 15:04:05"))
	}

	if len(stats.CodeTypes) > 0 {
		fmt.Println("\nCharges by code type:")
		for _, ct := range stats.CodeTypes {
			fmt.Printf("  %-10s %8d\n", ct.CodeType, ct.Charges)
		}
	}

	if len(stats.TopHospitals) > 0 {
		fmt.Println("\nLargest hospitals:")
		for _, h := range stats.TopHospitals {
			fmt.Printf("  %-30s %8d charges  %5d modifiers  (%s)\n",
				h.HospitalID, h.Charges, h.Modifiers, h.IngestedAt.Format("2006-01-02"))
		}
	}
	return nil
}
