package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/mrfingest/internal/config"
	"github.com/gyeh/mrfingest/internal/exitcode"
)

var (
	cfg     config.Config
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mrfingest",
	Short: "Hospital standard-charges file loader",
	Long: "Parses hospital price-transparency disclosure files (JSON and CSV machine-readable\n" +
		"files) and loads them into Postgres as flat, queryable charge documents.",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", config.DSNFromEnv(), "Postgres connection string (or set "+config.EnvDSN+")")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.UsageError)
	}
}
