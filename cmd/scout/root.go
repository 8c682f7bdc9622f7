package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/oselabs/scout/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "Company contact discovery pipeline",
	Long: `scout finds company contact information for a query: it runs a
metasearch, filters the results with a language model, crawls the relevant
pages, and extracts structured company records.

Example usage:
  scout serve                          # Run the HTTP API
  scout search "solar installers nyc"  # One-shot discovery run
  scout enrich --save                  # Enrich stored results
  scout export -o leads.csv            # Export stored results`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is scout.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case cfg.Logging.Level == "debug":
		level = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		level = slog.LevelWarn
	case cfg.Logging.Level == "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	slog.SetDefault(logger)
	return nil
}
