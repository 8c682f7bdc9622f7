package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oselabs/scout/internal/server"
	"github.com/oselabs/scout/internal/storage"
)

var (
	exportWebsite string
	exportSince   string
	exportLimit   int
	exportOffset  int
	exportOutput  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored results as CSV or JSON",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportWebsite, "website", "", "only records matching this website")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only records newer than this (2006-01-02 or a duration like 24h)")
	exportCmd.Flags().IntVarP(&exportLimit, "limit", "n", 0, "maximum records (0 = all)")
	exportCmd.Flags().IntVar(&exportOffset, "offset", 0, "records to skip")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout; .json selects JSON")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("export requires a storage backend, configure storage.backend")
	}
	defer store.Close()

	filter := storage.Filter{
		Website: exportWebsite,
		Limit:   exportLimit,
		Offset:  exportOffset,
	}
	if exportSince != "" {
		since, err := parseSince(exportSince)
		if err != nil {
			return err
		}
		filter.Since = &since
	}

	companies, err := store.Query(ctx, filter)
	if err != nil {
		return fmt.Errorf("query storage: %w", err)
	}

	if exportOutput != "" {
		if err := writeOutput(exportOutput, companies); err != nil {
			return err
		}
		logger.Info("export written", "path", exportOutput, "companies", len(companies))
		return nil
	}
	return server.WriteCSV(os.Stdout, companies)
}

// parseSince accepts a date or a look-back duration.
func parseSince(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return time.Now().Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid --since value %q", s)
}
