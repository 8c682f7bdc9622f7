package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oselabs/scout/internal/pipeline"
	"github.com/oselabs/scout/internal/storage"
)

var (
	enrichLimit  int
	enrichOutput string
	enrichSave   bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Deduplicate and enrich stored results",
	Long: `Load previously discovered companies from the configured storage backend,
merge duplicates, fill missing contact fields via contact-page and search
lookups, and write the enriched set out.`,
	Args: cobra.NoArgs,
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().IntVarP(&enrichLimit, "limit", "n", 0, "maximum stored records to load (0 = all)")
	enrichCmd.Flags().StringVarP(&enrichOutput, "output", "o", "", "write enriched results to file (.csv or .json)")
	enrichCmd.Flags().BoolVar(&enrichSave, "save", false, "write enriched records back to storage")
	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if a.store == nil {
		return fmt.Errorf("enrich requires a storage backend, configure storage.backend")
	}

	companies, err := a.store.Query(ctx, storage.Filter{Limit: enrichLimit})
	if err != nil {
		return fmt.Errorf("load stored results: %w", err)
	}
	if len(companies) == 0 {
		logger.Info("nothing to enrich")
		return nil
	}
	logger.Info("enriching stored results", "companies", len(companies))

	enriched := companies[:0:0]
	for ev := range a.engine.Enrich(ctx, companies) {
		switch ev.Type {
		case pipeline.EventStatus:
			logger.Info(ev.Message)
		case pipeline.EventError:
			logger.Error(ev.Message)
		case pipeline.EventCompany:
			enriched = append(enriched, ev.Company)
			fmt.Printf("%s\t%s\t%s\t%s\n", ev.Company.Name, ev.Company.Website, ev.Company.Email, ev.Company.Phone)
		}
	}

	if enrichSave {
		for _, c := range enriched {
			if err := a.store.Save(ctx, c); err != nil {
				logger.Error("persist company", "company", c.Name, "err", err)
			}
		}
	}

	if enrichOutput != "" {
		if err := writeOutput(enrichOutput, enriched); err != nil {
			return err
		}
		logger.Info("results written", "path", enrichOutput, "companies", len(enriched))
	} else if enrichSave {
		logger.Info("enriched records saved", "companies", len(enriched))
	}
	return nil
}
