package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oselabs/scout/internal/pipeline"
	"github.com/oselabs/scout/internal/report"
	"github.com/oselabs/scout/internal/server"
	"github.com/oselabs/scout/internal/storage"
)

var (
	searchLimit   int
	searchEnrich  bool
	searchOutput  string
	searchSummary string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a one-shot discovery for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum pages to crawl")
	searchCmd.Flags().BoolVar(&searchEnrich, "enrich", false, "deduplicate and enrich results")
	searchCmd.Flags().StringVarP(&searchOutput, "output", "o", "", "write results to file (.csv or .json)")
	searchCmd.Flags().StringVar(&searchSummary, "summary", "text", "summary format: text or json")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	query := strings.Join(args, " ")

	var companies []*storage.Company
	for ev := range a.runner.Run(ctx, query, searchLimit) {
		switch ev.Type {
		case pipeline.EventStatus:
			logger.Info(ev.Message)
		case pipeline.EventError:
			logger.Error(ev.Message)
		case pipeline.EventCompany:
			companies = append(companies, ev.Company)
			fmt.Printf("%s\t%s\t%s\t%s\n", ev.Company.Name, ev.Company.Website, ev.Company.Email, ev.Company.Phone)
		}
	}

	if searchEnrich && len(companies) > 0 {
		enriched := companies[:0:0]
		for ev := range a.engine.Enrich(ctx, companies) {
			switch ev.Type {
			case pipeline.EventStatus:
				logger.Info(ev.Message)
			case pipeline.EventCompany:
				enriched = append(enriched, ev.Company)
			}
		}
		companies = enriched
	}

	if a.store != nil {
		for _, c := range companies {
			if err := a.store.Save(ctx, c); err != nil {
				logger.Error("persist company", "company", c.Name, "err", err)
			}
		}
	}

	if searchOutput != "" {
		if err := writeOutput(searchOutput, companies); err != nil {
			return err
		}
		logger.Info("results written", "path", searchOutput, "companies", len(companies))
	}

	summary := report.GenerateSummary(query, companies)
	if searchSummary == "json" {
		return report.WriteJSON(os.Stderr, summary)
	}
	return report.WriteText(os.Stderr, summary)
}

func writeOutput(path string, companies []*storage.Company) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(path, ".json") {
		return server.WriteJSON(f, companies)
	}
	return server.WriteCSV(f, companies)
}
