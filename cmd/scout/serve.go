package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oselabs/scout/internal/metrics"
	"github.com/oselabs/scout/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	var metricsServer *metrics.Server
	if cfg.Server.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.Server.MetricsAddr, logger)
		metricsServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Stop(shutdownCtx)
		}()
	}

	srv := server.New(a.runner.Run, a.engine.Enrich, server.Config{
		Addr:   cfg.Server.Addr,
		Store:  a.store,
		Logger: logger,
	})

	return srv.ListenAndServe(ctx)
}
