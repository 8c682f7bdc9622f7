package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oselabs/scout/internal/config"
	"github.com/oselabs/scout/internal/enrich"
	"github.com/oselabs/scout/internal/extract"
	"github.com/oselabs/scout/internal/fetch"
	"github.com/oselabs/scout/internal/fingerprint"
	"github.com/oselabs/scout/internal/llm"
	"github.com/oselabs/scout/internal/pipeline"
	"github.com/oselabs/scout/internal/relevance"
	"github.com/oselabs/scout/internal/search"
	"github.com/oselabs/scout/internal/storage"
	"github.com/oselabs/scout/internal/storage/csvbackend"
	"github.com/oselabs/scout/internal/storage/jsonbackend"
	"github.com/oselabs/scout/internal/storage/postgres"
	"github.com/oselabs/scout/internal/storage/sqlite"
	"github.com/oselabs/scout/pkg/proxy"
	"github.com/oselabs/scout/pkg/ratelimit"
)

// app holds the wired pipeline and its cleanup hooks.
type app struct {
	runner  *pipeline.Runner
	engine  *enrich.Engine
	store   storage.Backend
	limiter *ratelimit.Limiter
}

func (a *app) close() {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Error("close storage", "err", err)
		}
	}
}

// buildApp assembles the pipeline from configuration. The model client is
// optional: without an API key, relevance filtering accepts everything and
// extraction runs on markup heuristics alone.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	searcher, err := search.NewSearxNG(search.Config{
		Endpoint: cfg.Search.Endpoint,
		Timeout:  cfg.Search.Timeout,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("search client: %w", err)
	}

	var model *llm.Client
	if cfg.Model.APIKey != "" {
		model, err = llm.New(ctx, llm.Config{
			APIKey:            cfg.Model.APIKey,
			Model:             cfg.Model.Model,
			BaseURL:           cfg.Model.BaseURL,
			RequestsPerSecond: cfg.Model.RequestsPerSecond,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("model client: %w", err)
		}
	} else {
		logger.Warn("no model api key configured, running without relevance filtering and model extraction")
	}

	var judge relevance.Judge
	if model != nil {
		judge = model
	}
	filter := relevance.New(judge, relevance.Config{
		BatchSize: cfg.Relevance.BatchSize,
		FailOpen:  cfg.Relevance.FailOpen,
		Logger:    logger,
	})

	var browser *fetch.BrowserClient
	if cfg.Browser.Endpoint != "" {
		browser, err = fetch.NewBrowserClient(fetch.BrowserConfig{
			Endpoint:    cfg.Browser.Endpoint,
			PageTimeout: cfg.Browser.PageTimeout,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("browser client: %w", err)
		}
	}

	var proxies *proxy.Pool
	if cfg.Fetch.ProxyFile != "" {
		proxies = proxy.NewPool(proxy.Config{})
		if err := proxies.LoadFile(cfg.Fetch.ProxyFile); err != nil {
			return nil, fmt.Errorf("load proxies: %w", err)
		}
	}

	limiter := ratelimit.NewLimiter(cfg.Fetch.RequestsPerSecond, cfg.Fetch.Jitter)

	direct, err := fetch.NewDirectFetcher(fetch.DirectConfig{
		Timeout:       cfg.Fetch.Timeout,
		UseCookieJar:  true,
		ProxyPool:     proxies,
		Fingerprint:   fingerprint.Profile(cfg.Fetch.Fingerprint),
		Limiter:       limiter,
		RespectRobots: cfg.Fetch.RespectRobots,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("direct fetcher: %w", err)
	}

	var primary fetch.ScriptedProvider
	if browser != nil {
		primary = browser
	}
	chain := fetch.NewChain(primary, direct, logger)

	var companyModel extract.CompanyModel
	if model != nil {
		companyModel = model
	}
	extractor := extract.NewLLMExtractor(companyModel, logger)

	orchestrator := pipeline.NewOrchestrator(chain, extractor, pipeline.OrchestratorConfig{
		Concurrency: cfg.Crawl.Concurrency,
		MaxPages:    cfg.Crawl.MaxPages,
		PageTimeout: cfg.Crawl.PageTimeout,
		Logger:      logger,
	})

	runner := pipeline.NewRunner(searcher, filter, orchestrator, logger)

	var contactModel enrich.ContactModel
	if model != nil {
		contactModel = model
	}
	engine := enrich.NewEngine(
		searcher,
		contactModel,
		fetch.NewContactLocator(direct, logger),
		chain,
		extractor,
		enrich.EngineConfig{
			Concurrency:   cfg.Enrich.Concurrency,
			SnippetLimit:  cfg.Enrich.SnippetLimit,
			LookupTimeout: cfg.Enrich.LookupTimeout,
			Logger:        logger,
		},
	)

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		limiter.Stop()
		return nil, err
	}

	return &app{runner: runner, engine: engine, store: store, limiter: limiter}, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "none", "":
		return nil, nil
	case "csv":
		return csvbackend.New(cfg.DSN)
	case "json":
		return jsonbackend.New(cfg.DSN)
	case "sqlite":
		return sqlite.New(cfg.DSN)
	case "postgres":
		return postgres.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
