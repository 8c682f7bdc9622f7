package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline counters. Labels stay low-cardinality: outcomes and transports,
// never URLs or queries.
var (
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scout_searches_total",
		Help: "Search runs started, by outcome.",
	}, []string{"outcome"})

	CandidatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_search_candidates_total",
		Help: "Candidate URLs returned by the search engine.",
	})

	CandidatesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_search_candidates_accepted_total",
		Help: "Candidate URLs that passed relevance filtering.",
	})

	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scout_pages_fetched_total",
		Help: "Pages fetched, by transport and outcome.",
	}, []string{"via", "outcome"})

	CompaniesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_companies_extracted_total",
		Help: "Company records produced by extraction.",
	})

	ModelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scout_model_calls_total",
		Help: "Model invocations, by purpose and outcome.",
	}, []string{"purpose", "outcome"})

	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scout_events_emitted_total",
		Help: "Pipeline events emitted, by type.",
	}, []string{"type"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scout_fetch_duration_seconds",
		Help:    "Page fetch latency, by transport.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"via"})
)

// Server exposes the /metrics endpoint.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a metrics server listening on addr.
func NewServer(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves metrics in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", "err", err)
		}
	}()
}

// Stop shuts the metrics server down.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}
