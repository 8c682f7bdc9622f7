package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oselabs/scout/internal/pipeline"
	"github.com/oselabs/scout/internal/storage"
)

// RunFunc starts a discovery run and returns its event stream.
type RunFunc func(ctx context.Context, query string, limit int) <-chan pipeline.Event

// EnrichFunc enriches previously discovered companies and returns the stream.
type EnrichFunc func(ctx context.Context, companies []*storage.Company) <-chan pipeline.Event

// Config for the HTTP API server.
type Config struct {
	Addr string
	// Store, when set, persists final company records after each run.
	Store  storage.Backend
	Logger *slog.Logger
}

// Server exposes the discovery pipeline over HTTP: search and enrichment as
// server-sent event streams, plus CSV/JSON downloads of the latest results.
// Results are held per session, keyed by the X-Session-ID header.
type Server struct {
	run    RunFunc
	enrich EnrichFunc
	store  storage.Backend
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string][]*storage.Company

	http *http.Server
}

// New creates an API server around the given pipeline entry points.
func New(run RunFunc, enrich EnrichFunc, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		run:      run,
		enrich:   enrich,
		store:    cfg.Store,
		logger:   cfg.Logger,
		sessions: make(map[string][]*storage.Company),
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/search", s.handleSearch)
	r.Post("/enrich", s.handleEnrich)
	r.Get("/download/{format}", s.handleDownload)

	return r
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type searchRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NumResults <= 0 {
		req.NumResults = 10
	}

	session := sessionID(r)
	collected := s.streamEvents(w, r, s.run(r.Context(), req.Query, req.NumResults))

	s.mu.Lock()
	s.sessions[session] = collected
	s.mu.Unlock()

	s.persist(collected)
}

type enrichRequest struct {
	Companies []*storage.Company `json:"companies"`
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)

	// The caller may post an explicit record set; otherwise the session's
	// last search results are enriched.
	var req enrichRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	companies := req.Companies
	if len(companies) == 0 {
		s.mu.RLock()
		companies = s.sessions[session]
		s.mu.RUnlock()
	}

	if len(companies) == 0 {
		httpError(w, http.StatusNotFound, "no search results to enrich")
		return
	}

	collected := s.streamEvents(w, r, s.enrich(r.Context(), companies))
	if len(collected) > 0 {
		s.mu.Lock()
		s.sessions[session] = collected
		s.mu.Unlock()
		s.persist(collected)
	}
}

// streamEvents forwards pipeline events to the client as server-sent events
// and collects the company records seen along the way. A client disconnect
// cancels the request context, which stops the producing pipeline.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, events <-chan pipeline.Event) []*storage.Company {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "streaming unsupported")
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var collected []*storage.Company
	for {
		select {
		case ev, open := <-events:
			if !open {
				return collected
			}
			if ev.Type == pipeline.EventCompany && ev.Company != nil {
				collected = append(collected, ev.Company)
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("marshal event", "err", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return collected
			}
			flusher.Flush()
		case <-r.Context().Done():
			// Drain so the producer is not blocked while it notices the
			// cancellation.
			for range events {
			}
			return collected
		}
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)

	s.mu.RLock()
	companies := s.sessions[session]
	s.mu.RUnlock()

	if len(companies) == 0 {
		httpError(w, http.StatusNotFound, "no results available")
		return
	}

	switch chi.URLParam(r, "format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="companies.csv"`)
		if err := WriteCSV(w, companies); err != nil {
			s.logger.Error("write csv download", "err", err)
		}
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="companies.json"`)
		if err := WriteJSON(w, companies); err != nil {
			s.logger.Error("write json download", "err", err)
		}
	default:
		httpError(w, http.StatusBadRequest, "format must be csv or json")
	}
}

func (s *Server) persist(companies []*storage.Company) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, c := range companies {
		if err := s.store.Save(ctx, c); err != nil {
			s.logger.Error("persist company", "company", c.Name, "err", err)
		}
	}
}

func sessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Session-ID")); id != "" {
		return id
	}
	return "default"
}

func httpError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
