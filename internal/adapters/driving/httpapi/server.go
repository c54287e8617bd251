// Package httpapi exposes search, ask and sync over HTTP for serve mode.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driving"
	"github.com/trawlhq/trawl/internal/logger"
)

// shutdownTimeout bounds how long in-flight requests may run once the
// serve context is cancelled.
const shutdownTimeout = 5 * time.Second

// IndexStore is the slice of the store the API reads.
type IndexStore interface {
	Ping(ctx context.Context) error
	CountChunks(ctx context.Context) (int, error)
}

// Server serves the HTTP API. Any dependency may be nil; the routes that
// need it answer 503 instead of panicking, so a partially configured
// installation still serves /healthz.
type Server struct {
	server *http.Server
	store  IndexStore
	search driving.Searcher
	ask    driving.Asker
	runner driving.SyncRunner
}

// NewServer assembles the router.
func NewServer(addr string, store IndexStore, search driving.Searcher, ask driving.Asker, runner driving.SyncRunner) *Server {
	s := &Server{
		store:  store,
		search: search,
		ask:    ask,
		runner: runner,
	}

	r := mux.NewRouter()
	r.Use(logRequests)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)
	api.HandleFunc("/ask", s.handleAsk).Methods(http.MethodPost)
	api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens and serves until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	logger.Info("HTTP API listening on %s", listener.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Wire types. The domain structs stay off the wire so field renames do
// not silently change the API.

type searchRequest struct {
	Query        string `json:"query"`
	Limit        int    `json:"limit"`
	ProviderType string `json:"provider_type"`
	ProviderName string `json:"provider_name"`
}

type chunkResult struct {
	DocumentID   string  `json:"document_id"`
	Filename     string  `json:"filename"`
	ProviderType string  `json:"provider_type"`
	ProviderName string  `json:"provider_name"`
	Position     int     `json:"position"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type askResponse struct {
	Answer  string        `json:"answer"`
	Model   string        `json:"model"`
	Sources []chunkResult `json:"sources"`
}

type syncRequest struct {
	ProviderType string `json:"provider_type"`
	ProviderName string `json:"provider_name"`
}

type statusResponse struct {
	Chunks    int          `json:"chunks"`
	Running   bool         `json:"running"`
	RunID     string       `json:"run_id,omitempty"`
	Current   string       `json:"current,omitempty"`
	StartedAt *time.Time   `json:"started_at,omitempty"`
	LastRun   *lastRunInfo `json:"last_run,omitempty"`
}

type lastRunInfo struct {
	RunID      string    `json:"run_id"`
	FinishedAt time.Time `json:"finished_at"`
	Indexed    int       `json:"indexed"`
	Removed    int       `json:"removed"`
	Failed     int       `json:"failed"`
}

// Handlers.

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusServiceUnavailable, errors.New("store not configured"))
		return
	}
	if err := s.store.Ping(r.Context()); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.store == nil || s.runner == nil {
		s.respondError(w, http.StatusServiceUnavailable, errors.New("sync is not available"))
		return
	}

	chunks, err := s.store.CountChunks(r.Context())
	if err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}

	status := s.runner.Status()
	resp := statusResponse{
		Chunks:  chunks,
		Running: status.Running,
		RunID:   status.RunID,
		Current: status.Current,
	}
	if status.Running {
		startedAt := status.StartedAt
		resp.StartedAt = &startedAt
	}
	if status.LastReport != nil {
		report := status.LastReport
		resp.LastRun = &lastRunInfo{
			RunID:      report.RunID,
			FinishedAt: report.FinishedAt,
			Indexed:    report.TotalIndexed(),
			Removed:    report.TotalRemoved(),
			Failed:     report.TotalFailed(),
		}
	}
	s.respond(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		s.respondError(w, http.StatusServiceUnavailable, errors.New("search is not available; configure an embedding provider"))
		return
	}

	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	opts := domain.SearchOptions{Limit: req.Limit}
	if req.ProviderType != "" {
		providerType := domain.ProviderType(req.ProviderType)
		if !providerType.IsValid() {
			s.respondError(w, http.StatusBadRequest, fmt.Errorf("unknown provider type %q", req.ProviderType))
			return
		}
		opts.ProviderType = providerType
		opts.ProviderName = req.ProviderName
	}

	results, err := s.search.Search(r.Context(), req.Query, opts)
	if err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"results": toChunkResults(results)})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.ask == nil {
		s.respondError(w, http.StatusServiceUnavailable, errors.New("ask is not available; configure an LLM provider"))
		return
	}

	var req askRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	answer, err := s.ask.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}
	s.respond(w, http.StatusOK, askResponse{
		Answer:  answer.Text,
		Model:   answer.Model,
		Sources: toChunkResults(answer.Sources),
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.respondError(w, http.StatusServiceUnavailable, errors.New("sync is not available"))
		return
	}

	var req syncRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	run := s.runner.Run
	if req.ProviderType != "" {
		providerType := domain.ProviderType(req.ProviderType)
		if !providerType.IsValid() {
			s.respondError(w, http.StatusBadRequest, fmt.Errorf("unknown provider type %q", req.ProviderType))
			return
		}
		if req.ProviderName == "" {
			s.respondError(w, http.StatusBadRequest, errors.New("provider_name is required with provider_type"))
			return
		}
		run = func(ctx context.Context) (*domain.SyncReport, error) {
			return s.runner.RunProvider(ctx, providerType, req.ProviderName)
		}
	}

	// The engine serialises runs itself; this check just gives the
	// common case a clean 409 instead of a logged failure.
	if s.runner.Status().Running {
		s.respondError(w, http.StatusConflict, domain.ErrSyncInProgress)
		return
	}

	// The run outlives the request, so it gets its own context.
	go func() {
		if _, err := run(context.Background()); err != nil {
			logger.Warn("HTTP-triggered sync failed: %v", err)
		}
	}()
	s.respond(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Helpers.

func toChunkResults(results []domain.SearchResult) []chunkResult {
	out := make([]chunkResult, 0, len(results))
	for _, res := range results {
		out = append(out, chunkResult{
			DocumentID:   res.Chunk.DocumentID,
			Filename:     res.Chunk.Filename,
			ProviderType: res.Chunk.ProviderType.String(),
			ProviderName: res.Chunk.ProviderName,
			Position:     res.Chunk.Position,
			Text:         res.Chunk.Text,
			Score:        res.Score,
		})
	}
	return out
}

// decodeBody tolerates an empty body; required fields are the handlers'
// concern.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		//nolint:errcheck,errchkjson // headers are sent; nothing left to do
		_ = json.NewEncoder(w).Encode(data)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.respond(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrLLMUnavailable),
		errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("HTTP %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
