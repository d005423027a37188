package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-archive/internal/archive"
	"github.com/JakeFAU/magazine-archive/internal/config"
	"github.com/JakeFAU/magazine-archive/internal/ingest"
	"github.com/JakeFAU/magazine-archive/internal/metrics"
	"github.com/JakeFAU/magazine-archive/internal/query"
)

// Catalog answers read queries over stored issues.
type Catalog interface {
	List(ctx context.Context) ([]archive.Issue, error)
	Search(ctx context.Context, q string) ([]query.Result, error)
	GetByIdentifier(ctx context.Context, key string) (archive.Issue, error)
}

// IngestStarter begins an ingestion run in the background.
type IngestStarter interface {
	Start(ctx context.Context) (string, <-chan archive.RunReport, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies groups the collaborators of a Server. Ingest and Ready may be nil.
type Dependencies struct {
	Catalog Catalog
	Ingest  IngestStarter
	Ready   Pinger
}

// Server wires HTTP handlers to the query service and the orchestrator.
type Server struct {
	router  chi.Router
	deps    Dependencies
	cfg     config.Config
	logger  *zap.Logger
	baseCtx context.Context
}

// NewServer constructs a Server with middleware and routes. Ingestion runs
// started over HTTP use baseCtx so they outlive the request.
func NewServer(baseCtx context.Context, deps Dependencies, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:    deps,
		cfg:     cfg,
		logger:  logger.Named("api"),
		baseCtx: baseCtx,
	}
	timeout := config.Seconds(cfg.Server.RequestTimeoutSeconds)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))
		r.Route("/magazines", func(r chi.Router) {
			r.Get("/", s.listMagazines)
			r.Get("/search", s.searchMagazines)
			r.Get("/{idOrSlug}", s.getMagazine)
		})
	})

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/ingest", s.startIngest)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready.Ping(ctx); err != nil {
			s.logger.Warn("Readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listMagazines(w http.ResponseWriter, r *http.Request) {
	issues, err := s.deps.Catalog.List(r.Context())
	if err != nil {
		s.internalError(w, r, "list magazines", err)
		return
	}
	out := make([]magazineSummary, 0, len(issues))
	for _, issue := range issues {
		out = append(out, s.summary(issue))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) searchMagazines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	results, err := s.deps.Catalog.Search(r.Context(), q)
	if err != nil {
		s.internalError(w, r, "search magazines", err)
		return
	}
	out := make([]searchResult, 0, len(results))
	for _, res := range results {
		out = append(out, searchResult{
			ID:          res.Issue.ID,
			Title:       res.Issue.Title,
			Date:        formatDate(res.Issue.PublicationDate),
			DocumentKey: res.Issue.DocumentKey,
			Snippet:     res.Snippet,
			DocumentURL: s.cfg.DocumentURL(res.Issue.DocumentKey),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getMagazine(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "idOrSlug")
	issue, err := s.deps.Catalog.GetByIdentifier(r.Context(), key)
	if errors.Is(err, archive.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Magazine not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "get magazine", err)
		return
	}
	writeJSON(w, http.StatusOK, magazineDetail{
		magazineSummary: s.summary(issue),
		ExtractedText:   issue.ExtractedText,
	})
}

func (s *Server) startIngest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingest == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion is not configured")
		return
	}
	runID, _, err := s.deps.Ingest.Start(s.baseCtx)
	if errors.Is(err, ingest.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, "start ingestion", err)
		return
	}
	s.logger.Info("Ingestion run started via API", zap.String("run_id", runID), zap.String("request_id", RequestID(r.Context())))
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "started"})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error("Request failed",
		zap.String("op", op),
		zap.String("request_id", RequestID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func (s *Server) summary(issue archive.Issue) magazineSummary {
	out := magazineSummary{
		ID:          issue.ID,
		Title:       issue.Title,
		Date:        formatDate(issue.PublicationDate),
		DocumentKey: issue.DocumentKey,
		CoverImage:  issue.CoverImageURL,
		HasText:     issue.HasText(),
		DocumentURL: s.cfg.DocumentURL(issue.DocumentKey),
	}
	if strings.TrimSpace(issue.Summary) != "" {
		summary := issue.Summary
		out.Summary = &summary
	}
	return out
}

type magazineSummary struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Date        string  `json:"date"`
	DocumentKey string  `json:"documentKey"`
	CoverImage  *string `json:"coverImage,omitempty"`
	Summary     *string `json:"summary,omitempty"`
	HasText     bool    `json:"hasText"`
	DocumentURL string  `json:"documentURL"`
}

type magazineDetail struct {
	magazineSummary
	ExtractedText string `json:"extractedText"`
}

type searchResult struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	DocumentKey string `json:"documentKey"`
	Snippet     string `json:"snippet"`
	DocumentURL string `json:"documentURL"`
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
