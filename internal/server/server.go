// Package server exposes the HTTP API: lead search, enrichment, cache
// admin, and the per-user CRM pipeline. Authentication happens upstream;
// the API trusts the X-User-ID header for pipeline scoping.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/leadflow-pro/leadflow/internal/discovery"
	"github.com/leadflow-pro/leadflow/internal/enrich"
	"github.com/leadflow-pro/leadflow/internal/enrichcache"
	"github.com/leadflow-pro/leadflow/internal/pipeline"
	"github.com/leadflow-pro/leadflow/internal/searchcache"
)

// Server wires the application services into an HTTP handler.
type Server struct {
	searcher    *discovery.Searcher
	enricher    *enrich.Orchestrator
	pipe        pipeline.Store
	searchCache *searchcache.Cache
	enrichCache *enrichcache.Cache
	log         *zap.Logger
}

// New creates a Server over the given services.
func New(
	searcher *discovery.Searcher,
	enricher *enrich.Orchestrator,
	pipe pipeline.Store,
	searchCache *searchcache.Cache,
	enrichCache *enrichcache.Cache,
) *Server {
	return &Server{
		searcher:    searcher,
		enricher:    enricher,
		pipe:        pipe,
		searchCache: searchCache,
		enrichCache: enrichCache,
		log:         zap.L(),
	}
}

// Router builds the chi router with middleware and all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)

		r.Post("/enrich", s.handleEnrich)
		r.Post("/enrich/bulk", s.handleEnrichBulk)
		r.Get("/enrich/status", s.handleEnrichStatus)

		r.Route("/cache", func(r chi.Router) {
			r.Get("/search/stats", s.handleSearchCacheStats)
			r.Get("/search/entries", s.handleSearchCacheEntries)
			r.Delete("/search", s.handleSearchCacheClear)
			r.Get("/enrichment/stats", s.handleEnrichCacheStats)
			r.Get("/enrichment/entries", s.handleEnrichCacheEntries)
			r.Delete("/enrichment", s.handleEnrichCacheClear)
		})

		r.Route("/pipeline", func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/leads", s.handlePipelineAdd)
			r.Get("/leads", s.handlePipelineList)
			r.Get("/stats", s.handlePipelineStats)
			r.Get("/leads/{id}", s.handlePipelineGet)
			r.Patch("/leads/{id}", s.handlePipelineUpdate)
			r.Post("/leads/{id}/stage", s.handlePipelineStage)
			r.Post("/leads/{id}/contact", s.handlePipelineContact)
			r.Delete("/leads/{id}", s.handlePipelineDelete)
			r.Get("/leads/{id}/activities", s.handlePipelineActivities)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
