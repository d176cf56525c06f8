package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leadflow-pro/leadflow/internal/discovery"
	"github.com/leadflow-pro/leadflow/internal/enrich"
	"github.com/leadflow-pro/leadflow/internal/model"
	"github.com/leadflow-pro/leadflow/internal/pipeline"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get("category")
	location := q.Get("location")
	if category == "" || location == "" {
		writeError(w, http.StatusBadRequest, "category and location are required")
		return
	}

	opts := discovery.SearchOptions{}
	if raw := q.Get("min_rating"); raw != "" {
		minRating, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_rating must be a number")
			return
		}
		opts.MinRating = minRating
	}

	leads, fromCache, err := s.searcher.Search(r.Context(), category, location, opts)
	if err != nil {
		s.log.Error("search failed",
			zap.String("category", category),
			zap.String("location", location),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"leads":      leads,
		"lead_count": len(leads),
		"from_cache": fromCache,
	})
}

type enrichRequest struct {
	Website      string   `json:"website"`
	BusinessName string   `json:"business_name"`
	GoogleRating *float64 `json:"google_rating,omitempty"`
	ReviewCount  *int     `json:"review_count,omitempty"`
}

func (r enrichRequest) lead() model.Lead {
	return model.Lead{
		Website:      r.Website,
		BusinessName: r.BusinessName,
		GoogleRating: r.GoogleRating,
		ReviewCount:  r.ReviewCount,
	}
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Website == "" {
		writeError(w, http.StatusBadRequest, "website is required")
		return
	}

	scored, err := s.enricher.Enrich(r.Context(), req.lead())
	switch {
	case errors.Is(err, enrich.ErrInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "processing",
			"website": req.Website,
		})
		return
	case err != nil:
		s.log.Error("enrichment failed",
			zap.String("website", req.Website), zap.Error(err))
		writeError(w, http.StatusBadGateway, "enrichment failed")
		return
	}
	writeJSON(w, http.StatusOK, scored)
}

func (s *Server) handleEnrichBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Leads []enrichRequest `json:"leads"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Leads) == 0 {
		writeError(w, http.StatusBadRequest, "leads are required")
		return
	}

	leads := make([]model.Lead, 0, len(req.Leads))
	for _, item := range req.Leads {
		leads = append(leads, item.lead())
	}

	results, err := s.enricher.EnrichBulk(r.Context(), leads)
	if err != nil {
		s.log.Error("bulk enrichment failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "bulk enrichment failed")
		return
	}

	type bulkItem struct {
		Website string         `json:"website"`
		Scored  *enrich.Scored `json:"scored,omitempty"`
		Error   string         `json:"error,omitempty"`
	}
	out := make([]bulkItem, 0, len(results))
	for _, result := range results {
		item := bulkItem{Website: result.Lead.Website, Scored: result.Scored}
		if result.Err != nil {
			item.Error = result.Err.Error()
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (s *Server) handleEnrichStatus(w http.ResponseWriter, r *http.Request) {
	website := r.URL.Query().Get("website")
	if website == "" {
		writeError(w, http.StatusBadRequest, "website is required")
		return
	}
	record, err := s.enrichCache.Status(r.Context(), website)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "no enrichment record")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleSearchCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.searchCache.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSearchCacheEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.searchCache.Entries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing entries failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleSearchCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.searchCache.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleEnrichCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.enrichCache.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleEnrichCacheEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.enrichCache.Entries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing entries failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleEnrichCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.enrichCache.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handlePipelineAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lead          model.Lead `json:"lead"`
		LeadScore     int        `json:"lead_score"`
		ScoreCategory string     `json:"score_category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Lead.BusinessName == "" {
		writeError(w, http.StatusBadRequest, "lead.business_name is required")
		return
	}

	pl, err := s.pipe.Add(r.Context(), UserID(r.Context()), req.Lead, req.LeadScore, req.ScoreCategory)
	if err != nil {
		s.log.Error("pipeline add failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "adding lead failed")
		return
	}
	writeJSON(w, http.StatusCreated, pl)
}

func (s *Server) handlePipelineList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := pipeline.ListFilter{
		Stage: model.Stage(q.Get("stage")),
		Tag:   q.Get("tag"),
	}
	if raw := q.Get("min_score"); raw != "" {
		minScore, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_score must be an integer")
			return
		}
		filter.MinScore = minScore
	}
	if filter.Stage != "" && !filter.Stage.Valid() {
		writeError(w, http.StatusBadRequest, "unknown stage")
		return
	}

	leads, err := s.pipe.List(r.Context(), UserID(r.Context()), filter)
	if err != nil {
		s.log.Error("pipeline list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing leads failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func (s *Server) handlePipelineGet(w http.ResponseWriter, r *http.Request) {
	pl, err := s.pipe.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (s *Server) handlePipelineUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes          *string    `json:"notes,omitempty"`
		Tags           *[]string  `json:"tags,omitempty"`
		NextFollowUpAt *time.Time `json:"next_follow_up_at,omitempty"`
		LeadScore      *int       `json:"lead_score,omitempty"`
		ScoreCategory  *string    `json:"score_category,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pl, err := s.pipe.Update(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), pipeline.UpdateInput{
		Notes:          req.Notes,
		Tags:           req.Tags,
		NextFollowUpAt: req.NextFollowUpAt,
		LeadScore:      req.LeadScore,
		ScoreCategory:  req.ScoreCategory,
	})
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (s *Server) handlePipelineStage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stage model.Stage `json:"stage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Stage.Valid() {
		writeError(w, http.StatusBadRequest, "unknown stage")
		return
	}

	pl, err := s.pipe.UpdateStage(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), req.Stage)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (s *Server) handlePipelineContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method model.ContactMethod `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Method.Valid() {
		writeError(w, http.StatusBadRequest, "unknown contact method")
		return
	}

	pl, err := s.pipe.RecordContact(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), req.Method)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (s *Server) handlePipelineDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.pipe.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handlePipelineStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.pipe.StageCounts(r.Context(), UserID(r.Context()))
	if err != nil {
		s.log.Error("pipeline stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "pipeline stats failed")
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":    total,
		"by_stage": counts,
	})
}

func (s *Server) handlePipelineActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := s.pipe.Activities(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}

func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrNotFound) {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	s.log.Error("pipeline operation failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "pipeline operation failed")
}
