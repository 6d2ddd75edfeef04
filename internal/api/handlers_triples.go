package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jbpayton/sophia-ams/internal/assoc"
	"github.com/jbpayton/sophia-ams/internal/extraction"
	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/triples"
)

type TripleHandler struct {
	svc       *triples.Service
	extractor extraction.Extractor
	retriever *assoc.Retriever
}

func NewTripleHandler(svc *triples.Service, extractor extraction.Extractor, retriever *assoc.Retriever) *TripleHandler {
	return &TripleHandler{svc: svc, extractor: extractor, retriever: retriever}
}

// IngestText extracts triples from free text and stores them.
// POST /api/ingest
func (h *TripleHandler) IngestText(w http.ResponseWriter, r *http.Request) {
	var req models.IngestTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if h.extractor == nil {
		writeError(w, http.StatusServiceUnavailable, "extraction is disabled")
		return
	}

	candidates, err := h.extractor.Extract(r.Context(), req.Text)
	if err != nil {
		writeError(w, http.StatusBadGateway, "extraction failed: "+err.Error())
		return
	}
	for i := range candidates {
		if req.Source != "" {
			candidates[i].Source = req.Source
		}
		if req.EpisodeID != "" {
			candidates[i].EpisodeID = req.EpisodeID
		}
	}

	stored, skipped := h.svc.Ingest(r.Context(), candidates)
	writeJSON(w, http.StatusOK, models.IngestResponse{Stored: stored, Skipped: skipped})
}

// IngestTriples stores pre-structured triple candidates.
// POST /api/triples
func (h *TripleHandler) IngestTriples(w http.ResponseWriter, r *http.Request) {
	var req models.IngestTriplesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Triples) == 0 {
		writeError(w, http.StatusBadRequest, "triples is required")
		return
	}

	stored, skipped := h.svc.Ingest(r.Context(), req.Triples)
	writeJSON(w, http.StatusOK, models.IngestResponse{Stored: stored, Skipped: skipped})
}

// Query runs a similarity search blended with predicate weight and decayed
// confidence.
// POST /api/query
func (h *TripleHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	results, err := h.svc.Query(r.Context(), req.Text, req.Limit, req.Filters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.QueryResponse{Results: results})
}

// Expand walks associative hops out from seed entities.
// POST /api/expand
func (h *TripleHandler) Expand(w http.ResponseWriter, r *http.Request) {
	var req models.ExpandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Entities) == 0 {
		writeError(w, http.StatusBadRequest, "entities is required")
		return
	}

	subgraph, err := h.retriever.Expand(r.Context(), req.Entities, assoc.Options{
		MaxHops:        req.MaxHops,
		BranchingLimit: req.BranchingLimit,
		MinConfidence:  req.MinConfidence,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, subgraph)
}

// Recent returns triples created within the last N hours.
// GET /api/triples/recent?hours=&limit=
func (h *TripleHandler) Recent(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)
	limit := queryInt(r, "limit", 50)

	results, err := h.svc.QueryRecent(r.Context(), hours, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.TriplesResponse{Triples: results})
}

// Range returns triples created within [start, end] (RFC3339).
// GET /api/triples/range?start=&end=&limit=
func (h *TripleHandler) Range(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC3339")
		return
	}
	limit := queryInt(r, "limit", 50)

	results, err := h.svc.QueryByTimeRange(r.Context(), start.Unix(), end.Unix(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.TriplesResponse{Triples: results})
}

// queryInt parses an integer query param, falling back to def when absent or
// malformed.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
