package api

import (
	"context"
	"net/http"

	"github.com/jbpayton/sophia-ams/internal/embedding"
	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/store"
	"github.com/jbpayton/sophia-ams/internal/triples"
	"github.com/jbpayton/sophia-ams/internal/vectorindex"
)

// healthChecker is implemented by embedders with a remote dependency.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db       *store.DB
	index    vectorindex.Index
	embedder embedding.Embedder
	triples  *triples.Service
}

func NewHealthHandler(db *store.DB, index vectorindex.Index, embedder embedding.Embedder, triplesSvc *triples.Service) *HealthHandler {
	return &HealthHandler{db: db, index: index, embedder: embedder, triples: triplesSvc}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := models.HealthResponse{
		Status: "ok",
	}

	// Check SQLite
	count, err := h.db.EpisodeCount()
	if err != nil {
		resp.DB = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.DB = models.ServiceCheck{Status: "ok"}
		resp.EpisodeCount = count
	}

	// Check the vector index
	if err := h.index.Healthy(ctx); err != nil {
		resp.Index = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.Index = models.ServiceCheck{Status: "ok"}
		if n, err := h.triples.Count(ctx); err == nil {
			resp.TripleCount = n
		}
	}

	// The local fallback embedder has no remote dependency to probe.
	if hc, ok := h.embedder.(healthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			resp.Embedder = models.ServiceCheck{Status: "error", Message: err.Error()}
			resp.Status = "degraded"
		} else {
			resp.Embedder = models.ServiceCheck{Status: "ok"}
		}
	} else {
		resp.Embedder = models.ServiceCheck{Status: "ok", Message: "local"}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
