package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jbpayton/sophia-ams/internal/assoc"
	"github.com/jbpayton/sophia-ams/internal/embedding"
	"github.com/jbpayton/sophia-ams/internal/episodes"
	"github.com/jbpayton/sophia-ams/internal/extraction"
	"github.com/jbpayton/sophia-ams/internal/goals"
	"github.com/jbpayton/sophia-ams/internal/store"
	"github.com/jbpayton/sophia-ams/internal/triples"
	"github.com/jbpayton/sophia-ams/internal/vectorindex"
)

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(
	db *store.DB,
	index vectorindex.Index,
	embedder embedding.Embedder,
	triplesSvc *triples.Service,
	retriever *assoc.Retriever,
	extractor extraction.Extractor,
	episodeSvc *episodes.Service,
	goalSvc *goals.Service,
	notify func(sessionID string),
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	// Handlers
	healthH := NewHealthHandler(db, index, embedder, triplesSvc)
	tripleH := NewTripleHandler(triplesSvc, extractor, retriever)
	episodeH := NewEpisodeHandler(episodeSvc, triplesSvc, notify)
	goalH := NewGoalHandler(goalSvc)

	r.Get("/health", healthH.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", tripleH.IngestText)
		r.Post("/query", tripleH.Query)
		r.Post("/expand", tripleH.Expand)

		r.Route("/triples", func(r chi.Router) {
			r.Post("/", tripleH.IngestTriples)
			r.Get("/recent", tripleH.Recent)
			r.Get("/range", tripleH.Range)
		})

		r.Route("/episodes", func(r chi.Router) {
			r.Post("/turns", episodeH.AddTurn)
			r.Get("/recent", episodeH.Recent)
			r.Get("/search", episodeH.Search)
			r.Get("/timeline", episodeH.Timeline)
			r.Get("/{id}", episodeH.Get)
			r.Post("/{id}/finalize", episodeH.Finalize)
			r.Get("/{id}/triples", episodeH.Triples)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Post("/", goalH.Create)
			r.Patch("/", goalH.Update)
			r.Get("/", goalH.Query)
			r.Get("/suggest", goalH.Suggest)
			r.Get("/prompt", goalH.Prompt)
		})
	})

	return r
}
