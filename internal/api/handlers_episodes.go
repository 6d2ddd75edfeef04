package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jbpayton/sophia-ams/internal/episodes"
	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/triples"
)

type EpisodeHandler struct {
	svc     *episodes.Service
	triples *triples.Service

	// notify schedules consolidation for a session after new turns land.
	notify func(sessionID string)
}

func NewEpisodeHandler(svc *episodes.Service, triplesSvc *triples.Service, notify func(sessionID string)) *EpisodeHandler {
	return &EpisodeHandler{svc: svc, triples: triplesSvc, notify: notify}
}

// AddTurn appends a turn to the session's open episode, creating one if
// needed.
// POST /api/episodes/turns
func (h *EpisodeHandler) AddTurn(w http.ResponseWriter, r *http.Request) {
	var req models.AddTurnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "sessionId and content are required")
		return
	}
	if !req.Role.IsValid() {
		writeError(w, http.StatusBadRequest, "role must be user, assistant, or system")
		return
	}

	episodeID, finalized, err := h.svc.AddTurn(r.Context(), req.SessionID, req.Role, req.Content)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.notify != nil {
		h.notify(req.SessionID)
	}
	writeJSON(w, http.StatusOK, models.AddTurnResponse{EpisodeID: episodeID, Finalized: finalized})
}

// Get returns one episode with its turns. Episodes are session-scoped: an id
// queried under the wrong session is not found.
// GET /api/episodes/{id}?session_id=
func (h *EpisodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	ep, err := h.svc.Get(r.Context(), sessionID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, episodes.ErrNotFound) {
			writeError(w, http.StatusNotFound, "episode not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

// Finalize closes an episode, optionally with a caller-supplied summary.
// POST /api/episodes/{id}/finalize
func (h *EpisodeHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req models.FinalizeEpisodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.svc.Finalize(r.Context(), req.SessionID, id, req.Summary); err != nil {
		if errors.Is(err, episodes.ErrNotFound) {
			writeError(w, http.StatusNotFound, "episode not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.notify != nil {
		h.notify(req.SessionID)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Recent lists the session's episodes from the last N hours, newest first.
// GET /api/episodes/recent?session_id=&hours=&limit=
func (h *EpisodeHandler) Recent(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	eps, err := h.svc.Recent(r.Context(), sessionID, queryInt(r, "hours", 24), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.EpisodesResponse{Episodes: eps})
}

// Search finds the session's episodes whose turns contain the query text.
// GET /api/episodes/search?session_id=&q=&limit=
func (h *EpisodeHandler) Search(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	eps, err := h.svc.Search(r.Context(), sessionID, r.URL.Query().Get("q"), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.EpisodesResponse{Episodes: eps})
}

// Timeline groups the session's recent episodes by day, newest day first.
// GET /api/episodes/timeline?session_id=&days=
func (h *EpisodeHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	days, err := h.svc.Timeline(r.Context(), sessionID, queryInt(r, "days", 7))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.TimelineResponse{Days: days})
}

// Triples returns the triples consolidation extracted from one episode, in
// conversation order.
// GET /api/episodes/{id}/triples?limit=
func (h *EpisodeHandler) Triples(w http.ResponseWriter, r *http.Request) {
	results, err := h.triples.QueryByEpisode(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.TriplesResponse{Triples: results})
}
