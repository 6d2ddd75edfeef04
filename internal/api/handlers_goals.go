package api

import (
	"errors"
	"net/http"

	"github.com/jbpayton/sophia-ams/internal/goals"
	"github.com/jbpayton/sophia-ams/internal/models"
)

type GoalHandler struct {
	svc *goals.Service
}

func NewGoalHandler(svc *goals.Service) *GoalHandler {
	return &GoalHandler{svc: svc}
}

// Create stores a goal. Creating a goal that already exists for the same
// owner returns the existing id with created=false.
// POST /api/goals
func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Description == "" || req.Owner == "" {
		writeError(w, http.StatusBadRequest, "description and owner are required")
		return
	}

	id, created, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		if errors.Is(err, goals.ErrCycle) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, models.CreateGoalResponse{ID: id, Created: created})
}

// Update applies a status or metadata transition. A completion attempt with
// unmet dependencies comes back with status blocked; the caller inspects the
// returned goal.
// PATCH /api/goals
func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Description == "" || req.Owner == "" {
		writeError(w, http.StatusBadRequest, "description and owner are required")
		return
	}
	if req.Status != nil && !req.Status.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	goal, err := h.svc.Update(r.Context(), req.Description, req.Owner, &req)
	if err != nil {
		if errors.Is(err, goals.ErrNotFound) {
			writeError(w, http.StatusNotFound, "goal not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.UpdateGoalResponse{OK: true, Goal: goal})
}

// Query lists an owner's goals filtered by status and priority, highest
// priority first.
// GET /api/goals?owner=&status=&min_priority=&max_priority=&active_only=&limit=
func (h *GoalHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owner := q.Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}

	req := &models.QueryGoalsRequest{
		Owner:       owner,
		Status:      models.GoalStatus(q.Get("status")),
		MinPriority: queryInt(r, "min_priority", 0),
		MaxPriority: queryInt(r, "max_priority", 0),
		ActiveOnly:  q.Get("active_only") == "true",
		Limit:       queryInt(r, "limit", 0),
	}
	if req.Status != "" && !req.Status.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	list, err := h.svc.Query(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.GoalsResponse{Goals: list})
}

// Suggest returns the owner's best next goal to work on, or null when
// nothing actionable exists.
// GET /api/goals/suggest?owner=
func (h *GoalHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}

	suggestion, err := h.svc.SuggestNext(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.SuggestResponse{Suggestion: suggestion})
}

// Prompt returns the goals worth carrying in a system prompt: forever goals
// plus high-priority active ones.
// GET /api/goals/prompt?owner=&limit=
func (h *GoalHandler) Prompt(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}

	list, err := h.svc.ActiveForPrompt(r.Context(), owner, queryInt(r, "limit", 10))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.GoalsResponse{Goals: list})
}
