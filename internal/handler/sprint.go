package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mirahq/mira/internal/domain"
	"github.com/mirahq/mira/internal/service"
)

// SprintHandler handles sprint lifecycle and analytics endpoints.
type SprintHandler struct {
	sprints   *service.SprintService
	validator *AppValidator
}

// NewSprintHandler creates a new SprintHandler.
func NewSprintHandler(sprints *service.SprintService, validator *AppValidator) *SprintHandler {
	return &SprintHandler{sprints: sprints, validator: validator}
}

// List returns a project's sprints.
func (h *SprintHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	sprints, err := h.sprints.List(r.Context(), chi.URLParam(r, "projectKey"), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, sprints)
}

// Get returns a single sprint.
func (h *SprintHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, sprintID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	sprint, err := h.sprints.Get(r.Context(), chi.URLParam(r, "projectKey"), sprintID, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, sprint)
}

// Create creates a sprint in PLANNING state.
func (h *SprintHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	var req service.CreateSprintRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		WriteError(w, err)
		return
	}

	sprint, err := h.sprints.Create(r.Context(), chi.URLParam(r, "projectKey"), req, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, sprint)
}

// CreateNext creates the follow-up sprint with defaulted name and dates.
func (h *SprintHandler) CreateNext(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	sprint, err := h.sprints.CreateNext(r.Context(), chi.URLParam(r, "projectKey"), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, sprint)
}

// Update patches a sprint.
func (h *SprintHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, sprintID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req service.UpdateSprintRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	sprint, err := h.sprints.Update(r.Context(), chi.URLParam(r, "projectKey"), sprintID, req, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, sprint)
}

// Start transitions a sprint to ACTIVE.
func (h *SprintHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, sprintID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	sprint, err := h.sprints.Start(r.Context(), chi.URLParam(r, "projectKey"), sprintID, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, sprint)
}

// Complete closes an active sprint, redistributing incomplete issues.
func (h *SprintHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, sprintID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req service.CompleteSprintRequest
	if r.ContentLength > 0 {
		if err := DecodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		if err := h.validator.Validate(req); err != nil {
			WriteError(w, err)
			return
		}
	}

	summary, err := h.sprints.Complete(r.Context(), chi.URLParam(r, "projectKey"), sprintID, req, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, summary)
}

// Summary returns the sprint's current issue tally.
func (h *SprintHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, sprintID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	summary, err := h.sprints.Summary(r.Context(), chi.URLParam(r, "projectKey"), sprintID, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, summary)
}

// Burndown returns the sprint burndown chart.
func (h *SprintHandler) Burndown(w http.ResponseWriter, r *http.Request) {
	userID, sprintID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	chart, err := h.sprints.Burndown(r.Context(), chi.URLParam(r, "projectKey"), sprintID, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, chart)
}

func (h *SprintHandler) params(r *http.Request) (userID, sprintID int64, err error) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		return 0, 0, domain.ErrUnauthorized
	}
	sprintID, err = strconv.ParseInt(chi.URLParam(r, "sprintID"), 10, 64)
	if err != nil {
		return 0, 0, domain.ErrInvalidInput
	}
	return userID, sprintID, nil
}
