package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mirahq/mira/internal/domain"
	"github.com/mirahq/mira/internal/service"
)

// IssueHandler handles issue endpoints.
type IssueHandler struct {
	issues    *service.IssueService
	validator *AppValidator
}

// NewIssueHandler creates a new IssueHandler.
func NewIssueHandler(issues *service.IssueService, validator *AppValidator) *IssueHandler {
	return &IssueHandler{issues: issues, validator: validator}
}

// List returns a project's issues, honoring query-string filters.
func (h *IssueHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	filter, err := parseIssueFilter(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	issues, err := h.issues.List(r.Context(), chi.URLParam(r, "projectKey"), filter, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, issues)
}

// Backlog returns the project issues not assigned to any sprint.
func (h *IssueHandler) Backlog(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	issues, err := h.issues.Backlog(r.Context(), chi.URLParam(r, "projectKey"), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, issues)
}

// Get returns a single issue by key.
func (h *IssueHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	issue, err := h.issues.Get(r.Context(), chi.URLParam(r, "projectKey"), chi.URLParam(r, "issueKey"), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, issue)
}

// Create creates an issue in the project.
func (h *IssueHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	var req service.CreateIssueRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		WriteError(w, err)
		return
	}

	issue, err := h.issues.Create(r.Context(), chi.URLParam(r, "projectKey"), req, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, issue)
}

// Update patches an issue.
func (h *IssueHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	var req service.UpdateIssueRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	issue, err := h.issues.Update(r.Context(), chi.URLParam(r, "projectKey"), chi.URLParam(r, "issueKey"), req, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, issue)
}

// Move repositions an issue on the board.
func (h *IssueHandler) Move(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	var req service.MoveIssueRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		WriteError(w, err)
		return
	}

	issue, err := h.issues.Move(r.Context(), chi.URLParam(r, "projectKey"), chi.URLParam(r, "issueKey"), req, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, issue)
}

// Delete removes an issue.
func (h *IssueHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	if err := h.issues.Delete(r.Context(), chi.URLParam(r, "projectKey"), chi.URLParam(r, "issueKey"), userID); err != nil {
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// History returns an issue's change ledger.
func (h *IssueHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	entries, err := h.issues.History(r.Context(), chi.URLParam(r, "projectKey"), chi.URLParam(r, "issueKey"), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, entries)
}

func parseIssueFilter(r *http.Request) (service.IssueFilter, error) {
	q := r.URL.Query()
	filter := service.IssueFilter{
		Search:   q.Get("search"),
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Type:     q.Get("type"),
	}

	if raw := q.Get("sprint_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, domain.ErrInvalidInput
		}
		filter.SprintID = &id
	}
	if raw := q.Get("assignee_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, domain.ErrInvalidInput
		}
		filter.AssigneeID = &id
	}

	return filter, nil
}
