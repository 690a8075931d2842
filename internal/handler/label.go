package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mirahq/mira/internal/domain"
	"github.com/mirahq/mira/internal/service"
)

// LabelHandler handles project label and label assignment endpoints.
type LabelHandler struct {
	labels    *service.LabelService
	validator *AppValidator
}

// NewLabelHandler creates a new LabelHandler.
func NewLabelHandler(labels *service.LabelService, validator *AppValidator) *LabelHandler {
	return &LabelHandler{labels: labels, validator: validator}
}

// List returns a project's labels.
func (h *LabelHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	labels, err := h.labels.List(r.Context(), chi.URLParam(r, "projectKey"), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, labels)
}

// Create creates a label in the project.
func (h *LabelHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	var req service.CreateLabelRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		WriteError(w, err)
		return
	}

	label, err := h.labels.Create(r.Context(), chi.URLParam(r, "projectKey"), req, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, label)
}

// Delete removes a label from the project.
func (h *LabelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, labelID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err := h.labels.Delete(r.Context(), chi.URLParam(r, "projectKey"), labelID, userID); err != nil {
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListByIssue returns the labels attached to an issue.
func (h *LabelHandler) ListByIssue(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	labels, err := h.labels.ListByIssue(r.Context(),
		chi.URLParam(r, "projectKey"), chi.URLParam(r, "issueKey"), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, labels)
}

// Assign attaches a label to an issue.
func (h *LabelHandler) Assign(w http.ResponseWriter, r *http.Request) {
	userID, labelID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	err = h.labels.Assign(r.Context(),
		chi.URLParam(r, "projectKey"), chi.URLParam(r, "issueKey"), labelID, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unassign detaches a label from an issue.
func (h *LabelHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	userID, labelID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	err = h.labels.Unassign(r.Context(),
		chi.URLParam(r, "projectKey"), chi.URLParam(r, "issueKey"), labelID, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *LabelHandler) params(r *http.Request) (userID, labelID int64, err error) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		return 0, 0, domain.ErrUnauthorized
	}
	labelID, err = strconv.ParseInt(chi.URLParam(r, "labelID"), 10, 64)
	if err != nil {
		return 0, 0, domain.ErrInvalidInput
	}
	return userID, labelID, nil
}
