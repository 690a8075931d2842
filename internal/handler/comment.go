package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mirahq/mira/internal/domain"
	"github.com/mirahq/mira/internal/service"
)

// CommentHandler handles issue comment endpoints.
type CommentHandler struct {
	comments  *service.CommentService
	validator *AppValidator
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(comments *service.CommentService, validator *AppValidator) *CommentHandler {
	return &CommentHandler{comments: comments, validator: validator}
}

// List returns an issue's comments.
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	comments, err := h.comments.List(r.Context(), chi.URLParam(r, "projectKey"), chi.URLParam(r, "issueKey"), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, comments)
}

// Create adds a comment to an issue.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	var req service.CommentRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		WriteError(w, err)
		return
	}

	comment, err := h.comments.Create(r.Context(), chi.URLParam(r, "projectKey"), chi.URLParam(r, "issueKey"), req, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, comment)
}

// Update edits a comment.
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, commentID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req service.CommentRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		WriteError(w, err)
		return
	}

	comment, err := h.comments.Update(r.Context(), chi.URLParam(r, "projectKey"), chi.URLParam(r, "issueKey"), commentID, req, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, comment)
}

// Delete removes a comment.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, commentID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err := h.comments.Delete(r.Context(), chi.URLParam(r, "projectKey"), chi.URLParam(r, "issueKey"), commentID, userID); err != nil {
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CommentHandler) params(r *http.Request) (userID, commentID int64, err error) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		return 0, 0, domain.ErrUnauthorized
	}
	commentID, err = strconv.ParseInt(chi.URLParam(r, "commentID"), 10, 64)
	if err != nil {
		return 0, 0, domain.ErrInvalidInput
	}
	return userID, commentID, nil
}
