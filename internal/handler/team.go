package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mirahq/mira/internal/domain"
	"github.com/mirahq/mira/internal/service"
)

// TeamHandler handles team, team membership and invitation endpoints.
type TeamHandler struct {
	teams     *service.TeamService
	validator *AppValidator
}

// NewTeamHandler creates a new TeamHandler.
func NewTeamHandler(teams *service.TeamService, validator *AppValidator) *TeamHandler {
	return &TeamHandler{teams: teams, validator: validator}
}

// List returns the teams the caller is a member of.
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	teams, err := h.teams.List(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, teams)
}

// Get returns a single team.
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, teamID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	team, err := h.teams.Get(r.Context(), teamID, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, team)
}

// Create creates a team owned by the caller.
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	var req service.CreateTeamRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		WriteError(w, err)
		return
	}

	team, err := h.teams.Create(r.Context(), req, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, team)
}

// Update patches a team.
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, teamID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req service.UpdateTeamRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	team, err := h.teams.Update(r.Context(), teamID, req, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, team)
}

// Delete removes a team.
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, teamID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err := h.teams.Delete(r.Context(), teamID, userID); err != nil {
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Members lists a team's memberships.
func (h *TeamHandler) Members(w http.ResponseWriter, r *http.Request) {
	userID, teamID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	members, err := h.teams.Members(r.Context(), teamID, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, members)
}

// Invite invites a user to the team by email.
func (h *TeamHandler) Invite(w http.ResponseWriter, r *http.Request) {
	userID, teamID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req service.InviteTeamMemberRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		WriteError(w, err)
		return
	}

	inv, err := h.teams.Invite(r.Context(), teamID, req, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, inv)
}

// MyInvitations lists the caller's pending invitations.
func (h *TeamHandler) MyInvitations(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(w, domain.ErrUnauthorized)
		return
	}

	invitations, err := h.teams.MyInvitations(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, invitations)
}

// AcceptInvitation accepts a pending invitation.
func (h *TeamHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	userID, invitationID, err := h.invitationParams(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	member, err := h.teams.AcceptInvitation(r.Context(), invitationID, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, member)
}

// DeclineInvitation declines a pending invitation.
func (h *TeamHandler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	userID, invitationID, err := h.invitationParams(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err := h.teams.DeclineInvitation(r.Context(), invitationID, userID); err != nil {
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateMemberRole changes a member's role.
func (h *TeamHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	userID, teamID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	memberUserID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		WriteError(w, domain.ErrInvalidInput)
		return
	}

	var req service.UpdateTeamRoleRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.teams.UpdateMemberRole(r.Context(), teamID, memberUserID, req, userID); err != nil {
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember removes a user from the team.
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, teamID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	memberUserID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		WriteError(w, domain.ErrInvalidInput)
		return
	}

	if err := h.teams.RemoveMember(r.Context(), teamID, memberUserID, userID); err != nil {
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Leave removes the caller's own membership.
func (h *TeamHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, teamID, err := h.params(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err := h.teams.Leave(r.Context(), teamID, userID); err != nil {
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) params(r *http.Request) (userID, teamID int64, err error) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		return 0, 0, domain.ErrUnauthorized
	}
	teamID, err = strconv.ParseInt(chi.URLParam(r, "teamID"), 10, 64)
	if err != nil {
		return 0, 0, domain.ErrInvalidInput
	}
	return userID, teamID, nil
}

func (h *TeamHandler) invitationParams(r *http.Request) (userID, invitationID int64, err error) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		return 0, 0, domain.ErrUnauthorized
	}
	invitationID, err = strconv.ParseInt(chi.URLParam(r, "invitationID"), 10, 64)
	if err != nil {
		return 0, 0, domain.ErrInvalidInput
	}
	return userID, invitationID, nil
}
