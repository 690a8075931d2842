package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mirahq/mira/internal/domain"
)

// TeamStore defines the team data access interface consumed by TeamService.
type TeamStore interface {
	FindByID(ctx context.Context, id int64) (*domain.Team, error)
	FindAllForUser(ctx context.Context, userID int64) ([]domain.Team, error)
	Create(ctx context.Context, team domain.Team) (*domain.Team, error)
	Update(ctx context.Context, team *domain.Team) (*domain.Team, error)
	Delete(ctx context.Context, id int64) error
	FindMember(ctx context.Context, teamID, userID int64) (*domain.TeamMember, error)
	ListMembers(ctx context.Context, teamID int64) ([]domain.TeamMember, error)
	AddMember(ctx context.Context, member domain.TeamMember) (*domain.TeamMember, error)
	RemoveMember(ctx context.Context, teamID, userID int64) error
	UpdateMemberRole(ctx context.Context, teamID, userID int64, role domain.TeamRole) error
	CreateInvitation(ctx context.Context, inv domain.TeamInvitation) (*domain.TeamInvitation, error)
	FindInvitationByID(ctx context.Context, id int64) (*domain.TeamInvitation, error)
	FindPendingInvitations(ctx context.Context, inviteeID int64) ([]domain.TeamInvitation, error)
	ResolveInvitation(ctx context.Context, id int64, status domain.InvitationStatus) error
}

// CreateTeamRequest is the payload for creating a team.
type CreateTeamRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description *string `json:"description"`
}

// UpdateTeamRequest is the payload for updating a team.
type UpdateTeamRequest struct {
	Name        domain.Patch[string] `json:"name"`
	Description domain.Patch[string] `json:"description"`
}

// InviteTeamMemberRequest invites a user to a team by email.
type InviteTeamMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UpdateTeamRoleRequest changes a member's role. The owner role is assigned
// at creation and cannot be granted here.
type UpdateTeamRoleRequest struct {
	Role domain.TeamRole `json:"role" validate:"required,oneof=ADMIN MEMBER"`
}

// TeamService handles team CRUD, membership roles and the invitation flow.
type TeamService struct {
	teams    TeamStore
	users    UserStore
	notifier Notifier
}

// NewTeamService creates a new TeamService.
func NewTeamService(teams TeamStore, users UserStore, notifier Notifier) *TeamService {
	return &TeamService{teams: teams, users: users, notifier: notifier}
}

// List returns the teams the user is a member of.
func (s *TeamService) List(ctx context.Context, userID int64) ([]domain.Team, error) {
	return s.teams.FindAllForUser(ctx, userID)
}

// Get returns a team, requiring membership.
func (s *TeamService) Get(ctx context.Context, teamID, userID int64) (*domain.Team, error) {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.checkMembership(ctx, teamID, userID); err != nil {
		return nil, err
	}
	return team, nil
}

// Create creates a team and makes the caller its owner.
func (s *TeamService) Create(ctx context.Context, req CreateTeamRequest, userID int64) (*domain.Team, error) {
	return s.teams.Create(ctx, domain.Team{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID,
	})
}

// Update applies the patch fields to a team, requiring admin access.
func (s *TeamService) Update(ctx context.Context, teamID int64, req UpdateTeamRequest, userID int64) (*domain.Team, error) {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAdminAccess(ctx, teamID, userID); err != nil {
		return nil, err
	}

	if v, ok := req.Name.Get(); ok {
		team.Name = v
	}
	if req.Description.Present() {
		if v, ok := req.Description.Get(); ok {
			team.Description = &v
		} else {
			team.Description = nil
		}
	}

	return s.teams.Update(ctx, team)
}

// Delete removes a team. Only the owner may delete.
func (s *TeamService) Delete(ctx context.Context, teamID, userID int64) error {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return err
	}
	if team.OwnerID != userID {
		return fmt.Errorf("%w: only the team owner can delete the team", domain.ErrForbidden)
	}
	return s.teams.Delete(ctx, teamID)
}

// Members returns a team's memberships, requiring membership.
func (s *TeamService) Members(ctx context.Context, teamID, userID int64) ([]domain.TeamMember, error) {
	if err := s.checkMembership(ctx, teamID, userID); err != nil {
		return nil, err
	}
	return s.teams.ListMembers(ctx, teamID)
}

// Invite invites a user to the team by email and notifies them. Requires
// admin access. Inviting yourself, an existing member, or someone with a
// pending invitation is rejected.
func (s *TeamService) Invite(ctx context.Context, teamID int64, req InviteTeamMemberRequest, userID int64) (*domain.TeamInvitation, error) {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAdminAccess(ctx, teamID, userID); err != nil {
		return nil, err
	}

	invitee, err := s.users.FindByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		return nil, err
	}
	if invitee.ID == userID {
		return nil, &domain.ValidationError{Field: "email", Message: "you cannot invite yourself"}
	}
	if _, err := s.teams.FindMember(ctx, teamID, invitee.ID); err == nil {
		return nil, fmt.Errorf("%w: user is already a team member", domain.ErrConflict)
	}

	// A second pending invitation for the same user trips the store's
	// uniqueness constraint.
	inv, err := s.teams.CreateInvitation(ctx, domain.TeamInvitation{
		TeamID:    teamID,
		InviterID: userID,
		InviteeID: invitee.ID,
	})
	if err != nil {
		return nil, err
	}

	s.notifyInvitation(ctx, team, inv)
	return inv, nil
}

// MyInvitations returns the caller's pending invitations.
func (s *TeamService) MyInvitations(ctx context.Context, userID int64) ([]domain.TeamInvitation, error) {
	return s.teams.FindPendingInvitations(ctx, userID)
}

// AcceptInvitation accepts a pending invitation and joins the caller to the
// team as MEMBER. Only the invitee may accept.
func (s *TeamService) AcceptInvitation(ctx context.Context, invitationID, userID int64) (*domain.TeamMember, error) {
	inv, err := s.loadPendingInvitation(ctx, invitationID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.teams.ResolveInvitation(ctx, inv.ID, domain.InvitationAccepted); err != nil {
		return nil, err
	}
	return s.teams.AddMember(ctx, domain.TeamMember{
		TeamID: inv.TeamID,
		UserID: userID,
		Role:   domain.TeamRoleMember,
	})
}

// DeclineInvitation declines a pending invitation. Only the invitee may
// decline.
func (s *TeamService) DeclineInvitation(ctx context.Context, invitationID, userID int64) error {
	inv, err := s.loadPendingInvitation(ctx, invitationID, userID)
	if err != nil {
		return err
	}
	return s.teams.ResolveInvitation(ctx, inv.ID, domain.InvitationDeclined)
}

// UpdateMemberRole changes a member's role. Only the owner may change roles,
// and the owner's own role is immutable.
func (s *TeamService) UpdateMemberRole(ctx context.Context, teamID, memberUserID int64, req UpdateTeamRoleRequest, userID int64) error {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return err
	}
	if team.OwnerID != userID {
		return fmt.Errorf("%w: only the team owner can change roles", domain.ErrForbidden)
	}
	if memberUserID == team.OwnerID {
		return fmt.Errorf("%w: the owner's role cannot be changed", domain.ErrForbidden)
	}
	return s.teams.UpdateMemberRole(ctx, teamID, memberUserID, req.Role)
}

// RemoveMember removes a user from the team, requiring admin access. The
// owner cannot be removed.
func (s *TeamService) RemoveMember(ctx context.Context, teamID, memberUserID, userID int64) error {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return err
	}
	if err := s.checkAdminAccess(ctx, teamID, userID); err != nil {
		return err
	}
	if memberUserID == team.OwnerID {
		return fmt.Errorf("%w: the team owner cannot be removed", domain.ErrForbidden)
	}
	return s.teams.RemoveMember(ctx, teamID, memberUserID)
}

// Leave removes the caller's own membership. The owner cannot leave.
func (s *TeamService) Leave(ctx context.Context, teamID, userID int64) error {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return err
	}
	if team.OwnerID == userID {
		return fmt.Errorf("%w: the team owner cannot leave the team", domain.ErrForbidden)
	}
	return s.teams.RemoveMember(ctx, teamID, userID)
}

// loadPendingInvitation resolves an invitation and verifies the caller is
// its invitee and that it is still open.
func (s *TeamService) loadPendingInvitation(ctx context.Context, invitationID, userID int64) (*domain.TeamInvitation, error) {
	inv, err := s.teams.FindInvitationByID(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.InviteeID != userID {
		return nil, fmt.Errorf("%w: this invitation is not addressed to you", domain.ErrForbidden)
	}
	if inv.Status != domain.InvitationPending {
		return nil, fmt.Errorf("%w: invitation has already been resolved", domain.ErrState)
	}
	return inv, nil
}

// notifyInvitation tells the invitee about the invitation. Best-effort: a
// failed write is logged and must not fail the invitation, which has already
// been created.
func (s *TeamService) notifyInvitation(ctx context.Context, team *domain.Team, inv *domain.TeamInvitation) {
	inviter, err := s.users.FindByID(ctx, inv.InviterID)
	if err != nil {
		slog.Warn("team invitation fan-out: find inviter failed",
			"team_id", team.ID, "invitation_id", inv.ID, "error", err)
		return
	}

	data := fmt.Sprintf(`{"team_id": %d, "invitation_id": %d}`, team.ID, inv.ID)
	message := fmt.Sprintf("%s invited you to join team '%s'", inviter.DisplayName, team.Name)
	err = s.notifier.Notify(ctx, inv.InviteeID, domain.NotificationTeamInvitation,
		"Team Invitation", message, &data)
	if err != nil {
		slog.Warn("team invitation notification failed",
			"user_id", inv.InviteeID, "invitation_id", inv.ID, "error", err)
	}
}

// checkMembership returns ErrForbidden unless the user is a team member.
func (s *TeamService) checkMembership(ctx context.Context, teamID, userID int64) error {
	_, err := s.teams.FindMember(ctx, teamID, userID)
	if err != nil {
		return fmt.Errorf("%w: not a member of this team", domain.ErrForbidden)
	}
	return nil
}

// checkAdminAccess returns ErrForbidden unless the user is an owner or admin
// of the team.
func (s *TeamService) checkAdminAccess(ctx context.Context, teamID, userID int64) error {
	member, err := s.teams.FindMember(ctx, teamID, userID)
	if err != nil {
		return fmt.Errorf("%w: not a member of this team", domain.ErrForbidden)
	}
	if member.Role != domain.TeamRoleOwner && member.Role != domain.TeamRoleAdmin {
		return fmt.Errorf("%w: admin access required", domain.ErrForbidden)
	}
	return nil
}
