package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mirahq/mira/internal/domain"
)

const (
	teamColumns       = `id, name, description, owner_id, created_at, updated_at`
	invitationColumns = `id, team_id, inviter_id, invitee_id, status, created_at, responded_at`
)

// TeamRepository handles team, team membership and invitation data access.
type TeamRepository struct {
	db *sqlx.DB
}

// NewTeamRepository creates a new TeamRepository.
func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

// FindByID retrieves a team.
func (r *TeamRepository) FindByID(ctx context.Context, id int64) (*domain.Team, error) {
	var team domain.Team
	err := r.db.GetContext(ctx, &team,
		`SELECT `+teamColumns+` FROM teams WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find team %d: %w", id, err)
	}
	return &team, nil
}

// FindAllForUser retrieves every team the user is a member of.
func (r *TeamRepository) FindAllForUser(ctx context.Context, userID int64) ([]domain.Team, error) {
	var teams []domain.Team
	err := r.db.SelectContext(ctx, &teams,
		`SELECT t.id, t.name, t.description, t.owner_id, t.created_at, t.updated_at
		 FROM teams t
		 JOIN team_members m ON m.team_id = t.id
		 WHERE m.user_id = $1
		 ORDER BY t.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("find teams for user %d: %w", userID, err)
	}
	return teams, nil
}

// Create inserts a team and its owner membership in one transaction.
func (r *TeamRepository) Create(ctx context.Context, team domain.Team) (*domain.Team, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var result domain.Team
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO teams (name, description, owner_id)
		 VALUES ($1, $2, $3)
		 RETURNING `+teamColumns,
		team.Name, team.Description, team.OwnerID,
	).StructScan(&result)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("insert team: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, $3)`,
		result.ID, team.OwnerID, domain.TeamRoleOwner)
	if err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &result, nil
}

// Update persists the mutable team fields.
func (r *TeamRepository) Update(ctx context.Context, team *domain.Team) (*domain.Team, error) {
	var result domain.Team
	err := r.db.QueryRowxContext(ctx,
		`UPDATE teams SET name = $1, description = $2, updated_at = NOW()
		 WHERE id = $3
		 RETURNING `+teamColumns,
		team.Name, team.Description, team.ID,
	).StructScan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("update team %d: %w", team.ID, err)
	}
	return &result, nil
}

// Delete removes a team. Members and invitations cascade.
func (r *TeamRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete team %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindMember retrieves the membership row for a user in a team.
func (r *TeamRepository) FindMember(ctx context.Context, teamID, userID int64) (*domain.TeamMember, error) {
	var member domain.TeamMember
	err := r.db.GetContext(ctx, &member,
		`SELECT id, team_id, user_id, role, joined_at
		 FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find team member %d/%d: %w", teamID, userID, err)
	}
	return &member, nil
}

// ListMembers retrieves all memberships of a team.
func (r *TeamRepository) ListMembers(ctx context.Context, teamID int64) ([]domain.TeamMember, error) {
	var members []domain.TeamMember
	err := r.db.SelectContext(ctx, &members,
		`SELECT id, team_id, user_id, role, joined_at
		 FROM team_members WHERE team_id = $1 ORDER BY joined_at`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list members of team %d: %w", teamID, err)
	}
	return members, nil
}

// AddMember inserts a membership row.
func (r *TeamRepository) AddMember(ctx context.Context, member domain.TeamMember) (*domain.TeamMember, error) {
	var result domain.TeamMember
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO team_members (team_id, user_id, role)
		 VALUES ($1, $2, $3)
		 RETURNING id, team_id, user_id, role, joined_at`,
		member.TeamID, member.UserID, member.Role,
	).StructScan(&result)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("add team member: %w", err)
	}
	return &result, nil
}

// RemoveMember deletes a membership row.
func (r *TeamRepository) RemoveMember(ctx context.Context, teamID, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return fmt.Errorf("remove team member %d/%d: %w", teamID, userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateMemberRole changes a member's role.
func (r *TeamRepository) UpdateMemberRole(ctx context.Context, teamID, userID int64, role domain.TeamRole) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE team_members SET role = $1 WHERE team_id = $2 AND user_id = $3`,
		role, teamID, userID)
	if err != nil {
		return fmt.Errorf("update role of team member %d/%d: %w", teamID, userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateInvitation inserts a PENDING invitation. The unique constraint on
// (team_id, invitee_id, status) rejects a second pending invitation for the
// same user.
func (r *TeamRepository) CreateInvitation(ctx context.Context, inv domain.TeamInvitation) (*domain.TeamInvitation, error) {
	var result domain.TeamInvitation
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO team_invitations (team_id, inviter_id, invitee_id, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+invitationColumns,
		inv.TeamID, inv.InviterID, inv.InviteeID, domain.InvitationPending,
	).StructScan(&result)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("insert team invitation: %w", err)
	}
	return &result, nil
}

// FindInvitationByID retrieves an invitation.
func (r *TeamRepository) FindInvitationByID(ctx context.Context, id int64) (*domain.TeamInvitation, error) {
	var inv domain.TeamInvitation
	err := r.db.GetContext(ctx, &inv,
		`SELECT `+invitationColumns+` FROM team_invitations WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find team invitation %d: %w", id, err)
	}
	return &inv, nil
}

// FindPendingInvitations retrieves the invitations awaiting the invitee's
// response, newest first.
func (r *TeamRepository) FindPendingInvitations(ctx context.Context, inviteeID int64) ([]domain.TeamInvitation, error) {
	var invitations []domain.TeamInvitation
	err := r.db.SelectContext(ctx, &invitations,
		`SELECT `+invitationColumns+` FROM team_invitations
		 WHERE invitee_id = $1 AND status = $2
		 ORDER BY created_at DESC`, inviteeID, domain.InvitationPending)
	if err != nil {
		return nil, fmt.Errorf("find pending invitations for user %d: %w", inviteeID, err)
	}
	return invitations, nil
}

// ResolveInvitation transitions a PENDING invitation to its final status and
// stamps the response time. The status guard in the WHERE clause makes
// concurrent accepts race-safe: the loser matches zero rows.
func (r *TeamRepository) ResolveInvitation(ctx context.Context, id int64, status domain.InvitationStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE team_invitations SET status = $1, responded_at = NOW()
		 WHERE id = $2 AND status = $3`,
		status, id, domain.InvitationPending)
	if err != nil {
		return fmt.Errorf("resolve invitation %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: invitation is not pending", domain.ErrState)
	}
	return nil
}
