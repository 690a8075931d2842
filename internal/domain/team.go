package domain

import "time"

// Team groups users independently of any single project. Team names are
// globally unique.
type Team struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	OwnerID     int64     `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TeamRole represents a member's role within a team.
type TeamRole string

const (
	TeamRoleOwner  TeamRole = "OWNER"
	TeamRoleAdmin  TeamRole = "ADMIN"
	TeamRoleMember TeamRole = "MEMBER"
)

// TeamMember links a user to a team with a role.
type TeamMember struct {
	ID       int64     `json:"id" db:"id"`
	TeamID   int64     `json:"team_id" db:"team_id"`
	UserID   int64     `json:"user_id" db:"user_id"`
	Role     TeamRole  `json:"role" db:"role"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

// InvitationStatus is the lifecycle state of a team invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
	InvitationExpired  InvitationStatus = "EXPIRED"
)

// TeamInvitation asks a user to join a team. Only a PENDING invitation can
// be accepted or declined, and only by its invitee.
type TeamInvitation struct {
	ID          int64            `json:"id" db:"id"`
	TeamID      int64            `json:"team_id" db:"team_id"`
	InviterID   int64            `json:"inviter_id" db:"inviter_id"`
	InviteeID   int64            `json:"invitee_id" db:"invitee_id"`
	Status      InvitationStatus `json:"status" db:"status"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	RespondedAt *time.Time       `json:"responded_at,omitempty" db:"responded_at"`
}
