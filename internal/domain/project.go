package domain

import "time"

// Project represents a project that contains issues and sprints. Key is the
// short uppercase prefix used for issue keys (e.g. "MIRA" in "MIRA-17").
type Project struct {
	ID                 int64     `json:"id" db:"id"`
	Key                string    `json:"key" db:"key"`
	Name               string    `json:"name" db:"name"`
	Description        *string   `json:"description,omitempty" db:"description"`
	OwnerID            int64     `json:"owner_id" db:"owner_id"`
	DefaultSprintWeeks int       `json:"default_sprint_weeks" db:"default_sprint_weeks"`
	Archived           bool      `json:"archived" db:"archived"`
	IssueCounter       int64     `json:"-" db:"issue_counter"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectRole represents a member's role within a project.
type ProjectRole string

const (
	RoleOwner  ProjectRole = "OWNER"
	RoleAdmin  ProjectRole = "ADMIN"
	RoleMember ProjectRole = "MEMBER"
)

// ProjectMember links a user to a project with a role.
type ProjectMember struct {
	ID        int64       `json:"id" db:"id"`
	ProjectID int64       `json:"project_id" db:"project_id"`
	UserID    int64       `json:"user_id" db:"user_id"`
	Role      ProjectRole `json:"role" db:"role"`
	JoinedAt  time.Time   `json:"joined_at" db:"joined_at"`
}
