package domain

import "time"

// DefaultLabelColor is applied when a label is created without a color.
const DefaultLabelColor = "#1890ff"

// IssueLabel is a project-scoped tag that can be attached to issues. Names
// are unique within a project.
type IssueLabel struct {
	ID        int64     `json:"id" db:"id"`
	ProjectID int64     `json:"project_id" db:"project_id"`
	Name      string    `json:"name" db:"name"`
	Color     string    `json:"color" db:"color"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
