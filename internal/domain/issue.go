package domain

import "time"

// IssueType classifies an issue.
type IssueType string

const (
	IssueTypeEpic  IssueType = "EPIC"
	IssueTypeStory IssueType = "STORY"
	IssueTypeTask  IssueType = "TASK"
	IssueTypeBug   IssueType = "BUG"
)

// IssueStatus is the Kanban column an issue sits in.
type IssueStatus string

const (
	StatusTodo       IssueStatus = "TODO"
	StatusInProgress IssueStatus = "IN_PROGRESS"
	StatusInReview   IssueStatus = "IN_REVIEW"
	StatusDone       IssueStatus = "DONE"
)

// IssuePriority orders issues by urgency.
type IssuePriority string

const (
	PriorityHighest IssuePriority = "HIGHEST"
	PriorityHigh    IssuePriority = "HIGH"
	PriorityMedium  IssuePriority = "MEDIUM"
	PriorityLow     IssuePriority = "LOW"
	PriorityLowest  IssuePriority = "LOWEST"
)

// Issue represents a work item within a project. OrderIndex is the position
// within the (project, status) column; values are strictly increasing within
// a column but need not be contiguous. A nil SprintID means backlog.
type Issue struct {
	ID          int64         `json:"id" db:"id"`
	ProjectID   int64         `json:"project_id" db:"project_id"`
	SprintID    *int64        `json:"sprint_id,omitempty" db:"sprint_id"`
	Type        IssueType     `json:"type" db:"type"`
	Key         string        `json:"key" db:"key"`
	Title       string        `json:"title" db:"title"`
	Description *string       `json:"description,omitempty" db:"description"`
	Status      IssueStatus   `json:"status" db:"status"`
	Priority    IssuePriority `json:"priority" db:"priority"`
	StoryPoints *int          `json:"story_points,omitempty" db:"story_points"`
	CreatorID   int64         `json:"creator_id" db:"creator_id"`
	AssigneeID  *int64        `json:"assignee_id,omitempty" db:"assignee_id"`
	ParentID    *int64        `json:"parent_id,omitempty" db:"parent_id"`
	DueDate     *Date         `json:"due_date,omitempty" db:"due_date"`
	OrderIndex  int           `json:"order_index" db:"order_index"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// DueIssue is an issue joined with its project key, as returned by the
// due-date reminder queries.
type DueIssue struct {
	Issue
	ProjectKey string `db:"project_key"`
}
