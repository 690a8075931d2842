package domain

import "time"

// History field names recorded by the issue service.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldStoryPoints = "storyPoints"
	FieldAssignee    = "assignee"
	FieldSprint      = "sprint"
)

// IssueHistory is one entry of the append-only change ledger. Entries are
// never updated or deleted; the burndown aggregator reads status->DONE
// entries to reconstruct when an issue was completed.
type IssueHistory struct {
	ID        int64     `json:"id" db:"id"`
	IssueID   int64     `json:"issue_id" db:"issue_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	FieldName string    `json:"field_name" db:"field_name"`
	OldValue  *string   `json:"old_value,omitempty" db:"old_value"`
	NewValue  *string   `json:"new_value,omitempty" db:"new_value"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
