package domain

import "time"

// Comment is a user comment on an issue.
type Comment struct {
	ID        int64     `json:"id" db:"id"`
	IssueID   int64     `json:"issue_id" db:"issue_id"`
	AuthorID  int64     `json:"author_id" db:"author_id"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
