package domain

import "time"

// SprintStatus is the lifecycle state of a sprint. Transitions are one-way:
// PLANNING -> ACTIVE -> COMPLETED. At most one sprint per project may be
// ACTIVE, enforced by a partial unique index in the schema.
type SprintStatus string

const (
	SprintPlanning  SprintStatus = "PLANNING"
	SprintActive    SprintStatus = "ACTIVE"
	SprintCompleted SprintStatus = "COMPLETED"
)

// Sprint represents a time-boxed iteration within a project.
type Sprint struct {
	ID        int64        `json:"id" db:"id"`
	ProjectID int64        `json:"project_id" db:"project_id"`
	Name      string       `json:"name" db:"name"`
	Goal      *string      `json:"goal,omitempty" db:"goal"`
	StartDate Date         `json:"start_date" db:"start_date"`
	EndDate   Date         `json:"end_date" db:"end_date"`
	Status    SprintStatus `json:"status" db:"status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// IncompleteIssueAction is the redistribution policy applied to issues not
// DONE when a sprint is completed.
type IncompleteIssueAction string

const (
	MoveToBacklog IncompleteIssueAction = "MOVE_TO_BACKLOG"
	MoveToSprint  IncompleteIssueAction = "MOVE_TO_SPRINT"
)

// SprintSummary reports the issue tally of a sprint. For a completion call
// the counts reflect the snapshot taken before redistribution.
type SprintSummary struct {
	Sprint           *Sprint `json:"sprint"`
	TotalIssues      int     `json:"total_issues"`
	CompletedIssues  int     `json:"completed_issues"`
	IncompleteIssues int     `json:"incomplete_issues"`
}

// BurndownPoint is one calendar day of a burndown series.
type BurndownPoint struct {
	Date            Date    `json:"date"`
	RemainingPoints int     `json:"remaining_points"`
	IdealPoints     float64 `json:"ideal_points"`
}

// BurndownChart is the day-by-day remaining story points of a sprint against
// an ideal linear decay.
type BurndownChart struct {
	Sprint      *Sprint         `json:"sprint"`
	TotalPoints int             `json:"total_points"`
	DataPoints  []BurndownPoint `json:"data_points"`
}
