package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mirahq/mira/internal/domain"
)

const sprintColumns = `id, project_id, name, goal, start_date, end_date, status, created_at, updated_at`

// SprintRepository handles sprint data access and the lifecycle transitions
// that must be enforced at the storage layer.
type SprintRepository struct {
	db *sqlx.DB
}

// NewSprintRepository creates a new SprintRepository.
func NewSprintRepository(db *sqlx.DB) *SprintRepository {
	return &SprintRepository{db: db}
}

// FindByID retrieves a sprint by ID.
func (r *SprintRepository) FindByID(ctx context.Context, id int64) (*domain.Sprint, error) {
	var sprint domain.Sprint
	err := r.db.GetContext(ctx, &sprint,
		`SELECT `+sprintColumns+` FROM sprints WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find sprint %d: %w", id, err)
	}
	return &sprint, nil
}

// FindAllByProject retrieves a project's sprints, most recent start first.
func (r *SprintRepository) FindAllByProject(ctx context.Context, projectID int64) ([]domain.Sprint, error) {
	var sprints []domain.Sprint
	err := r.db.SelectContext(ctx, &sprints,
		`SELECT `+sprintColumns+` FROM sprints
		 WHERE project_id = $1
		 ORDER BY start_date DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("find sprints of project %d: %w", projectID, err)
	}
	return sprints, nil
}

// Create inserts a sprint in PLANNING state.
func (r *SprintRepository) Create(ctx context.Context, sprint domain.Sprint) (*domain.Sprint, error) {
	var result domain.Sprint
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO sprints (project_id, name, goal, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+sprintColumns,
		sprint.ProjectID, sprint.Name, sprint.Goal, sprint.StartDate, sprint.EndDate,
	).StructScan(&result)
	if err != nil {
		return nil, fmt.Errorf("insert sprint: %w", err)
	}
	return &result, nil
}

// Update persists the mutable sprint fields (name, goal, dates).
func (r *SprintRepository) Update(ctx context.Context, sprint *domain.Sprint) (*domain.Sprint, error) {
	var result domain.Sprint
	err := r.db.QueryRowxContext(ctx,
		`UPDATE sprints
		 SET name = $1, goal = $2, start_date = $3, end_date = $4, updated_at = NOW()
		 WHERE id = $5
		 RETURNING `+sprintColumns,
		sprint.Name, sprint.Goal, sprint.StartDate, sprint.EndDate, sprint.ID,
	).StructScan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update sprint %d: %w", sprint.ID, err)
	}
	return &result, nil
}

// Start transitions a sprint from PLANNING to ACTIVE. The UPDATE is guarded
// by the current status, and the partial unique index on (project_id) WHERE
// status = 'ACTIVE' rejects a second active sprint in the same project, so
// two concurrent starts cannot both succeed.
func (r *SprintRepository) Start(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sprints SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		domain.SprintActive, id, domain.SprintPlanning)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: project already has an active sprint", domain.ErrState)
		}
		return fmt.Errorf("start sprint %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: sprint is not in planning status", domain.ErrState)
	}
	return nil
}

// Complete redistributes a sprint's incomplete issues and marks it COMPLETED
// in a single transaction: either everything commits or nothing does. With
// MoveToBacklog the incomplete issues are detached in one bulk statement;
// with MoveToSprint the given issues are reassigned one at a time, keeping
// their order indexes.
func (r *SprintRepository) Complete(ctx context.Context, id int64, action domain.IncompleteIssueAction, targetSprintID *int64, incompleteIDs []int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	switch action {
	case domain.MoveToBacklog:
		_, err = tx.ExecContext(ctx,
			`UPDATE issues SET sprint_id = NULL, updated_at = NOW()
			 WHERE sprint_id = $1 AND status <> $2`,
			id, domain.StatusDone)
		if err != nil {
			return fmt.Errorf("move incomplete issues to backlog: %w", err)
		}
	case domain.MoveToSprint:
		for _, issueID := range incompleteIDs {
			_, err = tx.ExecContext(ctx,
				`UPDATE issues SET sprint_id = $1, updated_at = NOW() WHERE id = $2`,
				targetSprintID, issueID)
			if err != nil {
				return fmt.Errorf("reassign issue %d: %w", issueID, err)
			}
		}
	default:
		return &domain.ValidationError{Field: "incomplete_issue_action", Message: "unknown action"}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE sprints SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		domain.SprintCompleted, id, domain.SprintActive)
	if err != nil {
		return fmt.Errorf("complete sprint %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: sprint is not active", domain.ErrState)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
