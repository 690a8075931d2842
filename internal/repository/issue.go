package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mirahq/mira/internal/domain"
)

const issueColumns = `id, project_id, sprint_id, type, key, title, description, status, priority,
	story_points, creator_id, assignee_id, parent_id, due_date, order_index, created_at, updated_at`

// IssueRepository handles issue data access, including the per-(project,
// status) order index partition.
type IssueRepository struct {
	db *sqlx.DB
}

// NewIssueRepository creates a new IssueRepository.
func NewIssueRepository(db *sqlx.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// FindByKey retrieves an issue by its key (e.g. MIRA-17).
func (r *IssueRepository) FindByKey(ctx context.Context, key string) (*domain.Issue, error) {
	var issue domain.Issue
	err := r.db.GetContext(ctx, &issue,
		`SELECT `+issueColumns+` FROM issues WHERE key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find issue by key %s: %w", key, err)
	}
	return &issue, nil
}

// FindAllByProject retrieves every issue in a project ordered by column position.
func (r *IssueRepository) FindAllByProject(ctx context.Context, projectID int64) ([]domain.Issue, error) {
	var issues []domain.Issue
	err := r.db.SelectContext(ctx, &issues,
		`SELECT `+issueColumns+` FROM issues
		 WHERE project_id = $1
		 ORDER BY status, order_index`, projectID)
	if err != nil {
		return nil, fmt.Errorf("find issues of project %d: %w", projectID, err)
	}
	return issues, nil
}

// FindAllBySprint retrieves the issues currently linked to a sprint.
func (r *IssueRepository) FindAllBySprint(ctx context.Context, projectID, sprintID int64) ([]domain.Issue, error) {
	var issues []domain.Issue
	err := r.db.SelectContext(ctx, &issues,
		`SELECT `+issueColumns+` FROM issues
		 WHERE project_id = $1 AND sprint_id = $2
		 ORDER BY status, order_index`, projectID, sprintID)
	if err != nil {
		return nil, fmt.Errorf("find issues of sprint %d: %w", sprintID, err)
	}
	return issues, nil
}

// FindBacklog retrieves the issues of a project that belong to no sprint.
func (r *IssueRepository) FindBacklog(ctx context.Context, projectID int64) ([]domain.Issue, error) {
	var issues []domain.Issue
	err := r.db.SelectContext(ctx, &issues,
		`SELECT `+issueColumns+` FROM issues
		 WHERE project_id = $1 AND sprint_id IS NULL
		 ORDER BY order_index`, projectID)
	if err != nil {
		return nil, fmt.Errorf("find backlog of project %d: %w", projectID, err)
	}
	return issues, nil
}

// InsertAt inserts an issue into its (project, status) partition. A negative
// position appends (max order index + 1); otherwise every issue at or after
// position is shifted up by one and the freed slot is used. The partition is
// locked for the duration of the transaction so concurrent inserts cannot
// compute the same index.
func (r *IssueRepository) InsertAt(ctx context.Context, issue domain.Issue, position int) (*domain.Issue, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var locked []int64
	err = tx.SelectContext(ctx, &locked,
		`SELECT id FROM issues
		 WHERE project_id = $1 AND status = $2
		 ORDER BY order_index
		 FOR UPDATE`, issue.ProjectID, issue.Status)
	if err != nil {
		return nil, fmt.Errorf("lock partition: %w", err)
	}

	orderIndex := position
	if position < 0 {
		var maxIndex int
		err = tx.GetContext(ctx, &maxIndex,
			`SELECT COALESCE(MAX(order_index), -1) FROM issues
			 WHERE project_id = $1 AND status = $2`, issue.ProjectID, issue.Status)
		if err != nil {
			return nil, fmt.Errorf("max order index: %w", err)
		}
		orderIndex = maxIndex + 1
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE issues SET order_index = order_index + 1
			 WHERE project_id = $1 AND status = $2 AND order_index >= $3`,
			issue.ProjectID, issue.Status, position)
		if err != nil {
			return nil, fmt.Errorf("shift order indexes: %w", err)
		}
	}

	var result domain.Issue
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO issues (project_id, sprint_id, type, key, title, description, status,
		                     priority, story_points, creator_id, assignee_id, parent_id, due_date, order_index)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING `+issueColumns,
		issue.ProjectID, issue.SprintID, issue.Type, issue.Key, issue.Title, issue.Description,
		issue.Status, issue.Priority, issue.StoryPoints, issue.CreatorID, issue.AssigneeID,
		issue.ParentID, issue.DueDate, orderIndex,
	).StructScan(&result)
	if err != nil {
		return nil, fmt.Errorf("insert issue %s: %w", issue.Key, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &result, nil
}

// Update persists the mutable issue fields.
func (r *IssueRepository) Update(ctx context.Context, issue *domain.Issue) (*domain.Issue, error) {
	var result domain.Issue
	err := r.db.QueryRowxContext(ctx,
		`UPDATE issues
		 SET title = $1, description = $2, status = $3, priority = $4, story_points = $5,
		     assignee_id = $6, sprint_id = $7, due_date = $8, order_index = $9, updated_at = NOW()
		 WHERE id = $10
		 RETURNING `+issueColumns,
		issue.Title, issue.Description, issue.Status, issue.Priority, issue.StoryPoints,
		issue.AssigneeID, issue.SprintID, issue.DueDate, issue.OrderIndex, issue.ID,
	).StructScan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update issue %d: %w", issue.ID, err)
	}
	return &result, nil
}

// Move reassigns status and order index in one statement. No renumbering of
// either partition happens here; the caller supplies the target index.
func (r *IssueRepository) Move(ctx context.Context, id int64, status domain.IssueStatus, orderIndex int) (*domain.Issue, error) {
	var result domain.Issue
	err := r.db.QueryRowxContext(ctx,
		`UPDATE issues SET status = $1, order_index = $2, updated_at = NOW()
		 WHERE id = $3
		 RETURNING `+issueColumns,
		status, orderIndex, id,
	).StructScan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("move issue %d: %w", id, err)
	}
	return &result, nil
}

// Delete removes an issue. History and comments cascade.
func (r *IssueRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM issues WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete issue %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindDueOn retrieves non-DONE issues due exactly on the given date, joined
// with their project key for the reminder payload.
func (r *IssueRepository) FindDueOn(ctx context.Context, date domain.Date) ([]domain.DueIssue, error) {
	var issues []domain.DueIssue
	err := r.db.SelectContext(ctx, &issues, dueIssueQuery+` WHERE i.due_date = $1 AND i.status <> $2`,
		date, domain.StatusDone)
	if err != nil {
		return nil, fmt.Errorf("find issues due on %s: %w", date, err)
	}
	return issues, nil
}

// FindOverdue retrieves non-DONE issues with a due date before the given date.
func (r *IssueRepository) FindOverdue(ctx context.Context, before domain.Date) ([]domain.DueIssue, error) {
	var issues []domain.DueIssue
	err := r.db.SelectContext(ctx, &issues, dueIssueQuery+` WHERE i.due_date < $1 AND i.status <> $2`,
		before, domain.StatusDone)
	if err != nil {
		return nil, fmt.Errorf("find issues overdue before %s: %w", before, err)
	}
	return issues, nil
}

const dueIssueQuery = `
	SELECT i.id, i.project_id, i.sprint_id, i.type, i.key, i.title, i.description, i.status,
	       i.priority, i.story_points, i.creator_id, i.assignee_id, i.parent_id, i.due_date,
	       i.order_index, i.created_at, i.updated_at, p.key AS project_key
	FROM issues i
	JOIN projects p ON p.id = i.project_id`
