package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mirahq/mira/internal/domain"
)

const labelColumns = `id, project_id, name, color, created_at`

// LabelRepository handles issue label and label assignment data access.
type LabelRepository struct {
	db *sqlx.DB
}

// NewLabelRepository creates a new LabelRepository.
func NewLabelRepository(db *sqlx.DB) *LabelRepository {
	return &LabelRepository{db: db}
}

// FindByID retrieves a label.
func (r *LabelRepository) FindByID(ctx context.Context, id int64) (*domain.IssueLabel, error) {
	var label domain.IssueLabel
	err := r.db.GetContext(ctx, &label,
		`SELECT `+labelColumns+` FROM issue_labels WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find label %d: %w", id, err)
	}
	return &label, nil
}

// FindAllByProject retrieves a project's labels by name.
func (r *LabelRepository) FindAllByProject(ctx context.Context, projectID int64) ([]domain.IssueLabel, error) {
	var labels []domain.IssueLabel
	err := r.db.SelectContext(ctx, &labels,
		`SELECT `+labelColumns+` FROM issue_labels WHERE project_id = $1 ORDER BY name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list labels of project %d: %w", projectID, err)
	}
	return labels, nil
}

// Create inserts a label. Duplicate names within a project map to ErrConflict.
func (r *LabelRepository) Create(ctx context.Context, label domain.IssueLabel) (*domain.IssueLabel, error) {
	var result domain.IssueLabel
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO issue_labels (project_id, name, color)
		 VALUES ($1, $2, $3)
		 RETURNING `+labelColumns,
		label.ProjectID, label.Name, label.Color,
	).StructScan(&result)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("insert label: %w", err)
	}
	return &result, nil
}

// Delete removes a label. Assignments cascade.
func (r *LabelRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM issue_labels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete label %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Assign attaches a label to an issue. Assigning twice maps to ErrConflict.
func (r *LabelRepository) Assign(ctx context.Context, issueID, labelID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO issue_label_assignments (issue_id, label_id) VALUES ($1, $2)`,
		issueID, labelID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("assign label %d to issue %d: %w", labelID, issueID, err)
	}
	return nil
}

// Unassign detaches a label from an issue.
func (r *LabelRepository) Unassign(ctx context.Context, issueID, labelID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM issue_label_assignments WHERE issue_id = $1 AND label_id = $2`,
		issueID, labelID)
	if err != nil {
		return fmt.Errorf("unassign label %d from issue %d: %w", labelID, issueID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindAllByIssue retrieves the labels attached to an issue.
func (r *LabelRepository) FindAllByIssue(ctx context.Context, issueID int64) ([]domain.IssueLabel, error) {
	var labels []domain.IssueLabel
	err := r.db.SelectContext(ctx, &labels,
		`SELECT l.id, l.project_id, l.name, l.color, l.created_at
		 FROM issue_labels l
		 JOIN issue_label_assignments a ON a.label_id = l.id
		 WHERE a.issue_id = $1
		 ORDER BY l.name`, issueID)
	if err != nil {
		return nil, fmt.Errorf("list labels of issue %d: %w", issueID, err)
	}
	return labels, nil
}
