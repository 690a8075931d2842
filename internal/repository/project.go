package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/mirahq/mira/internal/domain"
)

const projectColumns = `id, key, name, description, owner_id, default_sprint_weeks, archived, issue_counter, created_at, updated_at`

// ProjectRepository handles project and membership data access.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// FindByKey retrieves a project by its uppercase key.
func (r *ProjectRepository) FindByKey(ctx context.Context, key string) (*domain.Project, error) {
	var project domain.Project
	err := r.db.GetContext(ctx, &project,
		`SELECT `+projectColumns+` FROM projects WHERE key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find project by key %s: %w", key, err)
	}
	return &project, nil
}

// FindAllForUser retrieves every project the user is a member of.
func (r *ProjectRepository) FindAllForUser(ctx context.Context, userID int64) ([]domain.Project, error) {
	var projects []domain.Project
	err := r.db.SelectContext(ctx, &projects,
		`SELECT p.id, p.key, p.name, p.description, p.owner_id, p.default_sprint_weeks,
		        p.archived, p.issue_counter, p.created_at, p.updated_at
		 FROM projects p
		 JOIN project_members m ON m.project_id = p.id
		 WHERE m.user_id = $1
		 ORDER BY p.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("find projects for user %d: %w", userID, err)
	}
	return projects, nil
}

// Create inserts a project and its owner membership in one transaction.
func (r *ProjectRepository) Create(ctx context.Context, project domain.Project) (*domain.Project, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var result domain.Project
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO projects (key, name, description, owner_id, default_sprint_weeks)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+projectColumns,
		project.Key, project.Name, project.Description, project.OwnerID, project.DefaultSprintWeeks,
	).StructScan(&result)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("insert project: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role) VALUES ($1, $2, $3)`,
		result.ID, project.OwnerID, domain.RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &result, nil
}

// Update persists the mutable project fields.
func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	var result domain.Project
	err := r.db.QueryRowxContext(ctx,
		`UPDATE projects
		 SET name = $1, description = $2, default_sprint_weeks = $3, archived = $4, updated_at = NOW()
		 WHERE id = $5
		 RETURNING `+projectColumns,
		project.Name, project.Description, project.DefaultSprintWeeks, project.Archived, project.ID,
	).StructScan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update project %d: %w", project.ID, err)
	}
	return &result, nil
}

// Delete removes a project. Members, sprints and issues cascade.
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// NextIssueNumber atomically increments and returns the project's issue
// counter, used to mint keys such as MIRA-17.
func (r *ProjectRepository) NextIssueNumber(ctx context.Context, projectID int64) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n,
		`UPDATE projects SET issue_counter = issue_counter + 1, updated_at = NOW()
		 WHERE id = $1
		 RETURNING issue_counter`, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("next issue number for project %d: %w", projectID, err)
	}
	return n, nil
}

// FindMember retrieves the membership row for a user in a project.
func (r *ProjectRepository) FindMember(ctx context.Context, projectID, userID int64) (*domain.ProjectMember, error) {
	var member domain.ProjectMember
	err := r.db.GetContext(ctx, &member,
		`SELECT id, project_id, user_id, role, joined_at
		 FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find member %d/%d: %w", projectID, userID, err)
	}
	return &member, nil
}

// ListMembers retrieves all memberships of a project.
func (r *ProjectRepository) ListMembers(ctx context.Context, projectID int64) ([]domain.ProjectMember, error) {
	var members []domain.ProjectMember
	err := r.db.SelectContext(ctx, &members,
		`SELECT id, project_id, user_id, role, joined_at
		 FROM project_members WHERE project_id = $1 ORDER BY joined_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members of project %d: %w", projectID, err)
	}
	return members, nil
}

// AddMember inserts a membership row.
func (r *ProjectRepository) AddMember(ctx context.Context, member domain.ProjectMember) (*domain.ProjectMember, error) {
	var result domain.ProjectMember
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role)
		 VALUES ($1, $2, $3)
		 RETURNING id, project_id, user_id, role, joined_at`,
		member.ProjectID, member.UserID, member.Role,
	).StructScan(&result)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("add member: %w", err)
	}
	return &result, nil
}

// RemoveMember deletes a membership row.
func (r *ProjectRepository) RemoveMember(ctx context.Context, projectID, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return fmt.Errorf("remove member %d/%d: %w", projectID, userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
