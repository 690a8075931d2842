package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mirahq/mira/internal/domain"
)

const commentColumns = `id, issue_id, author_id, body, created_at, updated_at`

// CommentRepository handles issue comment persistence.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a comment.
func (r *CommentRepository) Create(ctx context.Context, c domain.Comment) (*domain.Comment, error) {
	var result domain.Comment
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO comments (issue_id, author_id, body)
		 VALUES ($1, $2, $3)
		 RETURNING `+commentColumns,
		c.IssueID, c.AuthorID, c.Body,
	).StructScan(&result)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return &result, nil
}

// FindByID retrieves a comment.
func (r *CommentRepository) FindByID(ctx context.Context, id int64) (*domain.Comment, error) {
	var comment domain.Comment
	err := r.db.GetContext(ctx, &comment,
		`SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find comment %d: %w", id, err)
	}
	return &comment, nil
}

// ListByIssue retrieves an issue's comments, oldest first.
func (r *CommentRepository) ListByIssue(ctx context.Context, issueID int64) ([]domain.Comment, error) {
	var comments []domain.Comment
	err := r.db.SelectContext(ctx, &comments,
		`SELECT `+commentColumns+` FROM comments
		 WHERE issue_id = $1
		 ORDER BY created_at`, issueID)
	if err != nil {
		return nil, fmt.Errorf("list comments of issue %d: %w", issueID, err)
	}
	return comments, nil
}

// Update replaces a comment's body.
func (r *CommentRepository) Update(ctx context.Context, id int64, body string) (*domain.Comment, error) {
	var result domain.Comment
	err := r.db.QueryRowxContext(ctx,
		`UPDATE comments SET body = $1, updated_at = NOW()
		 WHERE id = $2
		 RETURNING `+commentColumns,
		body, id,
	).StructScan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update comment %d: %w", id, err)
	}
	return &result, nil
}

// Delete removes a comment.
func (r *CommentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
