package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mirahq/mira/internal/domain"
)

// CommentStore defines the comment data access interface.
type CommentStore interface {
	Create(ctx context.Context, c domain.Comment) (*domain.Comment, error)
	FindByID(ctx context.Context, id int64) (*domain.Comment, error)
	ListByIssue(ctx context.Context, issueID int64) ([]domain.Comment, error)
	Update(ctx context.Context, id int64, body string) (*domain.Comment, error)
	Delete(ctx context.Context, id int64) error
}

// CommentRequest carries a comment body.
type CommentRequest struct {
	Body string `json:"body" validate:"required,max=10000"`
}

// CommentService handles issue comments.
type CommentService struct {
	comments CommentStore
	issues   IssueStore
	projects ProjectStore
	access   AccessChecker
}

// NewCommentService creates a new CommentService.
func NewCommentService(comments CommentStore, issues IssueStore, projects ProjectStore, access AccessChecker) *CommentService {
	return &CommentService{comments: comments, issues: issues, projects: projects, access: access}
}

// List returns an issue's comments, oldest first.
func (s *CommentService) List(ctx context.Context, projectKey, issueKey string, userID int64) ([]domain.Comment, error) {
	issue, err := s.lookupIssue(ctx, projectKey, issueKey, userID)
	if err != nil {
		return nil, err
	}
	return s.comments.ListByIssue(ctx, issue.ID)
}

// Create adds a comment to an issue.
func (s *CommentService) Create(ctx context.Context, projectKey, issueKey string, req CommentRequest, userID int64) (*domain.Comment, error) {
	issue, err := s.lookupIssue(ctx, projectKey, issueKey, userID)
	if err != nil {
		return nil, err
	}
	return s.comments.Create(ctx, domain.Comment{
		IssueID:  issue.ID,
		AuthorID: userID,
		Body:     req.Body,
	})
}

// Update edits a comment. Only the author may edit.
func (s *CommentService) Update(ctx context.Context, projectKey, issueKey string, commentID int64, req CommentRequest, userID int64) (*domain.Comment, error) {
	comment, err := s.lookupComment(ctx, projectKey, issueKey, commentID, userID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != userID {
		return nil, fmt.Errorf("%w: only the author can edit a comment", domain.ErrForbidden)
	}
	return s.comments.Update(ctx, comment.ID, req.Body)
}

// Delete removes a comment. Only the author may delete.
func (s *CommentService) Delete(ctx context.Context, projectKey, issueKey string, commentID, userID int64) error {
	comment, err := s.lookupComment(ctx, projectKey, issueKey, commentID, userID)
	if err != nil {
		return err
	}
	if comment.AuthorID != userID {
		return fmt.Errorf("%w: only the author can delete a comment", domain.ErrForbidden)
	}
	return s.comments.Delete(ctx, comment.ID)
}

func (s *CommentService) lookupIssue(ctx context.Context, projectKey, issueKey string, userID int64) (*domain.Issue, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(projectKey))
	if err != nil {
		return nil, err
	}
	if err := s.access.CheckMembership(ctx, project.ID, userID); err != nil {
		return nil, err
	}
	issue, err := s.issues.FindByKey(ctx, strings.ToUpper(issueKey))
	if err != nil {
		return nil, err
	}
	if issue.ProjectID != project.ID {
		return nil, domain.ErrNotFound
	}
	return issue, nil
}

func (s *CommentService) lookupComment(ctx context.Context, projectKey, issueKey string, commentID, userID int64) (*domain.Comment, error) {
	issue, err := s.lookupIssue(ctx, projectKey, issueKey, userID)
	if err != nil {
		return nil, err
	}
	comment, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.IssueID != issue.ID {
		return nil, domain.ErrNotFound
	}
	return comment, nil
}
