package service

import (
	"context"
	"strings"

	"github.com/mirahq/mira/internal/domain"
)

// LabelStore defines the label data access interface consumed by LabelService.
type LabelStore interface {
	FindByID(ctx context.Context, id int64) (*domain.IssueLabel, error)
	FindAllByProject(ctx context.Context, projectID int64) ([]domain.IssueLabel, error)
	Create(ctx context.Context, label domain.IssueLabel) (*domain.IssueLabel, error)
	Delete(ctx context.Context, id int64) error
	Assign(ctx context.Context, issueID, labelID int64) error
	Unassign(ctx context.Context, issueID, labelID int64) error
	FindAllByIssue(ctx context.Context, issueID int64) ([]domain.IssueLabel, error)
}

// CreateLabelRequest is the payload for creating a label.
type CreateLabelRequest struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// LabelService handles project labels and their assignment to issues.
type LabelService struct {
	labels   LabelStore
	issues   IssueStore
	projects ProjectStore
	access   AccessChecker
}

// NewLabelService creates a new LabelService.
func NewLabelService(labels LabelStore, issues IssueStore, projects ProjectStore, access AccessChecker) *LabelService {
	return &LabelService{labels: labels, issues: issues, projects: projects, access: access}
}

// List returns a project's labels, requiring membership.
func (s *LabelService) List(ctx context.Context, projectKey string, userID int64) ([]domain.IssueLabel, error) {
	project, err := s.memberProject(ctx, projectKey, userID)
	if err != nil {
		return nil, err
	}
	return s.labels.FindAllByProject(ctx, project.ID)
}

// Create creates a label in the project, requiring admin access. An omitted
// color falls back to the default.
func (s *LabelService) Create(ctx context.Context, projectKey string, req CreateLabelRequest, userID int64) (*domain.IssueLabel, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(projectKey))
	if err != nil {
		return nil, err
	}
	if err := s.access.CheckAdminAccess(ctx, project.ID, userID); err != nil {
		return nil, err
	}

	color := req.Color
	if color == "" {
		color = domain.DefaultLabelColor
	}
	return s.labels.Create(ctx, domain.IssueLabel{
		ProjectID: project.ID,
		Name:      req.Name,
		Color:     color,
	})
}

// Delete removes a label from the project, requiring admin access.
func (s *LabelService) Delete(ctx context.Context, projectKey string, labelID, userID int64) error {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(projectKey))
	if err != nil {
		return err
	}
	if err := s.access.CheckAdminAccess(ctx, project.ID, userID); err != nil {
		return err
	}

	label, err := s.labels.FindByID(ctx, labelID)
	if err != nil {
		return err
	}
	if label.ProjectID != project.ID {
		return domain.ErrNotFound
	}
	return s.labels.Delete(ctx, labelID)
}

// Assign attaches a project label to one of the project's issues.
func (s *LabelService) Assign(ctx context.Context, projectKey, issueKey string, labelID, userID int64) error {
	issue, label, err := s.resolve(ctx, projectKey, issueKey, labelID, userID)
	if err != nil {
		return err
	}
	return s.labels.Assign(ctx, issue.ID, label.ID)
}

// Unassign detaches a label from an issue.
func (s *LabelService) Unassign(ctx context.Context, projectKey, issueKey string, labelID, userID int64) error {
	issue, label, err := s.resolve(ctx, projectKey, issueKey, labelID, userID)
	if err != nil {
		return err
	}
	return s.labels.Unassign(ctx, issue.ID, label.ID)
}

// ListByIssue returns the labels attached to an issue.
func (s *LabelService) ListByIssue(ctx context.Context, projectKey, issueKey string, userID int64) ([]domain.IssueLabel, error) {
	project, err := s.memberProject(ctx, projectKey, userID)
	if err != nil {
		return nil, err
	}
	issue, err := s.issues.FindByKey(ctx, strings.ToUpper(issueKey))
	if err != nil {
		return nil, err
	}
	if issue.ProjectID != project.ID {
		return nil, domain.ErrNotFound
	}
	return s.labels.FindAllByIssue(ctx, issue.ID)
}

// resolve checks membership and verifies that both the issue and the label
// belong to the stated project.
func (s *LabelService) resolve(ctx context.Context, projectKey, issueKey string, labelID, userID int64) (*domain.Issue, *domain.IssueLabel, error) {
	project, err := s.memberProject(ctx, projectKey, userID)
	if err != nil {
		return nil, nil, err
	}
	issue, err := s.issues.FindByKey(ctx, strings.ToUpper(issueKey))
	if err != nil {
		return nil, nil, err
	}
	if issue.ProjectID != project.ID {
		return nil, nil, domain.ErrNotFound
	}
	label, err := s.labels.FindByID(ctx, labelID)
	if err != nil {
		return nil, nil, err
	}
	if label.ProjectID != project.ID {
		return nil, nil, domain.ErrNotFound
	}
	return issue, label, nil
}

func (s *LabelService) memberProject(ctx context.Context, projectKey string, userID int64) (*domain.Project, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(projectKey))
	if err != nil {
		return nil, err
	}
	if err := s.access.CheckMembership(ctx, project.ID, userID); err != nil {
		return nil, err
	}
	return project, nil
}
