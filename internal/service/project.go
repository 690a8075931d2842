package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mirahq/mira/internal/domain"
)

// ProjectStore defines the project data access interface consumed by ProjectService.
type ProjectStore interface {
	FindByKey(ctx context.Context, key string) (*domain.Project, error)
	FindAllForUser(ctx context.Context, userID int64) ([]domain.Project, error)
	Create(ctx context.Context, project domain.Project) (*domain.Project, error)
	Update(ctx context.Context, project *domain.Project) (*domain.Project, error)
	Delete(ctx context.Context, id int64) error
	NextIssueNumber(ctx context.Context, projectID int64) (int64, error)
	FindMember(ctx context.Context, projectID, userID int64) (*domain.ProjectMember, error)
	ListMembers(ctx context.Context, projectID int64) ([]domain.ProjectMember, error)
	AddMember(ctx context.Context, member domain.ProjectMember) (*domain.ProjectMember, error)
	RemoveMember(ctx context.Context, projectID, userID int64) error
}

// CreateProjectRequest is the payload for creating a project.
type CreateProjectRequest struct {
	Key                string  `json:"key" validate:"required,alpha,min=2,max=10"`
	Name               string  `json:"name" validate:"required,max=120"`
	Description        *string `json:"description"`
	DefaultSprintWeeks int     `json:"default_sprint_weeks" validate:"omitempty,min=1,max=8"`
}

// UpdateProjectRequest is the payload for updating a project. Absent fields
// are left untouched.
type UpdateProjectRequest struct {
	Name               domain.Patch[string] `json:"name"`
	Description        domain.Patch[string] `json:"description"`
	DefaultSprintWeeks domain.Patch[int]    `json:"default_sprint_weeks"`
	Archived           domain.Patch[bool]   `json:"archived"`
}

// AddMemberRequest adds a user to a project by email.
type AddMemberRequest struct {
	Email string             `json:"email" validate:"required,email"`
	Role  domain.ProjectRole `json:"role" validate:"required,oneof=ADMIN MEMBER"`
}

// ProjectService handles project CRUD and membership. It is also the
// authorization collaborator for the issue and sprint services.
type ProjectService struct {
	projects ProjectStore
	users    UserStore
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projects ProjectStore, users UserStore) *ProjectService {
	return &ProjectService{projects: projects, users: users}
}

// List returns the projects the user is a member of.
func (s *ProjectService) List(ctx context.Context, userID int64) ([]domain.Project, error) {
	return s.projects.FindAllForUser(ctx, userID)
}

// Get returns a project by key, requiring membership.
func (s *ProjectService) Get(ctx context.Context, key string, userID int64) (*domain.Project, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(key))
	if err != nil {
		return nil, err
	}
	if err := s.CheckMembership(ctx, project.ID, userID); err != nil {
		return nil, err
	}
	return project, nil
}

// Create creates a project and makes the caller its owner.
func (s *ProjectService) Create(ctx context.Context, req CreateProjectRequest, userID int64) (*domain.Project, error) {
	weeks := req.DefaultSprintWeeks
	if weeks == 0 {
		weeks = 2
	}
	return s.projects.Create(ctx, domain.Project{
		Key:                strings.ToUpper(req.Key),
		Name:               req.Name,
		Description:        req.Description,
		OwnerID:            userID,
		DefaultSprintWeeks: weeks,
	})
}

// Update applies the patch fields to a project, requiring admin access.
func (s *ProjectService) Update(ctx context.Context, key string, req UpdateProjectRequest, userID int64) (*domain.Project, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(key))
	if err != nil {
		return nil, err
	}
	if err := s.CheckAdminAccess(ctx, project.ID, userID); err != nil {
		return nil, err
	}

	if v, ok := req.Name.Get(); ok {
		project.Name = v
	}
	if req.Description.Present() {
		if v, ok := req.Description.Get(); ok {
			project.Description = &v
		} else {
			project.Description = nil
		}
	}
	if v, ok := req.DefaultSprintWeeks.Get(); ok {
		if v < 1 {
			return nil, &domain.ValidationError{Field: "default_sprint_weeks", Message: "must be at least 1"}
		}
		project.DefaultSprintWeeks = v
	}
	if v, ok := req.Archived.Get(); ok {
		project.Archived = v
	}

	return s.projects.Update(ctx, project)
}

// Delete removes a project. Only the owner may delete.
func (s *ProjectService) Delete(ctx context.Context, key string, userID int64) error {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(key))
	if err != nil {
		return err
	}
	if project.OwnerID != userID {
		return fmt.Errorf("%w: only the project owner can delete the project", domain.ErrForbidden)
	}
	return s.projects.Delete(ctx, project.ID)
}

// Members returns a project's memberships, requiring membership.
func (s *ProjectService) Members(ctx context.Context, key string, userID int64) ([]domain.ProjectMember, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(key))
	if err != nil {
		return nil, err
	}
	if err := s.CheckMembership(ctx, project.ID, userID); err != nil {
		return nil, err
	}
	return s.projects.ListMembers(ctx, project.ID)
}

// AddMember adds a user to a project by email, requiring admin access.
func (s *ProjectService) AddMember(ctx context.Context, key string, req AddMemberRequest, userID int64) (*domain.ProjectMember, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(key))
	if err != nil {
		return nil, err
	}
	if err := s.CheckAdminAccess(ctx, project.ID, userID); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		return nil, err
	}

	return s.projects.AddMember(ctx, domain.ProjectMember{
		ProjectID: project.ID,
		UserID:    user.ID,
		Role:      req.Role,
	})
}

// RemoveMember removes a user from a project, requiring admin access. The
// owner cannot be removed.
func (s *ProjectService) RemoveMember(ctx context.Context, key string, memberUserID, userID int64) error {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(key))
	if err != nil {
		return err
	}
	if err := s.CheckAdminAccess(ctx, project.ID, userID); err != nil {
		return err
	}
	if memberUserID == project.OwnerID {
		return fmt.Errorf("%w: the project owner cannot be removed", domain.ErrForbidden)
	}
	return s.projects.RemoveMember(ctx, project.ID, memberUserID)
}

// CheckMembership returns ErrForbidden unless the user is a project member.
func (s *ProjectService) CheckMembership(ctx context.Context, projectID, userID int64) error {
	_, err := s.projects.FindMember(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("%w: not a member of this project", domain.ErrForbidden)
	}
	return nil
}

// CheckAdminAccess returns ErrForbidden unless the user is an owner or admin
// of the project.
func (s *ProjectService) CheckAdminAccess(ctx context.Context, projectID, userID int64) error {
	member, err := s.projects.FindMember(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("%w: not a member of this project", domain.ErrForbidden)
	}
	if member.Role != domain.RoleOwner && member.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: admin access required", domain.ErrForbidden)
	}
	return nil
}
