package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mirahq/mira/internal/domain"
)

// IssueStore defines the issue data access interface consumed by IssueService.
type IssueStore interface {
	FindByKey(ctx context.Context, key string) (*domain.Issue, error)
	FindAllByProject(ctx context.Context, projectID int64) ([]domain.Issue, error)
	FindAllBySprint(ctx context.Context, projectID, sprintID int64) ([]domain.Issue, error)
	FindBacklog(ctx context.Context, projectID int64) ([]domain.Issue, error)
	InsertAt(ctx context.Context, issue domain.Issue, position int) (*domain.Issue, error)
	Update(ctx context.Context, issue *domain.Issue) (*domain.Issue, error)
	Move(ctx context.Context, id int64, status domain.IssueStatus, orderIndex int) (*domain.Issue, error)
	Delete(ctx context.Context, id int64) error
}

// HistoryStore defines the issue history ledger interface.
type HistoryStore interface {
	Append(ctx context.Context, entry domain.IssueHistory) error
	FindAllByIssue(ctx context.Context, issueID int64) ([]domain.IssueHistory, error)
	FindDoneTransitions(ctx context.Context, issueIDs []int64) ([]domain.IssueHistory, error)
}

// AccessChecker is the membership/authorization collaborator.
type AccessChecker interface {
	CheckMembership(ctx context.Context, projectID, userID int64) error
	CheckAdminAccess(ctx context.Context, projectID, userID int64) error
}

// IssueFilter narrows an issue listing.
type IssueFilter struct {
	SprintID   *int64
	Search     string
	Status     string
	Priority   string
	AssigneeID *int64
	Type       string
}

// CreateIssueRequest is the payload for creating an issue.
type CreateIssueRequest struct {
	Type        domain.IssueType     `json:"type" validate:"required,oneof=EPIC STORY TASK BUG"`
	Title       string               `json:"title" validate:"required,max=255"`
	Description *string              `json:"description"`
	Priority    domain.IssuePriority `json:"priority" validate:"omitempty,oneof=HIGHEST HIGH MEDIUM LOW LOWEST"`
	StoryPoints *int                 `json:"story_points" validate:"omitempty,min=0"`
	AssigneeID  *int64               `json:"assignee_id"`
	SprintID    *int64               `json:"sprint_id"`
	ParentKey   *string              `json:"parent_key"`
	DueDate     *domain.Date         `json:"due_date"`
}

// UpdateIssueRequest is the payload for updating an issue. Every field is
// tri-state: absent leaves it alone, null clears it, a value sets it.
type UpdateIssueRequest struct {
	Title       domain.Patch[string]               `json:"title"`
	Description domain.Patch[string]               `json:"description"`
	Status      domain.Patch[domain.IssueStatus]   `json:"status"`
	Priority    domain.Patch[domain.IssuePriority] `json:"priority"`
	StoryPoints domain.Patch[int]                  `json:"story_points"`
	AssigneeID  domain.Patch[int64]                `json:"assignee_id"`
	SprintID    domain.Patch[int64]                `json:"sprint_id"`
	DueDate     domain.Patch[domain.Date]          `json:"due_date"`
	OrderIndex  domain.Patch[int]                  `json:"order_index"`
}

// MoveIssueRequest repositions an issue on the board. The client supplies the
// destination column and array position; no server-side renumbering happens.
type MoveIssueRequest struct {
	Status     domain.IssueStatus `json:"status" validate:"required,oneof=TODO IN_PROGRESS IN_REVIEW DONE"`
	OrderIndex int                `json:"order_index" validate:"min=0"`
}

// IssueService handles issue CRUD, board ordering and the change ledger.
type IssueService struct {
	issues   IssueStore
	projects ProjectStore
	sprints  SprintStore
	history  HistoryStore
	access   AccessChecker
}

// NewIssueService creates a new IssueService.
func NewIssueService(issues IssueStore, projects ProjectStore, sprints SprintStore, history HistoryStore, access AccessChecker) *IssueService {
	return &IssueService{issues: issues, projects: projects, sprints: sprints, history: history, access: access}
}

// List returns a project's issues with optional filters applied.
func (s *IssueService) List(ctx context.Context, projectKey string, filter IssueFilter, userID int64) ([]domain.Issue, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(projectKey))
	if err != nil {
		return nil, err
	}
	if err := s.access.CheckMembership(ctx, project.ID, userID); err != nil {
		return nil, err
	}

	var issues []domain.Issue
	if filter.SprintID != nil {
		issues, err = s.issues.FindAllBySprint(ctx, project.ID, *filter.SprintID)
	} else {
		issues, err = s.issues.FindAllByProject(ctx, project.ID)
	}
	if err != nil {
		return nil, err
	}

	return filterIssues(issues, filter), nil
}

// Backlog returns the project issues not assigned to any sprint.
func (s *IssueService) Backlog(ctx context.Context, projectKey string, userID int64) ([]domain.Issue, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(projectKey))
	if err != nil {
		return nil, err
	}
	if err := s.access.CheckMembership(ctx, project.ID, userID); err != nil {
		return nil, err
	}
	return s.issues.FindBacklog(ctx, project.ID)
}

// Get returns an issue by key, verifying it belongs to the stated project.
func (s *IssueService) Get(ctx context.Context, projectKey, issueKey string, userID int64) (*domain.Issue, error) {
	_, issue, err := s.lookup(ctx, projectKey, issueKey, userID)
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// Create mints the next issue key for the project and appends the issue to
// the end of its TODO column.
func (s *IssueService) Create(ctx context.Context, projectKey string, req CreateIssueRequest, userID int64) (*domain.Issue, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(projectKey))
	if err != nil {
		return nil, err
	}
	if err := s.access.CheckMembership(ctx, project.ID, userID); err != nil {
		return nil, err
	}

	if req.SprintID != nil {
		sprint, err := s.sprints.FindByID(ctx, *req.SprintID)
		if err != nil {
			return nil, err
		}
		if sprint.ProjectID != project.ID {
			return nil, &domain.ValidationError{Field: "sprint_id", Message: "sprint does not belong to this project"}
		}
	}

	var parentID *int64
	if req.ParentKey != nil {
		parent, err := s.issues.FindByKey(ctx, strings.ToUpper(*req.ParentKey))
		if err != nil {
			return nil, err
		}
		if parent.ProjectID != project.ID {
			return nil, &domain.ValidationError{Field: "parent_key", Message: "parent does not belong to this project"}
		}
		parentID = &parent.ID
	}

	number, err := s.projects.NextIssueNumber(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}

	issue := domain.Issue{
		ProjectID:   project.ID,
		SprintID:    req.SprintID,
		Type:        req.Type,
		Key:         fmt.Sprintf("%s-%d", project.Key, number),
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.StatusTodo,
		Priority:    priority,
		StoryPoints: req.StoryPoints,
		CreatorID:   userID,
		AssigneeID:  req.AssigneeID,
		ParentID:    parentID,
		DueDate:     req.DueDate,
	}

	// Append to the TODO column; InsertAt serializes the index computation.
	return s.issues.InsertAt(ctx, issue, -1)
}

// Update applies patch fields to an issue, recording a history entry for
// every tracked field that actually changed. Entries are written only after
// the issue row itself persisted, so a failed update leaves no ledger trace.
func (s *IssueService) Update(ctx context.Context, projectKey, issueKey string, req UpdateIssueRequest, userID int64) (*domain.Issue, error) {
	project, issue, err := s.lookup(ctx, projectKey, issueKey, userID)
	if err != nil {
		return nil, err
	}

	var changes []domain.IssueHistory

	if v, ok := req.Title.Get(); ok && v != issue.Title {
		old := issue.Title
		changes = append(changes, s.change(issue.ID, userID, domain.FieldTitle, &old, &v))
		issue.Title = v
	}

	if req.Description.Present() {
		v, ok := req.Description.Get()
		var next *string
		if ok {
			next = &v
		}
		if !strPtrEqual(issue.Description, next) {
			changes = append(changes, s.change(issue.ID, userID, domain.FieldDescription, issue.Description, next))
			issue.Description = next
		}
	}

	if v, ok := req.Status.Get(); ok && v != issue.Status {
		old := string(issue.Status)
		next := string(v)
		changes = append(changes, s.change(issue.ID, userID, domain.FieldStatus, &old, &next))
		issue.Status = v
	}

	if v, ok := req.Priority.Get(); ok && v != issue.Priority {
		old := string(issue.Priority)
		next := string(v)
		changes = append(changes, s.change(issue.ID, userID, domain.FieldPriority, &old, &next))
		issue.Priority = v
	}

	if req.StoryPoints.Present() {
		v, ok := req.StoryPoints.Get()
		var next *int
		if ok {
			next = &v
		}
		if !intPtrEqual(issue.StoryPoints, next) {
			changes = append(changes, s.change(issue.ID, userID, domain.FieldStoryPoints, intPtrString(issue.StoryPoints), intPtrString(next)))
			issue.StoryPoints = next
		}
	}

	if req.AssigneeID.Present() {
		v, ok := req.AssigneeID.Get()
		var next *int64
		if ok {
			next = &v
		}
		if !int64PtrEqual(issue.AssigneeID, next) {
			changes = append(changes, s.change(issue.ID, userID, domain.FieldAssignee, int64PtrString(issue.AssigneeID), int64PtrString(next)))
			issue.AssigneeID = next
		}
	}

	if req.SprintID.Present() {
		v, ok := req.SprintID.Get()
		var next *int64
		if ok {
			sprint, err := s.sprints.FindByID(ctx, v)
			if err != nil {
				return nil, err
			}
			if sprint.ProjectID != project.ID {
				return nil, &domain.ValidationError{Field: "sprint_id", Message: "sprint does not belong to this project"}
			}
			next = &v
		}
		if !int64PtrEqual(issue.SprintID, next) {
			changes = append(changes, s.change(issue.ID, userID, domain.FieldSprint, int64PtrString(issue.SprintID), int64PtrString(next)))
			issue.SprintID = next
		}
	}

	if req.DueDate.Present() {
		if v, ok := req.DueDate.Get(); ok {
			issue.DueDate = &v
		} else {
			issue.DueDate = nil
		}
	}

	if v, ok := req.OrderIndex.Get(); ok {
		issue.OrderIndex = v
	}

	updated, err := s.issues.Update(ctx, issue)
	if err != nil {
		return nil, err
	}
	s.record(ctx, changes)
	return updated, nil
}

// Move reassigns status and board position. Only a real status change is
// written to the ledger.
func (s *IssueService) Move(ctx context.Context, projectKey, issueKey string, req MoveIssueRequest, userID int64) (*domain.Issue, error) {
	_, issue, err := s.lookup(ctx, projectKey, issueKey, userID)
	if err != nil {
		return nil, err
	}

	oldStatus := issue.Status

	moved, err := s.issues.Move(ctx, issue.ID, req.Status, req.OrderIndex)
	if err != nil {
		return nil, err
	}
	if oldStatus != req.Status {
		old := string(oldStatus)
		next := string(req.Status)
		s.record(ctx, []domain.IssueHistory{s.change(issue.ID, userID, domain.FieldStatus, &old, &next)})
	}
	return moved, nil
}

// Delete removes an issue.
func (s *IssueService) Delete(ctx context.Context, projectKey, issueKey string, userID int64) error {
	_, issue, err := s.lookup(ctx, projectKey, issueKey, userID)
	if err != nil {
		return err
	}
	return s.issues.Delete(ctx, issue.ID)
}

// History returns an issue's change ledger, most recent first.
func (s *IssueService) History(ctx context.Context, projectKey, issueKey string, userID int64) ([]domain.IssueHistory, error) {
	_, issue, err := s.lookup(ctx, projectKey, issueKey, userID)
	if err != nil {
		return nil, err
	}
	return s.history.FindAllByIssue(ctx, issue.ID)
}

func (s *IssueService) lookup(ctx context.Context, projectKey, issueKey string, userID int64) (*domain.Project, *domain.Issue, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(projectKey))
	if err != nil {
		return nil, nil, err
	}
	if err := s.access.CheckMembership(ctx, project.ID, userID); err != nil {
		return nil, nil, err
	}
	issue, err := s.issues.FindByKey(ctx, strings.ToUpper(issueKey))
	if err != nil {
		return nil, nil, err
	}
	if issue.ProjectID != project.ID {
		return nil, nil, domain.ErrNotFound
	}
	return project, issue, nil
}

func (s *IssueService) change(issueID, userID int64, field string, oldValue, newValue *string) domain.IssueHistory {
	return domain.IssueHistory{
		IssueID:   issueID,
		UserID:    userID,
		FieldName: field,
		OldValue:  oldValue,
		NewValue:  newValue,
	}
}

// record appends ledger entries after the issue row itself has persisted.
// Ledger writes are not allowed to fail the surrounding update, matching the
// original system's fire-and-forget audit behavior, but they are not silently
// dropped either.
func (s *IssueService) record(ctx context.Context, entries []domain.IssueHistory) {
	for _, e := range entries {
		if err := s.history.Append(ctx, e); err != nil {
			slog.Warn("history append failed", "issue_id", e.IssueID, "field", e.FieldName, "error", err)
		}
	}
}

func filterIssues(issues []domain.Issue, filter IssueFilter) []domain.Issue {
	out := issues
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		out = keep(out, func(i domain.Issue) bool {
			if strings.Contains(strings.ToLower(i.Title), needle) ||
				strings.Contains(strings.ToLower(i.Key), needle) {
				return true
			}
			return i.Description != nil && strings.Contains(strings.ToLower(*i.Description), needle)
		})
	}
	if filter.Status != "" {
		status := domain.IssueStatus(strings.ToUpper(filter.Status))
		out = keep(out, func(i domain.Issue) bool { return i.Status == status })
	}
	if filter.Priority != "" {
		priority := domain.IssuePriority(strings.ToUpper(filter.Priority))
		out = keep(out, func(i domain.Issue) bool { return i.Priority == priority })
	}
	if filter.AssigneeID != nil {
		out = keep(out, func(i domain.Issue) bool {
			return i.AssigneeID != nil && *i.AssigneeID == *filter.AssigneeID
		})
	}
	if filter.Type != "" {
		typ := domain.IssueType(strings.ToUpper(filter.Type))
		out = keep(out, func(i domain.Issue) bool { return i.Type == typ })
	}
	return out
}

func keep(issues []domain.Issue, pred func(domain.Issue) bool) []domain.Issue {
	out := issues[:0:0]
	for _, i := range issues {
		if pred(i) {
			out = append(out, i)
		}
	}
	return out
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrString(v *int) *string {
	if v == nil {
		return nil
	}
	s := strconv.Itoa(*v)
	return &s
}

func int64PtrString(v *int64) *string {
	if v == nil {
		return nil
	}
	s := strconv.FormatInt(*v, 10)
	return &s
}
