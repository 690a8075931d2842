package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mirahq/mira/internal/domain"
)

// SprintStore defines the sprint data access interface consumed by
// SprintService. Start and Complete carry the lifecycle guarantees: Start is
// rejected by the store when the sprint is not PLANNING or another sprint in
// the project is ACTIVE, and Complete commits redistribution and the state
// transition atomically.
type SprintStore interface {
	FindByID(ctx context.Context, id int64) (*domain.Sprint, error)
	FindAllByProject(ctx context.Context, projectID int64) ([]domain.Sprint, error)
	Create(ctx context.Context, sprint domain.Sprint) (*domain.Sprint, error)
	Update(ctx context.Context, sprint *domain.Sprint) (*domain.Sprint, error)
	Start(ctx context.Context, id int64) error
	Complete(ctx context.Context, id int64, action domain.IncompleteIssueAction, targetSprintID *int64, incompleteIDs []int64) error
}

// Notifier is the notification sink collaborator.
type Notifier interface {
	Notify(ctx context.Context, userID int64, typ domain.NotificationType, title, message string, data *string) error
}

// CreateSprintRequest is the payload for creating a sprint.
type CreateSprintRequest struct {
	Name      string      `json:"name" validate:"required,max=120"`
	Goal      *string     `json:"goal"`
	StartDate domain.Date `json:"start_date" validate:"required"`
	EndDate   domain.Date `json:"end_date" validate:"required"`
}

// UpdateSprintRequest is the payload for updating a sprint.
type UpdateSprintRequest struct {
	Name      domain.Patch[string]      `json:"name"`
	Goal      domain.Patch[string]      `json:"goal"`
	StartDate domain.Patch[domain.Date] `json:"start_date"`
	EndDate   domain.Patch[domain.Date] `json:"end_date"`
}

// CompleteSprintRequest chooses the fate of issues not DONE at completion.
type CompleteSprintRequest struct {
	IncompleteIssueAction domain.IncompleteIssueAction `json:"incomplete_issue_action" validate:"omitempty,oneof=MOVE_TO_BACKLOG MOVE_TO_SPRINT"`
	TargetSprintID        *int64                       `json:"target_sprint_id"`
}

// SprintService governs the sprint lifecycle, completion redistribution and
// burndown analytics.
type SprintService struct {
	sprints  SprintStore
	issues   IssueStore
	history  HistoryStore
	projects ProjectStore
	access   AccessChecker
	notifier Notifier
}

// NewSprintService creates a new SprintService.
func NewSprintService(sprints SprintStore, issues IssueStore, history HistoryStore, projects ProjectStore, access AccessChecker, notifier Notifier) *SprintService {
	return &SprintService{
		sprints:  sprints,
		issues:   issues,
		history:  history,
		projects: projects,
		access:   access,
		notifier: notifier,
	}
}

// List returns a project's sprints, most recent start first.
func (s *SprintService) List(ctx context.Context, projectKey string, userID int64) ([]domain.Sprint, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(projectKey))
	if err != nil {
		return nil, err
	}
	if err := s.access.CheckMembership(ctx, project.ID, userID); err != nil {
		return nil, err
	}
	return s.sprints.FindAllByProject(ctx, project.ID)
}

// Get returns a sprint, verifying it belongs to the stated project.
func (s *SprintService) Get(ctx context.Context, projectKey string, sprintID, userID int64) (*domain.Sprint, error) {
	_, sprint, err := s.lookup(ctx, projectKey, sprintID, userID, false)
	return sprint, err
}

// Create creates a sprint in PLANNING state. Requires admin access.
func (s *SprintService) Create(ctx context.Context, projectKey string, req CreateSprintRequest, userID int64) (*domain.Sprint, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(projectKey))
	if err != nil {
		return nil, err
	}
	if err := s.access.CheckAdminAccess(ctx, project.ID, userID); err != nil {
		return nil, err
	}
	if req.EndDate.Before(req.StartDate.Time) {
		return nil, &domain.ValidationError{Field: "end_date", Message: "end date must not be before start date"}
	}

	return s.sprints.Create(ctx, domain.Sprint{
		ProjectID: project.ID,
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
}

// CreateNext creates the follow-up sprint: it starts the day after the last
// sprint ends (today when the project has none), runs for the project's
// default sprint length, and is named "Sprint {n+1}".
func (s *SprintService) CreateNext(ctx context.Context, projectKey string, userID int64) (*domain.Sprint, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(projectKey))
	if err != nil {
		return nil, err
	}
	if err := s.access.CheckAdminAccess(ctx, project.ID, userID); err != nil {
		return nil, err
	}

	sprints, err := s.sprints.FindAllByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	startDate := domain.Today()
	if len(sprints) > 0 {
		startDate = sprints[0].EndDate.AddDays(1)
	}
	endDate := startDate.AddDays(7 * project.DefaultSprintWeeks)

	return s.sprints.Create(ctx, domain.Sprint{
		ProjectID: project.ID,
		Name:      fmt.Sprintf("Sprint %d", len(sprints)+1),
		StartDate: startDate,
		EndDate:   endDate,
	})
}

// Update applies patch fields to a sprint. Requires admin access.
func (s *SprintService) Update(ctx context.Context, projectKey string, sprintID int64, req UpdateSprintRequest, userID int64) (*domain.Sprint, error) {
	_, sprint, err := s.lookup(ctx, projectKey, sprintID, userID, true)
	if err != nil {
		return nil, err
	}

	if v, ok := req.Name.Get(); ok {
		sprint.Name = v
	}
	if req.Goal.Present() {
		if v, ok := req.Goal.Get(); ok {
			sprint.Goal = &v
		} else {
			sprint.Goal = nil
		}
	}
	if v, ok := req.StartDate.Get(); ok {
		sprint.StartDate = v
	}
	if v, ok := req.EndDate.Get(); ok {
		sprint.EndDate = v
	}
	if sprint.EndDate.Before(sprint.StartDate.Time) {
		return nil, &domain.ValidationError{Field: "end_date", Message: "end date must not be before start date"}
	}

	return s.sprints.Update(ctx, sprint)
}

// Start transitions a sprint from PLANNING to ACTIVE. The store rejects the
// transition when the sprint is not PLANNING or the project already has an
// active sprint; there is no application-level pre-check to race against.
func (s *SprintService) Start(ctx context.Context, projectKey string, sprintID, userID int64) (*domain.Sprint, error) {
	_, sprint, err := s.lookup(ctx, projectKey, sprintID, userID, true)
	if err != nil {
		return nil, err
	}

	if err := s.sprints.Start(ctx, sprint.ID); err != nil {
		return nil, err
	}
	return s.sprints.FindByID(ctx, sprint.ID)
}

// Complete closes an ACTIVE sprint. It snapshots the sprint's issues,
// redistributes the incomplete ones per the requested policy, marks the
// sprint COMPLETED (all in one store transaction), then notifies every
// project member. The returned summary reflects the snapshot counts, not a
// recount after redistribution.
func (s *SprintService) Complete(ctx context.Context, projectKey string, sprintID int64, req CompleteSprintRequest, userID int64) (*domain.SprintSummary, error) {
	project, sprint, err := s.lookup(ctx, projectKey, sprintID, userID, true)
	if err != nil {
		return nil, err
	}
	if sprint.Status != domain.SprintActive {
		return nil, fmt.Errorf("%w: sprint is not active", domain.ErrState)
	}

	action := req.IncompleteIssueAction
	if action == "" {
		action = domain.MoveToBacklog
	}

	all, err := s.issues.FindAllBySprint(ctx, project.ID, sprint.ID)
	if err != nil {
		return nil, err
	}

	var completed, incomplete []domain.Issue
	for _, issue := range all {
		if issue.Status == domain.StatusDone {
			completed = append(completed, issue)
		} else {
			incomplete = append(incomplete, issue)
		}
	}

	var targetSprintID *int64
	if action == domain.MoveToSprint {
		if req.TargetSprintID == nil {
			return nil, &domain.ValidationError{Field: "target_sprint_id", Message: "target sprint is required"}
		}
		target, err := s.sprints.FindByID(ctx, *req.TargetSprintID)
		if err != nil {
			return nil, &domain.ValidationError{Field: "target_sprint_id", Message: "target sprint not found"}
		}
		if target.ProjectID != project.ID {
			return nil, &domain.ValidationError{Field: "target_sprint_id", Message: "target sprint does not belong to this project"}
		}
		targetSprintID = &target.ID
	}

	incompleteIDs := make([]int64, 0, len(incomplete))
	for _, issue := range incomplete {
		incompleteIDs = append(incompleteIDs, issue.ID)
	}

	if err := s.sprints.Complete(ctx, sprint.ID, action, targetSprintID, incompleteIDs); err != nil {
		return nil, err
	}

	updated, err := s.sprints.FindByID(ctx, sprint.ID)
	if err != nil {
		return nil, err
	}

	s.notifyCompletion(ctx, project, updated, len(completed), len(all))

	return &domain.SprintSummary{
		Sprint:           updated,
		TotalIssues:      len(all),
		CompletedIssues:  len(completed),
		IncompleteIssues: len(incomplete),
	}, nil
}

// Summary returns the current issue tally of a sprint.
func (s *SprintService) Summary(ctx context.Context, projectKey string, sprintID, userID int64) (*domain.SprintSummary, error) {
	project, sprint, err := s.lookup(ctx, projectKey, sprintID, userID, false)
	if err != nil {
		return nil, err
	}

	all, err := s.issues.FindAllBySprint(ctx, project.ID, sprint.ID)
	if err != nil {
		return nil, err
	}

	completed := 0
	for _, issue := range all {
		if issue.Status == domain.StatusDone {
			completed++
		}
	}

	return &domain.SprintSummary{
		Sprint:           sprint,
		TotalIssues:      len(all),
		CompletedIssues:  completed,
		IncompleteIssues: len(all) - completed,
	}, nil
}

// Burndown returns the day-by-day remaining story points of a sprint against
// an ideal linear decay.
func (s *SprintService) Burndown(ctx context.Context, projectKey string, sprintID, userID int64) (*domain.BurndownChart, error) {
	project, sprint, err := s.lookup(ctx, projectKey, sprintID, userID, false)
	if err != nil {
		return nil, err
	}

	issues, err := s.issues.FindAllBySprint(ctx, project.ID, sprint.ID)
	if err != nil {
		return nil, err
	}

	issueIDs := make([]int64, 0, len(issues))
	for _, issue := range issues {
		issueIDs = append(issueIDs, issue.ID)
	}

	transitions, err := s.history.FindDoneTransitions(ctx, issueIDs)
	if err != nil {
		return nil, err
	}

	return buildBurndown(sprint, issues, transitions), nil
}

// notifyCompletion fans out one notification per project member. Delivery is
// best-effort: a failed write is logged and must not fail the completed
// sprint, which has already committed.
func (s *SprintService) notifyCompletion(ctx context.Context, project *domain.Project, sprint *domain.Sprint, completed, total int) {
	members, err := s.projects.ListMembers(ctx, project.ID)
	if err != nil {
		slog.Warn("sprint completion fan-out: list members failed",
			"project_id", project.ID, "sprint_id", sprint.ID, "error", err)
		return
	}

	data := fmt.Sprintf(`{"project_key": %q, "sprint_id": %d}`, project.Key, sprint.ID)
	message := fmt.Sprintf("Sprint '%s' has been completed. %d/%d issues done.", sprint.Name, completed, total)
	for _, member := range members {
		err := s.notifier.Notify(ctx, member.UserID, domain.NotificationSprintCompleted,
			"Sprint Completed", message, &data)
		if err != nil {
			slog.Warn("sprint completion notification failed",
				"user_id", member.UserID, "sprint_id", sprint.ID, "error", err)
		}
	}
}

// lookup resolves project and sprint, verifies ownership and runs the
// required access check (admin for state-changing callers, membership
// otherwise).
func (s *SprintService) lookup(ctx context.Context, projectKey string, sprintID, userID int64, admin bool) (*domain.Project, *domain.Sprint, error) {
	project, err := s.projects.FindByKey(ctx, strings.ToUpper(projectKey))
	if err != nil {
		return nil, nil, err
	}
	if admin {
		err = s.access.CheckAdminAccess(ctx, project.ID, userID)
	} else {
		err = s.access.CheckMembership(ctx, project.ID, userID)
	}
	if err != nil {
		return nil, nil, err
	}

	sprint, err := s.sprints.FindByID(ctx, sprintID)
	if err != nil {
		return nil, nil, err
	}
	if sprint.ProjectID != project.ID {
		return nil, nil, domain.ErrNotFound
	}
	return project, sprint, nil
}
