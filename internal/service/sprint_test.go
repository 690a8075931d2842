package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirahq/mira/internal/domain"
)

type sprintFixture struct {
	projects *fakeProjectStore
	issues   *fakeIssueStore
	sprints  *fakeSprintStore
	history  *fakeHistoryStore
	notifier *fakeNotifier
	svc      *SprintService
}

// newSprintFixture builds a project MIRA (id 1) owned by user 1 with user 2
// as a plain member, and wires a SprintService over in-memory stores. The
// real ProjectService is used as the access checker.
func newSprintFixture(t *testing.T, sprints ...*domain.Sprint) *sprintFixture {
	t.Helper()

	projects := newFakeProjectStore()
	projects.add(
		&domain.Project{Key: "MIRA", Name: "Mira", OwnerID: 1},
		domain.ProjectMember{ProjectID: 1, UserID: 1, Role: domain.RoleOwner},
		domain.ProjectMember{ProjectID: 1, UserID: 2, Role: domain.RoleMember},
	)

	issues := newFakeIssueStore()
	sprintStore := newFakeSprintStore(issues, sprints...)
	history := &fakeHistoryStore{}
	notifier := &fakeNotifier{}

	access := NewProjectService(projects, newFakeUserStore())

	return &sprintFixture{
		projects: projects,
		issues:   issues,
		sprints:  sprintStore,
		history:  history,
		notifier: notifier,
		svc:      NewSprintService(sprintStore, issues, history, projects, access, notifier),
	}
}

func (f *sprintFixture) addIssues(sprintID int64, total, done int) {
	for i := 0; i < total; i++ {
		status := domain.StatusInProgress
		if i < done {
			status = domain.StatusDone
		}
		f.issues.nextID++
		id := f.issues.nextID
		f.issues.issues[id] = &domain.Issue{
			ID:        id,
			ProjectID: 1,
			SprintID:  int64Ptr(sprintID),
			Key:       fmt.Sprintf("MIRA-%d", id),
			Title:     fmt.Sprintf("Issue %d", id),
			Status:    status,
			Priority:  domain.PriorityMedium,
			CreatorID: 1,
		}
	}
}

func TestSprintStart(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintPlanning,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
	)

	sprint, err := f.svc.Start(context.Background(), "MIRA", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.SprintActive, sprint.Status)
}

func TestSprintStartRejectedWhileAnotherActive(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintActive,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
		&domain.Sprint{ID: 2, ProjectID: 1, Name: "Sprint 2", Status: domain.SprintPlanning,
			StartDate: domain.NewDate(2026, 3, 17), EndDate: domain.NewDate(2026, 3, 31)},
	)

	_, err := f.svc.Start(context.Background(), "MIRA", 2, 1)
	require.ErrorIs(t, err, domain.ErrState)

	// The planning sprint must be untouched.
	assert.Equal(t, domain.SprintPlanning, f.sprints.sprints[2].Status)
}

func TestSprintStartRejectedWhenNotPlanning(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintCompleted,
			StartDate: domain.NewDate(2026, 2, 2), EndDate: domain.NewDate(2026, 2, 16)},
	)

	_, err := f.svc.Start(context.Background(), "MIRA", 1, 1)
	require.ErrorIs(t, err, domain.ErrState)
}

func TestSprintStartRequiresAdmin(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintPlanning,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
	)

	_, err := f.svc.Start(context.Background(), "MIRA", 1, 2)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSprintCompleteMoveToBacklog(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintActive,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
	)
	f.addIssues(1, 10, 7)

	summary, err := f.svc.Complete(context.Background(), "MIRA", 1,
		CompleteSprintRequest{IncompleteIssueAction: domain.MoveToBacklog}, 1)
	require.NoError(t, err)

	assert.Equal(t, 10, summary.TotalIssues)
	assert.Equal(t, 7, summary.CompletedIssues)
	assert.Equal(t, 3, summary.IncompleteIssues)
	assert.Equal(t, domain.SprintCompleted, summary.Sprint.Status)

	// Incomplete issues went to the backlog, completed ones keep the link.
	for _, issue := range f.issues.issues {
		if issue.Status == domain.StatusDone {
			require.NotNil(t, issue.SprintID)
		} else {
			assert.Nil(t, issue.SprintID, "issue %s should be in the backlog", issue.Key)
		}
	}
}

func TestSprintCompleteDefaultsToBacklog(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintActive,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
	)
	f.addIssues(1, 2, 0)

	_, err := f.svc.Complete(context.Background(), "MIRA", 1, CompleteSprintRequest{}, 1)
	require.NoError(t, err)

	for _, issue := range f.issues.issues {
		assert.Nil(t, issue.SprintID)
	}
}

func TestSprintCompleteMoveToSprint(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintActive,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
		&domain.Sprint{ID: 2, ProjectID: 1, Name: "Sprint 2", Status: domain.SprintPlanning,
			StartDate: domain.NewDate(2026, 3, 17), EndDate: domain.NewDate(2026, 3, 31)},
	)
	f.addIssues(1, 5, 3)

	summary, err := f.svc.Complete(context.Background(), "MIRA", 1,
		CompleteSprintRequest{IncompleteIssueAction: domain.MoveToSprint, TargetSprintID: int64Ptr(2)}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.IncompleteIssues)

	moved := 0
	for _, issue := range f.issues.issues {
		if issue.SprintID != nil && *issue.SprintID == 2 {
			moved++
			assert.NotEqual(t, domain.StatusDone, issue.Status)
		}
	}
	assert.Equal(t, 2, moved)
}

func TestSprintCompleteMoveToSprintRequiresTarget(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintActive,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
	)

	_, err := f.svc.Complete(context.Background(), "MIRA", 1,
		CompleteSprintRequest{IncompleteIssueAction: domain.MoveToSprint}, 1)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "target_sprint_id", verr.Field)
}

func TestSprintCompleteRejectsForeignTargetSprint(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintActive,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
		&domain.Sprint{ID: 9, ProjectID: 42, Name: "Other", Status: domain.SprintPlanning,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
	)
	f.addIssues(1, 3, 1)

	_, err := f.svc.Complete(context.Background(), "MIRA", 1,
		CompleteSprintRequest{IncompleteIssueAction: domain.MoveToSprint, TargetSprintID: int64Ptr(9)}, 1)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	// Nothing may have been mutated.
	assert.Equal(t, domain.SprintActive, f.sprints.sprints[1].Status)
	for _, issue := range f.issues.issues {
		require.NotNil(t, issue.SprintID)
		assert.EqualValues(t, 1, *issue.SprintID)
	}
	assert.Empty(t, f.notifier.sent)
}

func TestSprintCompleteRejectedWhenNotActive(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintPlanning,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
	)

	_, err := f.svc.Complete(context.Background(), "MIRA", 1, CompleteSprintRequest{}, 1)
	require.ErrorIs(t, err, domain.ErrState)
}

func TestSprintCompleteNotifiesAllMembers(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintActive,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
	)
	f.addIssues(1, 4, 4)

	_, err := f.svc.Complete(context.Background(), "MIRA", 1, CompleteSprintRequest{}, 1)
	require.NoError(t, err)

	require.Len(t, f.notifier.sent, 2)
	recipients := []int64{f.notifier.sent[0].UserID, f.notifier.sent[1].UserID}
	assert.ElementsMatch(t, []int64{1, 2}, recipients)
	for _, n := range f.notifier.sent {
		assert.Equal(t, domain.NotificationSprintCompleted, n.Type)
		assert.Equal(t, "Sprint 'Sprint 1' has been completed. 4/4 issues done.", n.Message)
		require.NotNil(t, n.Data)
		assert.Contains(t, *n.Data, `"project_key": "MIRA"`)
	}
}

func TestSprintCompleteSurvivesNotificationFailure(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintActive,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
	)
	f.notifier.err = fmt.Errorf("notification store down")

	summary, err := f.svc.Complete(context.Background(), "MIRA", 1, CompleteSprintRequest{}, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.SprintCompleted, summary.Sprint.Status)
}

func TestSprintCreateRejectsEndBeforeStart(t *testing.T) {
	f := newSprintFixture(t)

	_, err := f.svc.Create(context.Background(), "MIRA", CreateSprintRequest{
		Name:      "Sprint 1",
		StartDate: domain.NewDate(2026, 3, 16),
		EndDate:   domain.NewDate(2026, 3, 2),
	}, 1)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "end_date", verr.Field)
}

func TestSprintCreateNext(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintCompleted,
			StartDate: domain.NewDate(2026, 2, 16), EndDate: domain.NewDate(2026, 3, 1)},
	)

	sprint, err := f.svc.CreateNext(context.Background(), "MIRA", 1)
	require.NoError(t, err)

	assert.Equal(t, "Sprint 2", sprint.Name)
	assert.Equal(t, domain.SprintPlanning, sprint.Status)
	assert.Equal(t, "2026-03-02", sprint.StartDate.String())
	assert.Equal(t, "2026-03-16", sprint.EndDate.String())
}

func TestSprintCreateNextFirstSprintStartsToday(t *testing.T) {
	f := newSprintFixture(t)

	sprint, err := f.svc.CreateNext(context.Background(), "MIRA", 1)
	require.NoError(t, err)

	today := domain.Today()
	assert.Equal(t, "Sprint 1", sprint.Name)
	assert.Equal(t, today.String(), sprint.StartDate.String())
	assert.Equal(t, today.AddDays(14).String(), sprint.EndDate.String())
}

func TestSprintSummary(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintActive,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
	)
	f.addIssues(1, 6, 2)

	summary, err := f.svc.Summary(context.Background(), "MIRA", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.TotalIssues)
	assert.Equal(t, 2, summary.CompletedIssues)
	assert.Equal(t, 4, summary.IncompleteIssues)
}

func TestSprintGetRejectsForeignSprint(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 7, ProjectID: 99, Name: "Elsewhere", Status: domain.SprintPlanning,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
	)

	_, err := f.svc.Get(context.Background(), "MIRA", 7, 1)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSprintUpdateRejectsInvertedDates(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintPlanning,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 16)},
	)

	_, err := f.svc.Update(context.Background(), "MIRA", 1, UpdateSprintRequest{
		EndDate: domain.PatchValue(domain.NewDate(2026, 3, 1)),
	}, 1)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSprintBurndownUsesFirstDoneTransition(t *testing.T) {
	f := newSprintFixture(t,
		&domain.Sprint{ID: 1, ProjectID: 1, Name: "Sprint 1", Status: domain.SprintActive,
			StartDate: domain.NewDate(2026, 3, 2), EndDate: domain.NewDate(2026, 3, 6)},
	)

	f.issues.issues[1] = &domain.Issue{
		ID: 1, ProjectID: 1, SprintID: int64Ptr(1), Key: "MIRA-1",
		Title: "Story", Status: domain.StatusDone, StoryPoints: intPtr(8), CreatorID: 1,
	}
	f.issues.nextID = 1

	done := string(domain.StatusDone)
	inProgress := string(domain.StatusInProgress)
	f.history.entries = []domain.IssueHistory{
		{IssueID: 1, FieldName: domain.FieldStatus, NewValue: &done,
			CreatedAt: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)},
		{IssueID: 1, FieldName: domain.FieldStatus, NewValue: &inProgress,
			CreatedAt: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)},
		{IssueID: 1, FieldName: domain.FieldStatus, NewValue: &done,
			CreatedAt: time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)},
	}

	chart, err := f.svc.Burndown(context.Background(), "MIRA", 1, 2)
	require.NoError(t, err)

	require.Len(t, chart.DataPoints, 5)
	// Charged once, at the first DONE transition on Mar 3.
	assert.Equal(t, 8, chart.DataPoints[0].RemainingPoints)
	assert.Equal(t, 0, chart.DataPoints[1].RemainingPoints)
	assert.Equal(t, 0, chart.DataPoints[2].RemainingPoints)
	assert.Equal(t, 0, chart.DataPoints[4].RemainingPoints)
}
