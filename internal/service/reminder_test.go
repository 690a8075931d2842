package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirahq/mira/internal/domain"
)

type fakeDueIssueStore struct {
	byDate  map[string][]domain.DueIssue
	overdue []domain.DueIssue
}

func (s *fakeDueIssueStore) FindDueOn(_ context.Context, date domain.Date) ([]domain.DueIssue, error) {
	return s.byDate[date.String()], nil
}

func (s *fakeDueIssueStore) FindOverdue(_ context.Context, _ domain.Date) ([]domain.DueIssue, error) {
	return s.overdue, nil
}

func dueIssue(key, title string, assigneeID *int64, due domain.Date) domain.DueIssue {
	return domain.DueIssue{
		Issue: domain.Issue{
			Key:        key,
			Title:      title,
			AssigneeID: assigneeID,
			DueDate:    &due,
		},
		ProjectKey: "MIRA",
	}
}

func TestReminderRun(t *testing.T) {
	today := domain.NewDate(2026, 3, 10)
	store := &fakeDueIssueStore{
		byDate: map[string][]domain.DueIssue{
			"2026-03-10": {dueIssue("MIRA-1", "Ship it", int64Ptr(7), today)},
			"2026-03-11": {dueIssue("MIRA-2", "Review", int64Ptr(8), today.AddDays(1))},
		},
		overdue: []domain.DueIssue{
			dueIssue("MIRA-3", "Old task", int64Ptr(7), domain.NewDate(2026, 3, 1)),
		},
	}
	notifier := &fakeNotifier{}
	svc := NewReminderService(store, notifier)

	require.NoError(t, svc.Run(context.Background(), today))

	require.Len(t, notifier.sent, 3)

	byType := make(map[domain.NotificationType]sentNotification)
	for _, n := range notifier.sent {
		byType[n.Type] = n
	}

	dueToday := byType[domain.NotificationIssueDueToday]
	assert.EqualValues(t, 7, dueToday.UserID)
	assert.Equal(t, "MIRA-1: Ship it is due today", dueToday.Message)
	require.NotNil(t, dueToday.Data)
	assert.Contains(t, *dueToday.Data, `"issue_key": "MIRA-1"`)

	assert.Equal(t, "MIRA-2: Review is due tomorrow", byType[domain.NotificationIssueDueTomorrow].Message)
	assert.Equal(t, "MIRA-3: Old task is overdue (was due 2026-03-01)", byType[domain.NotificationIssueOverdue].Message)
}

func TestReminderSkipsUnassignedIssues(t *testing.T) {
	today := domain.NewDate(2026, 3, 10)
	store := &fakeDueIssueStore{
		byDate: map[string][]domain.DueIssue{
			"2026-03-10": {
				dueIssue("MIRA-1", "Assigned", int64Ptr(7), today),
				dueIssue("MIRA-2", "Unassigned", nil, today),
			},
		},
	}
	notifier := &fakeNotifier{}
	svc := NewReminderService(store, notifier)

	require.NoError(t, svc.Run(context.Background(), today))

	require.Len(t, notifier.sent, 1)
	assert.EqualValues(t, 7, notifier.sent[0].UserID)
}

func TestReminderContinuesAfterNotifyFailure(t *testing.T) {
	today := domain.NewDate(2026, 3, 10)
	store := &fakeDueIssueStore{
		byDate: map[string][]domain.DueIssue{
			"2026-03-10": {dueIssue("MIRA-1", "Task", int64Ptr(7), today)},
		},
	}
	notifier := &fakeNotifier{err: assert.AnError}
	svc := NewReminderService(store, notifier)

	// A failed delivery is logged, not fatal.
	require.NoError(t, svc.Run(context.Background(), today))
	assert.Empty(t, notifier.sent)
}
