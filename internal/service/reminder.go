package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mirahq/mira/internal/domain"
)

// DueIssueStore defines the due-date queries consumed by ReminderService.
type DueIssueStore interface {
	FindDueOn(ctx context.Context, date domain.Date) ([]domain.DueIssue, error)
	FindOverdue(ctx context.Context, before domain.Date) ([]domain.DueIssue, error)
}

// ReminderService runs the daily due-date sweep: issues due today, due
// tomorrow and overdue each produce one notification to their assignee.
// Unassigned issues are skipped. The sweep is scheduled by cron in
// cmd/server.
type ReminderService struct {
	issues   DueIssueStore
	notifier Notifier
}

// NewReminderService creates a new ReminderService.
func NewReminderService(issues DueIssueStore, notifier Notifier) *ReminderService {
	return &ReminderService{issues: issues, notifier: notifier}
}

// Run executes one sweep relative to the given date.
func (s *ReminderService) Run(ctx context.Context, today domain.Date) error {
	dueToday, err := s.issues.FindDueOn(ctx, today)
	if err != nil {
		return fmt.Errorf("find issues due today: %w", err)
	}
	sent := s.remind(ctx, dueToday, domain.NotificationIssueDueToday, "Issue Due Today",
		func(i domain.DueIssue) string {
			return fmt.Sprintf("%s: %s is due today", i.Key, i.Title)
		})
	slog.Info("due today reminders sent", "count", sent)

	dueTomorrow, err := s.issues.FindDueOn(ctx, today.AddDays(1))
	if err != nil {
		return fmt.Errorf("find issues due tomorrow: %w", err)
	}
	sent = s.remind(ctx, dueTomorrow, domain.NotificationIssueDueTomorrow, "Issue Due Tomorrow",
		func(i domain.DueIssue) string {
			return fmt.Sprintf("%s: %s is due tomorrow", i.Key, i.Title)
		})
	slog.Info("due tomorrow reminders sent", "count", sent)

	overdue, err := s.issues.FindOverdue(ctx, today)
	if err != nil {
		return fmt.Errorf("find overdue issues: %w", err)
	}
	sent = s.remind(ctx, overdue, domain.NotificationIssueOverdue, "Issue Overdue",
		func(i domain.DueIssue) string {
			return fmt.Sprintf("%s: %s is overdue (was due %s)", i.Key, i.Title, i.DueDate)
		})
	slog.Info("overdue reminders sent", "count", sent)

	return nil
}

func (s *ReminderService) remind(ctx context.Context, issues []domain.DueIssue, typ domain.NotificationType, title string, message func(domain.DueIssue) string) int {
	sent := 0
	for _, issue := range issues {
		if issue.AssigneeID == nil {
			continue
		}
		data := fmt.Sprintf(`{"project_key": %q, "issue_key": %q}`, issue.ProjectKey, issue.Key)
		err := s.notifier.Notify(ctx, *issue.AssigneeID, typ, title, message(issue), &data)
		if err != nil {
			slog.Warn("reminder notification failed", "issue_key", issue.Key, "error", err)
			continue
		}
		sent++
	}
	return sent
}
