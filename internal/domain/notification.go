package domain

import "time"

// NotificationType represents the kind of notification.
type NotificationType string

const (
	NotificationSprintCompleted  NotificationType = "sprint_completed"
	NotificationIssueAssigned    NotificationType = "issue_assigned"
	NotificationIssueDueToday    NotificationType = "issue_due_today"
	NotificationIssueDueTomorrow NotificationType = "issue_due_tomorrow"
	NotificationIssueOverdue     NotificationType = "issue_overdue"
	NotificationMemberAdded      NotificationType = "member_added"
	NotificationTeamInvitation   NotificationType = "team_invitation"
)

// Notification represents an in-app notification for a user. Data carries an
// optional JSON context payload (project key, issue key, sprint id).
type Notification struct {
	ID        int64            `json:"id" db:"id"`
	UserID    int64            `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	Data      *string          `json:"data,omitempty" db:"data"`
	Read      bool             `json:"read" db:"read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}
