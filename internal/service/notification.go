package service

import (
	"context"

	"github.com/mirahq/mira/internal/domain"
)

// NotificationStore defines the notification data access interface.
type NotificationStore interface {
	Create(ctx context.Context, n domain.Notification) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, id, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) error
}

// Pusher delivers real-time payloads to connected clients. Delivery is
// best-effort and never returns an error to the caller.
type Pusher interface {
	Push(userID int64, payload any)
}

// NotificationList is a page of notifications with the unread tally.
type NotificationList struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

// NotificationService persists notifications and pushes them to connected
// WebSocket clients.
type NotificationService struct {
	store  NotificationStore
	pusher Pusher
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(store NotificationStore, pusher Pusher) *NotificationService {
	return &NotificationService{store: store, pusher: pusher}
}

// Notify persists a notification and pushes it to the user's live
// connections. It implements the Notifier collaborator.
func (s *NotificationService) Notify(ctx context.Context, userID int64, typ domain.NotificationType, title, message string, data *string) error {
	n, err := s.store.Create(ctx, domain.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Data:    data,
	})
	if err != nil {
		return err
	}
	s.pusher.Push(userID, n)
	return nil
}

// List returns the most recent notifications and the unread count.
func (s *NotificationService) List(ctx context.Context, userID int64, limit int) (*NotificationList, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	notifications, err := s.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}
	return &NotificationList{Notifications: notifications, UnreadCount: unread}, nil
}

// UnreadCount returns the number of unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.store.UnreadCount(ctx, userID)
}

// MarkRead marks one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID int64) error {
	return s.store.MarkRead(ctx, id, userID)
}

// MarkAllRead marks every notification of the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) error {
	return s.store.MarkAllRead(ctx, userID)
}
