package notification

import (
	"context"
	"log/slog"
	"sync"
)

// MockNotifier records every notification. Set Err to make Send fail.
type MockNotifier struct {
	mu                sync.Mutex
	SentNotifications []NotificationData
	Err               error
}

func (m *MockNotifier) Send(ctx context.Context, notification NotificationData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.SentNotifications = append(m.SentNotifications, notification)
	return nil
}

// Last returns the most recent notification, if any.
func (m *MockNotifier) Last() (NotificationData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.SentNotifications) == 0 {
		return NotificationData{}, false
	}
	return m.SentNotifications[len(m.SentNotifications)-1], true
}

func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SentNotifications)
}

// LogNotifier writes notifications to the log instead of delivering them.
// Only meant for local development: the log will contain login codes.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, notification NotificationData) error {
	slog.InfoContext(ctx, "Notification", "to", notification.To, "subject", notification.Subject, "body", notification.Body)
	return nil
}
