package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/priobox/internal/model"
)

// CreateNotification inserts a new notification record.
func (s *SQLiteStore) CreateNotification(
	ctx context.Context,
	n model.Notification,
) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, message_id, account_id, sender, title, text, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.MessageID, n.AccountID, n.Sender, n.Title, n.Text,
		boolToInt(n.Read), n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}

	s.bus.publish(Change{Kind: ChangeNotifications, AccountID: n.AccountID})
	return nil
}

// ListNotifications retrieves notifications ordered by creation time
// descending, optionally only the unread ones.
func (s *SQLiteStore) ListNotifications(
	ctx context.Context,
	unreadOnly bool,
) ([]model.Notification, error) {
	query := `
		SELECT id, message_id, account_id, sender, title, text, read, created_at
		FROM notifications`
	if unreadOnly {
		query += " WHERE read = 0"
	}
	query += " ORDER BY created_at DESC"

	var notifications []model.Notification
	if err := s.db.SelectContext(ctx, &notifications, query); err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead marks a single notification as read.
func (s *SQLiteStore) MarkNotificationRead(
	ctx context.Context,
	id string,
) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}

	s.bus.publish(Change{Kind: ChangeNotifications})
	return nil
}
