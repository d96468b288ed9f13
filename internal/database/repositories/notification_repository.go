package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/deckbinder/deckbinder/internal/database/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetRecentByUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) error
}

type notificationRepository struct {
	db *bun.DB
}

func NewNotificationRepository(db *bun.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	notification.CreatedAt = time.Now()
	_, err := r.db.NewInsert().Model(notification).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) GetRecentByUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var notifications []*models.Notification
	err := r.db.NewSelect().
		Model(&notifications).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("read = true").
		Where("user_id = ? AND read = false", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}
