package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ticketing/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func New(bundb *bun.DB) *DB {
	return &DB{Bun: bundb}
}

func (d *DB) InsertNotification(ctx context.Context, notification *models.Notification) error {
	if _, err := d.Bun.NewInsert().Model(notification).Exec(ctx); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (d *DB) ListUnread(ctx context.Context, userID string) ([]models.Notification, error) {
	var rows []models.Notification
	err := d.Bun.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where("is_read = ?", false).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return rows, nil
}

func (d *DB) MarkRead(ctx context.Context, notificationID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("is_read = ?", true).
		Where("id = ?", notificationID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}
