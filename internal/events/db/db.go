package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ticketing/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func New(bundb *bun.DB) *DB {
	return &DB{Bun: bundb}
}

func (d *DB) InsertEvent(ctx context.Context, event *models.Event) error {
	if _, err := d.Bun.NewInsert().Model(event).Exec(ctx); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (d *DB) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().Model(&event).Where("id = ?", eventID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

func (d *DB) UpdateEventStatus(ctx context.Context, eventID string, status models.EventStatus) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	return nil
}

func (d *DB) InsertSession(ctx context.Context, session *models.EventSession) error {
	if _, err := d.Bun.NewInsert().Model(session).Exec(ctx); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (d *DB) ListSessions(ctx context.Context, eventID string) ([]models.EventSession, error) {
	var sessions []models.EventSession
	err := d.Bun.NewSelect().
		Model(&sessions).
		Where("event_id = ?", eventID).
		Order("starts_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (d *DB) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().Model(&user).Where("id = ?", userID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (d *DB) InsertEventAgent(ctx context.Context, assignment *models.EventAgent) error {
	// Re-assigning the same agent is a no-op.
	_, err := d.Bun.NewInsert().
		Model(assignment).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert event agent: %w", err)
	}
	return nil
}

func (d *DB) IsAgentAssigned(ctx context.Context, eventID, agentID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.EventAgent)(nil)).
		Where("event_id = ?", eventID).
		Where("agent_id = ?", agentID).
		Exists(ctx)
}

func (d *DB) HasAgents(ctx context.Context, eventID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.EventAgent)(nil)).
		Where("event_id = ?", eventID).
		Exists(ctx)
}
