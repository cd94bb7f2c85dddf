package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ticketing/internal/checkin"
	"ticketing/internal/database"
	"ticketing/internal/models"
)

// DB is the bun-backed check-in store. Each scan runs inside RunInTx so
// the audit row and any ticket status change commit together.
type DB struct {
	Bun *bun.DB
}

func New(bundb *bun.DB) *DB {
	return &DB{Bun: bundb}
}

func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx checkin.Tx) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &txStore{db: tx})
	})
}

type txStore struct {
	db bun.Tx
}

func (s *txStore) GetTicketByQRForUpdate(ctx context.Context, qrCode string) (*models.Ticket, error) {
	var ticket models.Ticket
	q := s.db.NewSelect().Model(&ticket).Where("qr_code = ?", qrCode)
	if database.SupportsForUpdate(s.db) {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ticket by qr: %w", err)
	}
	return &ticket, nil
}

func (s *txStore) EventHasSessions(ctx context.Context, eventID string) (bool, error) {
	return s.db.NewSelect().
		Model((*models.EventSession)(nil)).
		Where("event_id = ?", eventID).
		Exists(ctx)
}

func (s *txStore) GetSession(ctx context.Context, sessionID string) (*models.EventSession, error) {
	var session models.EventSession
	err := s.db.NewSelect().Model(&session).Where("id = ?", sessionID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

func (s *txStore) ActiveSessionIDs(ctx context.Context, eventID string, now time.Time, limit int) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*models.EventSession)(nil)).
		Column("id").
		Where("event_id = ?", eventID).
		Where("starts_at <= ?", now).
		Where("ends_at >= ?", now).
		Order("starts_at ASC").
		Limit(limit).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return ids, nil
}

func (s *txStore) TicketSessionIDs(ctx context.Context, ticketID string) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*models.TicketSession)(nil)).
		Column("session_id").
		Where("ticket_id = ?", ticketID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list ticket sessions: %w", err)
	}
	return ids, nil
}

func (s *txStore) FindOKScan(ctx context.Context, ticketID string, sessionID *string) (*models.TicketScan, error) {
	var scan models.TicketScan
	q := s.db.NewSelect().Model(&scan).
		Where("ticket_id = ?", ticketID).
		Where("result = ?", models.ScanOK).
		Order("scanned_at ASC").
		Limit(1)
	if sessionID != nil {
		q = q.Where("session_id = ?", *sessionID)
	} else {
		q = q.Where("session_id IS NULL")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find ok scan: %w", err)
	}
	return &scan, nil
}

func (s *txStore) InsertScan(ctx context.Context, scan *models.TicketScan) error {
	if _, err := s.db.NewInsert().Model(scan).Exec(ctx); err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func (s *txStore) UpdateTicketStatus(ctx context.Context, ticketID string, status models.TicketStatus) error {
	_, err := s.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", ticketID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	return nil
}
