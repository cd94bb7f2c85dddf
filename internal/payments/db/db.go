package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ticketing/internal/database"
	"ticketing/internal/models"
	"ticketing/internal/payments"
)

type DB struct {
	Bun *bun.DB
}

func New(bundb *bun.DB) *DB {
	return &DB{Bun: bundb}
}

func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx payments.Tx) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &txStore{db: tx})
	})
}

type txStore struct {
	db bun.Tx
}

func (s *txStore) GetTicketForUpdate(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	q := s.db.NewSelect().Model(&ticket).Where("id = ?", ticketID)
	if database.SupportsForUpdate(s.db) {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &ticket, nil
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

func (s *txStore) DecrementPromoUsage(ctx context.Context, promoID string) error {
	// Floor at zero; the counter must not go negative even if the sweep
	// already repaired it.
	_, err := s.db.NewUpdate().
		Model((*models.PromoCode)(nil)).
		Set("used_count = used_count - 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", promoID).
		Where("used_count > 0").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("decrement promo usage: %w", err)
	}
	return nil
}
