package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ticketing/internal/database"
	"ticketing/internal/issuance"
	"ticketing/internal/models"
)

// DB is the bun-backed issuance store. All issuance work happens inside
// RunInTx so capacity counts, promo increments and the ticket insert
// commit or roll back as one unit.
type DB struct {
	Bun *bun.DB
}

func New(bundb *bun.DB) *DB {
	return &DB{Bun: bundb}
}

func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx issuance.Tx) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &txStore{db: tx})
	})
}

// RecomputePromoUsage rewrites each promo's used_count from the count of
// non-cancelled tickets referencing it. Supplementary sweep only; the
// counter is maintained transactionally on the hot paths.
func (d *DB) RecomputePromoUsage(ctx context.Context) (int64, error) {
	var promos []models.PromoCode
	if err := d.Bun.NewSelect().Model(&promos).Scan(ctx); err != nil {
		return 0, fmt.Errorf("list promos: %w", err)
	}

	var changed int64
	for _, p := range promos {
		actual, err := d.Bun.NewSelect().
			Model((*models.Ticket)(nil)).
			Where("promo_code_id = ?", p.ID).
			Where("status != ?", models.TicketStatusCancelled).
			Count(ctx)
		if err != nil {
			return changed, fmt.Errorf("count promo tickets: %w", err)
		}
		if actual == p.UsedCount {
			continue
		}
		_, err = d.Bun.NewUpdate().
			Model((*models.PromoCode)(nil)).
			Set("used_count = ?", actual).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", p.ID).
			Exec(ctx)
		if err != nil {
			return changed, fmt.Errorf("update promo usage: %w", err)
		}
		changed++
	}
	return changed, nil
}

// GetTicket loads one ticket outside any transaction.
func (d *DB) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().Model(&ticket).Where("id = ?", ticketID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &ticket, nil
}

type txStore struct {
	db bun.Tx
}

func (s *txStore) GetEventForUpdate(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	q := s.db.NewSelect().Model(&event).Where("id = ?", eventID)
	if database.SupportsForUpdate(s.db) {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

func (s *txStore) GetTicketType(ctx context.Context, ticketTypeID string) (*models.TicketType, error) {
	var tt models.TicketType
	err := s.db.NewSelect().Model(&tt).Where("id = ?", ticketTypeID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ticket type: %w", err)
	}
	return &tt, nil
}

func (s *txStore) CountActiveTickets(ctx context.Context, eventID string) (int, error) {
	return s.db.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("status != ?", models.TicketStatusCancelled).
		Count(ctx)
}

func (s *txStore) CountActiveTicketsByType(ctx context.Context, ticketTypeID string) (int, error) {
	return s.db.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("ticket_type_id = ?", ticketTypeID).
		Where("status != ?", models.TicketStatusCancelled).
		Count(ctx)
}

func (s *txStore) GetPromoForUpdate(ctx context.Context, eventID, code string) (*models.PromoCode, error) {
	var p models.PromoCode
	q := s.db.NewSelect().Model(&p).
		Where("event_id = ?", eventID).
		Where("code = ?", code)
	if database.SupportsForUpdate(s.db) {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get promo: %w", err)
	}
	return &p, nil
}

func (s *txStore) IncrementPromoUsage(ctx context.Context, promoID string) error {
	_, err := s.db.NewUpdate().
		Model((*models.PromoCode)(nil)).
		Set("used_count = used_count + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", promoID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("increment promo usage: %w", err)
	}
	return nil
}

func (s *txStore) ListSessionIDs(ctx context.Context, eventID string) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*models.EventSession)(nil)).
		Column("id").
		Where("event_id = ?", eventID).
		Order("starts_at ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list session ids: %w", err)
	}
	return ids, nil
}

func (s *txStore) InsertTicket(ctx context.Context, ticket *models.Ticket) error {
	if _, err := s.db.NewInsert().Model(ticket).Exec(ctx); err != nil {
		if database.IsUniqueViolation(err) {
			return issuance.ErrQRCollision
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (s *txStore) InsertTicketSessions(ctx context.Context, ticketID string, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	rows := make([]models.TicketSession, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		rows = append(rows, models.TicketSession{TicketID: ticketID, SessionID: sessionID})
	}
	if _, err := s.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("insert ticket sessions: %w", err)
	}
	return nil
}
