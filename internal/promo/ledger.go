package promo

import (
	"context"
	"errors"
	"time"

	"ticketing/internal/models"
)

var (
	ErrPromoNotFound     = errors.New("promo code not found")
	ErrPromoNotStarted   = errors.New("promo code is not yet valid")
	ErrPromoExpired      = errors.New("promo code has expired")
	ErrPromoLimitReached = errors.New("promo code usage limit reached")
)

// Store is the transaction-scoped storage surface for promo redemption.
type Store interface {
	// GetPromoForUpdate loads the promo by (event, code) holding a row
	// lock so the usage check and the increment are serialized. Returns
	// (nil, nil) when no such promo exists.
	GetPromoForUpdate(ctx context.Context, eventID, code string) (*models.PromoCode, error)
	IncrementPromoUsage(ctx context.Context, promoID string) error
}

// Ledger validates promo eligibility and consumes one use. The increment
// commits or rolls back together with the ticket insert because both run
// on the same transaction.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Redeem returns the promo with its usage already consumed, or one of the
// rejection errors above.
func (l *Ledger) Redeem(ctx context.Context, eventID, code string, now time.Time) (*models.PromoCode, error) {
	promo, err := l.store.GetPromoForUpdate(ctx, eventID, code)
	if err != nil {
		return nil, err
	}
	if promo == nil || !promo.IsActive {
		return nil, ErrPromoNotFound
	}
	if promo.StartsAt != nil && now.Before(*promo.StartsAt) {
		return nil, ErrPromoNotStarted
	}
	if promo.EndsAt != nil && now.After(*promo.EndsAt) {
		return nil, ErrPromoExpired
	}
	if promo.UsageLimit != nil && promo.UsedCount >= *promo.UsageLimit {
		return nil, ErrPromoLimitReached
	}

	if err := l.store.IncrementPromoUsage(ctx, promo.ID); err != nil {
		return nil, err
	}
	promo.UsedCount++
	return promo, nil
}
