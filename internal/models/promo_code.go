package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// PromoCode is a discount code scoped to one event.
// UsedCount is maintained transactionally with ticket creation/refund and
// must never exceed UsageLimit when a limit is set.
type PromoCode struct {
	bun.BaseModel `bun:"table:promo_codes"`

	ID           string            `bun:"id,pk"`
	EventID      string            `bun:"event_id,notnull"`
	Code         string            `bun:"code,notnull"`
	DiscountType PromoDiscountType `bun:"discount_type,notnull"`
	Value        decimal.Decimal   `bun:"value,notnull"`
	StartsAt     *time.Time        `bun:"starts_at,nullzero"`
	EndsAt       *time.Time        `bun:"ends_at,nullzero"`
	UsageLimit   *int              `bun:"usage_limit,nullzero"`
	UsedCount    int               `bun:"used_count,notnull"`
	IsActive     bool              `bun:"is_active,notnull"`
	CreatedAt    time.Time         `bun:"created_at,notnull"`
	UpdatedAt    time.Time         `bun:"updated_at,notnull"`
}
