package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// TicketType is a priced ticket category. Quota 0 means unlimited.
type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types"`

	ID         string          `bun:"id,pk"`
	EventID    string          `bun:"event_id,notnull"`
	Code       string          `bun:"code,notnull"`
	Label      string          `bun:"label,notnull"`
	Price      decimal.Decimal `bun:"price,notnull"`
	Quota      int             `bun:"quota,notnull"`
	SalesStart *time.Time      `bun:"sales_start,nullzero"`
	SalesEnd   *time.Time      `bun:"sales_end,nullzero"`
	IsActive   bool            `bun:"is_active,notnull"`
	CreatedAt  time.Time       `bun:"created_at,notnull"`
	UpdatedAt  time.Time       `bun:"updated_at,notnull"`
}
