package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Ticket belongs either to a registered participant (ParticipantID set) or
// to a guest (guest contact fields set) -- never both.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID            string          `bun:"id,pk"`
	EventID       string          `bun:"event_id,notnull"`
	ParticipantID *string         `bun:"participant_id,nullzero"`
	GuestEmail    *string         `bun:"guest_email,nullzero"`
	GuestName     *string         `bun:"guest_name,nullzero"`
	GuestPhone    *string         `bun:"guest_phone,nullzero"`
	TicketTypeID  *string         `bun:"ticket_type_id,nullzero"`
	TypeCode      string          `bun:"type_code,notnull"`
	InitialPrice  decimal.Decimal `bun:"initial_price,notnull"`
	FinalPrice    decimal.Decimal `bun:"final_price,notnull"`
	QRCode        string          `bun:"qr_code,unique,notnull"`
	PromoCodeID   *string         `bun:"promo_code_id,nullzero"`
	Status        TicketStatus    `bun:"status,notnull"`
	CreatedAt     time.Time       `bun:"created_at,notnull"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull"`
}

// TicketSession entitles a ticket to one session of its event.
// A ticket with no rows here is entitled to the whole event.
type TicketSession struct {
	bun.BaseModel `bun:"table:ticket_sessions"`

	TicketID  string `bun:"ticket_id,pk"`
	SessionID string `bun:"session_id,pk"`
}

func (t *Ticket) IsGuest() bool {
	return t.ParticipantID == nil
}
