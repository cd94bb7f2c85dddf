package inventory

import (
	"context"
	"errors"
	"time"

	"ticketing/internal/models"
)

var (
	ErrCapacityReached   = errors.New("event capacity reached")
	ErrInvalidTicketType = errors.New("ticket type does not belong to event or is inactive")
	ErrSalesNotStarted   = errors.New("ticket sales have not started")
	ErrSalesEnded        = errors.New("ticket sales have ended")
	ErrQuotaReached      = errors.New("ticket type quota reached")
)

// Store provides the active-ticket counts the guard compares against.
// Counts must be read inside the issuance transaction after the event row
// has been locked, otherwise two concurrent buyers can both observe the
// last free slot.
type Store interface {
	CountActiveTickets(ctx context.Context, eventID string) (int, error)
	CountActiveTicketsByType(ctx context.Context, ticketTypeID string) (int, error)
}

// Guard enforces event capacity and ticket-type quota/sales-window
// constraints before a ticket row is created.
type Guard struct {
	store Store
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// Reserve checks capacity, then type ownership, sales window and quota.
// A nil return is the permit; the caller consumes it by inserting the
// ticket row in the same transaction. ticketType may be nil for tickets
// issued with an explicit type/price instead of a structured type.
func (g *Guard) Reserve(ctx context.Context, event *models.Event, ticketType *models.TicketType, now time.Time) error {
	active, err := g.store.CountActiveTickets(ctx, event.ID)
	if err != nil {
		return err
	}
	if active >= event.Capacity {
		return ErrCapacityReached
	}

	if ticketType == nil {
		return nil
	}

	if ticketType.EventID != event.ID || !ticketType.IsActive {
		return ErrInvalidTicketType
	}
	if ticketType.SalesStart != nil && now.Before(*ticketType.SalesStart) {
		return ErrSalesNotStarted
	}
	if ticketType.SalesEnd != nil && now.After(*ticketType.SalesEnd) {
		return ErrSalesEnded
	}
	if ticketType.Quota > 0 {
		typed, err := g.store.CountActiveTicketsByType(ctx, ticketType.ID)
		if err != nil {
			return err
		}
		if typed >= ticketType.Quota {
			return ErrQuotaReached
		}
	}
	return nil
}
