package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketing/internal/logger"
	"ticketing/internal/models"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrNotPayable     = errors.New("ticket is not awaiting payment")
	ErrNotRefundable  = errors.New("ticket can no longer be refunded")
)

// Tx is the transaction-scoped storage surface for payment transitions.
type Tx interface {
	// GetTicketForUpdate loads the ticket holding a row lock so a confirm
	// and a refund of the same ticket cannot interleave. Returns
	// (nil, nil) when absent.
	GetTicketForUpdate(ctx context.Context, ticketID string) (*models.Ticket, error)
	UpdateTicketStatus(ctx context.Context, ticketID string, status models.TicketStatus) error
	DecrementPromoUsage(ctx context.Context, promoID string) error
}

type DBLayer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Notifier delivers the cancellation notice. Failures never fail the
// refund.
type Notifier interface {
	TicketCancelled(ticket models.Ticket) error
}

// Service moves tickets through the payment transitions of the status
// machine: CREATED -> PAID on a confirmed payment, CREATED/PAID ->
// CANCELLED on refund. USED is terminal for both.
type Service struct {
	DB       DBLayer
	Notifier Notifier
	Logger   *logger.Logger
}

func NewService(db DBLayer, notifier Notifier, log *logger.Logger) *Service {
	return &Service{DB: db, Notifier: notifier, Logger: log}
}

// Confirm marks a created ticket paid. Confirming an already paid ticket
// is a no-op so payment-provider callback retries stay safe.
func (s *Service) Confirm(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var ticket *models.Ticket
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		ticket, err = tx.GetTicketForUpdate(ctx, ticketID)
		if err != nil {
			return fmt.Errorf("load ticket: %w", err)
		}
		if ticket == nil {
			return ErrTicketNotFound
		}
		switch ticket.Status {
		case models.TicketStatusPaid:
			return nil
		case models.TicketStatusCreated:
		default:
			return ErrNotPayable
		}
		if err := tx.UpdateTicketStatus(ctx, ticket.ID, models.TicketStatusPaid); err != nil {
			return fmt.Errorf("mark ticket paid: %w", err)
		}
		ticket.Status = models.TicketStatusPaid
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("PAYMENT", fmt.Sprintf("[%s] payment confirmed", ticket.ID))
	return ticket, nil
}

// Refund cancels a created or paid ticket and returns any consumed promo
// use in the same transaction.
func (s *Service) Refund(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var ticket *models.Ticket
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		ticket, err = tx.GetTicketForUpdate(ctx, ticketID)
		if err != nil {
			return fmt.Errorf("load ticket: %w", err)
		}
		if ticket == nil {
			return ErrTicketNotFound
		}
		if ticket.Status != models.TicketStatusCreated && ticket.Status != models.TicketStatusPaid {
			return ErrNotRefundable
		}
		if err := tx.UpdateTicketStatus(ctx, ticket.ID, models.TicketStatusCancelled); err != nil {
			return fmt.Errorf("cancel ticket: %w", err)
		}
		if ticket.PromoCodeID != nil {
			if err := tx.DecrementPromoUsage(ctx, *ticket.PromoCodeID); err != nil {
				return fmt.Errorf("return promo use: %w", err)
			}
		}
		ticket.Status = models.TicketStatusCancelled
		ticket.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("PAYMENT", fmt.Sprintf("[%s] ticket refunded", ticket.ID))

	if s.Notifier != nil && !ticket.IsGuest() {
		if err := s.Notifier.TicketCancelled(*ticket); err != nil {
			s.Logger.Warn("PAYMENT", "cancellation notification failed: "+err.Error())
		}
	}
	return ticket, nil
}
