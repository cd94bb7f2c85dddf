package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ticketing/internal/inventory"
	"ticketing/internal/logger"
	"ticketing/internal/models"
	"ticketing/internal/pricing"
	"ticketing/internal/promo"
)

var (
	ErrEventNotFound      = errors.New("event not found")
	ErrMissingTypeOrPrice = errors.New("ticket type or explicit type and price required")
	ErrGuestEmailRequired = errors.New("guest email is required")
	ErrUnknownSession     = errors.New("session does not belong to event")

	// ErrQRCollision is an infrastructure failure, not a business
	// rejection: the generated QR value is guest-facing and must be
	// unique, so a collision aborts the whole issuance.
	ErrQRCollision = errors.New("qr code value already exists")
)

// Tx is the transaction-scoped storage surface for one issuance call. It
// embeds the count and promo surfaces so the guard and the ledger run on
// the same transaction that inserts the ticket.
type Tx interface {
	inventory.Store
	promo.Store

	// GetEventForUpdate loads the event row holding a row lock; the lock
	// serializes concurrent issuance for the same event so capacity and
	// quota counts cannot race. Returns (nil, nil) when absent.
	GetEventForUpdate(ctx context.Context, eventID string) (*models.Event, error)
	GetTicketType(ctx context.Context, ticketTypeID string) (*models.TicketType, error)
	ListSessionIDs(ctx context.Context, eventID string) ([]string, error)
	InsertTicket(ctx context.Context, ticket *models.Ticket) error
	InsertTicketSessions(ctx context.Context, ticketID string, sessionIDs []string) error
}

type DBLayer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Notifier delivers the "ticket created" notification. Failures are
// logged by the implementation and never fail the issuance.
type Notifier interface {
	TicketCreated(ticket models.Ticket) error
}

type QRSource interface {
	NewValue() string
}

// Buyer identifies who the ticket is for: a registered participant or an
// anonymous guest, never both.
type Buyer struct {
	ParticipantID string
	GuestEmail    string
	GuestName     string
	GuestPhone    string
}

type IssueRequest struct {
	EventID string
	Buyer   Buyer
	// TicketTypeID selects a structured type; when empty the caller must
	// supply TypeCode and Price explicitly.
	TicketTypeID string
	TypeCode     string
	Price        *decimal.Decimal
	PromoCode    string
	// QRCode overrides the generated value when non-empty.
	QRCode string
	// SessionIDs nil means the default entitlement: every session of the
	// event (none for single-day events). An explicit list is validated
	// against the event's sessions.
	SessionIDs []string
}

type Service struct {
	DB       DBLayer
	Pricing  *pricing.Engine
	QR       QRSource
	Notifier Notifier
	Logger   *logger.Logger
}

func NewService(db DBLayer, engine *pricing.Engine, qrSource QRSource, notifier Notifier, log *logger.Logger) *Service {
	return &Service{DB: db, Pricing: engine, QR: qrSource, Notifier: notifier, Logger: log}
}

// Issue creates a ticket for a registered participant or a guest. Every
// rejection aborts the transaction with zero side effects; in particular
// a consumed promo use rolls back when any later step fails.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*models.Ticket, error) {
	if req.Buyer.ParticipantID == "" && req.Buyer.GuestEmail == "" {
		return nil, ErrGuestEmailRequired
	}

	now := time.Now().UTC()
	var ticket *models.Ticket

	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		event, err := tx.GetEventForUpdate(ctx, req.EventID)
		if err != nil {
			return fmt.Errorf("load event: %w", err)
		}
		if event == nil {
			return ErrEventNotFound
		}

		var ticketType *models.TicketType
		if req.TicketTypeID != "" {
			ticketType, err = tx.GetTicketType(ctx, req.TicketTypeID)
			if err != nil {
				return fmt.Errorf("load ticket type: %w", err)
			}
			if ticketType == nil {
				return inventory.ErrInvalidTicketType
			}
		}

		guard := inventory.NewGuard(tx)
		if err := guard.Reserve(ctx, event, ticketType, now); err != nil {
			return err
		}

		typeCode, basePrice, err := resolveTypeAndPrice(ticketType, req)
		if err != nil {
			return err
		}

		var promoCode *models.PromoCode
		if req.PromoCode != "" {
			ledger := promo.NewLedger(tx)
			promoCode, err = ledger.Redeem(ctx, event.ID, req.PromoCode, now)
			if err != nil {
				return err
			}
		}

		finalPrice := s.Pricing.FinalPrice(basePrice, promoCode)

		sessionIDs, err := resolveSessions(ctx, tx, event.ID, req.SessionIDs)
		if err != nil {
			return err
		}

		qrValue := req.QRCode
		if qrValue == "" {
			qrValue = s.QR.NewValue()
		}

		ticket = &models.Ticket{
			ID:           uuid.New().String(),
			EventID:      event.ID,
			TypeCode:     typeCode,
			InitialPrice: basePrice.Round(2),
			FinalPrice:   finalPrice,
			QRCode:       qrValue,
			Status:       models.TicketStatusCreated,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if req.Buyer.ParticipantID != "" {
			ticket.ParticipantID = &req.Buyer.ParticipantID
		} else {
			ticket.GuestEmail = &req.Buyer.GuestEmail
			if req.Buyer.GuestName != "" {
				ticket.GuestName = &req.Buyer.GuestName
			}
			if req.Buyer.GuestPhone != "" {
				ticket.GuestPhone = &req.Buyer.GuestPhone
			}
		}
		if ticketType != nil {
			ticket.TicketTypeID = &ticketType.ID
		}
		if promoCode != nil {
			ticket.PromoCodeID = &promoCode.ID
		}

		if err := tx.InsertTicket(ctx, ticket); err != nil {
			return err
		}
		return tx.InsertTicketSessions(ctx, ticket.ID, sessionIDs)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogIssuance(ticket.EventID, ticket.ID, "ticket issued")

	// Guests have no account to notify; notification failures are logged
	// by the notifier and never fail the issuance.
	if !ticket.IsGuest() && s.Notifier != nil {
		if err := s.Notifier.TicketCreated(*ticket); err != nil {
			s.Logger.Warn("ISSUANCE", "ticket created notification failed: "+err.Error())
		}
	}
	return ticket, nil
}

func resolveTypeAndPrice(ticketType *models.TicketType, req IssueRequest) (string, decimal.Decimal, error) {
	if ticketType != nil {
		return ticketType.Code, ticketType.Price, nil
	}
	if req.TypeCode != "" && req.Price != nil {
		return req.TypeCode, *req.Price, nil
	}
	return "", decimal.Decimal{}, ErrMissingTypeOrPrice
}

func resolveSessions(ctx context.Context, tx Tx, eventID string, requested []string) ([]string, error) {
	all, err := tx.ListSessionIDs(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if requested == nil {
		return all, nil
	}

	known := make(map[string]bool, len(all))
	for _, id := range all {
		known[id] = true
	}
	for _, id := range requested {
		if !known[id] {
			return nil, ErrUnknownSession
		}
	}
	return requested, nil
}
