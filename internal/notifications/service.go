package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ticketing/internal/logger"
	"ticketing/internal/models"
)

type Store interface {
	InsertNotification(ctx context.Context, notification *models.Notification) error
	ListUnread(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID string) error
}

// Publisher streams notifications to the message broker. Nil disables
// streaming, the row is still persisted.
type Publisher interface {
	PublishNotification(notification models.Notification) error
}

// Service fans a user notification out to the database and the broker.
// Delivery is best effort on both legs; callers treat a returned error as
// advisory and never roll back the triggering operation.
type Service struct {
	Store     Store
	Publisher Publisher
	Logger    *logger.Logger
}

func NewService(store Store, publisher Publisher, log *logger.Logger) *Service {
	return &Service{Store: store, Publisher: publisher, Logger: log}
}

// TicketCreated notifies the participant that their ticket was issued.
func (s *Service) TicketCreated(ticket models.Ticket) error {
	if ticket.ParticipantID == nil {
		return nil
	}
	return s.deliver(models.Notification{
		ID:        uuid.New().String(),
		UserID:    *ticket.ParticipantID,
		Type:      "TICKET_CREATED",
		Title:     "Your ticket is ready",
		Body:      fmt.Sprintf("Ticket %s for event %s has been issued.", ticket.ID, ticket.EventID),
		CreatedAt: time.Now().UTC(),
	})
}

// TicketUsed notifies the participant that their ticket was scanned in.
func (s *Service) TicketUsed(ticket models.Ticket) error {
	if ticket.ParticipantID == nil {
		return nil
	}
	return s.deliver(models.Notification{
		ID:        uuid.New().String(),
		UserID:    *ticket.ParticipantID,
		Type:      "TICKET_USED",
		Title:     "Ticket checked in",
		Body:      fmt.Sprintf("Ticket %s was used for event %s.", ticket.ID, ticket.EventID),
		CreatedAt: time.Now().UTC(),
	})
}

// TicketCancelled notifies the participant about a refund.
func (s *Service) TicketCancelled(ticket models.Ticket) error {
	if ticket.ParticipantID == nil {
		return nil
	}
	return s.deliver(models.Notification{
		ID:        uuid.New().String(),
		UserID:    *ticket.ParticipantID,
		Type:      "TICKET_CANCELLED",
		Title:     "Ticket cancelled",
		Body:      fmt.Sprintf("Ticket %s for event %s has been cancelled.", ticket.ID, ticket.EventID),
		CreatedAt: time.Now().UTC(),
	})
}

// Unread returns the user's unread notifications, newest first.
func (s *Service) Unread(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.Store.ListUnread(ctx, userID)
}

// MarkRead flags one notification as seen.
func (s *Service) MarkRead(ctx context.Context, notificationID string) error {
	return s.Store.MarkRead(ctx, notificationID)
}

func (s *Service) deliver(notification models.Notification) error {
	if err := s.Store.InsertNotification(context.Background(), &notification); err != nil {
		s.Logger.Error("NOTIFY", "failed to persist notification: "+err.Error())
		return err
	}
	if s.Publisher != nil {
		if err := s.Publisher.PublishNotification(notification); err != nil {
			s.Logger.Warn("NOTIFY", "failed to publish notification: "+err.Error())
			return err
		}
	}
	return nil
}
