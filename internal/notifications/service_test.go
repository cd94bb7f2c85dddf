package notifications_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ticketing/internal/logger"
	"ticketing/internal/models"
	"ticketing/internal/notifications"
)

// MockStore is a mock implementation of the notifications.Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) InsertNotification(ctx context.Context, notification *models.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

func (m *MockStore) ListUnread(ctx context.Context, userID string) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	if rows := args.Get(0); rows != nil {
		return rows.([]models.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) MarkRead(ctx context.Context, notificationID string) error {
	args := m.Called(ctx, notificationID)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishNotification(notification models.Notification) error {
	args := m.Called(notification)
	return args.Error(0)
}

func participantTicket() models.Ticket {
	participant := "user-1"
	return models.Ticket{ID: "ticket-1", EventID: "event-1", ParticipantID: &participant}
}

func TestTicketCreatedPersistsAndPublishes(t *testing.T) {
	store := new(MockStore)
	publisher := new(MockPublisher)
	svc := notifications.NewService(store, publisher, &logger.Logger{})

	store.On("InsertNotification", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.UserID == "user-1" && n.Type == "TICKET_CREATED"
	})).Return(nil)
	publisher.On("PublishNotification", mock.MatchedBy(func(n models.Notification) bool {
		return n.UserID == "user-1"
	})).Return(nil)

	err := svc.TicketCreated(participantTicket())
	assert.NoError(t, err)
	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestGuestTicketsSkipNotifications(t *testing.T) {
	store := new(MockStore)
	svc := notifications.NewService(store, nil, &logger.Logger{})

	guest := "ada@example.com"
	err := svc.TicketCreated(models.Ticket{ID: "ticket-1", GuestEmail: &guest})
	assert.NoError(t, err)
	store.AssertNotCalled(t, "InsertNotification", mock.Anything, mock.Anything)
}

func TestNilPublisherStillPersists(t *testing.T) {
	store := new(MockStore)
	svc := notifications.NewService(store, nil, &logger.Logger{})

	store.On("InsertNotification", mock.Anything, mock.Anything).Return(nil)

	err := svc.TicketUsed(participantTicket())
	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestUnreadFeedReadsThroughStore(t *testing.T) {
	store := new(MockStore)
	svc := notifications.NewService(store, nil, &logger.Logger{})

	store.On("ListUnread", mock.Anything, "user-1").
		Return([]models.Notification{{ID: "n1", UserID: "user-1"}}, nil)
	store.On("MarkRead", mock.Anything, "n1").Return(nil)

	rows, err := svc.Unread(context.Background(), "user-1")
	assert.NoError(t, err)
	assert.Len(t, rows, 1)

	assert.NoError(t, svc.MarkRead(context.Background(), "n1"))
	store.AssertExpectations(t)
}

func TestPublishFailureSurfacesAfterPersist(t *testing.T) {
	store := new(MockStore)
	publisher := new(MockPublisher)
	svc := notifications.NewService(store, publisher, &logger.Logger{})

	store.On("InsertNotification", mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishNotification", mock.Anything).Return(errors.New("broker down"))

	err := svc.TicketCancelled(participantTicket())
	assert.Error(t, err)
	store.AssertExpectations(t)
}
