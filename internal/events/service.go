package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ticketing/internal/logger"
	"ticketing/internal/models"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrSessionWindow = errors.New("session must end after it starts")
	ErrAgentNotFound = errors.New("agent not found")
	ErrNotAnAgent    = errors.New("user is not a check-in agent")
	ErrEventNotDraft = errors.New("event is not in draft state")
	ErrCapacityRange = errors.New("capacity must be positive")
)

type Store interface {
	InsertEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	UpdateEventStatus(ctx context.Context, eventID string, status models.EventStatus) error
	InsertSession(ctx context.Context, session *models.EventSession) error
	ListSessions(ctx context.Context, eventID string) ([]models.EventSession, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	InsertEventAgent(ctx context.Context, assignment *models.EventAgent) error
	IsAgentAssigned(ctx context.Context, eventID, agentID string) (bool, error)
	HasAgents(ctx context.Context, eventID string) (bool, error)
}

// Service owns the event lifecycle around the ticketing core: creation,
// session planning and agent assignment.
type Service struct {
	Store  Store
	Logger *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{Store: store, Logger: log}
}

type CreateEventRequest struct {
	OrganiserID string
	Title       string
	Description string
	StartDate   time.Time
	Venue       string
	Capacity    int
}

func (s *Service) Create(ctx context.Context, req CreateEventRequest) (*models.Event, error) {
	if req.Capacity <= 0 {
		return nil, ErrCapacityRange
	}

	now := time.Now().UTC()
	event := &models.Event{
		ID:          uuid.New().String(),
		OrganiserID: req.OrganiserID,
		Title:       req.Title,
		StartDate:   req.StartDate,
		Capacity:    req.Capacity,
		Status:      models.EventStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Description != "" {
		event.Description = &req.Description
	}
	if req.Venue != "" {
		event.Venue = &req.Venue
	}

	if err := s.Store.InsertEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	s.Logger.Info("EVENTS", fmt.Sprintf("[%s] event created", event.ID))
	return event, nil
}

// Publish opens a draft event for sale.
func (s *Service) Publish(ctx context.Context, eventID string) error {
	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}
	if event == nil {
		return ErrEventNotFound
	}
	if event.Status != models.EventStatusDraft {
		return ErrEventNotDraft
	}
	return s.Store.UpdateEventStatus(ctx, eventID, models.EventStatusPublished)
}

type AddSessionRequest struct {
	EventID  string
	StartsAt time.Time
	EndsAt   time.Time
	Label    string
	DayIndex *int
}

// AddSession appends a session to the event's schedule.
func (s *Service) AddSession(ctx context.Context, req AddSessionRequest) (*models.EventSession, error) {
	if !req.EndsAt.After(req.StartsAt) {
		return nil, ErrSessionWindow
	}

	event, err := s.Store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	now := time.Now().UTC()
	session := &models.EventSession{
		ID:        uuid.New().String(),
		EventID:   event.ID,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		DayIndex:  req.DayIndex,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Label != "" {
		session.Label = &req.Label
	}

	if err := s.Store.InsertSession(ctx, session); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

func (s *Service) Sessions(ctx context.Context, eventID string) ([]models.EventSession, error) {
	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	return s.Store.ListSessions(ctx, eventID)
}

// AssignAgent grants a user with the agent role check-in access to the
// event.
func (s *Service) AssignAgent(ctx context.Context, eventID, agentID string) error {
	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}
	if event == nil {
		return ErrEventNotFound
	}

	user, err := s.Store.GetUser(ctx, agentID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return ErrAgentNotFound
	}
	if user.Role != models.RoleAgent {
		return ErrNotAnAgent
	}

	if err := s.Store.InsertEventAgent(ctx, &models.EventAgent{EventID: eventID, AgentID: agentID}); err != nil {
		return fmt.Errorf("assign agent: %w", err)
	}
	s.Logger.Info("EVENTS", fmt.Sprintf("[%s] agent %s assigned", eventID, agentID))
	return nil
}

// AgentCanScan reports whether the agent is assigned to the event.
func (s *Service) AgentCanScan(ctx context.Context, eventID, agentID string) (bool, error) {
	return s.Store.IsAgentAssigned(ctx, eventID, agentID)
}

// EventHasAgents reports whether any agent is assigned to the event. An
// event with no assignments does not restrict who may scan.
func (s *Service) EventHasAgents(ctx context.Context, eventID string) (bool, error) {
	return s.Store.HasAgents(ctx, eventID)
}
