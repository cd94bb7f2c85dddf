package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ticketing/internal/logger"
	"ticketing/internal/models"
)

// ErrScanInFlight rejects a scan while another scan of the same QR code
// holds the lock.
var ErrScanInFlight = errors.New("another scan of this code is in flight")

// Tx is the transaction-scoped storage surface for one scan. The scan row
// and any ticket status change commit together.
type Tx interface {
	// GetTicketByQRForUpdate loads the ticket holding a row lock so two
	// agents scanning the same QR at the same instant are serialized.
	// Returns (nil, nil) when no ticket matches.
	GetTicketByQRForUpdate(ctx context.Context, qrCode string) (*models.Ticket, error)
	EventHasSessions(ctx context.Context, eventID string) (bool, error)
	GetSession(ctx context.Context, sessionID string) (*models.EventSession, error)
	// ActiveSessionIDs returns ids of sessions whose window contains now,
	// capped at limit.
	ActiveSessionIDs(ctx context.Context, eventID string, now time.Time, limit int) ([]string, error)
	TicketSessionIDs(ctx context.Context, ticketID string) ([]string, error)
	// FindOKScan returns the recorded OK scan for (ticket, session), with
	// sessionID nil matching the legacy whole-event scan. Nil when none.
	FindOKScan(ctx context.Context, ticketID string, sessionID *string) (*models.TicketScan, error)
	InsertScan(ctx context.Context, scan *models.TicketScan) error
	UpdateTicketStatus(ctx context.Context, ticketID string, status models.TicketStatus) error
}

type DBLayer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// ScanLock sheds duplicate concurrent scans of the same QR value before
// they reach the database. Best effort: the row lock inside the
// transaction is the actual correctness guarantee.
type ScanLock interface {
	Acquire(ctx context.Context, qrCode string) (bool, error)
	Release(ctx context.Context, qrCode string) error
}

// Outcome is the result of one scan attempt.
type Outcome struct {
	Result models.ScanResult
	Ticket *models.Ticket
	// SessionID is the effective session the scan was evaluated against,
	// nil in legacy whole-event mode.
	SessionID *string
	// ScannedAt is set for OK (this scan's time) and ALREADY_USED (the
	// original OK scan's time).
	ScannedAt *time.Time
}

type ScanRequest struct {
	QRCode  string
	AgentID string
	// EventID, when set, must match the ticket's event.
	EventID *string
	// SessionID selects the session being entered; when nil and exactly
	// one session is currently active it is inferred.
	SessionID *string
}

type Service struct {
	DB     DBLayer
	Lock   ScanLock
	Logger *logger.Logger
}

func NewService(db DBLayer, lock ScanLock, log *logger.Logger) *Service {
	return &Service{DB: db, Lock: lock, Logger: log}
}

// Scan validates a QR code against ticket/session state and records the
// outcome. Every attempt except NOT_FOUND appends exactly one TicketScan
// row; the row is the intended audit record of failed attempts and is not
// rolled back with anything else.
func (s *Service) Scan(ctx context.Context, req ScanRequest) (Outcome, error) {
	if s.Lock != nil {
		acquired, err := s.Lock.Acquire(ctx, req.QRCode)
		switch {
		case err != nil:
			// Redis down degrades to the row lock alone.
			s.Logger.Warn("CHECKIN", "scan lock unavailable: "+err.Error())
		case !acquired:
			return Outcome{}, ErrScanInFlight
		default:
			defer func() {
				if err := s.Lock.Release(context.Background(), req.QRCode); err != nil {
					s.Logger.Warn("CHECKIN", "scan lock release failed: "+err.Error())
				}
			}()
		}
	}

	now := time.Now().UTC()
	var out Outcome

	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		ticket, err := tx.GetTicketByQRForUpdate(ctx, req.QRCode)
		if err != nil {
			return fmt.Errorf("load ticket by qr: %w", err)
		}
		if ticket == nil {
			// No ticket row to attach an audit record to.
			out = Outcome{Result: models.ScanNotFound}
			return nil
		}

		record := func(result models.ScanResult, sessionID *string) error {
			scan := &models.TicketScan{
				ID:        uuid.New().String(),
				TicketID:  ticket.ID,
				AgentID:   req.AgentID,
				SessionID: sessionID,
				Result:    result,
				ScannedAt: now,
			}
			return tx.InsertScan(ctx, scan)
		}

		if req.EventID != nil && *req.EventID != ticket.EventID {
			out = Outcome{Result: models.ScanInvalidEvent, Ticket: ticket}
			return record(models.ScanInvalidEvent, req.SessionID)
		}

		if ticket.Status == models.TicketStatusCancelled {
			out = Outcome{Result: models.ScanCancelled, Ticket: ticket}
			return record(models.ScanCancelled, req.SessionID)
		}

		hasSessions, err := tx.EventHasSessions(ctx, ticket.EventID)
		if err != nil {
			return fmt.Errorf("check event sessions: %w", err)
		}
		entitlements, err := tx.TicketSessionIDs(ctx, ticket.ID)
		if err != nil {
			return fmt.Errorf("load entitlements: %w", err)
		}

		if hasSessions || len(entitlements) > 0 || req.SessionID != nil {
			return s.scanSessionAware(ctx, tx, ticket, entitlements, hasSessions, req, now, record, &out)
		}
		return s.scanLegacy(ctx, tx, ticket, now, record, &out)
	})
	if err != nil {
		return Outcome{}, err
	}

	s.Logger.LogScan(req.QRCode, string(out.Result), "scan recorded")
	return out, nil
}

func (s *Service) scanSessionAware(
	ctx context.Context,
	tx Tx,
	ticket *models.Ticket,
	entitlements []string,
	hasSessions bool,
	req ScanRequest,
	now time.Time,
	record func(models.ScanResult, *string) error,
	out *Outcome,
) error {
	effective := req.SessionID
	if effective == nil && hasSessions {
		// Infer only when exactly one session is active right now;
		// ambiguity is reported, never guessed away.
		active, err := tx.ActiveSessionIDs(ctx, ticket.EventID, now, 2)
		if err != nil {
			return fmt.Errorf("find active sessions: %w", err)
		}
		if len(active) == 1 {
			effective = &active[0]
		}
	}
	if effective == nil {
		*out = Outcome{Result: models.ScanSessionRequired, Ticket: ticket}
		return record(models.ScanSessionRequired, nil)
	}

	session, err := tx.GetSession(ctx, *effective)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session == nil || session.EventID != ticket.EventID {
		*out = Outcome{Result: models.ScanInvalidSession, Ticket: ticket, SessionID: effective}
		return record(models.ScanInvalidSession, effective)
	}

	if len(entitlements) > 0 && !containsID(entitlements, *effective) {
		*out = Outcome{Result: models.ScanNotEntitled, Ticket: ticket, SessionID: effective}
		return record(models.ScanNotEntitled, effective)
	}

	prior, err := tx.FindOKScan(ctx, ticket.ID, effective)
	if err != nil {
		return fmt.Errorf("find prior scan: %w", err)
	}
	if prior != nil {
		firstScan := prior.ScannedAt
		*out = Outcome{Result: models.ScanAlreadyUsed, Ticket: ticket, SessionID: effective, ScannedAt: &firstScan}
		return record(models.ScanAlreadyUsed, effective)
	}

	if ticket.Status != models.TicketStatusPaid && ticket.Status != models.TicketStatusUsed {
		*out = Outcome{Result: models.ScanNotPaid, Ticket: ticket, SessionID: effective}
		return record(models.ScanNotPaid, effective)
	}

	// A ticket already used for another session stays used; otherwise it
	// is promoted now.
	if ticket.Status != models.TicketStatusUsed {
		if err := tx.UpdateTicketStatus(ctx, ticket.ID, models.TicketStatusUsed); err != nil {
			return fmt.Errorf("promote ticket status: %w", err)
		}
		ticket.Status = models.TicketStatusUsed
	}

	*out = Outcome{Result: models.ScanOK, Ticket: ticket, SessionID: effective, ScannedAt: &now}
	return record(models.ScanOK, effective)
}

func (s *Service) scanLegacy(
	ctx context.Context,
	tx Tx,
	ticket *models.Ticket,
	now time.Time,
	record func(models.ScanResult, *string) error,
	out *Outcome,
) error {
	if ticket.Status == models.TicketStatusUsed {
		scannedAt := now
		if prior, err := tx.FindOKScan(ctx, ticket.ID, nil); err != nil {
			return fmt.Errorf("find prior scan: %w", err)
		} else if prior != nil {
			scannedAt = prior.ScannedAt
		}
		*out = Outcome{Result: models.ScanAlreadyUsed, Ticket: ticket, ScannedAt: &scannedAt}
		return record(models.ScanAlreadyUsed, nil)
	}

	if ticket.Status != models.TicketStatusPaid {
		*out = Outcome{Result: models.ScanNotPaid, Ticket: ticket}
		return record(models.ScanNotPaid, nil)
	}

	if err := tx.UpdateTicketStatus(ctx, ticket.ID, models.TicketStatusUsed); err != nil {
		return fmt.Errorf("promote ticket status: %w", err)
	}
	ticket.Status = models.TicketStatusUsed

	*out = Outcome{Result: models.ScanOK, Ticket: ticket, ScannedAt: &now}
	return record(models.ScanOK, nil)
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
