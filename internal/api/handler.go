package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ticketing/internal/checkin"
	"ticketing/internal/events"
	"ticketing/internal/issuance"
	"ticketing/internal/logger"
	"ticketing/internal/models"
	"ticketing/internal/monitoring"
)

type IssuanceService interface {
	Issue(ctx context.Context, req issuance.IssueRequest) (*models.Ticket, error)
}

type CheckinService interface {
	Scan(ctx context.Context, req checkin.ScanRequest) (checkin.Outcome, error)
}

type PaymentService interface {
	Confirm(ctx context.Context, ticketID string) (*models.Ticket, error)
	Refund(ctx context.Context, ticketID string) (*models.Ticket, error)
}

type EventService interface {
	Create(ctx context.Context, req events.CreateEventRequest) (*models.Event, error)
	Publish(ctx context.Context, eventID string) error
	AddSession(ctx context.Context, req events.AddSessionRequest) (*models.EventSession, error)
	Sessions(ctx context.Context, eventID string) ([]models.EventSession, error)
	AssignAgent(ctx context.Context, eventID, agentID string) error
	AgentCanScan(ctx context.Context, eventID, agentID string) (bool, error)
	EventHasAgents(ctx context.Context, eventID string) (bool, error)
}

type TicketStore interface {
	GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
}

type QRRenderer interface {
	RenderPNG(value string) ([]byte, error)
}

// NotificationService is the participant notification surface: the
// check-in hook plus the unread feed. Optional; scan responses never
// depend on it.
type NotificationService interface {
	TicketUsed(ticket models.Ticket) error
	Unread(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID string) error
}

type Handler struct {
	Issuance IssuanceService
	Checkin  CheckinService
	Payments PaymentService
	Events   EventService
	Tickets  TicketStore
	QR       QRRenderer
	Notify   NotificationService
	Logger   *logger.Logger
}

func NewHandler(issuanceSvc IssuanceService, checkinSvc CheckinService, paymentSvc PaymentService, eventSvc EventService, tickets TicketStore, qrRenderer QRRenderer, log *logger.Logger) *Handler {
	return &Handler{
		Issuance: issuanceSvc,
		Checkin:  checkinSvc,
		Payments: paymentSvc,
		Events:   eventSvc,
		Tickets:  tickets,
		QR:       qrRenderer,
		Logger:   log,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Post("/{eventID}/publish", h.PublishEvent)
		r.Post("/{eventID}/sessions", h.AddSession)
		r.Get("/{eventID}/sessions", h.ListSessions)
		r.Post("/{eventID}/agents", h.AssignAgent)
	})

	r.Post("/tickets", h.IssueTicket)
	r.Get("/tickets/{ticketID}/qr.png", h.TicketQR)
	r.Post("/public/tickets/purchase", h.GuestPurchase)

	r.Post("/payments/{ticketID}/confirm", h.ConfirmPayment)
	r.Post("/payments/{ticketID}/refund", h.RefundTicket)

	r.Post("/checkin/scan", h.ScanTicket)

	r.Get("/notifications", h.ListNotifications)
	r.Post("/notifications/{notificationID}/read", h.MarkNotificationRead)

	return r
}

type createEventRequest struct {
	OrganiserID string    `json:"organiser_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	Venue       string    `json:"venue"`
	Capacity    int       `json:"capacity"`
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	event, err := h.Events.Create(r.Context(), events.CreateEventRequest{
		OrganiserID: req.OrganiserID,
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate,
		Venue:       req.Venue,
		Capacity:    req.Capacity,
	})
	if err != nil {
		writeError(w, statusFor(err), "failed to create event", err.Error())
		return
	}
	writeSuccess(w, http.StatusCreated, "event created", event)
}

func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if err := h.Events.Publish(r.Context(), eventID); err != nil {
		writeError(w, statusFor(err), "failed to publish event", err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, "event published", nil)
}

type addSessionRequest struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Label    string    `json:"label"`
	DayIndex *int      `json:"day_index"`
}

func (h *Handler) AddSession(w http.ResponseWriter, r *http.Request) {
	var req addSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	session, err := h.Events.AddSession(r.Context(), events.AddSessionRequest{
		EventID:  chi.URLParam(r, "eventID"),
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Label:    req.Label,
		DayIndex: req.DayIndex,
	})
	if err != nil {
		writeError(w, statusFor(err), "failed to add session", err.Error())
		return
	}
	writeSuccess(w, http.StatusCreated, "session added", session)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Events.Sessions(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		writeError(w, statusFor(err), "failed to list sessions", err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, "sessions", sessions)
}

type assignAgentRequest struct {
	AgentID string `json:"agent_id"`
}

func (h *Handler) AssignAgent(w http.ResponseWriter, r *http.Request) {
	var req assignAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.Events.AssignAgent(r.Context(), chi.URLParam(r, "eventID"), req.AgentID); err != nil {
		writeError(w, statusFor(err), "failed to assign agent", err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, "agent assigned", nil)
}

type issueTicketRequest struct {
	EventID       string   `json:"event_id"`
	ParticipantID string   `json:"participant_id"`
	TicketTypeID  string   `json:"ticket_type_id"`
	TypeCode      string   `json:"type_code"`
	Price         *string  `json:"price"`
	PromoCode     string   `json:"promo_code"`
	SessionIDs    []string `json:"session_ids"`
}

func (h *Handler) IssueTicket(w http.ResponseWriter, r *http.Request) {
	var req issueTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	issueReq := issuance.IssueRequest{
		EventID:      req.EventID,
		Buyer:        issuance.Buyer{ParticipantID: req.ParticipantID},
		TicketTypeID: req.TicketTypeID,
		TypeCode:     req.TypeCode,
		PromoCode:    req.PromoCode,
		SessionIDs:   req.SessionIDs,
	}
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid price", err.Error())
			return
		}
		issueReq.Price = &price
	}

	h.issue(w, r, issueReq)
}

type guestPurchaseRequest struct {
	EventID      string   `json:"event_id"`
	GuestEmail   string   `json:"guest_email"`
	GuestName    string   `json:"guest_name"`
	GuestPhone   string   `json:"guest_phone"`
	TicketTypeID string   `json:"ticket_type_id"`
	PromoCode    string   `json:"promo_code"`
	SessionIDs   []string `json:"session_ids"`
}

func (h *Handler) GuestPurchase(w http.ResponseWriter, r *http.Request) {
	var req guestPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	h.issue(w, r, issuance.IssueRequest{
		EventID: req.EventID,
		Buyer: issuance.Buyer{
			GuestEmail: req.GuestEmail,
			GuestName:  req.GuestName,
			GuestPhone: req.GuestPhone,
		},
		TicketTypeID: req.TicketTypeID,
		PromoCode:    req.PromoCode,
		SessionIDs:   req.SessionIDs,
	})
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request, req issuance.IssueRequest) {
	ticket, err := h.Issuance.Issue(r.Context(), req)
	if err != nil {
		monitoring.IssuanceRejected(err.Error())
		writeError(w, statusFor(err), "failed to issue ticket", err.Error())
		return
	}
	monitoring.TicketIssued()
	writeSuccess(w, http.StatusCreated, "ticket issued", ticket)
}

func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Tickets.GetTicket(r.Context(), chi.URLParam(r, "ticketID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load ticket", err.Error())
		return
	}
	if ticket == nil {
		writeError(w, http.StatusNotFound, "ticket not found", "")
		return
	}

	png, err := h.QR.RenderPNG(ticket.QRCode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render QR code", err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Payments.Confirm(r.Context(), chi.URLParam(r, "ticketID"))
	if err != nil {
		writeError(w, statusFor(err), "failed to confirm payment", err.Error())
		return
	}
	monitoring.PaymentConfirmed()
	writeSuccess(w, http.StatusOK, "payment confirmed", ticket)
}

func (h *Handler) RefundTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Payments.Refund(r.Context(), chi.URLParam(r, "ticketID"))
	if err != nil {
		writeError(w, statusFor(err), "failed to refund ticket", err.Error())
		return
	}
	monitoring.TicketRefunded()
	writeSuccess(w, http.StatusOK, "ticket refunded", ticket)
}

type scanRequest struct {
	QRCode    string  `json:"qr_code"`
	EventID   *string `json:"event_id"`
	SessionID *string `json:"session_id"`
}

type scanResponse struct {
	Result    models.ScanResult `json:"result"`
	TicketID  string            `json:"ticket_id,omitempty"`
	SessionID *string           `json:"session_id,omitempty"`
	ScannedAt *time.Time        `json:"scanned_at,omitempty"`
}

// ScanTicket validates a QR code presented at the gate. The scanning
// agent identifies itself with the X-Agent-ID header; when the named
// event restricts scanning to assigned agents, the agent must be one of
// them.
func (h *Handler) ScanTicket(w http.ResponseWriter, r *http.Request) {
	agentID := r.Header.Get("X-Agent-ID")
	if agentID == "" {
		writeError(w, http.StatusUnauthorized, "X-Agent-ID header required", "")
		return
	}

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.QRCode == "" {
		writeError(w, http.StatusBadRequest, "qr_code is required", "")
		return
	}

	if req.EventID != nil {
		restricted, err := h.Events.EventHasAgents(r.Context(), *req.EventID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to verify agent", err.Error())
			return
		}
		if restricted {
			assigned, err := h.Events.AgentCanScan(r.Context(), *req.EventID, agentID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to verify agent", err.Error())
				return
			}
			if !assigned {
				writeError(w, http.StatusForbidden, "agent is not assigned to this event", "")
				return
			}
		}
	}

	out, err := h.Checkin.Scan(r.Context(), checkin.ScanRequest{
		QRCode:    req.QRCode,
		AgentID:   agentID,
		EventID:   req.EventID,
		SessionID: req.SessionID,
	})
	if err != nil {
		writeError(w, statusFor(err), "scan failed", err.Error())
		return
	}
	monitoring.TicketScanned(out.Result)

	resp := scanResponse{
		Result:    out.Result,
		SessionID: out.SessionID,
		ScannedAt: out.ScannedAt,
	}
	if out.Ticket != nil {
		resp.TicketID = out.Ticket.ID
	}

	switch out.Result {
	case models.ScanOK:
		if h.Notify != nil && out.Ticket != nil && !out.Ticket.IsGuest() {
			if err := h.Notify.TicketUsed(*out.Ticket); err != nil {
				h.Logger.Warn("CHECKIN", "ticket used notification failed: "+err.Error())
			}
		}
		writeSuccess(w, http.StatusOK, "checkin successful", resp)
	case models.ScanNotFound:
		writeJSON(w, http.StatusNotFound, APIResponse{
			Success:   false,
			Message:   "ticket not found",
			Data:      resp,
			Timestamp: time.Now(),
		})
	default:
		writeJSON(w, http.StatusConflict, APIResponse{
			Success:   false,
			Message:   "checkin rejected",
			Data:      resp,
			Timestamp: time.Now(),
		})
	}
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if h.Notify == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications unavailable", "")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", "")
		return
	}
	rows, err := h.Notify.Unread(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notifications", err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, "unread notifications", rows)
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if h.Notify == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications unavailable", "")
		return
	}
	if err := h.Notify.MarkRead(r.Context(), chi.URLParam(r, "notificationID")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark notification read", err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, "notification read", nil)
}
