package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing/internal/checkin"
	"ticketing/internal/events"
	"ticketing/internal/inventory"
	"ticketing/internal/issuance"
	"ticketing/internal/logger"
	"ticketing/internal/models"
	"ticketing/internal/qr"
)

type fakeIssuance struct {
	ticket *models.Ticket
	err    error
}

func (f *fakeIssuance) Issue(ctx context.Context, req issuance.IssueRequest) (*models.Ticket, error) {
	return f.ticket, f.err
}

type fakeCheckin struct {
	out checkin.Outcome
	err error
}

func (f *fakeCheckin) Scan(ctx context.Context, req checkin.ScanRequest) (checkin.Outcome, error) {
	return f.out, f.err
}

type fakePayments struct {
	ticket *models.Ticket
	err    error
}

func (f *fakePayments) Confirm(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return f.ticket, f.err
}

func (f *fakePayments) Refund(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return f.ticket, f.err
}

type fakeEvents struct {
	hasAgents bool
	assigned  bool
}

func (f *fakeEvents) Create(ctx context.Context, req events.CreateEventRequest) (*models.Event, error) {
	return &models.Event{ID: "event-1", Title: req.Title, Capacity: req.Capacity}, nil
}
func (f *fakeEvents) Publish(ctx context.Context, eventID string) error { return nil }
func (f *fakeEvents) AddSession(ctx context.Context, req events.AddSessionRequest) (*models.EventSession, error) {
	if !req.EndsAt.After(req.StartsAt) {
		return nil, events.ErrSessionWindow
	}
	return &models.EventSession{ID: "s1", EventID: req.EventID}, nil
}
func (f *fakeEvents) Sessions(ctx context.Context, eventID string) ([]models.EventSession, error) {
	return nil, nil
}
func (f *fakeEvents) AssignAgent(ctx context.Context, eventID, agentID string) error { return nil }
func (f *fakeEvents) AgentCanScan(ctx context.Context, eventID, agentID string) (bool, error) {
	return f.assigned, nil
}
func (f *fakeEvents) EventHasAgents(ctx context.Context, eventID string) (bool, error) {
	return f.hasAgents, nil
}

type fakeNotify struct {
	unread []models.Notification
	read   []string
}

func (f *fakeNotify) TicketUsed(ticket models.Ticket) error { return nil }
func (f *fakeNotify) Unread(ctx context.Context, userID string) ([]models.Notification, error) {
	return f.unread, nil
}
func (f *fakeNotify) MarkRead(ctx context.Context, notificationID string) error {
	f.read = append(f.read, notificationID)
	return nil
}

type fakeTickets struct {
	ticket *models.Ticket
}

func (f *fakeTickets) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return f.ticket, nil
}

func newTestHandler(iss IssuanceService, chk CheckinService, pay PaymentService, ev EventService, tickets TicketStore) *Handler {
	return NewHandler(iss, chk, pay, ev, tickets, qr.NewGenerator("test-secret"), &logger.Logger{})
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestScanRequiresAgentHeader(t *testing.T) {
	h := newTestHandler(&fakeIssuance{}, &fakeCheckin{}, &fakePayments{}, &fakeEvents{}, &fakeTickets{})
	router := h.Routes()

	rec := postJSON(t, router, "/checkin/scan", map[string]string{"qr_code": "QR-x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScanRejectsUnassignedAgent(t *testing.T) {
	h := newTestHandler(&fakeIssuance{}, &fakeCheckin{}, &fakePayments{}, &fakeEvents{hasAgents: true, assigned: false}, &fakeTickets{})
	router := h.Routes()

	body := map[string]interface{}{"qr_code": "QR-x", "event_id": "event-1"}
	rec := postJSON(t, router, "/checkin/scan", body, map[string]string{"X-Agent-ID": "agent-1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScanAllowsAnyAgentWhenEventUnrestricted(t *testing.T) {
	// No agents assigned: the event does not restrict who may scan.
	out := checkin.Outcome{Result: models.ScanOK, Ticket: &models.Ticket{ID: "ticket-1"}}
	h := newTestHandler(&fakeIssuance{}, &fakeCheckin{out: out}, &fakePayments{}, &fakeEvents{hasAgents: false, assigned: false}, &fakeTickets{})
	router := h.Routes()

	body := map[string]interface{}{"qr_code": "QR-x", "event_id": "event-1"}
	rec := postJSON(t, router, "/checkin/scan", body, map[string]string{"X-Agent-ID": "agent-1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScanInFlightMapsToConflict(t *testing.T) {
	h := newTestHandler(&fakeIssuance{}, &fakeCheckin{err: checkin.ErrScanInFlight}, &fakePayments{}, &fakeEvents{}, &fakeTickets{})
	router := h.Routes()

	rec := postJSON(t, router, "/checkin/scan", map[string]string{"qr_code": "QR-x"}, map[string]string{"X-Agent-ID": "agent-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScanStatusCodes(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		result models.ScanResult
		status int
	}{
		{models.ScanOK, http.StatusOK},
		{models.ScanNotFound, http.StatusNotFound},
		{models.ScanAlreadyUsed, http.StatusConflict},
		{models.ScanNotPaid, http.StatusConflict},
		{models.ScanSessionRequired, http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(string(tc.result), func(t *testing.T) {
			out := checkin.Outcome{Result: tc.result}
			if tc.result == models.ScanOK {
				out.Ticket = &models.Ticket{ID: "ticket-1"}
				out.ScannedAt = &now
			}
			h := newTestHandler(&fakeIssuance{}, &fakeCheckin{out: out}, &fakePayments{}, &fakeEvents{}, &fakeTickets{})
			router := h.Routes()

			rec := postJSON(t, router, "/checkin/scan", map[string]string{"qr_code": "QR-x"}, map[string]string{"X-Agent-ID": "agent-1"})
			assert.Equal(t, tc.status, rec.Code)

			var resp APIResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.result == models.ScanOK, resp.Success)
		})
	}
}

func TestIssueTicketMapsDomainErrors(t *testing.T) {
	h := newTestHandler(&fakeIssuance{err: inventory.ErrCapacityReached}, &fakeCheckin{}, &fakePayments{}, &fakeEvents{}, &fakeTickets{})
	router := h.Routes()

	body := map[string]string{"event_id": "event-1", "participant_id": "user-1", "ticket_type_id": "type-1"}
	rec := postJSON(t, router, "/tickets", body, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "capacity")
}

func TestIssueTicketSuccess(t *testing.T) {
	ticket := &models.Ticket{ID: "ticket-1", EventID: "event-1", QRCode: "QR-abc", Status: models.TicketStatusCreated}
	h := newTestHandler(&fakeIssuance{ticket: ticket}, &fakeCheckin{}, &fakePayments{}, &fakeEvents{}, &fakeTickets{})
	router := h.Routes()

	body := map[string]string{"event_id": "event-1", "participant_id": "user-1", "ticket_type_id": "type-1"}
	rec := postJSON(t, router, "/tickets", body, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestTicketQRRendersPNG(t *testing.T) {
	ticket := &models.Ticket{ID: "ticket-1", QRCode: "QR-abc"}
	h := newTestHandler(&fakeIssuance{}, &fakeCheckin{}, &fakePayments{}, &fakeEvents{}, &fakeTickets{ticket: ticket})
	router := h.Routes()

	req := httptest.NewRequest(http.MethodGet, "/tickets/ticket-1/qr.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, rec.Body.Bytes()[:4])
}

func TestTicketQRNotFound(t *testing.T) {
	h := newTestHandler(&fakeIssuance{}, &fakeCheckin{}, &fakePayments{}, &fakeEvents{}, &fakeTickets{})
	router := h.Routes()

	req := httptest.NewRequest(http.MethodGet, "/tickets/missing/qr.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListUnreadNotifications(t *testing.T) {
	h := newTestHandler(&fakeIssuance{}, &fakeCheckin{}, &fakePayments{}, &fakeEvents{}, &fakeTickets{})
	h.Notify = &fakeNotify{unread: []models.Notification{{ID: "n1", UserID: "user-1", Title: "Your ticket is ready"}}}
	router := h.Routes()

	req := httptest.NewRequest(http.MethodGet, "/notifications?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "n1")

	req = httptest.NewRequest(http.MethodGet, "/notifications", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkNotificationRead(t *testing.T) {
	notify := &fakeNotify{}
	h := newTestHandler(&fakeIssuance{}, &fakeCheckin{}, &fakePayments{}, &fakeEvents{}, &fakeTickets{})
	h.Notify = notify
	router := h.Routes()

	rec := postJSON(t, router, "/notifications/n1/read", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"n1"}, notify.read)
}

func TestAddSessionWindowRejected(t *testing.T) {
	h := newTestHandler(&fakeIssuance{}, &fakeCheckin{}, &fakePayments{}, &fakeEvents{}, &fakeTickets{})
	router := h.Routes()

	start := time.Now().UTC()
	body := map[string]interface{}{"starts_at": start, "ends_at": start}
	rec := postJSON(t, router, "/events/event-1/sessions", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
