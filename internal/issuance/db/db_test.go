package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ticketing/internal/database"
	"ticketing/internal/inventory"
	"ticketing/internal/issuance"
	issuancedb "ticketing/internal/issuance/db"
	"ticketing/internal/logger"
	"ticketing/internal/models"
	"ticketing/internal/pricing"
	"ticketing/internal/promo"
	"ticketing/internal/qr"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, database.CreateSchema(context.Background(), bunDB))
	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

func newService(bunDB *bun.DB) *issuance.Service {
	return issuance.NewService(
		issuancedb.New(bunDB),
		pricing.NewEngine(),
		qr.NewGenerator("test-secret"),
		nil,
		&logger.Logger{},
	)
}

func seedEvent(t *testing.T, bunDB *bun.DB, id string, capacity int) {
	t.Helper()
	now := time.Now().UTC()
	event := models.Event{
		ID:          id,
		OrganiserID: "org-1",
		Title:       "Conference",
		StartDate:   now.Add(24 * time.Hour),
		Capacity:    capacity,
		Status:      models.EventStatusPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := bunDB.NewInsert().Model(&event).Exec(context.Background())
	require.NoError(t, err)
}

func seedTicketType(t *testing.T, bunDB *bun.DB, id, eventID string, price string, quota int) {
	t.Helper()
	now := time.Now().UTC()
	tt := models.TicketType{
		ID:        id,
		EventID:   eventID,
		Code:      "standard",
		Label:     "Standard",
		Price:     decimal.RequireFromString(price),
		Quota:     quota,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := bunDB.NewInsert().Model(&tt).Exec(context.Background())
	require.NoError(t, err)
}

func seedPromo(t *testing.T, bunDB *bun.DB, id, eventID, code string, usageLimit *int) {
	t.Helper()
	now := time.Now().UTC()
	p := models.PromoCode{
		ID:           id,
		EventID:      eventID,
		Code:         code,
		DiscountType: models.DiscountPercent,
		Value:        decimal.RequireFromString("10"),
		UsageLimit:   usageLimit,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := bunDB.NewInsert().Model(&p).Exec(context.Background())
	require.NoError(t, err)
}

func issueFor(participant string) issuance.IssueRequest {
	return issuance.IssueRequest{
		EventID:      "event-1",
		Buyer:        issuance.Buyer{ParticipantID: participant},
		TicketTypeID: "type-1",
	}
}

func TestIssueEndToEnd(t *testing.T) {
	bunDB := setupTestDB(t)
	svc := newService(bunDB)
	seedEvent(t, bunDB, "event-1", 100)
	seedTicketType(t, bunDB, "type-1", "event-1", "50.00", 0)

	ticket, err := svc.Issue(context.Background(), issueFor("user-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.QRCode)
	assert.Equal(t, "standard", ticket.TypeCode)
	assert.Equal(t, "50.00", ticket.FinalPrice.StringFixed(2))

	var stored models.Ticket
	require.NoError(t, bunDB.NewSelect().Model(&stored).Where("id = ?", ticket.ID).Scan(context.Background()))
	assert.Equal(t, models.TicketStatusCreated, stored.Status)
}

func TestCapacityInvariant(t *testing.T) {
	bunDB := setupTestDB(t)
	svc := newService(bunDB)
	seedEvent(t, bunDB, "event-1", 3)
	seedTicketType(t, bunDB, "type-1", "event-1", "50.00", 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Issue(ctx, issueFor(fmt.Sprintf("user-%d", i)))
		require.NoError(t, err)
	}

	_, err := svc.Issue(ctx, issueFor("user-late"))
	assert.ErrorIs(t, err, inventory.ErrCapacityReached)

	count, err := bunDB.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "active tickets must never exceed capacity")
}

func TestCancelledTicketFreesCapacity(t *testing.T) {
	bunDB := setupTestDB(t)
	svc := newService(bunDB)
	seedEvent(t, bunDB, "event-1", 1)
	seedTicketType(t, bunDB, "type-1", "event-1", "50.00", 0)
	ctx := context.Background()

	first, err := svc.Issue(ctx, issueFor("user-1"))
	require.NoError(t, err)

	_, err = svc.Issue(ctx, issueFor("user-2"))
	require.ErrorIs(t, err, inventory.ErrCapacityReached)

	_, err = bunDB.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusCancelled).
		Where("id = ?", first.ID).
		Exec(ctx)
	require.NoError(t, err)

	_, err = svc.Issue(ctx, issueFor("user-2"))
	assert.NoError(t, err)
}

func TestQuotaInvariant(t *testing.T) {
	bunDB := setupTestDB(t)
	svc := newService(bunDB)
	seedEvent(t, bunDB, "event-1", 100)
	seedTicketType(t, bunDB, "type-1", "event-1", "120.00", 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Issue(ctx, issueFor(fmt.Sprintf("user-%d", i)))
		require.NoError(t, err)
	}

	_, err := svc.Issue(ctx, issueFor("user-late"))
	assert.ErrorIs(t, err, inventory.ErrQuotaReached)
}

func TestPromoUsageTracksTickets(t *testing.T) {
	bunDB := setupTestDB(t)
	svc := newService(bunDB)
	seedEvent(t, bunDB, "event-1", 100)
	seedTicketType(t, bunDB, "type-1", "event-1", "50.00", 0)
	limit := 2
	seedPromo(t, bunDB, "promo-1", "event-1", "EARLY", &limit)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		req := issueFor(fmt.Sprintf("user-%d", i))
		req.PromoCode = "EARLY"
		ticket, err := svc.Issue(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "45.00", ticket.FinalPrice.StringFixed(2))
	}

	req := issueFor("user-late")
	req.PromoCode = "EARLY"
	_, err := svc.Issue(ctx, req)
	assert.ErrorIs(t, err, promo.ErrPromoLimitReached)

	var p models.PromoCode
	require.NoError(t, bunDB.NewSelect().Model(&p).Where("id = ?", "promo-1").Scan(ctx))
	assert.Equal(t, 2, p.UsedCount)
}

func TestPromoUseRollsBackWithFailedIssue(t *testing.T) {
	bunDB := setupTestDB(t)
	svc := newService(bunDB)
	seedEvent(t, bunDB, "event-1", 100)
	seedTicketType(t, bunDB, "type-1", "event-1", "50.00", 0)
	seedPromo(t, bunDB, "promo-1", "event-1", "EARLY", nil)
	ctx := context.Background()

	// The promo increment happens before session validation; when the
	// session is rejected the whole transaction, increment included, must
	// roll back.
	req := issueFor("user-1")
	req.PromoCode = "EARLY"
	req.SessionIDs = []string{"no-such-session"}
	_, err := svc.Issue(ctx, req)
	require.ErrorIs(t, err, issuance.ErrUnknownSession)

	var p models.PromoCode
	require.NoError(t, bunDB.NewSelect().Model(&p).Where("id = ?", "promo-1").Scan(ctx))
	assert.Zero(t, p.UsedCount)

	count, err := bunDB.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGuestIssuance(t *testing.T) {
	bunDB := setupTestDB(t)
	svc := newService(bunDB)
	seedEvent(t, bunDB, "event-1", 100)
	seedTicketType(t, bunDB, "type-1", "event-1", "50.00", 0)

	req := issueFor("")
	req.Buyer = issuance.Buyer{GuestEmail: "ada@example.com", GuestName: "Ada", GuestPhone: "+44100"}
	ticket, err := svc.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, ticket.IsGuest())
	require.NotNil(t, ticket.GuestEmail)
	assert.Equal(t, "ada@example.com", *ticket.GuestEmail)
}

func TestDefaultEntitlementIsAllSessions(t *testing.T) {
	bunDB := setupTestDB(t)
	svc := newService(bunDB)
	seedEvent(t, bunDB, "event-1", 100)
	seedTicketType(t, bunDB, "type-1", "event-1", "50.00", 0)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, id := range []string{"s1", "s2"} {
		session := models.EventSession{
			ID:        id,
			EventID:   "event-1",
			StartsAt:  now.Add(time.Duration(24*i) * time.Hour),
			EndsAt:    now.Add(time.Duration(24*i+8) * time.Hour),
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err := bunDB.NewInsert().Model(&session).Exec(ctx)
		require.NoError(t, err)
	}

	ticket, err := svc.Issue(ctx, issueFor("user-1"))
	require.NoError(t, err)

	var ids []string
	require.NoError(t, bunDB.NewSelect().
		Model((*models.TicketSession)(nil)).
		Column("session_id").
		Where("ticket_id = ?", ticket.ID).
		Scan(ctx, &ids))
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)
}

func TestExplicitSingleSessionEntitlement(t *testing.T) {
	bunDB := setupTestDB(t)
	svc := newService(bunDB)
	seedEvent(t, bunDB, "event-1", 100)
	seedTicketType(t, bunDB, "type-1", "event-1", "50.00", 0)
	ctx := context.Background()

	now := time.Now().UTC()
	session := models.EventSession{
		ID: "s1", EventID: "event-1",
		StartsAt: now, EndsAt: now.Add(8 * time.Hour),
		CreatedAt: now, UpdatedAt: now,
	}
	_, err := bunDB.NewInsert().Model(&session).Exec(ctx)
	require.NoError(t, err)

	req := issueFor("user-1")
	req.SessionIDs = []string{"s1"}
	ticket, err := svc.Issue(ctx, req)
	require.NoError(t, err)

	count, err := bunDB.NewSelect().
		Model((*models.TicketSession)(nil)).
		Where("ticket_id = ?", ticket.ID).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecomputePromoUsage(t *testing.T) {
	bunDB := setupTestDB(t)
	store := issuancedb.New(bunDB)
	svc := newService(bunDB)
	seedEvent(t, bunDB, "event-1", 100)
	seedTicketType(t, bunDB, "type-1", "event-1", "50.00", 0)
	seedPromo(t, bunDB, "promo-1", "event-1", "EARLY", nil)
	ctx := context.Background()

	req := issueFor("user-1")
	req.PromoCode = "EARLY"
	_, err := svc.Issue(ctx, req)
	require.NoError(t, err)

	// Out-of-band damage to the counter.
	_, err = bunDB.NewUpdate().
		Model((*models.PromoCode)(nil)).
		Set("used_count = ?", 7).
		Where("id = ?", "promo-1").
		Exec(ctx)
	require.NoError(t, err)

	changed, err := store.RecomputePromoUsage(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)

	var p models.PromoCode
	require.NoError(t, bunDB.NewSelect().Model(&p).Where("id = ?", "promo-1").Scan(ctx))
	assert.Equal(t, 1, p.UsedCount)
}
