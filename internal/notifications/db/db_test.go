package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ticketing/internal/database"
	"ticketing/internal/models"
	notificationsdb "ticketing/internal/notifications/db"
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

func insertNotification(t *testing.T, store *notificationsdb.DB, id, userID string, createdAt time.Time) {
	t.Helper()
	err := store.InsertNotification(context.Background(), &models.Notification{
		ID:        id,
		UserID:    userID,
		Type:      "TICKET_CREATED",
		Title:     "Your ticket is ready",
		Body:      "Ticket " + id,
		CreatedAt: createdAt,
	})
	require.NoError(t, err)
}

func TestUnreadFeedAndMarkRead(t *testing.T) {
	bunDB := setupTestDB(t)
	store := notificationsdb.New(bunDB)
	ctx := context.Background()

	now := time.Now().UTC()
	insertNotification(t, store, "n1", "user-1", now.Add(-2*time.Minute))
	insertNotification(t, store, "n2", "user-1", now.Add(-time.Minute))
	insertNotification(t, store, "n3", "user-2", now)

	rows, err := store.ListUnread(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "n2", rows[0].ID, "newest first")
	assert.Equal(t, "n1", rows[1].ID)

	require.NoError(t, store.MarkRead(ctx, "n2"))

	rows, err = store.ListUnread(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "n1", rows[0].ID)

	// Other users' feeds are untouched.
	rows, err = store.ListUnread(ctx, "user-2")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
