package notify

import (
	"context"
	"database/sql"
	"testing"

	"github.com/bricspay/transfer-core/pkg/common/migrations"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.RunMigrations(db))
	return NewDispatcher(db, nil, zap.NewNop()), db
}

func TestShouldNotify_CreatesDefaultPreferences(t *testing.T) {
	d, db := newTestDispatcher(t)
	ctx := context.Background()

	assert.True(t, d.ShouldNotify(ctx, "u1", CategoryReceivePayment))

	var count int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM notification_preferences WHERE user_id = 'u1'`).Scan(&count))
	assert.Equal(t, 1, count)

	p, err := d.Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.ReceivePayment)
	assert.True(t, p.SendPayment)
	assert.True(t, p.IncomingRequest)
	assert.True(t, p.RequestResponse)
	assert.True(t, p.PushEnabled)
	assert.False(t, p.EmailEnabled)
}

func TestShouldNotify_CategorySuppression(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	p, err := d.Preferences(ctx, "u1")
	require.NoError(t, err)
	p.ReceivePayment = false
	require.NoError(t, d.UpdatePreferences(ctx, p))

	assert.False(t, d.ShouldNotify(ctx, "u1", CategoryReceivePayment))
	assert.True(t, d.ShouldNotify(ctx, "u1", CategorySendPayment))
}

func TestShouldNotify_PushDisabledSuppressesAll(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	p, err := d.Preferences(ctx, "u1")
	require.NoError(t, err)
	p.PushEnabled = false
	require.NoError(t, d.UpdatePreferences(ctx, p))

	assert.False(t, d.ShouldNotify(ctx, "u1", CategoryReceivePayment))
	assert.False(t, d.ShouldNotify(ctx, "u1", CategorySendPayment))
	assert.False(t, d.ShouldNotify(ctx, "u1", CategoryIncomingRequest))
	assert.False(t, d.ShouldNotify(ctx, "u1", CategoryRequestResponse))
}

func TestShouldNotify_FailOpenWhenPreferencesUnloadable(t *testing.T) {
	d, db := newTestDispatcher(t)
	ctx := context.Background()

	_, err := db.Exec(`DROP TABLE notification_preferences`)
	require.NoError(t, err)

	assert.True(t, d.ShouldNotify(ctx, "u1", CategoryReceivePayment))
}

func TestCreateListMarkRead(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	require.NoError(t, d.Create(ctx, "u1", "Payment Received", "You received 200.00 CNY.", "tx-1"))
	require.NoError(t, d.Create(ctx, "u1", "Payment Sent", "You sent 100.00 INR.", ""))
	require.NoError(t, d.Create(ctx, "u2", "Money Request", "alice requested 50.00 CNY.", "tx-2"))

	unread, err := d.List(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, unread, 2)

	count, err := d.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, d.MarkRead(ctx, unread[0].ID))
	// Idempotent
	require.NoError(t, d.MarkRead(ctx, unread[0].ID))

	count, err = d.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	all, err := d.List(ctx, "u1", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	unread, err = d.List(ctx, "u1", false)
	require.NoError(t, err)
	assert.Len(t, unread, 1)
}

func TestCreate_OptionalTransactionID(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	require.NoError(t, d.Create(ctx, "u1", "Payment Sent", "msg", ""))
	list, err := d.List(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].TransactionID)
}
