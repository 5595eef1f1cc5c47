package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ynterhq/gateway/internal/billing/domain"
	entitlementdomain "github.com/ynterhq/gateway/internal/entitlement/domain"
	"github.com/ynterhq/gateway/internal/entitlement/repository"
)

func newTestReconciler(t *testing.T) (*Reconciler, *gorm.DB) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, conn.AutoMigrate(
		&entitlementdomain.Account{},
		&entitlementdomain.Subscription{},
		&entitlementdomain.Payment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewReconciler(repository.Provide(conn, node), nil), conn
}

func paymentSucceededEvent(chargeID string, periodEnds ...int64) []byte {
	lines := ""
	for i, end := range periodEnds {
		if i > 0 {
			lines += ","
		}
		lines += fmt.Sprintf(`{"period":{"start":%d,"end":%d}}`, end-100, end)
	}
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": "invoice.payment_succeeded",
		"data": {"object": {
			"id": "in_1",
			"customer": "cus_1",
			"subscription": "sub_1",
			"charge": %q,
			"total": 999,
			"currency": "eur",
			"lines": {"data": [%s]}
		}}
	}`, chargeID, lines))
}

func TestApplyPaymentSucceeded(t *testing.T) {
	r, conn := newTestReconciler(t)
	ctx := context.Background()

	t1 := time.Now().Add(24 * time.Hour).Unix()
	t2 := time.Now().Add(30 * 24 * time.Hour).Unix()
	require.NoError(t, r.Apply(ctx, paymentSucceededEvent("ch_1", t1, t2)))

	var sub entitlementdomain.Subscription
	require.NoError(t, conn.First(&sub, "subscription_id = ?", "sub_1").Error)
	assert.Equal(t, "cus_1", sub.CustomerID)
	assert.Equal(t, int64(0), sub.UsageTokens)
	// Several line items settle on the furthest period end.
	assert.WithinDuration(t, time.Unix(t2, 0), sub.ExpiresAt, time.Second)

	var payments int64
	require.NoError(t, conn.Model(&entitlementdomain.Payment{}).Count(&payments).Error)
	assert.Equal(t, int64(1), payments)
}

func TestApplyPaymentSucceededReplayIsIdempotent(t *testing.T) {
	r, conn := newTestReconciler(t)
	ctx := context.Background()

	end := time.Now().Add(30 * 24 * time.Hour).Unix()
	payload := paymentSucceededEvent("ch_1", end)
	require.NoError(t, r.Apply(ctx, payload))
	require.NoError(t, r.Apply(ctx, payload))

	var subs, payments int64
	require.NoError(t, conn.Model(&entitlementdomain.Subscription{}).Count(&subs).Error)
	require.NoError(t, conn.Model(&entitlementdomain.Payment{}).Count(&payments).Error)
	assert.Equal(t, int64(1), subs)
	assert.Equal(t, int64(1), payments)
}

func TestApplyPaymentSucceededResetsUsage(t *testing.T) {
	r, conn := newTestReconciler(t)
	ctx := context.Background()

	require.NoError(t, conn.Create(&entitlementdomain.Subscription{
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
		UsageTokens:    500_000,
		ExpiresAt:      time.Now().Add(time.Hour),
	}).Error)

	end := time.Now().Add(30 * 24 * time.Hour).Unix()
	require.NoError(t, r.Apply(ctx, paymentSucceededEvent("ch_2", end)))

	var sub entitlementdomain.Subscription
	require.NoError(t, conn.First(&sub, "subscription_id = ?", "sub_1").Error)
	assert.Equal(t, int64(0), sub.UsageTokens)
}

func TestApplySubscriptionUpdated(t *testing.T) {
	r, conn := newTestReconciler(t)
	ctx := context.Background()

	require.NoError(t, conn.Create(&entitlementdomain.Subscription{
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
		ExpiresAt:      time.Now().Add(30 * 24 * time.Hour),
	}).Error)

	cancelAt := time.Now().Add(7 * 24 * time.Hour).Unix()
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_2",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_1",
			"customer": "cus_1",
			"cancel_at": %d,
			"current_period_end": %d,
			"cancel_at_period_end": true
		}}
	}`, cancelAt, time.Now().Add(30*24*time.Hour).Unix()))
	require.NoError(t, r.Apply(ctx, payload))

	var sub entitlementdomain.Subscription
	require.NoError(t, conn.First(&sub, "subscription_id = ?", "sub_1").Error)
	// cancel_at wins over current_period_end when present.
	assert.WithinDuration(t, time.Unix(cancelAt, 0), sub.ExpiresAt, time.Second)
	assert.True(t, sub.CancelAtPeriodEnd)
}

func TestApplySubscriptionUpdatedUnknownIsAcked(t *testing.T) {
	r, conn := newTestReconciler(t)

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_3",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_missing",
			"current_period_end": %d,
			"cancel_at_period_end": false
		}}
	}`, time.Now().Unix()))
	require.NoError(t, r.Apply(context.Background(), payload))

	var count int64
	require.NoError(t, conn.Model(&entitlementdomain.Subscription{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestApplySubscriptionDeleted(t *testing.T) {
	r, conn := newTestReconciler(t)
	ctx := context.Background()

	require.NoError(t, conn.Create(&entitlementdomain.Subscription{
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
		ExpiresAt:      time.Now().Add(30 * 24 * time.Hour),
	}).Error)

	canceledAt := time.Now().Add(-time.Hour).Unix()
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_4",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_1", "canceled_at": %d}}
	}`, canceledAt))
	require.NoError(t, r.Apply(ctx, payload))

	var sub entitlementdomain.Subscription
	require.NoError(t, conn.First(&sub, "subscription_id = ?", "sub_1").Error)
	assert.WithinDuration(t, time.Unix(canceledAt, 0), sub.ExpiresAt, time.Second)
}

func TestApplyUnknownEventAcked(t *testing.T) {
	r, _ := newTestReconciler(t)

	payload := []byte(`{"id": "evt_5", "type": "charge.refunded", "data": {"object": {}}}`)
	assert.NoError(t, r.Apply(context.Background(), payload))
}

func TestApplyEventWithoutTypeAcked(t *testing.T) {
	r, conn := newTestReconciler(t)

	payload := []byte(`{"id": "evt_8", "type": "", "data": {"object": {}}}`)
	assert.NoError(t, r.Apply(context.Background(), payload))

	payload = []byte(`{"id": "", "type": "invoice.payment_succeeded", "data": {"object": {}}}`)
	assert.NoError(t, r.Apply(context.Background(), payload))

	var count int64
	require.NoError(t, conn.Model(&entitlementdomain.Subscription{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestApplySubscriptionUpdateWithoutIDAcked(t *testing.T) {
	r, _ := newTestReconciler(t)

	payload := []byte(`{
		"id": "evt_9",
		"type": "customer.subscription.updated",
		"data": {"object": {"current_period_end": 1700000000}}
	}`)
	assert.NoError(t, r.Apply(context.Background(), payload))
}

func TestApplyScheduleExpiringAcked(t *testing.T) {
	r, _ := newTestReconciler(t)

	payload := []byte(`{"id": "evt_6", "type": "subscription_schedule.expiring", "data": {"object": {}}}`)
	assert.NoError(t, r.Apply(context.Background(), payload))
}

func TestApplyMalformedPayload(t *testing.T) {
	r, _ := newTestReconciler(t)

	err := r.Apply(context.Background(), []byte("not json"))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestApplyInvoiceWithoutSubscriptionAcked(t *testing.T) {
	r, conn := newTestReconciler(t)

	payload := []byte(`{
		"id": "evt_7",
		"type": "invoice.payment_succeeded",
		"data": {"object": {"id": "in_1", "customer": "cus_1", "charge": "ch_9", "lines": {"data": []}}}
	}`)
	require.NoError(t, r.Apply(context.Background(), payload))

	var count int64
	require.NoError(t, conn.Model(&entitlementdomain.Payment{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
