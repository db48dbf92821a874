package service

import (
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateOrder(t *testing.T) {
	e := newTestEnv(t)
	u := e.createUser(t, 0, "0", "3", nil)

	_, err := e.order.CreateOrder(e.ctx, u.ID, dec("0"))
	assert.Equal(t, CodeInvalidAmount, ErrorCode(err))
	_, err = e.order.CreateOrder(e.ctx, 999, dec("10"))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	o, err := e.order.CreateOrder(e.ctx, u.ID, dec("149.999"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, o.Status)
	assert.True(t, o.TotalAmount.Equal(dec("150")))
}

func TestUpdateStatusDeliveredTriggersAccrual(t *testing.T) {
	e := newTestEnv(t)
	referrer := e.createUser(t, 0, "0", "3", nil)
	buyer := e.createUser(t, 0, "0", "3", referrer)
	o, err := e.order.CreateOrder(e.ctx, buyer.ID, dec("10000"))
	require.NoError(t, err)

	for _, status := range []string{domain.OrderStatusPaid, domain.OrderStatusShipped} {
		_, err := e.order.UpdateStatus(e.ctx, o.ID, status)
		require.NoError(t, err)
	}
	assert.True(t, e.reload(t, referrer.ID).AvailableBalance.IsZero())

	deliveredAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e.order.now = func() time.Time { return deliveredAt }
	updated, err := e.order.UpdateStatus(e.ctx, o.ID, domain.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, updated.Status)
	require.NotNil(t, updated.DeliveredAt)
	assert.True(t, deliveredAt.Equal(*updated.DeliveredAt))

	r := e.reload(t, referrer.ID)
	assert.True(t, r.AvailableBalance.Equal(dec("300")))
	assert.True(t, r.TotalReferralEarnings.Equal(dec("300")))

	// A repeated DELIVERED update must not credit twice.
	_, err = e.order.UpdateStatus(e.ctx, o.ID, domain.OrderStatusDelivered)
	require.NoError(t, err)
	assert.True(t, e.reload(t, referrer.ID).AvailableBalance.Equal(dec("300")))
	assert.Equal(t, int64(1), e.ledgerCount(t))
}

func TestUpdateStatusSurvivesAccrualFailure(t *testing.T) {
	e := newTestEnv(t)
	referrer := e.createUser(t, 0, "0", "3", nil)
	buyer := e.createUser(t, 0, "0", "3", referrer)
	o := e.createOrder(t, buyer.ID, "1000", domain.OrderStatusShipped)

	require.NoError(t, e.db.Migrator().DropTable("referral_payouts"))

	updated, err := e.order.UpdateStatus(e.ctx, o.ID, domain.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, updated.Status)

	stored, err := e.order.Get(e.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, stored.Status)
	assert.True(t, e.reload(t, referrer.ID).AvailableBalance.IsZero())
}

func TestUpdateStatusValidation(t *testing.T) {
	e := newTestEnv(t)
	u := e.createUser(t, 0, "0", "3", nil)
	o := e.createOrder(t, u.ID, "10", domain.OrderStatusPending)

	_, err := e.order.UpdateStatus(e.ctx, o.ID, "LOST")
	assert.Equal(t, CodeInvalidStatus, ErrorCode(err))
	_, err = e.order.UpdateStatus(e.ctx, 12345, domain.OrderStatusPaid)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, _, err = e.order.List(e.ctx, "LOST", 1, 10)
	assert.Equal(t, CodeInvalidStatus, ErrorCode(err))
	list, total, err := e.order.List(e.ctx, domain.OrderStatusPending, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)
}
