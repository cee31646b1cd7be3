package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/campus-trade/internal/lock"
	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/repository"
)

// lockFailingOrders отказывает в блокировке одного заказа.
type lockFailingOrders struct {
	memOrders
	failID int64
}

func (r lockFailingOrders) GetForUpdate(ctx context.Context, q repository.Querier, id int64) (*models.Order, error) {
	if id == r.failID {
		return nil, assert.AnError
	}
	return r.memOrders.GetForUpdate(ctx, q, id)
}

func TestSweeper_SkipsWhenLockHeldElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, _, _ := f.placeOrder(t, "10.00")
	f.advance(time.Hour)

	locker := lock.NewLocalLocker()
	f.sweeper.locker = locker

	release, ok, err := locker.TryLock(ctx, sweepLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	f.sweeper.tick(ctx)
	assert.Equal(t, models.OrderStatusPendingPayment, f.store.order(orderID).Status)

	release()
	f.sweeper.tick(ctx)
	assert.Equal(t, models.OrderStatusCancelled, f.store.order(orderID).Status)
}

func TestSweeper_ExpiresStaleRecharges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.store.addUser(100)

	recharge, _, err := f.recharges.Create(ctx, userID, decimal.NewFromInt(5))
	require.NoError(t, err)
	f.advance(time.Hour)

	f.sweeper.tick(ctx)
	assert.Equal(t, models.RechargeStatusFailed, f.store.state.recharges[recharge.ID].Status)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.sweeper.cfg.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sweeper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_FailureOnOneOrderDoesNotAbortPass(t *testing.T) {
	f := newFixture(t)
	broken, _, _ := f.placeOrder(t, "10.00")
	healthy, _, _ := f.placeOrder(t, "20.00")
	f.advance(time.Hour)

	f.sweeper.orders = lockFailingOrders{memOrders: memOrders{f.store}, failID: broken}

	result, err := f.sweeper.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Processed: 1, Failed: 1}, result)

	assert.Equal(t, models.OrderStatusPendingPayment, f.store.order(broken).Status)
	assert.Equal(t, models.OrderStatusCancelled, f.store.order(healthy).Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SweepFailedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SweepProcessedTotal))
}

func TestSweeper_ReportsStalledNegotiations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, buyerID, sellerID := f.placeOrder(t, "100.00")

	round, res, err := f.negotiations.Start(ctx, orderID, buyerID, decimal.NewFromInt(80))
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	f.advance(time.Hour)
	assert.Zero(t, f.sweeper.reportStalled(ctx))

	f.advance(24 * time.Hour)
	assert.Equal(t, 1, f.sweeper.reportStalled(ctx))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StalledNegotiations))

	stalled, err := f.orders.ListStalledNegotiations(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	assert.Equal(t, orderID, stalled[0].ID)

	// Встречное предложение обновляет ожидание
	counter := decimal.NewFromInt(90)
	res, err = f.negotiations.Respond(ctx, round.ID, sellerID, models.ActionCounterOffer, &counter)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	assert.Zero(t, f.sweeper.reportStalled(ctx))
	assert.Equal(t, models.OrderStatusNegotiating, f.store.order(orderID).Status)

	_, err = f.orders.ListStalledNegotiations(ctx, 0)
	assert.Error(t, err)
}
