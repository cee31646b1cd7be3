package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/pkg/apperror"
)

var allStatuses = []models.OrderStatus{
	models.OrderStatusPendingPayment,
	models.OrderStatusNegotiating,
	models.OrderStatusPaid,
	models.OrderStatusShipped,
	models.OrderStatusDelivered,
	models.OrderStatusCompleted,
	models.OrderStatusCancelled,
}

func TestCanTransition_Table(t *testing.T) {
	allowed := map[models.OrderStatus]map[models.Role][]models.OrderStatus{
		models.OrderStatusPendingPayment: {
			models.RoleBuyer:  {models.OrderStatusPaid, models.OrderStatusCancelled},
			models.RoleSeller: {models.OrderStatusCancelled},
		},
		models.OrderStatusPaid: {
			models.RoleBuyer:  {models.OrderStatusCancelled},
			models.RoleSeller: {models.OrderStatusShipped, models.OrderStatusCancelled},
		},
		models.OrderStatusShipped: {
			models.RoleBuyer: {models.OrderStatusDelivered},
		},
		models.OrderStatusDelivered: {
			models.RoleBuyer:  {models.OrderStatusCompleted},
			models.RoleSeller: {models.OrderStatusCompleted},
		},
	}

	for _, from := range allStatuses {
		for _, role := range []models.Role{models.RoleBuyer, models.RoleSeller, models.RoleNone} {
			for _, to := range allStatuses {
				want := false
				for _, s := range allowed[from][role] {
					if s == to {
						want = true
					}
				}
				assert.Equal(t, want, CanTransition(from, role, to), "%s -(%s)-> %s", from, role, to)
			}
		}
	}
}

func TestOrderService_CreateOrderRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sellerID := f.store.addUser(100)
	buyerID := f.store.addUser(100)
	onSale := f.store.addListing(sellerID, "100.00", models.ListingStatusOnSale)
	offShelf := f.store.addListing(sellerID, "100.00", models.ListingStatusOffShelf)

	_, res, err := f.orders.CreateOrder(ctx, buyerID, offShelf, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)

	_, res, err = f.orders.CreateOrder(ctx, sellerID, onSale, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)

	_, res, err = f.orders.CreateOrder(ctx, buyerID, 9999, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)

	order, res, err := f.orders.CreateOrder(ctx, buyerID, onSale, nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, models.OrderStatusPendingPayment, order.Status)
	require.NotNil(t, order.ExpireAt)
	assert.Equal(t, f.now.Add(30*time.Minute), *order.ExpireAt)

	_, res, err = f.orders.CreateOrder(ctx, buyerID, onSale, nil)
	require.NoError(t, err)
	assert.False(t, res.Success, "second active order for same listing")
}

func TestOrderService_CreateOrderWithNegotiatedPrice(t *testing.T) {
	f := newFixture(t)
	sellerID := f.store.addUser(100)
	buyerID := f.store.addUser(100)
	listingID := f.store.addListing(sellerID, "100.00", models.ListingStatusOnSale)

	order, res, err := f.orders.CreateOrder(context.Background(), buyerID, listingID, price("75.00"))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(75)))
	require.NotNil(t, order.FinalPrice)
}

func TestOrderService_CreateOrderPriceAboveListingRejected(t *testing.T) {
	f := newFixture(t)
	sellerID := f.store.addUser(100)
	buyerID := f.store.addUser(100)
	listingID := f.store.addListing(sellerID, "100.00", models.ListingStatusOnSale)

	_, res, err := f.orders.CreateOrder(context.Background(), buyerID, listingID, price("100.01"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, f.store.state.orders)
}

func TestOrderService_ThirdPartyRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, _, _ := f.placeOrder(t, "10.00")
	stranger := f.store.addUser(100)

	res, err := f.orders.Transition(ctx, orderID, stranger, models.OrderStatusCancelled, "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, models.OrderStatusPendingPayment, f.store.order(orderID).Status)

	_, err = f.orders.GetOrder(ctx, orderID, stranger)
	assert.True(t, apperror.IsForbidden(err))
}

func TestOrderService_FullLifecycleSettlesPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, buyerID, sellerID := f.placeOrder(t, "30.00")
	f.store.setBalance(buyerID, "50.00")

	steps := []struct {
		actor int64
		to    models.OrderStatus
	}{
		{buyerID, models.OrderStatusPaid},
		{sellerID, models.OrderStatusShipped},
		{buyerID, models.OrderStatusDelivered},
		{sellerID, models.OrderStatusCompleted},
	}
	for _, step := range steps {
		res, err := f.orders.Transition(ctx, orderID, step.actor, step.to, "")
		require.NoError(t, err)
		require.True(t, res.Success, "%s: %s", step.to, res.Message)
	}

	buyerBalance, _ := f.store.balance(buyerID)
	sellerBalance, _ := f.store.balance(sellerID)
	assert.True(t, buyerBalance.Equal(decimal.NewFromInt(20)))
	assert.True(t, sellerBalance.Equal(decimal.NewFromInt(30)))

	order := f.store.order(orderID)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.Nil(t, order.ExpireAt)

	history, err := f.orders.History(ctx, orderID, buyerID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, models.OrderStatusPendingPayment, history[0].FromStatus)
	assert.Equal(t, models.OrderStatusCompleted, history[3].ToStatus)
}

func TestOrderService_PaymentWithoutFundsRollsBack(t *testing.T) {
	f := newFixture(t)
	orderID, buyerID, sellerID := f.placeOrder(t, "80.00")
	f.store.setBalance(buyerID, "50.00")

	res, err := f.orders.Transition(context.Background(), orderID, buyerID, models.OrderStatusPaid, "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, apperror.ErrInsufficientFunds.Message, res.Message)

	balance, _ := f.store.balance(buyerID)
	assert.True(t, balance.Equal(decimal.NewFromInt(50)))
	_, sellerHasAccount := f.store.balance(sellerID)
	assert.False(t, sellerHasAccount)
	assert.Equal(t, models.OrderStatusPendingPayment, f.store.order(orderID).Status)
	assert.Empty(t, f.pub.byTemplate(models.TemplateBalanceChange))
}

func TestOrderService_CancelPaidOrderRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, buyerID, sellerID := f.placeOrder(t, "25.00")
	f.store.setBalance(buyerID, "25.00")

	res, err := f.orders.Transition(ctx, orderID, buyerID, models.OrderStatusPaid, "")
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = f.orders.Transition(ctx, orderID, sellerID, models.OrderStatusCancelled, "out of stock")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	buyerBalance, _ := f.store.balance(buyerID)
	sellerBalance, _ := f.store.balance(sellerID)
	assert.True(t, buyerBalance.Equal(decimal.NewFromInt(25)))
	assert.True(t, sellerBalance.IsZero())
}

func TestOrderService_OffTableTransitionRejected(t *testing.T) {
	f := newFixture(t)
	orderID, buyerID, sellerID := f.placeOrder(t, "10.00")

	res, err := f.orders.Transition(context.Background(), orderID, sellerID, models.OrderStatusPaid, "")
	require.NoError(t, err)
	assert.False(t, res.Success)

	res, err = f.orders.Transition(context.Background(), orderID, buyerID, models.OrderStatusShipped, "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, f.store.state.history)
}

func TestSweeper_CancelsExpiredAndBlocksPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expiredID, buyerID, _ := f.placeOrder(t, "10.00")
	f.store.setBalance(buyerID, "100.00")

	f.advance(31 * time.Minute)
	freshID, _, _ := f.placeOrder(t, "10.00")

	result, err := f.sweeper.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Processed: 1, Failed: 0}, result)

	assert.Equal(t, models.OrderStatusCancelled, f.store.order(expiredID).Status)
	assert.Nil(t, f.store.order(expiredID).ExpireAt)
	assert.Equal(t, models.OrderStatusPendingPayment, f.store.order(freshID).Status)

	history, err := f.orders.History(ctx, expiredID, buyerID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].ActorID)

	res, err := f.orders.Transition(ctx, expiredID, buyerID, models.OrderStatusPaid, "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	balance, _ := f.store.balance(buyerID)
	assert.True(t, balance.Equal(decimal.NewFromInt(100)))
}

func TestOrderService_ExpiredButUnsweptPaymentRejected(t *testing.T) {
	f := newFixture(t)
	orderID, buyerID, _ := f.placeOrder(t, "10.00")
	f.store.setBalance(buyerID, "100.00")
	f.advance(time.Hour)

	res, err := f.orders.Transition(context.Background(), orderID, buyerID, models.OrderStatusPaid, "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, models.OrderStatusPendingPayment, f.store.order(orderID).Status)
}

func TestOrderService_ListExpiring(t *testing.T) {
	f := newFixture(t)
	orderID, _, _ := f.placeOrder(t, "10.00")

	orders, err := f.orders.ListExpiring(context.Background(), time.Hour)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, orderID, orders[0].ID)

	orders, err = f.orders.ListExpiring(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, orders)
}
