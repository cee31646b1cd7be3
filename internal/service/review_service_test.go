package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/retry"
)

// completedOrder проводит заказ до Completed.
func (f *fixture) completedOrder(t *testing.T) (orderID, buyerID, sellerID int64) {
	t.Helper()
	ctx := context.Background()

	orderID, buyerID, sellerID = f.placeOrder(t, "10.00")
	f.store.setBalance(buyerID, "10.00")
	for _, step := range []struct {
		actor int64
		to    models.OrderStatus
	}{
		{buyerID, models.OrderStatusPaid},
		{sellerID, models.OrderStatusShipped},
		{buyerID, models.OrderStatusDelivered},
		{buyerID, models.OrderStatusCompleted},
	} {
		res, err := f.orders.Transition(ctx, orderID, step.actor, step.to, "")
		require.NoError(t, err)
		require.True(t, res.Success, res.Message)
	}
	return orderID, buyerID, sellerID
}

func TestReviewService_RatingAdjustsSellerCredit(t *testing.T) {
	tests := []struct {
		name   string
		rating int
		want   int64
	}{
		{"positive", 5, 103},
		{"neutral", 3, 100},
		{"negative", 1, 95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			orderID, buyerID, sellerID := f.completedOrder(t)

			comment := "ok"
			review, res, err := f.reviews.Submit(context.Background(), orderID, buyerID, tt.rating, &comment)
			require.NoError(t, err)
			require.True(t, res.Success, res.Message)
			assert.Equal(t, sellerID, review.ReviewedID)
			assert.True(t, f.store.state.users[sellerID].Score.Equal(decimal.NewFromInt(tt.want)))
		})
	}
}

func TestReviewService_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, buyerID, sellerID := f.completedOrder(t)

	_, res, err := f.reviews.Submit(ctx, orderID, buyerID, 0, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)

	_, res, err = f.reviews.Submit(ctx, orderID, sellerID, 5, nil)
	require.NoError(t, err)
	assert.False(t, res.Success, "seller cannot review")

	_, res, err = f.reviews.Submit(ctx, orderID, buyerID, 4, nil)
	require.NoError(t, err)
	require.True(t, res.Success)

	_, res, err = f.reviews.Submit(ctx, orderID, buyerID, 4, nil)
	require.NoError(t, err)
	assert.False(t, res.Success, "one review per order")
	assert.Len(t, f.store.state.reviews, 1)
	assert.True(t, f.store.state.users[sellerID].Score.Equal(decimal.NewFromInt(103)))
}

func TestReviewService_OrderMustBeCompleted(t *testing.T) {
	f := newFixture(t)
	orderID, buyerID, _ := f.placeOrder(t, "10.00")

	_, res, err := f.reviews.Submit(context.Background(), orderID, buyerID, 5, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, f.store.state.reviews)
}

func TestReviewService_DeleteRevertsCreditEffect(t *testing.T) {
	tests := []struct {
		name   string
		rating int
		after  int64
	}{
		{"positive", 5, 103},
		{"neutral", 3, 100},
		{"negative", 2, 95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			orderID, buyerID, sellerID := f.completedOrder(t)

			review, res, err := f.reviews.Submit(ctx, orderID, buyerID, tt.rating, nil)
			require.NoError(t, err)
			require.True(t, res.Success, res.Message)
			require.True(t, f.store.state.users[sellerID].Score.Equal(decimal.NewFromInt(tt.after)))

			res, err = f.reviews.Delete(ctx, review.ID, buyerID)
			require.NoError(t, err)
			require.True(t, res.Success, res.Message)

			assert.Empty(t, f.store.state.reviews)
			assert.True(t, f.store.state.users[sellerID].Score.Equal(decimal.NewFromInt(100)))
		})
	}
}

func TestReviewService_DeleteOnlyByAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, buyerID, sellerID := f.completedOrder(t)

	review, _, err := f.reviews.Submit(ctx, orderID, buyerID, 1, nil)
	require.NoError(t, err)

	res, err := f.reviews.Delete(ctx, review.ID, sellerID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Len(t, f.store.state.reviews, 1)

	res, err = f.reviews.Delete(ctx, 9999, buyerID)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestReviewService_DeleteRollsBackWhenCreditFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, buyerID, sellerID := f.completedOrder(t)

	review, _, err := f.reviews.Submit(ctx, orderID, buyerID, 5, nil)
	require.NoError(t, err)

	f.store.beforeCAS = func(st *memState, id int64) {
		c := st.users[id]
		c.Version++
		st.users[id] = c
	}

	_, err = f.reviews.Delete(ctx, review.ID, buyerID)
	require.ErrorIs(t, err, retry.ErrExhausted)

	assert.Len(t, f.store.state.reviews, 1)
	assert.True(t, f.store.state.users[sellerID].Score.Equal(decimal.NewFromInt(103)))
}

func TestReviewService_SellerReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, buyerID, sellerID := f.completedOrder(t)

	review, _, err := f.reviews.Submit(ctx, orderID, buyerID, 4, nil)
	require.NoError(t, err)

	res, err := f.reviews.Reply(ctx, review.ID, buyerID, "сам себе")
	require.NoError(t, err)
	assert.False(t, res.Success, "buyer cannot reply")

	res, err = f.reviews.Reply(ctx, review.ID, sellerID, "спасибо за покупку")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	stored := f.store.state.reviews[0]
	require.NotNil(t, stored.SellerReply)
	assert.Equal(t, "спасибо за покупку", *stored.SellerReply)

	replies := f.pub.byTemplate(models.TemplateReviewReply)
	require.Len(t, replies, 1)
	assert.Equal(t, buyerID, replies[0].UserID)

	f.advance(models.ReplyWindow + time.Minute)
	res, err = f.reviews.Reply(ctx, review.ID, sellerID, "поздно")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "спасибо за покупку", *f.store.state.reviews[0].SellerReply)
}
