package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/campus-trade/internal/metrics"
	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/outbox"
	"github.com/ignatzorin/campus-trade/internal/retry"
	"github.com/ignatzorin/campus-trade/internal/txn"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []outbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...outbox.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *recordingPublisher) byTemplate(tpl models.NotificationTemplate) []outbox.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []outbox.Event
	for _, e := range p.events {
		if e.Template == tpl {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store   *memStore
	pub     *recordingPublisher
	coord   *txn.Coordinator
	metrics *metrics.Metrics
	now     time.Time

	ledger       *LedgerService
	credit       *CreditService
	orders       *OrderService
	negotiations *NegotiationService
	sweeper      *Sweeper
	reviews      *ReviewService
	recharges    *RechargeService
	exchanges    *ExchangeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:   newMemStore(),
		pub:     &recordingPublisher{},
		metrics: metrics.New(prometheus.NewRegistry()),
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.store.now = clock
	f.coord = txn.NewCoordinator(f.store, f.pub)

	orders := memOrders{f.store}
	history := memHistory{f.store}
	listings := memListings{f.store}

	f.ledger = NewLedgerService(memLedger{f.store}, f.coord, f.store, f.metrics)
	f.credit = NewCreditService(memCredit{f.store}, f.coord, f.store, f.metrics, retry.Policy{MaxAttempts: 3, Step: time.Millisecond})

	f.orders = NewOrderService(f.coord, f.store, orders, history, listings, f.ledger, f.metrics, 30*time.Minute)
	f.orders.clock = clock

	f.negotiations = NewNegotiationService(f.coord, f.store, memNegotiations{f.store}, orders, history, listings, f.metrics, 30*time.Minute)
	f.negotiations.clock = clock

	recharges, err := NewRechargeService(f.coord, f.store, memRecharges{f.store}, f.ledger, 30*time.Minute)
	require.NoError(t, err)
	recharges.clock = clock
	f.recharges = recharges

	f.sweeper = NewSweeper(f.coord, f.store, orders, history, recharges, nil, nil, f.metrics, SweeperConfig{Interval: time.Minute})
	f.sweeper.clock = clock

	f.reviews = NewReviewService(f.coord, f.store, memReviews{f.store}, orders, f.credit)
	f.reviews.clock = clock

	f.exchanges = NewExchangeService(f.coord, f.store, memExchanges{f.store}, listings, orders, f.metrics)

	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// placeOrder создаёт продавца, покупателя, товар и заказ на него.
func (f *fixture) placeOrder(t *testing.T, price string) (orderID, buyerID, sellerID int64) {
	t.Helper()

	sellerID = f.store.addUser(100)
	buyerID = f.store.addUser(100)
	listingID := f.store.addListing(sellerID, price, models.ListingStatusOnSale)

	order, res, err := f.orders.CreateOrder(context.Background(), buyerID, listingID, nil)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	return order.ID, buyerID, sellerID
}
