package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ignatzorin/campus-trade/internal/db"
	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/repository"
)

// startPostgres поднимает PostgreSQL в контейнере и применяет миграции.
func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "campus",
				"POSTGRES_PASSWORD": "campus",
				"POSTGRES_DB":       "campus_trade",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://campus:campus@%s:%s/campus_trade?sslmode=disable", host, port.Port())
	conn, err := db.NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.RunMigrations(conn))
	return conn
}

type seeded struct {
	buyer, seller *models.User
	listing       *models.Listing
}

func seed(t *testing.T, ctx context.Context, q repository.Querier, suffix string) seeded {
	t.Helper()
	users := repository.NewUserRepository()
	listings := repository.NewListingRepository()

	buyer := &models.User{Username: "buyer_" + suffix}
	require.NoError(t, users.Create(ctx, q, buyer))
	seller := &models.User{Username: "seller_" + suffix}
	require.NoError(t, users.Create(ctx, q, seller))

	listing := &models.Listing{OwnerID: seller.ID, Title: "Учебник", BasePrice: decimal.NewFromInt(100)}
	require.NoError(t, listings.Create(ctx, q, listing))

	return seeded{buyer: buyer, seller: seller, listing: listing}
}

func TestRepositories_Postgres(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()

	t.Run("users get default credit score", func(t *testing.T) {
		s := seed(t, ctx, conn, "credit")

		got, err := repository.NewUserRepository().GetByID(ctx, conn, s.buyer.ID)
		require.NoError(t, err)
		assert.True(t, got.CreditScore.Equal(models.DefaultCreditScore))

		_, err = repository.NewUserRepository().GetByID(ctx, conn, 999999)
		assert.ErrorIs(t, err, repository.ErrUserNotFound)
	})

	t.Run("credit compare and swap rejects stale version", func(t *testing.T) {
		s := seed(t, ctx, conn, "cas")
		credits := repository.NewCreditRepository()

		credit, err := credits.GetCredit(ctx, conn, s.seller.ID)
		require.NoError(t, err)

		ok, err := credits.CompareAndSwapScore(ctx, conn, s.seller.ID, credit.Version, decimal.NewFromInt(105))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = credits.CompareAndSwapScore(ctx, conn, s.seller.ID, credit.Version, decimal.NewFromInt(110))
		require.NoError(t, err)
		assert.False(t, ok)

		current, err := credits.GetCredit(ctx, conn, s.seller.ID)
		require.NoError(t, err)
		assert.True(t, current.Score.Equal(decimal.NewFromInt(105)))
		assert.Equal(t, credit.Version+1, current.Version)
	})

	t.Run("only one active order per buyer and listing", func(t *testing.T) {
		s := seed(t, ctx, conn, "active")
		orders := repository.NewOrderRepository()
		expire := time.Now().Add(30 * time.Minute)

		newOrder := func() *models.Order {
			return &models.Order{
				BuyerID:     s.buyer.ID,
				SellerID:    s.seller.ID,
				ListingID:   s.listing.ID,
				TotalAmount: s.listing.BasePrice,
				Status:      models.OrderStatusPendingPayment,
				ExpireAt:    &expire,
			}
		}

		first := newOrder()
		require.NoError(t, orders.Create(ctx, conn, first))
		assert.Positive(t, first.ID)

		err := orders.Create(ctx, conn, newOrder())
		assert.ErrorIs(t, err, repository.ErrActiveOrderExists)

		first.Status = models.OrderStatusCancelled
		first.ExpireAt = nil
		require.NoError(t, orders.Update(ctx, conn, first))

		require.NoError(t, orders.Create(ctx, conn, newOrder()))
	})

	t.Run("expired orders are listed for the sweep", func(t *testing.T) {
		s := seed(t, ctx, conn, "expired")
		orders := repository.NewOrderRepository()
		past := time.Now().Add(-time.Minute)

		order := &models.Order{
			BuyerID:     s.buyer.ID,
			SellerID:    s.seller.ID,
			ListingID:   s.listing.ID,
			TotalAmount: s.listing.BasePrice,
			Status:      models.OrderStatusPendingPayment,
			ExpireAt:    &past,
		}
		require.NoError(t, orders.Create(ctx, conn, order))

		ids, err := orders.ListExpired(ctx, conn, time.Now(), 100)
		require.NoError(t, err)
		assert.Contains(t, ids, order.ID)
	})

	t.Run("second waiting negotiation is rejected", func(t *testing.T) {
		s := seed(t, ctx, conn, "negotiation")
		orders := repository.NewOrderRepository()
		negotiations := repository.NewNegotiationRepository()

		order := &models.Order{
			BuyerID:     s.buyer.ID,
			SellerID:    s.seller.ID,
			ListingID:   s.listing.ID,
			TotalAmount: s.listing.BasePrice,
			Status:      models.OrderStatusNegotiating,
		}
		require.NoError(t, orders.Create(ctx, conn, order))

		round := func() *models.Negotiation {
			return &models.Negotiation{
				OrderID:       order.ID,
				ProposedPrice: decimal.NewFromInt(80),
				Status:        models.NegotiationWaitingResponse,
				ResponderRole: models.RoleSeller,
				ProposerID:    s.buyer.ID,
			}
		}

		first := round()
		require.NoError(t, negotiations.Create(ctx, conn, first))
		assert.ErrorIs(t, negotiations.Create(ctx, conn, round()), repository.ErrActiveNegotiation)

		waiting, err := negotiations.GetWaitingForUpdate(ctx, conn, order.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, waiting.ID)
	})

	t.Run("failed transaction leaves balance untouched", func(t *testing.T) {
		s := seed(t, ctx, conn, "ledger")
		ledger := repository.NewLedgerRepository()
		tx := repository.NewTxManager(conn)

		require.NoError(t, ledger.EnsureAccount(ctx, conn, s.buyer.ID))
		require.NoError(t, ledger.SetBalance(ctx, conn, s.buyer.ID, decimal.NewFromInt(50)))

		errAbort := errors.New("abort")
		err := tx.WithinTx(ctx, func(q repository.Querier) error {
			if err := ledger.SetBalance(ctx, q, s.buyer.ID, decimal.NewFromInt(10)); err != nil {
				return err
			}
			return errAbort
		})
		assert.ErrorIs(t, err, errAbort)

		acc, err := ledger.GetAccount(ctx, conn, s.buyer.ID)
		require.NoError(t, err)
		assert.True(t, acc.Balance.Equal(decimal.NewFromInt(50)))

		// Отрицательный баланс запрещён схемой
		assert.Error(t, ledger.SetBalance(ctx, conn, s.buyer.ID, decimal.NewFromInt(-1)))
	})

	t.Run("account is not created for unknown user", func(t *testing.T) {
		ledger := repository.NewLedgerRepository()

		require.NoError(t, ledger.EnsureAccount(ctx, conn, 999999))

		_, err := ledger.GetAccount(ctx, conn, 999999)
		assert.ErrorIs(t, err, repository.ErrAccountNotFound)
	})

	t.Run("stalled negotiations are listed", func(t *testing.T) {
		s := seed(t, ctx, conn, "stalled")
		orders := repository.NewOrderRepository()

		order := &models.Order{
			BuyerID:     s.buyer.ID,
			SellerID:    s.seller.ID,
			ListingID:   s.listing.ID,
			TotalAmount: s.listing.BasePrice,
			Status:      models.OrderStatusNegotiating,
		}
		require.NoError(t, orders.Create(ctx, conn, order))
		require.NoError(t, repository.NewNegotiationRepository().Create(ctx, conn, &models.Negotiation{
			OrderID:       order.ID,
			ProposedPrice: decimal.NewFromInt(90),
			Status:        models.NegotiationWaitingResponse,
			ResponderRole: models.RoleSeller,
			ProposerID:    s.buyer.ID,
		}))

		stalled, err := orders.ListStalledNegotiations(ctx, conn, time.Now().Add(time.Minute), 100)
		require.NoError(t, err)
		ids := make([]int64, 0, len(stalled))
		for _, o := range stalled {
			ids = append(ids, o.ID)
		}
		assert.Contains(t, ids, order.ID)

		fresh, err := orders.ListStalledNegotiations(ctx, conn, time.Now().Add(-time.Hour), 100)
		require.NoError(t, err)
		for _, o := range fresh {
			assert.NotEqual(t, order.ID, o.ID)
		}

		busy, err := orders.HasActiveForListing(ctx, conn, s.listing.ID)
		require.NoError(t, err)
		assert.True(t, busy)
	})

	t.Run("review reply and delete", func(t *testing.T) {
		s := seed(t, ctx, conn, "review")
		orders := repository.NewOrderRepository()
		reviews := repository.NewReviewRepository()

		order := &models.Order{
			BuyerID:     s.buyer.ID,
			SellerID:    s.seller.ID,
			ListingID:   s.listing.ID,
			TotalAmount: s.listing.BasePrice,
			Status:      models.OrderStatusCompleted,
		}
		require.NoError(t, orders.Create(ctx, conn, order))

		review := &models.Review{OrderID: order.ID, ReviewerID: s.buyer.ID, ReviewedID: s.seller.ID, Rating: 5}
		require.NoError(t, reviews.Create(ctx, conn, review))

		require.NoError(t, reviews.SetReply(ctx, conn, review.ID, "спасибо", time.Now()))
		got, err := reviews.GetForUpdate(ctx, conn, review.ID)
		require.NoError(t, err)
		require.NotNil(t, got.SellerReply)
		assert.Equal(t, "спасибо", *got.SellerReply)
		assert.NotNil(t, got.RepliedAt)

		require.NoError(t, reviews.Delete(ctx, conn, review.ID))
		assert.ErrorIs(t, reviews.Delete(ctx, conn, review.ID), repository.ErrReviewNotFound)
		_, err = reviews.GetForUpdate(ctx, conn, review.ID)
		assert.ErrorIs(t, err, repository.ErrReviewNotFound)
	})

	t.Run("one pending exchange per offered listing", func(t *testing.T) {
		s := seed(t, ctx, conn, "exchange")
		listings := repository.NewListingRepository()
		exchanges := repository.NewExchangeRepository()

		offer := &models.Listing{OwnerID: s.buyer.ID, Title: "Калькулятор", BasePrice: decimal.NewFromInt(40)}
		require.NoError(t, listings.Create(ctx, conn, offer))

		newExchange := func() *models.ExchangeRequest {
			return &models.ExchangeRequest{
				OfferListingID:   offer.ID,
				RequestListingID: s.listing.ID,
				RequesterID:      s.buyer.ID,
				ResponderID:      s.seller.ID,
				Status:           models.ExchangePending,
			}
		}

		first := newExchange()
		require.NoError(t, exchanges.Create(ctx, conn, first))
		assert.Positive(t, first.ID)

		assert.ErrorIs(t, exchanges.Create(ctx, conn, newExchange()), repository.ErrPendingExchange)

		pending, err := exchanges.HasPending(ctx, conn, offer.ID)
		require.NoError(t, err)
		assert.True(t, pending)

		require.NoError(t, exchanges.UpdateStatus(ctx, conn, first.ID, models.ExchangeRejected))
		require.NoError(t, exchanges.Create(ctx, conn, newExchange()))

		mine, err := exchanges.ListByUser(ctx, conn, s.seller.ID, 10, 0)
		require.NoError(t, err)
		assert.Len(t, mine, 2)
	})
}
