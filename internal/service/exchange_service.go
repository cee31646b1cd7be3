package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/campus-trade/internal/logger"
	"github.com/ignatzorin/campus-trade/internal/metrics"
	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/outbox"
	"github.com/ignatzorin/campus-trade/internal/pkg/apperror"
	"github.com/ignatzorin/campus-trade/internal/repository"
	"github.com/ignatzorin/campus-trade/internal/txn"
)

// ExchangeRepository описывает хранилище запросов на обмен.
type ExchangeRepository interface {
	Create(ctx context.Context, q repository.Querier, exchange *models.ExchangeRequest) error
	GetForUpdate(ctx context.Context, q repository.Querier, id int64) (*models.ExchangeRequest, error)
	HasPending(ctx context.Context, q repository.Querier, offerListingID int64) (bool, error)
	UpdateStatus(ctx context.Context, q repository.Querier, id int64, status models.ExchangeStatus) error
	ListByUser(ctx context.Context, q repository.Querier, userID int64, limit, offset int) ([]models.ExchangeRequest, error)
}

// ListingStore чтение товаров и смена их статуса.
type ListingStore interface {
	ListingReader
	UpdateStatus(ctx context.Context, q repository.Querier, id int64, status models.ListingStatus) error
}

// ListingOrderChecker проверяет, покупают ли товар прямо сейчас.
type ListingOrderChecker interface {
	HasActiveForListing(ctx context.Context, q repository.Querier, listingID int64) (bool, error)
}

// ExchangeService ведёт обмен товарами без денег.
type ExchangeService struct {
	coord     Coordinator
	reader    repository.Querier
	exchanges ExchangeRepository
	listings  ListingStore
	orders    ListingOrderChecker
	metrics   *metrics.Metrics
}

// NewExchangeService создаёт сервис обменов.
func NewExchangeService(coord Coordinator, reader repository.Querier, exchanges ExchangeRepository, listings ListingStore, orders ListingOrderChecker, m *metrics.Metrics) *ExchangeService {
	return &ExchangeService{
		coord:     coord,
		reader:    reader,
		exchanges: exchanges,
		listings:  listings,
		orders:    orders,
		metrics:   m,
	}
}

var (
	errOfferNotOwned   = apperror.Conflict("предлагаемый товар не найден или принадлежит другому пользователю")
	errPendingExchange = apperror.Conflict("по этому товару уже есть ожидающий запрос на обмен")
)

// Create отправляет владельцу запрошенного товара предложение обмена.
func (s *ExchangeService) Create(ctx context.Context, userID, offerListingID, requestListingID int64, terms string) (*models.ExchangeRequest, Result, error) {
	if offerListingID == requestListingID {
		return nil, Fail("нельзя обменять товар на самого себя"), nil
	}

	var created *models.ExchangeRequest
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		offer, err := s.listings.GetByID(ctx, scope.Q(), offerListingID)
		if errors.Is(err, repository.ErrListingNotFound) {
			return errOfferNotOwned
		}
		if err != nil {
			return err
		}
		if offer.OwnerID != userID {
			return errOfferNotOwned
		}
		if offer.Status != models.ListingStatusOnSale {
			return apperror.Conflict("предлагаемый товар недоступен для обмена")
		}

		requested, err := s.listings.GetByID(ctx, scope.Q(), requestListingID)
		if err != nil {
			return notFound(err, repository.ErrListingNotFound, apperror.ErrListingNotFound)
		}
		if requested.OwnerID == userID {
			return apperror.Conflict("нельзя запросить обмен на собственный товар")
		}
		if requested.Status != models.ListingStatusOnSale {
			return apperror.Conflict("запрошенный товар недоступен для обмена")
		}

		pending, err := s.exchanges.HasPending(ctx, scope.Q(), offerListingID)
		if err != nil {
			return err
		}
		if pending {
			return errPendingExchange
		}

		created = &models.ExchangeRequest{
			OfferListingID:   offerListingID,
			RequestListingID: requestListingID,
			RequesterID:      userID,
			ResponderID:      requested.OwnerID,
			Terms:            terms,
			Status:           models.ExchangePending,
		}
		if err := s.exchanges.Create(ctx, scope.Q(), created); err != nil {
			if errors.Is(err, repository.ErrPendingExchange) {
				return errPendingExchange
			}
			return err
		}

		scope.Notify(outbox.NewEvent(requested.OwnerID, models.TemplateExchangeReceived, map[string]string{
			"offerTitle":   offer.Title,
			"requestTitle": requested.Title,
			"terms":        terms,
		}, outbox.Related(created.ID)))
		return nil
	})

	res, err := settle(err, "запрос на обмен отправлен")
	if err != nil {
		logger.Log.WithError(err).WithField("offer_listing_id", offerListingID).Error("exchanges: create failed")
		return nil, Result{}, err
	}
	if !res.Success {
		s.rejected("exchange_create", userID, offerListingID, res.Message)
		return nil, res, nil
	}

	logger.Log.WithFields(logrus.Fields{
		"exchange_id":        created.ID,
		"offer_listing_id":   offerListingID,
		"request_listing_id": requestListingID,
	}).Info("exchanges: request created")
	return created, res, nil
}

// Respond принимает или отклоняет обмен. Ответить может только владелец запрошенного товара.
// При согласии оба товара снимаются с продажи.
func (s *ExchangeService) Respond(ctx context.Context, exchangeID, userID int64, accept bool) (Result, error) {
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		exchange, err := s.exchanges.GetForUpdate(ctx, scope.Q(), exchangeID)
		if err != nil {
			return notFound(err, repository.ErrExchangeNotFound, apperror.ErrExchangeNotFound)
		}
		if exchange.ResponderID != userID {
			return apperror.Forbidden("нет прав отвечать на этот запрос")
		}
		if exchange.Status != models.ExchangePending {
			return apperror.Conflict("запрос на обмен уже обработан")
		}

		status := models.ExchangeRejected
		if accept {
			status = models.ExchangeAccepted
			if err := s.takeOffSale(ctx, scope, exchange.OfferListingID, exchange.RequestListingID); err != nil {
				return err
			}
		}
		if err := s.exchanges.UpdateStatus(ctx, scope.Q(), exchange.ID, status); err != nil {
			return err
		}

		scope.Notify(outbox.NewEvent(exchange.RequesterID, models.TemplateExchangeAnswered, map[string]string{
			"status":           string(status),
			"offerListingId":   strconv.FormatInt(exchange.OfferListingID, 10),
			"requestListingId": strconv.FormatInt(exchange.RequestListingID, 10),
		}, outbox.Related(exchange.ID)))
		return nil
	})

	res, err := settle(err, "ответ на обмен сохранён")
	if err != nil {
		logger.Log.WithError(err).WithField("exchange_id", exchangeID).Error("exchanges: respond failed")
		return Result{}, err
	}
	if !res.Success {
		s.rejected("exchange_respond", userID, exchangeID, res.Message)
		return res, nil
	}

	logger.Log.WithFields(logrus.Fields{
		"exchange_id": exchangeID,
		"accepted":    accept,
	}).Info("exchanges: response recorded")
	return res, nil
}

// takeOffSale снимает товары с продажи. Товар, который уже кто-то покупает, обменять нельзя.
func (s *ExchangeService) takeOffSale(ctx context.Context, scope *txn.Scope, listingIDs ...int64) error {
	for _, id := range listingIDs {
		listing, err := s.listings.GetByID(ctx, scope.Q(), id)
		if err != nil {
			return notFound(err, repository.ErrListingNotFound, apperror.ErrListingNotFound)
		}
		if listing.Status != models.ListingStatusOnSale {
			return apperror.Conflict("один из товаров больше недоступен")
		}

		busy, err := s.orders.HasActiveForListing(ctx, scope.Q(), id)
		if err != nil {
			return err
		}
		if busy {
			return apperror.Conflict("по одному из товаров идёт покупка")
		}

		if err := s.listings.UpdateStatus(ctx, scope.Q(), id, models.ListingStatusOffShelf); err != nil {
			return err
		}
	}
	return nil
}

// ListMine возвращает отправленные и полученные запросы пользователя.
func (s *ExchangeService) ListMine(ctx context.Context, userID int64, limit, offset int) ([]models.ExchangeRequest, error) {
	limit, offset = normalizePage(limit, offset)
	return s.exchanges.ListByUser(ctx, s.reader, userID, limit, offset)
}

func (s *ExchangeService) rejected(operation string, userID, entityID int64, message string) {
	s.metrics.RecordRejection(operation)
	logger.Log.WithFields(logrus.Fields{
		"operation": operation,
		"user_id":   userID,
		"entity_id": entityID,
	}).Info("exchanges: rejected: " + message)
}
