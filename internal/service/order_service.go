package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/campus-trade/internal/logger"
	"github.com/ignatzorin/campus-trade/internal/metrics"
	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/pkg/apperror"
	"github.com/ignatzorin/campus-trade/internal/repository"
	"github.com/ignatzorin/campus-trade/internal/txn"
)

// DefaultPaymentTimeout срок оплаты нового заказа.
const DefaultPaymentTimeout = 30 * time.Minute

// OrderRepository описывает хранилище заказов.
type OrderRepository interface {
	Create(ctx context.Context, q repository.Querier, order *models.Order) error
	GetByID(ctx context.Context, q repository.Querier, id int64) (*models.Order, error)
	GetForUpdate(ctx context.Context, q repository.Querier, id int64) (*models.Order, error)
	Update(ctx context.Context, q repository.Querier, order *models.Order) error
	HasActiveOrder(ctx context.Context, q repository.Querier, buyerID, listingID int64) (bool, error)
	ListExpired(ctx context.Context, q repository.Querier, now time.Time, limit int) ([]int64, error)
	ListExpiring(ctx context.Context, q repository.Querier, now time.Time, within time.Duration) ([]models.Order, error)
	ListStalledNegotiations(ctx context.Context, q repository.Querier, before time.Time, limit int) ([]models.Order, error)
	ListByUser(ctx context.Context, q repository.Querier, filter models.OrderFilter) ([]models.Order, error)
}

// OrderHistoryRepository журнал смены статусов.
type OrderHistoryRepository interface {
	Append(ctx context.Context, q repository.Querier, change *models.OrderStatusChange) error
	ListByOrder(ctx context.Context, q repository.Querier, orderID int64) ([]models.OrderStatusChange, error)
}

// ListingReader чтение товаров каталога.
type ListingReader interface {
	GetByID(ctx context.Context, q repository.Querier, id int64) (*models.Listing, error)
}

// OrderService ведёт заказ по жизненному циклу.
type OrderService struct {
	coord          Coordinator
	reader         repository.Querier
	orders         OrderRepository
	history        OrderHistoryRepository
	listings       ListingReader
	ledger         *LedgerService
	metrics        *metrics.Metrics
	paymentTimeout time.Duration
	clock          Clock
}

// NewOrderService создаёт сервис заказов. paymentTimeout <= 0 заменяется значением по умолчанию.
func NewOrderService(
	coord Coordinator,
	reader repository.Querier,
	orders OrderRepository,
	history OrderHistoryRepository,
	listings ListingReader,
	ledger *LedgerService,
	m *metrics.Metrics,
	paymentTimeout time.Duration,
) *OrderService {
	if paymentTimeout <= 0 {
		paymentTimeout = DefaultPaymentTimeout
	}
	return &OrderService{
		coord:          coord,
		reader:         reader,
		orders:         orders,
		history:        history,
		listings:       listings,
		ledger:         ledger,
		metrics:        m,
		paymentTimeout: paymentTimeout,
		clock:          time.Now,
	}
}

// CreateOrder создаёт заказ на товар. Без согласованной цены сумма равна базовой цене товара.
// finalPrice передают только внутренние вызовы с уже согласованной ценой, выше базовой она быть не может.
func (s *OrderService) CreateOrder(ctx context.Context, buyerID, listingID int64, finalPrice *decimal.Decimal) (*models.Order, Result, error) {
	if finalPrice != nil && !validAmount(*finalPrice) {
		return nil, Fail(apperror.ErrInvalidAmount.Message), nil
	}

	var order *models.Order
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		listing, err := s.listings.GetByID(ctx, scope.Q(), listingID)
		if err != nil {
			return notFound(err, repository.ErrListingNotFound, apperror.ErrListingNotFound)
		}
		if !listing.IsSellable() {
			return apperror.Conflict("товар недоступен для покупки")
		}
		if listing.OwnerID == buyerID {
			return apperror.Conflict("нельзя купить собственный товар")
		}

		active, err := s.orders.HasActiveOrder(ctx, scope.Q(), buyerID, listingID)
		if err != nil {
			return err
		}
		if active {
			return errActiveOrder
		}

		total := listing.BasePrice
		if finalPrice != nil {
			if finalPrice.GreaterThan(listing.BasePrice) {
				return apperror.Conflict("согласованная цена выше цены товара")
			}
			total = *finalPrice
		}
		expireAt := s.clock().Add(s.paymentTimeout)

		order = &models.Order{
			BuyerID:     buyerID,
			SellerID:    listing.OwnerID,
			ListingID:   listingID,
			TotalAmount: total,
			FinalPrice:  finalPrice,
			Status:      models.OrderStatusPendingPayment,
			ExpireAt:    &expireAt,
		}
		if err := s.orders.Create(ctx, scope.Q(), order); err != nil {
			if errors.Is(err, repository.ErrActiveOrderExists) {
				return errActiveOrder
			}
			return err
		}
		return nil
	})

	res, err := settle(err, "заказ создан")
	if err != nil {
		logger.Log.WithError(err).WithField("listing_id", listingID).Error("orders: create failed")
		return nil, Result{}, err
	}
	if !res.Success {
		s.rejected("create", buyerID, listingID, res.Message)
		return nil, res, nil
	}

	logger.Log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"buyer_id": buyerID,
		"total":    order.TotalAmount.String(),
	}).Info("orders: order created")
	return order, res, nil
}

var errActiveOrder = apperror.Conflict("у вас уже есть активный заказ на этот товар")

// Transition переводит заказ в новый статус от имени участника.
// Оплата списывает сумму с покупателя и зачисляет продавцу, отмена оплаченного заказа возвращает деньги.
func (s *OrderService) Transition(ctx context.Context, orderID, actorID int64, to models.OrderStatus, remark string) (Result, error) {
	if !to.IsValid() {
		return Fail("неизвестный статус заказа"), nil
	}

	var from models.OrderStatus
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		order, err := s.orders.GetForUpdate(ctx, scope.Q(), orderID)
		if err != nil {
			return notFound(err, repository.ErrOrderNotFound, apperror.ErrOrderNotFound)
		}

		role := order.RoleOf(actorID)
		if role == models.RoleNone {
			return apperror.Forbidden("нет доступа к заказу")
		}
		from = order.Status
		if !CanTransition(from, role, to) {
			return apperror.Conflict(fmt.Sprintf("переход заказа из статуса %s в %s недоступен", from, to))
		}

		if err := s.settlePayment(ctx, scope, order, to); err != nil {
			return err
		}

		order.Status = to
		if from == models.OrderStatusPendingPayment {
			order.ExpireAt = nil
		}
		return s.save(ctx, scope, order, from, &actorID, remark)
	})

	res, err := settle(err, "статус заказа обновлён")
	if err != nil {
		logger.Log.WithError(err).WithField("order_id", orderID).Error("orders: transition failed")
		return Result{}, err
	}
	if !res.Success {
		s.rejected("transition", actorID, orderID, res.Message)
		return res, nil
	}

	s.metrics.RecordTransition(string(from), string(to))
	logger.Log.WithFields(logrus.Fields{
		"order_id": orderID,
		"actor_id": actorID,
		"from":     from,
		"to":       to,
	}).Info("orders: status changed")
	return res, nil
}

// settlePayment выполняет движение денег, связанное с переходом.
func (s *OrderService) settlePayment(ctx context.Context, scope *txn.Scope, order *models.Order, to models.OrderStatus) error {
	reason := "order " + strconv.FormatInt(order.ID, 10)

	switch {
	case to == models.OrderStatusPaid:
		if order.IsExpired(s.clock()) {
			return apperror.Conflict("срок оплаты заказа истёк")
		}
		ok, err := s.ledger.DebitIn(ctx, scope, order.BuyerID, order.TotalAmount, "payment for "+reason)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.ErrInsufficientFunds
		}
		ok, err = s.ledger.CreditIn(ctx, scope, order.SellerID, order.TotalAmount, "income from "+reason)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.ErrInvalidAmount
		}

	case order.Status == models.OrderStatusPaid && to == models.OrderStatusCancelled:
		ok, err := s.ledger.DebitIn(ctx, scope, order.SellerID, order.TotalAmount, "refund for "+reason)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Conflict("у продавца недостаточно средств для возврата")
		}
		ok, err = s.ledger.CreditIn(ctx, scope, order.BuyerID, order.TotalAmount, "refund for "+reason)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.ErrInvalidAmount
		}
	}

	return nil
}

// save сохраняет заказ и пишет запись в журнал статусов. actorID nil означает систему.
func (s *OrderService) save(ctx context.Context, scope *txn.Scope, order *models.Order, from models.OrderStatus, actorID *int64, remark string) error {
	if err := s.orders.Update(ctx, scope.Q(), order); err != nil {
		return err
	}
	return s.history.Append(ctx, scope.Q(), &models.OrderStatusChange{
		OrderID:    order.ID,
		ActorID:    actorID,
		FromStatus: from,
		ToStatus:   order.Status,
		Remark:     remark,
	})
}

func (s *OrderService) rejected(operation string, userID, entityID int64, message string) {
	s.metrics.RecordRejection(operation)
	logger.Log.WithFields(logrus.Fields{
		"operation": operation,
		"user_id":   userID,
		"entity_id": entityID,
	}).Info("orders: rejected: " + message)
}

// GetOrder возвращает заказ участнику сделки.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, s.reader, orderID)
	if err != nil {
		return nil, notFound(err, repository.ErrOrderNotFound, apperror.ErrOrderNotFound)
	}
	if order.RoleOf(userID) == models.RoleNone {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

// ListUserOrders возвращает заказы пользователя с фильтрами.
func (s *OrderService) ListUserOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperror.Validation("неизвестный статус заказа")
	}
	return s.orders.ListByUser(ctx, s.reader, filter)
}

// History возвращает журнал статусов заказа участнику сделки.
func (s *OrderService) History(ctx context.Context, orderID, userID int64) ([]models.OrderStatusChange, error) {
	if _, err := s.GetOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}
	return s.history.ListByOrder(ctx, s.reader, orderID)
}

// ListExpiring возвращает неоплаченные заказы, срок которых истекает в ближайшее время.
func (s *OrderService) ListExpiring(ctx context.Context, within time.Duration) ([]models.Order, error) {
	if within <= 0 {
		return nil, apperror.Validation("интервал должен быть больше нуля")
	}
	return s.orders.ListExpiring(ctx, s.reader, s.clock(), within)
}

// ListStalledNegotiations возвращает заказы, где предложение цены остаётся без ответа дольше idle.
// У торга нет срока оплаты, поэтому такие заказы не отменяются сами.
func (s *OrderService) ListStalledNegotiations(ctx context.Context, idle time.Duration) ([]models.Order, error) {
	if idle <= 0 {
		return nil, apperror.Validation("интервал должен быть больше нуля")
	}
	return s.orders.ListStalledNegotiations(ctx, s.reader, s.clock().Add(-idle), stalledListLimit)
}

const stalledListLimit = 200
