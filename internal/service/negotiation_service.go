package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/campus-trade/internal/logger"
	"github.com/ignatzorin/campus-trade/internal/metrics"
	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/outbox"
	"github.com/ignatzorin/campus-trade/internal/pkg/apperror"
	"github.com/ignatzorin/campus-trade/internal/repository"
	"github.com/ignatzorin/campus-trade/internal/txn"
)

// NegotiationRepository описывает хранилище раундов торга.
type NegotiationRepository interface {
	Create(ctx context.Context, q repository.Querier, n *models.Negotiation) error
	GetByID(ctx context.Context, q repository.Querier, id int64) (*models.Negotiation, error)
	GetWaitingForUpdate(ctx context.Context, q repository.Querier, orderID int64) (*models.Negotiation, error)
	UpdateStatus(ctx context.Context, q repository.Querier, id int64, status models.NegotiationStatus) error
	ListByOrder(ctx context.Context, q repository.Querier, orderID int64) ([]models.Negotiation, error)
}

// NegotiationService ведёт торг по цене заказа.
type NegotiationService struct {
	coord          Coordinator
	reader         repository.Querier
	negotiations   NegotiationRepository
	orders         OrderRepository
	history        OrderHistoryRepository
	listings       ListingReader
	metrics        *metrics.Metrics
	paymentTimeout time.Duration
	clock          Clock
}

// NewNegotiationService создаёт сервис торга.
func NewNegotiationService(
	coord Coordinator,
	reader repository.Querier,
	negotiations NegotiationRepository,
	orders OrderRepository,
	history OrderHistoryRepository,
	listings ListingReader,
	m *metrics.Metrics,
	paymentTimeout time.Duration,
) *NegotiationService {
	if paymentTimeout <= 0 {
		paymentTimeout = DefaultPaymentTimeout
	}
	return &NegotiationService{
		coord:          coord,
		reader:         reader,
		negotiations:   negotiations,
		orders:         orders,
		history:        history,
		listings:       listings,
		metrics:        m,
		paymentTimeout: paymentTimeout,
		clock:          time.Now,
	}
}

var (
	errNoNegotiationAccess = apperror.Forbidden("нет доступа к торгу по этому заказу")
	errNegotiationClosed   = apperror.Conflict(models.ErrNegotiationClosed.Error())
	errActiveNegotiation   = apperror.Conflict("по заказу уже идёт торг")
)

// Start открывает торг. Предложить цену может только покупатель неоплаченного заказа.
func (s *NegotiationService) Start(ctx context.Context, orderID, buyerID int64, price decimal.Decimal) (*models.Negotiation, Result, error) {
	if !validAmount(price) {
		return nil, Fail(apperror.ErrInvalidAmount.Message), nil
	}

	var created *models.Negotiation
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		order, err := s.orders.GetForUpdate(ctx, scope.Q(), orderID)
		if err != nil {
			return notFound(err, repository.ErrOrderNotFound, apperror.ErrOrderNotFound)
		}

		switch order.RoleOf(buyerID) {
		case models.RoleNone:
			return errNoNegotiationAccess
		case models.RoleSeller:
			return apperror.Forbidden("продавец не может начать торг")
		}

		if order.Status != models.OrderStatusPendingPayment {
			return apperror.Conflict("статус заказа не позволяет торг")
		}
		if order.IsExpired(s.clock()) {
			return apperror.Conflict("срок оплаты заказа истёк")
		}

		if _, err := s.negotiations.GetWaitingForUpdate(ctx, scope.Q(), orderID); err == nil {
			return errActiveNegotiation
		} else if !errors.Is(err, repository.ErrNegotiationNotFound) {
			return err
		}

		created = &models.Negotiation{
			OrderID:       orderID,
			ProposedPrice: price,
			Status:        models.NegotiationWaitingResponse,
			ResponderRole: models.RoleSeller,
			ProposerID:    buyerID,
		}
		if err := s.negotiations.Create(ctx, scope.Q(), created); err != nil {
			if errors.Is(err, repository.ErrActiveNegotiation) {
				return errActiveNegotiation
			}
			return err
		}

		from := order.Status
		order.Status = models.OrderStatusNegotiating
		order.ExpireAt = nil
		if err := s.save(ctx, scope, order, from, buyerID, "торг открыт"); err != nil {
			return err
		}

		params := map[string]string{
			"proposedPrice": price.StringFixed(2),
			"originalPrice": order.TotalAmount.StringFixed(2),
		}
		s.withListingTitle(ctx, scope.Q(), order.ListingID, params)
		scope.Notify(outbox.NewEvent(order.SellerID, models.TemplateBargainReceived, params, outbox.Related(order.ID)))
		return nil
	})

	res, err := settle(err, "предложение цены отправлено")
	if err != nil {
		logger.Log.WithError(err).WithField("order_id", orderID).Error("negotiation: start failed")
		return nil, Result{}, err
	}
	if !res.Success {
		s.rejected("negotiation_start", buyerID, orderID, res.Message)
		return nil, res, nil
	}

	logger.Log.WithFields(logrus.Fields{
		"order_id":       orderID,
		"negotiation_id": created.ID,
		"price":          price.String(),
	}).Info("negotiation: started")
	return created, res, nil
}

// Respond обрабатывает ответ на текущее предложение.
// Ссылка на закрытый раунд переадресуется на ожидающий ответа раунд того же заказа.
func (s *NegotiationService) Respond(ctx context.Context, negotiationID, userID int64, action models.NegotiationAction, newPrice *decimal.Decimal) (Result, error) {
	switch action {
	case models.ActionAccept, models.ActionReject:
	case models.ActionCounterOffer:
		if newPrice == nil {
			return Fail("для встречного предложения нужна новая цена"), nil
		}
		if !validAmount(*newPrice) {
			return Fail(apperror.ErrInvalidAmount.Message), nil
		}
	default:
		return Fail(models.ErrUnknownNegotiationAction.Error()), nil
	}

	var orderID int64
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		ref, err := s.negotiations.GetByID(ctx, scope.Q(), negotiationID)
		if err != nil {
			return notFound(err, repository.ErrNegotiationNotFound, apperror.ErrNegotiationNotFound)
		}
		orderID = ref.OrderID

		order, err := s.orders.GetForUpdate(ctx, scope.Q(), ref.OrderID)
		if err != nil {
			return notFound(err, repository.ErrOrderNotFound, apperror.ErrOrderNotFound)
		}
		role := order.RoleOf(userID)
		if role == models.RoleNone {
			return errNoNegotiationAccess
		}

		current, err := s.negotiations.GetWaitingForUpdate(ctx, scope.Q(), order.ID)
		if errors.Is(err, repository.ErrNegotiationNotFound) {
			return errNegotiationClosed
		}
		if err != nil {
			return err
		}

		if current.ResponderRole != role {
			return apperror.Forbidden("сейчас очередь другой стороны отвечать")
		}
		if order.Status != models.OrderStatusNegotiating {
			return apperror.Conflict("статус заказа не позволяет торг")
		}

		next, err := current.Status.Resolve(action)
		if err != nil {
			return apperror.Conflict(err.Error())
		}
		if err := s.negotiations.UpdateStatus(ctx, scope.Q(), current.ID, next); err != nil {
			return err
		}

		from := order.Status
		switch action {
		case models.ActionAccept:
			price := current.ProposedPrice
			expireAt := s.clock().Add(s.paymentTimeout)
			order.TotalAmount = price
			order.FinalPrice = &price
			order.Status = models.OrderStatusPendingPayment
			order.ExpireAt = &expireAt
			return s.save(ctx, scope, order, from, userID, "цена согласована: "+price.StringFixed(2))

		case models.ActionReject:
			order.Status = models.OrderStatusCancelled
			return s.save(ctx, scope, order, from, userID, "предложение цены отклонено")

		default:
			counter := &models.Negotiation{
				OrderID:       order.ID,
				ProposedPrice: *newPrice,
				Status:        models.NegotiationWaitingResponse,
				ResponderRole: role.Opposite(),
				ProposerID:    userID,
			}
			if err := s.negotiations.Create(ctx, scope.Q(), counter); err != nil {
				if errors.Is(err, repository.ErrActiveNegotiation) {
					return errActiveNegotiation
				}
				return err
			}

			params := map[string]string{
				"originalPrice": current.ProposedPrice.StringFixed(2),
				"counterPrice":  newPrice.StringFixed(2),
			}
			s.withListingTitle(ctx, scope.Q(), order.ListingID, params)
			scope.Notify(outbox.NewEvent(order.CounterpartOf(userID), models.TemplateCounterOffer, params, outbox.Related(order.ID)))
			return nil
		}
	})

	res, err := settle(err, "ответ на предложение принят")
	if err != nil {
		logger.Log.WithError(err).WithField("negotiation_id", negotiationID).Error("negotiation: respond failed")
		return Result{}, err
	}
	if !res.Success {
		s.rejected("negotiation_respond", userID, negotiationID, res.Message)
		return res, nil
	}

	s.metrics.RecordNegotiationResponse(string(action))
	logger.Log.WithFields(logrus.Fields{
		"order_id":       orderID,
		"negotiation_id": negotiationID,
		"user_id":        userID,
		"action":         action,
	}).Info("negotiation: response recorded")
	return res, nil
}

// Thread возвращает историю торга по заказу участнику сделки.
func (s *NegotiationService) Thread(ctx context.Context, orderID, userID int64) ([]models.Negotiation, error) {
	order, err := s.orders.GetByID(ctx, s.reader, orderID)
	if err != nil {
		return nil, notFound(err, repository.ErrOrderNotFound, apperror.ErrOrderNotFound)
	}
	if order.RoleOf(userID) == models.RoleNone {
		return nil, errNoNegotiationAccess
	}
	return s.negotiations.ListByOrder(ctx, s.reader, orderID)
}

func (s *NegotiationService) save(ctx context.Context, scope *txn.Scope, order *models.Order, from models.OrderStatus, actorID int64, remark string) error {
	if err := s.orders.Update(ctx, scope.Q(), order); err != nil {
		return err
	}
	return s.history.Append(ctx, scope.Q(), &models.OrderStatusChange{
		OrderID:    order.ID,
		ActorID:    &actorID,
		FromStatus: from,
		ToStatus:   order.Status,
		Remark:     remark,
	})
}

// withListingTitle дополняет параметры уведомления названием товара, если его удалось прочитать.
func (s *NegotiationService) withListingTitle(ctx context.Context, q repository.Querier, listingID int64, params map[string]string) {
	if s.listings == nil {
		return
	}
	listing, err := s.listings.GetByID(ctx, q, listingID)
	if err != nil {
		return
	}
	params["productTitle"] = listing.Title
}

func (s *NegotiationService) rejected(operation string, userID, entityID int64, message string) {
	s.metrics.RecordRejection(operation)
	logger.Log.WithFields(logrus.Fields{
		"operation": operation,
		"user_id":   userID,
		"entity_id": entityID,
	}).Info("negotiation: rejected: " + message)
}
