package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/campus-trade/internal/logger"
	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/outbox"
	"github.com/ignatzorin/campus-trade/internal/pkg/apperror"
	"github.com/ignatzorin/campus-trade/internal/repository"
	"github.com/ignatzorin/campus-trade/internal/txn"
)

type ReviewRepository interface {
	Create(ctx context.Context, q repository.Querier, review *models.Review) error
	ExistsForOrder(ctx context.Context, q repository.Querier, orderID, reviewerID int64) (bool, error)
	ListByReviewed(ctx context.Context, q repository.Querier, reviewedID int64, limit, offset int) ([]models.Review, error)
	GetForUpdate(ctx context.Context, q repository.Querier, id int64) (*models.Review, error)
	SetReply(ctx context.Context, q repository.Querier, id int64, reply string, at time.Time) error
	Delete(ctx context.Context, q repository.Querier, id int64) error
}

type ReviewService struct {
	coord  Coordinator
	reader repository.Querier
	repo   ReviewRepository
	orders OrderRepository
	credit *CreditService
	clock  Clock
}

func NewReviewService(coord Coordinator, reader repository.Querier, repo ReviewRepository, orders OrderRepository, credit *CreditService) *ReviewService {
	return &ReviewService{coord: coord, reader: reader, repo: repo, orders: orders, credit: credit, clock: time.Now}
}

var errReviewExists = apperror.Conflict("вы уже оставили отзыв на этот заказ")

// Submit сохраняет отзыв покупателя о продавце и в той же транзакции меняет рейтинг продавца.
func (s *ReviewService) Submit(ctx context.Context, orderID, reviewerID int64, rating int, comment *string) (*models.Review, Result, error) {
	if rating < models.MinReviewRating || rating > models.MaxReviewRating {
		return nil, Fail(fmt.Sprintf("оценка должна быть от %d до %d", models.MinReviewRating, models.MaxReviewRating)), nil
	}

	var review *models.Review
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		order, err := s.orders.GetByID(ctx, scope.Q(), orderID)
		if err != nil {
			return notFound(err, repository.ErrOrderNotFound, apperror.ErrOrderNotFound)
		}

		// Отзыв оставляет только покупатель
		switch order.RoleOf(reviewerID) {
		case models.RoleNone:
			return apperror.Forbidden("вы не участник этого заказа")
		case models.RoleSeller:
			return apperror.Forbidden("отзыв о сделке оставляет покупатель")
		}
		if order.Status != models.OrderStatusCompleted {
			return apperror.Conflict("отзыв можно оставить только после завершения заказа")
		}

		exists, err := s.repo.ExistsForOrder(ctx, scope.Q(), orderID, reviewerID)
		if err != nil {
			return err
		}
		if exists {
			return errReviewExists
		}

		review = &models.Review{
			OrderID:    orderID,
			ReviewerID: reviewerID,
			ReviewedID: order.SellerID,
			Rating:     rating,
			Comment:    comment,
		}
		if err := s.repo.Create(ctx, scope.Q(), review); err != nil {
			if errors.Is(err, repository.ErrReviewExists) {
				return errReviewExists
			}
			return err
		}

		event, ok := review.CreditEvent()
		if !ok {
			return nil
		}
		_, err = s.credit.ApplyChangeIn(ctx, scope, order.SellerID, event, "review for order "+strconv.FormatInt(orderID, 10))
		return err
	})

	res, err := settle(err, "отзыв сохранён")
	if err != nil {
		logger.Log.WithError(err).WithField("order_id", orderID).Error("reviews: submit failed")
		return nil, Result{}, err
	}
	if !res.Success {
		logger.Log.WithFields(logrus.Fields{
			"order_id":    orderID,
			"reviewer_id": reviewerID,
		}).Info("reviews: rejected: " + res.Message)
		return nil, res, nil
	}
	return review, res, nil
}

// Reply сохраняет ответ продавца на отзыв. Ответ можно изменить, пока не прошло 48 часов с момента отзыва.
func (s *ReviewService) Reply(ctx context.Context, reviewID, sellerID int64, reply string) (Result, error) {
	var review *models.Review
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		var err error
		review, err = s.repo.GetForUpdate(ctx, scope.Q(), reviewID)
		if err != nil {
			return notFound(err, repository.ErrReviewNotFound, apperror.ErrReviewNotFound)
		}
		if review.ReviewedID != sellerID {
			return apperror.Forbidden("ответить на отзыв может только продавец")
		}

		now := s.clock()
		if now.After(review.CreatedAt.Add(models.ReplyWindow)) {
			return apperror.Conflict("срок ответа на отзыв истёк")
		}
		if err := s.repo.SetReply(ctx, scope.Q(), reviewID, reply, now); err != nil {
			return notFound(err, repository.ErrReviewNotFound, apperror.ErrReviewNotFound)
		}

		scope.Notify(outbox.NewEvent(review.ReviewerID, models.TemplateReviewReply, map[string]string{
			"orderId":      strconv.FormatInt(review.OrderID, 10),
			"replyContent": reply,
		}, outbox.Related(review.OrderID)))
		return nil
	})

	res, err := settle(err, "ответ сохранён")
	if err != nil {
		logger.Log.WithError(err).WithField("review_id", reviewID).Error("reviews: reply failed")
		return Result{}, err
	}
	if !res.Success {
		logger.Log.WithFields(logrus.Fields{
			"review_id": reviewID,
			"seller_id": sellerID,
		}).Info("reviews: reply rejected: " + res.Message)
	}
	return res, nil
}

// Delete удаляет отзыв автора и в той же транзакции отменяет его влияние на рейтинг продавца.
func (s *ReviewService) Delete(ctx context.Context, reviewID, userID int64) (Result, error) {
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		review, err := s.repo.GetForUpdate(ctx, scope.Q(), reviewID)
		if err != nil {
			return notFound(err, repository.ErrReviewNotFound, apperror.ErrReviewNotFound)
		}
		if review.ReviewerID != userID {
			return apperror.Forbidden("удалить можно только свой отзыв")
		}

		if err := s.repo.Delete(ctx, scope.Q(), reviewID); err != nil {
			return notFound(err, repository.ErrReviewNotFound, apperror.ErrReviewNotFound)
		}

		event, ok := review.RevokeCreditEvent()
		if !ok {
			return nil
		}
		_, err = s.credit.ApplyChangeIn(ctx, scope, review.ReviewedID, event, "review removed for order "+strconv.FormatInt(review.OrderID, 10))
		return err
	})

	res, err := settle(err, "отзыв удалён")
	if err != nil {
		logger.Log.WithError(err).WithField("review_id", reviewID).Error("reviews: delete failed")
		return Result{}, err
	}
	if !res.Success {
		logger.Log.WithFields(logrus.Fields{
			"review_id": reviewID,
			"user_id":   userID,
		}).Info("reviews: delete rejected: " + res.Message)
	}
	return res, nil
}

// ListUserReviews возвращает отзывы о пользователе.
func (s *ReviewService) ListUserReviews(ctx context.Context, userID int64, limit, offset int) ([]models.Review, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.ListByReviewed(ctx, s.reader, userID, limit, offset)
}
