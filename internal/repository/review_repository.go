package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/repository/common"
)

type ReviewRepository struct{}

func NewReviewRepository() *ReviewRepository {
	return &ReviewRepository{}
}

// Create создаёт отзыв. Повторный отзыв на тот же заказ возвращает ErrReviewExists.
func (r *ReviewRepository) Create(ctx context.Context, q Querier, review *models.Review) error {
	err := q.GetContext(ctx, review, `
		INSERT INTO reviews (order_id, reviewer_id, reviewed_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, review.OrderID, review.ReviewerID, review.ReviewedID, review.Rating, review.Comment)
	if err != nil {
		if common.IsUniqueViolation(err, "") {
			return ErrReviewExists
		}
		return fmt.Errorf("review repository: create %w", err)
	}
	return nil
}

// ExistsForOrder проверяет, оставлял ли пользователь отзыв на заказ.
func (r *ReviewRepository) ExistsForOrder(ctx context.Context, q Querier, orderID, reviewerID int64) (bool, error) {
	var exists bool
	if err := q.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM reviews WHERE order_id = $1 AND reviewer_id = $2)
	`, orderID, reviewerID); err != nil {
		return false, fmt.Errorf("review repository: exists %w", err)
	}
	return exists, nil
}

// ListByReviewed возвращает отзывы о пользователе.
func (r *ReviewRepository) ListByReviewed(ctx context.Context, q Querier, reviewedID int64, limit, offset int) ([]models.Review, error) {
	var reviews []models.Review
	if err := q.SelectContext(ctx, &reviews, `
		SELECT * FROM reviews WHERE reviewed_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, reviewedID, limit, offset); err != nil {
		return nil, fmt.Errorf("review repository: list by reviewed %w", err)
	}
	return reviews, nil
}

// GetForUpdate блокирует отзыв до конца транзакции.
func (r *ReviewRepository) GetForUpdate(ctx context.Context, q Querier, id int64) (*models.Review, error) {
	review, err := common.GetOne[models.Review](ctx, q, ErrReviewNotFound, `SELECT * FROM reviews WHERE id = $1 FOR UPDATE`, id)
	if err != nil && err != ErrReviewNotFound {
		return nil, fmt.Errorf("review repository: get for update %w", err)
	}
	return review, err
}

// SetReply сохраняет ответ продавца.
func (r *ReviewRepository) SetReply(ctx context.Context, q Querier, id int64, reply string, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE reviews SET seller_reply = $2, replied_at = $3 WHERE id = $1
	`, id, reply, at)
	if err != nil {
		return fmt.Errorf("review repository: set reply %w", err)
	}
	return common.RequireAffected(res, ErrReviewNotFound)
}

// Delete удаляет отзыв.
func (r *ReviewRepository) Delete(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("review repository: delete %w", err)
	}
	return common.RequireAffected(res, ErrReviewNotFound)
}
