package repository

import (
	"context"
	"fmt"

	"github.com/ignatzorin/campus-trade/internal/models"
)

type OrderHistoryRepository struct{}

func NewOrderHistoryRepository() *OrderHistoryRepository {
	return &OrderHistoryRepository{}
}

func (r *OrderHistoryRepository) Append(ctx context.Context, q Querier, change *models.OrderStatusChange) error {
	err := q.GetContext(ctx, change, `
		INSERT INTO order_status_history (order_id, actor_id, from_status, to_status, remark)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, order_id, actor_id, from_status, to_status, remark, created_at
	`, change.OrderID, change.ActorID, change.FromStatus, change.ToStatus, change.Remark)
	if err != nil {
		return fmt.Errorf("order history repository: append %w", err)
	}
	return nil
}

func (r *OrderHistoryRepository) ListByOrder(ctx context.Context, q Querier, orderID int64) ([]models.OrderStatusChange, error) {
	var history []models.OrderStatusChange
	err := q.SelectContext(ctx, &history, `
		SELECT * FROM order_status_history WHERE order_id = $1 ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("order history repository: list %w", err)
	}
	return history, nil
}
