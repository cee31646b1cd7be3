package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/repository/common"
)

const activeOrderIndex = "uq_orders_active_purchase"

// OrderRepository управляет заказами и общей таблицей abstract_orders.
type OrderRepository struct{}

// NewOrderRepository создаёт репозиторий заказов.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{}
}

// createAbstractOrder резервирует общий id для заказа или обмена.
func createAbstractOrder(ctx context.Context, q Querier, orderType models.AbstractOrderType) (*models.AbstractOrder, error) {
	var abstract models.AbstractOrder
	if err := q.GetContext(ctx, &abstract, `
		INSERT INTO abstract_orders (order_type) VALUES ($1) RETURNING *
	`, orderType); err != nil {
		return nil, fmt.Errorf("create abstract order %w", err)
	}
	return &abstract, nil
}

// Create резервирует id в abstract_orders и создаёт заказ с тем же id.
func (r *OrderRepository) Create(ctx context.Context, q Querier, order *models.Order) error {
	abstract, err := createAbstractOrder(ctx, q, models.AbstractOrderNormal)
	if err != nil {
		return fmt.Errorf("order repository: %w", err)
	}

	err = q.GetContext(ctx, order, `
		INSERT INTO orders (id, buyer_id, seller_id, listing_id, total_amount, final_price, status, expire_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, abstract.ID, order.BuyerID, order.SellerID, order.ListingID, order.TotalAmount, order.FinalPrice, order.Status, order.ExpireAt)
	if err != nil {
		if common.IsUniqueViolation(err, activeOrderIndex) {
			return ErrActiveOrderExists
		}
		return fmt.Errorf("order repository: create %w", err)
	}

	return nil
}

// GetByID возвращает заказ по идентификатору.
func (r *OrderRepository) GetByID(ctx context.Context, q Querier, id int64) (*models.Order, error) {
	order, err := common.GetOne[models.Order](ctx, q, ErrOrderNotFound, `SELECT * FROM orders WHERE id = $1`, id)
	if err != nil && err != ErrOrderNotFound {
		return nil, fmt.Errorf("order repository: get by id %w", err)
	}
	return order, err
}

// GetForUpdate блокирует строку заказа до конца транзакции.
func (r *OrderRepository) GetForUpdate(ctx context.Context, q Querier, id int64) (*models.Order, error) {
	order, err := common.GetOne[models.Order](ctx, q, ErrOrderNotFound, `SELECT * FROM orders WHERE id = $1 FOR UPDATE`, id)
	if err != nil && err != ErrOrderNotFound {
		return nil, fmt.Errorf("order repository: get for update %w", err)
	}
	return order, err
}

// Update сохраняет изменяемые поля заказа.
func (r *OrderRepository) Update(ctx context.Context, q Querier, order *models.Order) error {
	err := q.GetContext(ctx, &order.UpdatedAt, `
		UPDATE orders
		SET total_amount = $2, final_price = $3, status = $4, expire_at = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, order.ID, order.TotalAmount, order.FinalPrice, order.Status, order.ExpireAt)
	if err != nil {
		return fmt.Errorf("order repository: update %w", err)
	}
	return nil
}

// HasActiveOrder проверяет, есть ли у покупателя незавершённый заказ на товар.
func (r *OrderRepository) HasActiveOrder(ctx context.Context, q Querier, buyerID, listingID int64) (bool, error) {
	var exists bool
	err := q.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE buyer_id = $1 AND listing_id = $2 AND status NOT IN ($3, $4)
		)
	`, buyerID, listingID, models.OrderStatusCompleted, models.OrderStatusCancelled)
	if err != nil {
		return false, fmt.Errorf("order repository: has active order %w", err)
	}
	return exists, nil
}

// HasActiveForListing проверяет, есть ли на товар незавершённый заказ любого покупателя.
func (r *OrderRepository) HasActiveForListing(ctx context.Context, q Querier, listingID int64) (bool, error) {
	var exists bool
	err := q.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM orders WHERE listing_id = $1 AND status NOT IN ($2, $3)
		)
	`, listingID, models.OrderStatusCompleted, models.OrderStatusCancelled)
	if err != nil {
		return false, fmt.Errorf("order repository: has active for listing %w", err)
	}
	return exists, nil
}

// ListExpired возвращает id неоплаченных заказов с истёкшим сроком.
func (r *OrderRepository) ListExpired(ctx context.Context, q Querier, now time.Time, limit int) ([]int64, error) {
	var ids []int64
	err := q.SelectContext(ctx, &ids, `
		SELECT id FROM orders
		WHERE status = $1 AND expire_at IS NOT NULL AND expire_at < $2
		ORDER BY expire_at ASC
		LIMIT $3
	`, models.OrderStatusPendingPayment, now, limit)
	if err != nil {
		return nil, fmt.Errorf("order repository: list expired %w", err)
	}
	return ids, nil
}

// ListExpiring возвращает неоплаченные заказы, срок которых истекает в окне [now, now+within].
func (r *OrderRepository) ListExpiring(ctx context.Context, q Querier, now time.Time, within time.Duration) ([]models.Order, error) {
	var orders []models.Order
	err := q.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE status = $1 AND expire_at BETWEEN $2 AND $3
		ORDER BY expire_at ASC
	`, models.OrderStatusPendingPayment, now, now.Add(within))
	if err != nil {
		return nil, fmt.Errorf("order repository: list expiring %w", err)
	}
	return orders, nil
}

// ListStalledNegotiations возвращает заказы в торге, где текущее предложение ждёт ответа с момента до before.
func (r *OrderRepository) ListStalledNegotiations(ctx context.Context, q Querier, before time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := q.SelectContext(ctx, &orders, `
		SELECT o.* FROM orders o
		JOIN negotiations n ON n.order_id = o.id AND n.status = $2
		WHERE o.status = $1 AND n.created_at < $3
		ORDER BY n.created_at ASC
		LIMIT $4
	`, models.OrderStatusNegotiating, models.NegotiationWaitingResponse, before, limit)
	if err != nil {
		return nil, fmt.Errorf("order repository: list stalled negotiations %w", err)
	}
	return orders, nil
}

// ListByUser возвращает заказы пользователя как покупателя или продавца.
func (r *OrderRepository) ListByUser(ctx context.Context, q Querier, filter models.OrderFilter) ([]models.Order, error) {
	query := `SELECT * FROM orders WHERE `
	args := []interface{}{filter.UserID}

	switch filter.Role {
	case models.RoleBuyer:
		query += `buyer_id = $1`
	case models.RoleSeller:
		query += `seller_id = $1`
	default:
		query += `(buyer_id = $1 OR seller_id = $1)`
	}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var orders []models.Order
	if err := q.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("order repository: list by user %w", err)
	}
	return orders, nil
}
