package repository

import (
	"context"
	"fmt"

	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/repository/common"
)

const pendingExchangeIndex = "uq_exchange_requests_pending_offer"

// ExchangeRepository хранит запросы на обмен товарами.
type ExchangeRepository struct{}

// NewExchangeRepository создаёт репозиторий обменов.
func NewExchangeRepository() *ExchangeRepository {
	return &ExchangeRepository{}
}

// Create резервирует id типа exchange и сохраняет запрос.
// Второй ожидающий запрос с тем же предлагаемым товаром возвращает ErrPendingExchange.
func (r *ExchangeRepository) Create(ctx context.Context, q Querier, exchange *models.ExchangeRequest) error {
	abstract, err := createAbstractOrder(ctx, q, models.AbstractOrderExchange)
	if err != nil {
		return fmt.Errorf("exchange repository: %w", err)
	}

	err = q.GetContext(ctx, exchange, `
		INSERT INTO exchange_requests (id, offer_listing_id, request_listing_id, requester_id, responder_id, terms, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, abstract.ID, exchange.OfferListingID, exchange.RequestListingID, exchange.RequesterID, exchange.ResponderID, exchange.Terms, exchange.Status)
	if err != nil {
		if common.IsUniqueViolation(err, pendingExchangeIndex) {
			return ErrPendingExchange
		}
		return fmt.Errorf("exchange repository: create %w", err)
	}
	return nil
}

// GetForUpdate блокирует запрос до конца транзакции.
func (r *ExchangeRepository) GetForUpdate(ctx context.Context, q Querier, id int64) (*models.ExchangeRequest, error) {
	exchange, err := common.GetOne[models.ExchangeRequest](ctx, q, ErrExchangeNotFound, `SELECT * FROM exchange_requests WHERE id = $1 FOR UPDATE`, id)
	if err != nil && err != ErrExchangeNotFound {
		return nil, fmt.Errorf("exchange repository: get for update %w", err)
	}
	return exchange, err
}

// HasPending проверяет, предложен ли товар в другом ожидающем обмене.
func (r *ExchangeRepository) HasPending(ctx context.Context, q Querier, offerListingID int64) (bool, error) {
	var exists bool
	if err := q.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM exchange_requests WHERE offer_listing_id = $1 AND status = $2)
	`, offerListingID, models.ExchangePending); err != nil {
		return false, fmt.Errorf("exchange repository: has pending %w", err)
	}
	return exists, nil
}

// UpdateStatus меняет статус запроса.
func (r *ExchangeRepository) UpdateStatus(ctx context.Context, q Querier, id int64, status models.ExchangeStatus) error {
	res, err := q.ExecContext(ctx, `
		UPDATE exchange_requests SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("exchange repository: update status %w", err)
	}
	return common.RequireAffected(res, ErrExchangeNotFound)
}

// ListByUser возвращает отправленные и полученные запросы пользователя, новые первыми.
func (r *ExchangeRepository) ListByUser(ctx context.Context, q Querier, userID int64, limit, offset int) ([]models.ExchangeRequest, error) {
	var exchanges []models.ExchangeRequest
	if err := q.SelectContext(ctx, &exchanges, `
		SELECT * FROM exchange_requests
		WHERE requester_id = $1 OR responder_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("exchange repository: list by user %w", err)
	}
	return exchanges, nil
}
