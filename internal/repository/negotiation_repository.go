package repository

import (
	"context"
	"fmt"

	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/repository/common"
)

const waitingNegotiationIndex = "uq_negotiations_waiting"

// NegotiationRepository хранит раунды торга.
type NegotiationRepository struct{}

// NewNegotiationRepository создаёт репозиторий торга.
func NewNegotiationRepository() *NegotiationRepository {
	return &NegotiationRepository{}
}

// Create добавляет новый раунд. Второй ожидающий ответа раунд по заказу отклоняется индексом.
func (r *NegotiationRepository) Create(ctx context.Context, q Querier, n *models.Negotiation) error {
	err := q.GetContext(ctx, n, `
		INSERT INTO negotiations (order_id, proposed_price, status, responder_role, proposer_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, n.OrderID, n.ProposedPrice, n.Status, n.ResponderRole, n.ProposerID)
	if err != nil {
		if common.IsUniqueViolation(err, waitingNegotiationIndex) {
			return ErrActiveNegotiation
		}
		return fmt.Errorf("negotiation repository: create %w", err)
	}
	return nil
}

// GetByID возвращает раунд по идентификатору.
func (r *NegotiationRepository) GetByID(ctx context.Context, q Querier, id int64) (*models.Negotiation, error) {
	n, err := common.GetOne[models.Negotiation](ctx, q, ErrNegotiationNotFound, `SELECT * FROM negotiations WHERE id = $1`, id)
	if err != nil && err != ErrNegotiationNotFound {
		return nil, fmt.Errorf("negotiation repository: get by id %w", err)
	}
	return n, err
}

// GetWaitingForUpdate блокирует текущий ожидающий ответа раунд заказа.
func (r *NegotiationRepository) GetWaitingForUpdate(ctx context.Context, q Querier, orderID int64) (*models.Negotiation, error) {
	n, err := common.GetOne[models.Negotiation](ctx, q, ErrNegotiationNotFound, `
		SELECT * FROM negotiations
		WHERE order_id = $1 AND status = $2
		FOR UPDATE
	`, orderID, models.NegotiationWaitingResponse)
	if err != nil && err != ErrNegotiationNotFound {
		return nil, fmt.Errorf("negotiation repository: get waiting %w", err)
	}
	return n, err
}

// UpdateStatus закрывает раунд.
func (r *NegotiationRepository) UpdateStatus(ctx context.Context, q Querier, id int64, status models.NegotiationStatus) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE negotiations SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status); err != nil {
		return fmt.Errorf("negotiation repository: update status %w", err)
	}
	return nil
}

// ListByOrder возвращает ветку торга в порядке создания.
func (r *NegotiationRepository) ListByOrder(ctx context.Context, q Querier, orderID int64) ([]models.Negotiation, error) {
	var thread []models.Negotiation
	if err := q.SelectContext(ctx, &thread, `
		SELECT * FROM negotiations WHERE order_id = $1 ORDER BY created_at ASC, id ASC
	`, orderID); err != nil {
		return nil, fmt.Errorf("negotiation repository: list by order %w", err)
	}
	return thread, nil
}
