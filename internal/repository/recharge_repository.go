package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/repository/common"
)

// RechargeRepository хранит заявки на пополнение баланса.
type RechargeRepository struct{}

// NewRechargeRepository создаёт экземпляр репозитория.
func NewRechargeRepository() *RechargeRepository {
	return &RechargeRepository{}
}

// Create сохраняет новую заявку.
func (r *RechargeRepository) Create(ctx context.Context, q Querier, recharge *models.Recharge) error {
	if err := q.GetContext(ctx, recharge, `
		INSERT INTO recharges (user_id, reference, amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, recharge.UserID, recharge.Reference, recharge.Amount, recharge.Status); err != nil {
		return fmt.Errorf("recharge repository: create %w", err)
	}
	return nil
}

// GetForUpdate блокирует заявку до конца транзакции.
func (r *RechargeRepository) GetForUpdate(ctx context.Context, q Querier, id int64) (*models.Recharge, error) {
	recharge, err := common.GetOne[models.Recharge](ctx, q, ErrRechargeNotFound, `SELECT * FROM recharges WHERE id = $1 FOR UPDATE`, id)
	if err != nil && err != ErrRechargeNotFound {
		return nil, fmt.Errorf("recharge repository: get for update %w", err)
	}
	return recharge, err
}

// MarkCompleted переводит заявку в конечный статус.
func (r *RechargeRepository) MarkCompleted(ctx context.Context, q Querier, id int64, status string, at time.Time) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE recharges SET status = $2, completed_at = $3 WHERE id = $1
	`, id, status, at); err != nil {
		return fmt.Errorf("recharge repository: mark completed %w", err)
	}
	return nil
}

// FailStale помечает неуспешными заявки в обработке, созданные раньше before.
func (r *RechargeRepository) FailStale(ctx context.Context, q Querier, before, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE recharges SET status = $1, completed_at = $2
		WHERE status = $3 AND created_at < $4
	`, models.RechargeStatusFailed, now, models.RechargeStatusProcessing, before)
	if err != nil {
		return 0, fmt.Errorf("recharge repository: fail stale %w", err)
	}
	return res.RowsAffected()
}
