package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/repository/common"
)

// CreditRepository хранит рейтинг пользователей и его историю.
type CreditRepository struct{}

// NewCreditRepository создаёт репозиторий рейтинга.
func NewCreditRepository() *CreditRepository {
	return &CreditRepository{}
}

// GetCredit читает текущий рейтинг и его версию.
func (r *CreditRepository) GetCredit(ctx context.Context, q Querier, userID int64) (*models.UserCredit, error) {
	credit, err := common.GetOne[models.UserCredit](ctx, q, ErrUserNotFound, `
		SELECT id, credit_score, credit_version FROM users WHERE id = $1
	`, userID)
	if err != nil && err != ErrUserNotFound {
		return nil, fmt.Errorf("credit repository: get credit %w", err)
	}
	return credit, err
}

// CompareAndSwapScore обновляет рейтинг, только если версия не изменилась с момента чтения.
func (r *CreditRepository) CompareAndSwapScore(ctx context.Context, q Querier, userID, expectedVersion int64, score decimal.Decimal) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE users SET credit_score = $3, credit_version = credit_version + 1
		WHERE id = $1 AND credit_version = $2
	`, userID, expectedVersion, score)
	if err != nil {
		return false, fmt.Errorf("credit repository: compare and swap %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("credit repository: compare and swap rows affected %w", err)
	}
	return rows == 1, nil
}

// AppendHistory добавляет запись в историю рейтинга.
func (r *CreditRepository) AppendHistory(ctx context.Context, q Querier, h *models.CreditHistory) error {
	if err := q.GetContext(ctx, h, `
		INSERT INTO credit_history (user_id, event_type, delta, new_score, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, h.UserID, h.EventType, h.Delta, h.NewScore, h.Description); err != nil {
		return fmt.Errorf("credit repository: append history %w", err)
	}
	return nil
}

// ListHistory возвращает историю рейтинга, новые записи первыми.
func (r *CreditRepository) ListHistory(ctx context.Context, q Querier, userID int64, limit, offset int) ([]models.CreditHistory, error) {
	var history []models.CreditHistory
	if err := q.SelectContext(ctx, &history, `
		SELECT * FROM credit_history WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("credit repository: list history %w", err)
	}
	return history, nil
}
