package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/repository/common"
)

// LedgerRepository хранит виртуальные счета и журнал движений.
type LedgerRepository struct{}

// NewLedgerRepository создаёт репозиторий счетов.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{}
}

// EnsureAccount создаёт пустой счёт, если его ещё нет.
// Для несуществующего пользователя ничего не вставляет: нарушение внешнего ключа прервало бы транзакцию.
func (r *LedgerRepository) EnsureAccount(ctx context.Context, q Querier, userID int64) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO virtual_accounts (user_id, balance)
		SELECT id, 0 FROM users WHERE id = $1
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return fmt.Errorf("ledger repository: ensure account %w", err)
	}
	return nil
}

// GetAccount читает счёт без блокировки.
func (r *LedgerRepository) GetAccount(ctx context.Context, q Querier, userID int64) (*models.Account, error) {
	acc, err := common.GetOne[models.Account](ctx, q, ErrAccountNotFound, `SELECT * FROM virtual_accounts WHERE user_id = $1`, userID)
	if err != nil && err != ErrAccountNotFound {
		return nil, fmt.Errorf("ledger repository: get account %w", err)
	}
	return acc, err
}

// GetAccountForUpdate блокирует счёт до конца транзакции.
func (r *LedgerRepository) GetAccountForUpdate(ctx context.Context, q Querier, userID int64) (*models.Account, error) {
	acc, err := common.GetOne[models.Account](ctx, q, ErrAccountNotFound, `SELECT * FROM virtual_accounts WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil && err != ErrAccountNotFound {
		return nil, fmt.Errorf("ledger repository: get account for update %w", err)
	}
	return acc, err
}

// SetBalance записывает новый баланс заблокированного счёта.
func (r *LedgerRepository) SetBalance(ctx context.Context, q Querier, userID int64, balance decimal.Decimal) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE virtual_accounts SET balance = $2, updated_at = NOW() WHERE user_id = $1
	`, userID, balance); err != nil {
		return fmt.Errorf("ledger repository: set balance %w", err)
	}
	return nil
}

// AppendEntry добавляет запись в журнал движений.
func (r *LedgerRepository) AppendEntry(ctx context.Context, q Querier, entry *models.LedgerEntry) error {
	if err := q.GetContext(ctx, entry, `
		INSERT INTO ledger_entries (user_id, direction, amount, balance_after, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, entry.UserID, entry.Direction, entry.Amount, entry.BalanceAfter, entry.Reason); err != nil {
		return fmt.Errorf("ledger repository: append entry %w", err)
	}
	return nil
}

// ListEntries возвращает движения по счёту, новые первыми.
func (r *LedgerRepository) ListEntries(ctx context.Context, q Querier, userID int64, limit, offset int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := q.SelectContext(ctx, &entries, `
		SELECT * FROM ledger_entries WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("ledger repository: list entries %w", err)
	}
	return entries, nil
}
