package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/campus-trade/internal/repository/common"
)

// Querier общий интерфейс *sqlx.DB и *sqlx.Tx.
// Методы репозиториев принимают его явно, поэтому участие в транзакции видно по сигнатуре.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

var (
	_ Querier = (*sqlx.DB)(nil)
	_ Querier = (*sqlx.Tx)(nil)
)

// Ошибки репозиториев
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrNegotiationNotFound = errors.New("negotiation not found")
	ErrListingNotFound     = errors.New("listing not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrRechargeNotFound    = errors.New("recharge not found")
	ErrReviewExists        = errors.New("review already exists")
	ErrReviewNotFound      = errors.New("review not found")
	ErrActiveOrderExists   = errors.New("active order for listing already exists")
	ErrActiveNegotiation   = errors.New("active negotiation already exists")
	ErrExchangeNotFound    = errors.New("exchange request not found")
	ErrPendingExchange     = errors.New("pending exchange for listing already exists")
)

// TxManager открывает транзакции поверх пула соединений.
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager создаёт менеджер транзакций.
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx выполняет fn в одной транзакции. Любая ошибка или panic откатывает её.
func (m *TxManager) WithinTx(ctx context.Context, fn func(Querier) error) error {
	return common.WithTransaction(ctx, m.db, func(tx *sqlx.Tx) error {
		return fn(tx)
	})
}

// Conn возвращает соединение вне транзакции для чтения.
func (m *TxManager) Conn() Querier {
	return m.db
}
