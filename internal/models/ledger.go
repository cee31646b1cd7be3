package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Направление движения по счёту
const (
	EntryDirectionDebit  = "debit"
	EntryDirectionCredit = "credit"
)

// Account виртуальный счёт пользователя.
type Account struct {
	UserID    int64           `db:"user_id" json:"user_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// LedgerEntry неизменяемая запись об изменении баланса.
type LedgerEntry struct {
	ID           int64           `db:"id" json:"id"`
	UserID       int64           `db:"user_id" json:"user_id"`
	Direction    string          `db:"direction" json:"direction"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"`
	Reason       string          `db:"reason" json:"reason"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Статусы пополнения
const (
	RechargeStatusProcessing = "processing"
	RechargeStatusSuccess    = "success"
	RechargeStatusFailed     = "failed"
)

// Recharge заявка на пополнение баланса.
type Recharge struct {
	ID          int64           `db:"id" json:"id"`
	UserID      int64           `db:"user_id" json:"user_id"`
	Reference   string          `db:"reference" json:"reference"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}
