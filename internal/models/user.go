package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User описывает пользователя площадки. Учётные данные хранит внешний сервис авторизации.
type User struct {
	ID            int64           `db:"id" json:"id"`
	Username      string          `db:"username" json:"username"`
	CreditScore   decimal.Decimal `db:"credit_score" json:"credit_score"`
	CreditVersion int64           `db:"credit_version" json:"-"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
