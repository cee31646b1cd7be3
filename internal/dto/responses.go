package dto

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/campus-trade/internal/models"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ResultResponse итог бизнес-операции: отказ по правилам приходит с success=false.
type ResultResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// OrderDetailResponse заказ с доступными текущему пользователю переходами.
type OrderDetailResponse struct {
	*models.Order
	Role               models.Role          `json:"role"`
	AllowedTransitions []models.OrderStatus `json:"allowed_transitions"`
}

// BalanceResponse баланс счёта.
type BalanceResponse struct {
	UserID  int64           `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

// CreditResponse кредитный рейтинг.
type CreditResponse struct {
	UserID int64           `json:"user_id"`
	Score  decimal.Decimal `json:"credit_score"`
}

// ListResponse страница списка.
type ListResponse struct {
	Items  interface{} `json:"items"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}
