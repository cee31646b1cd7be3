package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AbstractOrder общая запись для заказов разных типов, её id разделяет конкретный заказ.
type AbstractOrder struct {
	ID        int64             `db:"id" json:"id"`
	OrderType AbstractOrderType `db:"order_type" json:"order_type"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

// Order описывает покупку товара.
type Order struct {
	ID          int64            `db:"id" json:"id"`
	BuyerID     int64            `db:"buyer_id" json:"buyer_id"`
	SellerID    int64            `db:"seller_id" json:"seller_id"`
	ListingID   int64            `db:"listing_id" json:"listing_id"`
	TotalAmount decimal.Decimal  `db:"total_amount" json:"total_amount"`
	FinalPrice  *decimal.Decimal `db:"final_price" json:"final_price,omitempty"`
	Status      OrderStatus      `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	ExpireAt    *time.Time       `db:"expire_at" json:"expire_at,omitempty"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// RoleOf возвращает роль пользователя в заказе или RoleNone для посторонних.
func (o *Order) RoleOf(userID int64) Role {
	switch userID {
	case o.BuyerID:
		return RoleBuyer
	case o.SellerID:
		return RoleSeller
	}
	return RoleNone
}

// CounterpartOf возвращает id второй стороны сделки.
func (o *Order) CounterpartOf(userID int64) int64 {
	if userID == o.BuyerID {
		return o.SellerID
	}
	return o.BuyerID
}

// IsExpired сообщает, истёк ли срок оплаты на момент now.
func (o *Order) IsExpired(now time.Time) bool {
	return o.ExpireAt != nil && o.ExpireAt.Before(now)
}

// OrderFilter параметры выборки заказов пользователя.
type OrderFilter struct {
	UserID int64
	Role   Role
	Status OrderStatus
	Limit  int
	Offset int
}
