package models

import "time"

// OrderStatusChange запись журнала смены статусов заказа.
type OrderStatusChange struct {
	ID         int64       `db:"id" json:"id"`
	OrderID    int64       `db:"order_id" json:"order_id"`
	ActorID    *int64      `db:"actor_id" json:"actor_id,omitempty"`
	FromStatus OrderStatus `db:"from_status" json:"from_status"`
	ToStatus   OrderStatus `db:"to_status" json:"to_status"`
	Remark     string      `db:"remark" json:"remark"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
