package models

// OrderStatus статус заказа.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusNegotiating    OrderStatus = "negotiating"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// ValidOrderStatuses список валидных статусов заказов
var ValidOrderStatuses = map[OrderStatus]struct{}{
	OrderStatusPendingPayment: {},
	OrderStatusNegotiating:    {},
	OrderStatusPaid:           {},
	OrderStatusShipped:        {},
	OrderStatusDelivered:      {},
	OrderStatusCompleted:      {},
	OrderStatusCancelled:      {},
}

// IsValid проверяет, что статус входит в допустимый набор.
func (s OrderStatus) IsValid() bool {
	_, ok := ValidOrderStatuses[s]
	return ok
}

// IsTerminal сообщает, что заказ больше не может менять статус.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Role роль участника сделки.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleNone   Role = ""
)

// Opposite возвращает роль контрагента.
func (r Role) Opposite() Role {
	switch r {
	case RoleBuyer:
		return RoleSeller
	case RoleSeller:
		return RoleBuyer
	}
	return RoleNone
}

// AbstractOrderType тип заказа в общей таблице abstract_orders.
type AbstractOrderType string

const (
	AbstractOrderNormal   AbstractOrderType = "normal"
	AbstractOrderExchange AbstractOrderType = "exchange"
)

// ListingStatus статус товара в каталоге.
type ListingStatus string

const (
	ListingStatusOnSale   ListingStatus = "on_sale"
	ListingStatusOffShelf ListingStatus = "off_shelf"
	ListingStatusSold     ListingStatus = "sold"
)
