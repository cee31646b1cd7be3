package service

import "github.com/ignatzorin/campus-trade/internal/models"

// orderTransitions допустимые переходы по ролям. Negotiating управляется только торгом.
var orderTransitions = map[models.OrderStatus]map[models.Role][]models.OrderStatus{
	models.OrderStatusPendingPayment: {
		models.RoleBuyer:  {models.OrderStatusPaid, models.OrderStatusCancelled},
		models.RoleSeller: {models.OrderStatusCancelled},
	},
	models.OrderStatusPaid: {
		models.RoleBuyer:  {models.OrderStatusCancelled},
		models.RoleSeller: {models.OrderStatusShipped, models.OrderStatusCancelled},
	},
	models.OrderStatusShipped: {
		models.RoleBuyer: {models.OrderStatusDelivered},
	},
	models.OrderStatusDelivered: {
		models.RoleBuyer:  {models.OrderStatusCompleted},
		models.RoleSeller: {models.OrderStatusCompleted},
	},
}

// CanTransition сообщает, может ли участник с ролью role перевести заказ из from в to.
func CanTransition(from models.OrderStatus, role models.Role, to models.OrderStatus) bool {
	for _, allowed := range orderTransitions[from][role] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions возвращает статусы, доступные участнику из текущего.
func AllowedTransitions(from models.OrderStatus, role models.Role) []models.OrderStatus {
	allowed := orderTransitions[from][role]
	out := make([]models.OrderStatus, len(allowed))
	copy(out, allowed)
	return out
}
