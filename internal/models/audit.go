package models

import "time"

// Типы действий в журнале аудита
const (
	AuditCreditPenalty = "credit_penalty"
	AuditOrderSwept    = "order_swept"
)

// AuditLog запись журнала действий администраторов и системы.
type AuditLog struct {
	ID         int64     `db:"id" json:"id"`
	ActorID    int64     `db:"actor_id" json:"actor_id"`
	ActionType string    `db:"action_type" json:"action_type"`
	TargetID   int64     `db:"target_id" json:"target_id"`
	Detail     string    `db:"detail" json:"detail"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
