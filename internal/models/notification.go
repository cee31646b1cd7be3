package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationTemplate идентификатор шаблона уведомления.
type NotificationTemplate int

const (
	TemplateBargainReceived  NotificationTemplate = 14
	TemplateCounterOffer     NotificationTemplate = 16
	TemplateExchangeReceived NotificationTemplate = 20
	TemplateExchangeAnswered NotificationTemplate = 21
	TemplateReviewReply      NotificationTemplate = 24
	TemplateReportResolution NotificationTemplate = 29
	TemplateBalanceChange    NotificationTemplate = 30
	TemplateRechargeSuccess  NotificationTemplate = 31
)

// Notification сохранённое уведомление пользователя.
type Notification struct {
	ID              uuid.UUID            `db:"id" json:"id"`
	UserID          int64                `db:"user_id" json:"user_id"`
	TemplateID      NotificationTemplate `db:"template_id" json:"template_id"`
	Payload         json.RawMessage      `db:"payload" json:"payload"`
	RelatedEntityID *int64               `db:"related_entity_id" json:"related_entity_id,omitempty"`
	IsRead          bool                 `db:"is_read" json:"is_read"`
	CreatedAt       time.Time            `db:"created_at" json:"created_at"`
}
