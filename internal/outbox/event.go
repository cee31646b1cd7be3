package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/campus-trade/internal/models"
)

// Event уведомление, которое уходит получателю после фиксации транзакции.
type Event struct {
	ID              uuid.UUID                   `json:"id"`
	UserID          int64                       `json:"user_id"`
	Template        models.NotificationTemplate `json:"template_id"`
	Params          map[string]string           `json:"params"`
	RelatedEntityID *int64                      `json:"related_entity_id,omitempty"`
	OccurredAt      time.Time                   `json:"occurred_at"`
}

// NewEvent создаёт событие с новым идентификатором.
func NewEvent(userID int64, template models.NotificationTemplate, params map[string]string, relatedID *int64) Event {
	if params == nil {
		params = map[string]string{}
	}
	return Event{
		ID:              uuid.New(),
		UserID:          userID,
		Template:        template,
		Params:          params,
		RelatedEntityID: relatedID,
		OccurredAt:      time.Now().UTC(),
	}
}

// Related возвращает указатель на id связанной сущности.
func Related(id int64) *int64 {
	return &id
}
