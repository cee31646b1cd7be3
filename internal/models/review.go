package models

import "time"

// Review отзыв покупателя о продавце по завершённому заказу.
type Review struct {
	ID         int64     `db:"id" json:"id"`
	OrderID    int64     `db:"order_id" json:"order_id"`
	ReviewerID int64     `db:"reviewer_id" json:"reviewer_id"`
	ReviewedID int64     `db:"reviewed_id" json:"reviewed_id"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`

	SellerReply *string    `db:"seller_reply" json:"seller_reply,omitempty"`
	RepliedAt   *time.Time `db:"replied_at" json:"replied_at,omitempty"`
}

// ReplyWindow срок, в течение которого продавец может ответить на отзыв.
const ReplyWindow = 48 * time.Hour

const (
	MinReviewRating = 1
	MaxReviewRating = 5
)

// CreditEvent возвращает событие рейтинга для продавца по оценке.
// Нейтральная оценка рейтинг не меняет.
func (r *Review) CreditEvent() (CreditEventType, bool) {
	switch {
	case r.Rating <= 2:
		return CreditNegativeReviewPenalty, true
	case r.Rating >= 4:
		return CreditPositiveReviewReward, true
	}
	return "", false
}

// RevokeCreditEvent возвращает событие, которое отменяет влияние оценки при удалении отзыва.
func (r *Review) RevokeCreditEvent() (CreditEventType, bool) {
	event, ok := r.CreditEvent()
	if !ok {
		return "", false
	}
	if event == CreditPositiveReviewReward {
		return CreditReviewRewardRevoked, true
	}
	return CreditReviewPenaltyRevoked, true
}
