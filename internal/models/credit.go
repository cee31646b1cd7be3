package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Границы кредитного рейтинга
var (
	MinCreditScore = decimal.NewFromInt(0)
	MaxCreditScore = decimal.NewFromInt(130)
	// DefaultCreditScore выдаётся новому пользователю.
	DefaultCreditScore = decimal.NewFromInt(100)
)

// CreditEventType событие, меняющее кредитный рейтинг.
type CreditEventType string

const (
	CreditTransactionCompleted  CreditEventType = "transaction_completed"
	CreditPositiveReviewReward  CreditEventType = "positive_review_reward"
	CreditReportPenalty         CreditEventType = "report_penalty"
	CreditNegativeReviewPenalty CreditEventType = "negative_review_penalty"
	CreditLightViolation        CreditEventType = "light_violation"
	CreditModerateViolation     CreditEventType = "moderate_violation"
	CreditSevereViolation       CreditEventType = "severe_violation"
	// События, отменяющие влияние удалённого отзыва
	CreditReviewRewardRevoked   CreditEventType = "review_reward_revoked"
	CreditReviewPenaltyRevoked  CreditEventType = "review_penalty_revoked"
)

var creditDeltas = map[CreditEventType]decimal.Decimal{
	CreditTransactionCompleted:  decimal.NewFromInt(5),
	CreditPositiveReviewReward:  decimal.NewFromInt(3),
	CreditReportPenalty:         decimal.NewFromInt(-10),
	CreditNegativeReviewPenalty: decimal.NewFromInt(-5),
	CreditLightViolation:        decimal.NewFromInt(-5),
	CreditModerateViolation:     decimal.NewFromInt(-10),
	CreditSevereViolation:       decimal.NewFromInt(-15),
	CreditReviewRewardRevoked:   decimal.NewFromInt(-3),
	CreditReviewPenaltyRevoked:  decimal.NewFromInt(5),
}

// Delta возвращает изменение рейтинга для события.
func (e CreditEventType) Delta() (decimal.Decimal, bool) {
	d, ok := creditDeltas[e]
	return d, ok
}

// ClampCreditScore ограничивает рейтинг допустимым диапазоном.
func ClampCreditScore(score decimal.Decimal) decimal.Decimal {
	if score.LessThan(MinCreditScore) {
		return MinCreditScore
	}
	if score.GreaterThan(MaxCreditScore) {
		return MaxCreditScore
	}
	return score
}

// UserCredit текущий рейтинг пользователя вместе с версией для CAS.
type UserCredit struct {
	UserID  int64           `db:"id" json:"user_id"`
	Score   decimal.Decimal `db:"credit_score" json:"credit_score"`
	Version int64           `db:"credit_version" json:"-"`
}

// CreditHistory запись журнала изменений рейтинга.
type CreditHistory struct {
	ID          int64           `db:"id" json:"id"`
	UserID      int64           `db:"user_id" json:"user_id"`
	EventType   CreditEventType `db:"event_type" json:"event_type"`
	Delta       decimal.Decimal `db:"delta" json:"delta"`
	NewScore    decimal.Decimal `db:"new_score" json:"new_score"`
	Description string          `db:"description" json:"description"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
