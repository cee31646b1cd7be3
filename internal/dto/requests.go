package dto

import (
	"github.com/shopspring/decimal"
)

// CreateOrderRequest запрос на покупку товара.
// Цену клиент не передаёт: заказ создаётся по базовой цене, скидка возможна только через торг.
type CreateOrderRequest struct {
	ListingID int64 `json:"listing_id" binding:"required,gt=0"`
}

// TransitionRequest смена статуса заказа участником.
type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
	Remark string `json:"remark" binding:"max=500"`
}

// StartNegotiationRequest первое предложение цены от покупателя.
type StartNegotiationRequest struct {
	ProposedPrice decimal.Decimal `json:"proposed_price"`
}

// RespondNegotiationRequest ответ на предложение. Для counter_offer нужна новая цена.
type RespondNegotiationRequest struct {
	Action        string           `json:"action" binding:"required,oneof=accept reject counter_offer"`
	ProposedPrice *decimal.Decimal `json:"proposed_price"`
}

// SubmitReviewRequest отзыв о продавце.
type SubmitReviewRequest struct {
	Rating  int     `json:"rating" binding:"required,min=1,max=5"`
	Comment *string `json:"comment" binding:"omitempty,max=1000"`
}

// ReplyReviewRequest ответ продавца на отзыв.
type ReplyReviewRequest struct {
	Reply string `json:"reply" binding:"required,max=1000"`
}

// CreateExchangeRequest предложение обменять свой товар на чужой.
type CreateExchangeRequest struct {
	OfferListingID   int64  `json:"offer_listing_id" binding:"required,gt=0"`
	RequestListingID int64  `json:"request_listing_id" binding:"required,gt=0"`
	Terms            string `json:"terms" binding:"max=500"`
}

// RespondExchangeRequest ответ владельца запрошенного товара.
type RespondExchangeRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

// CreateRechargeRequest заявка на пополнение баланса.
type CreateRechargeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// PenalizeRequest штраф по итогам модерации.
type PenalizeRequest struct {
	Severity string `json:"severity" binding:"required,oneof=light moderate severe report"`
	Reason   string `json:"reason" binding:"required,max=500"`
}
