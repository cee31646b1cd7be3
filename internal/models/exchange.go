package models

import "time"

// ExchangeStatus статус запроса на обмен товарами.
type ExchangeStatus string

const (
	ExchangePending  ExchangeStatus = "pending"
	ExchangeAccepted ExchangeStatus = "accepted"
	ExchangeRejected ExchangeStatus = "rejected"
)

// ExchangeRequest предложение обменять свой товар на товар другого пользователя.
// Id общий с записью abstract_orders типа exchange.
type ExchangeRequest struct {
	ID               int64          `db:"id" json:"id"`
	OfferListingID   int64          `db:"offer_listing_id" json:"offer_listing_id"`
	RequestListingID int64          `db:"request_listing_id" json:"request_listing_id"`
	RequesterID      int64          `db:"requester_id" json:"requester_id"`
	ResponderID      int64          `db:"responder_id" json:"responder_id"`
	Terms            string         `db:"terms" json:"terms"`
	Status           ExchangeStatus `db:"status" json:"status"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// IsParticipant сообщает, участвует ли пользователь в обмене.
func (e *ExchangeRequest) IsParticipant(userID int64) bool {
	return e.RequesterID == userID || e.ResponderID == userID
}
