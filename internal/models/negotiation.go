package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// NegotiationStatus статус одного раунда торга.
type NegotiationStatus string

const (
	NegotiationWaitingResponse NegotiationStatus = "waiting_response"
	NegotiationCounterOffered  NegotiationStatus = "counter_offered"
	NegotiationAccepted        NegotiationStatus = "accepted"
	NegotiationRejected        NegotiationStatus = "rejected"
)

// IsValid проверяет, что статус входит в допустимый набор.
func (s NegotiationStatus) IsValid() bool {
	switch s {
	case NegotiationWaitingResponse, NegotiationCounterOffered, NegotiationAccepted, NegotiationRejected:
		return true
	}
	return false
}

// NegotiationAction ответ на предложение цены.
type NegotiationAction string

const (
	ActionAccept       NegotiationAction = "accept"
	ActionReject       NegotiationAction = "reject"
	ActionCounterOffer NegotiationAction = "counter_offer"
)

// ErrNegotiationClosed возвращается при попытке ответить на уже закрытый раунд.
var ErrNegotiationClosed = errors.New("negotiation status does not allow a response")

// ErrUnknownNegotiationAction возвращается для неизвестного действия.
var ErrUnknownNegotiationAction = errors.New("unknown negotiation action")

// Resolve вычисляет новый статус раунда для действия.
// Только раунд в WaitingResponse может быть закрыт, остальные статусы конечные.
func (s NegotiationStatus) Resolve(action NegotiationAction) (NegotiationStatus, error) {
	if s != NegotiationWaitingResponse {
		return s, ErrNegotiationClosed
	}
	switch action {
	case ActionAccept:
		return NegotiationAccepted, nil
	case ActionReject:
		return NegotiationRejected, nil
	case ActionCounterOffer:
		return NegotiationCounterOffered, nil
	}
	return s, ErrUnknownNegotiationAction
}

// Negotiation один раунд торга по заказу.
type Negotiation struct {
	ID            int64             `db:"id" json:"id"`
	OrderID       int64             `db:"order_id" json:"order_id"`
	ProposedPrice decimal.Decimal   `db:"proposed_price" json:"proposed_price"`
	Status        NegotiationStatus `db:"status" json:"status"`
	ResponderRole Role              `db:"responder_role" json:"responder_role"`
	ProposerID    int64             `db:"proposer_id" json:"proposer_id"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}
