package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing товар, выставленный пользователем на продажу.
type Listing struct {
	ID        int64           `db:"id" json:"id"`
	OwnerID   int64           `db:"owner_id" json:"owner_id"`
	Title     string          `db:"title" json:"title"`
	BasePrice decimal.Decimal `db:"base_price" json:"base_price"`
	Status    ListingStatus   `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// IsSellable сообщает, можно ли сейчас купить товар.
func (l *Listing) IsSellable() bool {
	return l.Status == ListingStatusOnSale && l.BasePrice.IsPositive()
}
