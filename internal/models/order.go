package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const AmountPlaces = 2

type Order struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CustomerID uint            `gorm:"index;not null" json:"customer"`
	Item       string          `gorm:"size:200;not null" json:"item"`
	Amount     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Time       time.Time       `gorm:"index;not null" json:"time"`
}

// AmountString renders the amount the way the column stores it, "50.00".
func (o Order) AmountString() string {
	return FormatAmount(o.Amount)
}

func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountPlaces)
}
