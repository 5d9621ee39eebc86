package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

func ParseOrderSide(raw string) (OrderSide, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy":
		return OrderSideBuy, nil
	case "sell":
		return OrderSideSell, nil
	default:
		return "", fmt.Errorf("invalid order side: %q", raw)
	}
}

// Order is a standing order read from a venue order book. Type holds the order
// side as published by the venue.
type Order struct {
	ID     *string         `json:"Id"`
	Time   time.Time       `json:"Time"`
	Type   OrderSide       `json:"Type"`
	Kind   string          `json:"Kind"`
	Amount decimal.Decimal `json:"Amount"`
	Price  decimal.Decimal `json:"Price"`
}

func (o Order) GetID() string {
	if o.ID == nil {
		return ""
	}
	return *o.ID
}

// Value is price multiplied by amount.
func (o Order) Value() decimal.Decimal {
	return o.Price.Mul(o.Amount)
}
