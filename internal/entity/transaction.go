package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionRequest struct {
	RequestID string          `json:"request_id,omitempty"`
	Side      OrderSide       `json:"side"`
	Amount    decimal.Decimal `json:"amount"`
}

type TransactionRequestEvent struct {
	RetryCount int                `json:"retry"`
	Data       TransactionRequest `json:"data"`
}

// HedgerTransaction is one order to execute on a venue to realize part of a request.
type HedgerTransaction struct {
	Venue string `json:"venue"`
	Order Order  `json:"order"`
}

type ProcessorResult struct {
	Valid        bool                `json:"valid"`
	Transactions []HedgerTransaction `json:"transactions"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Err          error               `json:"-"`
}

// TotalAmount sums the amount of every hedger transaction.
func (r ProcessorResult) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range r.Transactions {
		total = total.Add(tx.Order.Amount)
	}
	return total
}

// TotalValue sums price*amount of every hedger transaction.
func (r ProcessorResult) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range r.Transactions {
		total = total.Add(tx.Order.Value())
	}
	return total
}

type TransactionResultEvent struct {
	RequestID   string             `json:"request_id"`
	Request     TransactionRequest `json:"request"`
	Result      ProcessorResult    `json:"result"`
	ProcessedAt time.Time          `json:"processed_at"`
}
