package entity

import (
	"time"

	"github.com/guregu/null/v6"
)

// OrderBookSnapshot is a venue order book stored as its raw JSON document.
type OrderBookSnapshot struct {
	ID         string    `db:"id" json:"id"`
	VenueName  string    `db:"venue_name" json:"venue_name"`
	AcquiredAt null.Time `db:"acquired_at" json:"acquired_at"`
	Payload    []byte    `db:"payload" json:"payload"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

func (OrderBookSnapshot) TableName() string {
	return "order_book_snapshots"
}
