package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderBook struct {
	AcqTime time.Time `json:"AcqTime"`
	Bids    []Bid     `json:"Bids"`
	Asks    []Ask     `json:"Asks"`
}

// NamedOrderBook is an order book together with the name of the venue it was read for.
type NamedOrderBook struct {
	VenueName string
	OrderBook OrderBook
}

type Venue struct {
	Name       string          `json:"name"`
	OrderBook  OrderBook       `json:"order_book"`
	BalanceEur decimal.Decimal `json:"balance_eur"`
	BalanceBtc decimal.Decimal `json:"balance_btc"`
}

// TaggedAsks returns the venue asks tagged with the venue name.
func (v Venue) TaggedAsks() []Ask {
	asks := make([]Ask, 0, len(v.OrderBook.Asks))
	for _, ask := range v.OrderBook.Asks {
		asks = append(asks, ask.WithVenue(v.Name))
	}
	return asks
}

// TaggedBids returns the venue bids tagged with the venue name.
func (v Venue) TaggedBids() []Bid {
	bids := make([]Bid, 0, len(v.OrderBook.Bids))
	for _, bid := range v.OrderBook.Bids {
		bids = append(bids, bid.WithVenue(v.Name))
	}
	return bids
}

// BalanceLedger tracks the base asset balance that can still be traded on each venue.
type BalanceLedger interface {
	Get(venue string) decimal.Decimal
	Reduce(venue string, amount decimal.Decimal)
}
