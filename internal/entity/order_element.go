package entity

import "github.com/shopspring/decimal"

// OrderElement is an order tagged with the venue it was published on.
type OrderElement interface {
	GetOrder() Order
	Venue() string
	Side() OrderSide
	Amount() decimal.Decimal
	Price() decimal.Decimal
}

var (
	_ OrderElement = Ask{}
	_ OrderElement = Bid{}
)

type Ask struct {
	Order     Order  `json:"Order"`
	VenueName string `json:"Venue,omitempty"`
}

func (a Ask) GetOrder() Order { return a.Order }
func (a Ask) Venue() string { return a.VenueName }
func (a Ask) Side() OrderSide { return a.Order.Type }
func (a Ask) Amount() decimal.Decimal { return a.Order.Amount }
func (a Ask) Price() decimal.Decimal { return a.Order.Price }

// Compare ranks asks cheapest first. On equal price the ask with the larger
// price*amount comes first so a request is filled with fewer transactions.
func (a Ask) Compare(other Ask) int {
	if c := a.Order.Price.Cmp(other.Order.Price); c != 0 {
		return c
	}
	return other.Order.Value().Cmp(a.Order.Value())
}

// WithAmount returns a copy of the ask carrying amount.
func (a Ask) WithAmount(amount decimal.Decimal) Ask {
	a.Order = partialOrder(a.Order, amount)
	return a
}

func (a Ask) WithVenue(venue string) Ask {
	a.VenueName = venue
	return a
}

type Bid struct {
	Order     Order  `json:"Order"`
	VenueName string `json:"Venue,omitempty"`
}

func (b Bid) GetOrder() Order { return b.Order }
func (b Bid) Venue() string { return b.VenueName }
func (b Bid) Side() OrderSide { return b.Order.Type }
func (b Bid) Amount() decimal.Decimal { return b.Order.Amount }
func (b Bid) Price() decimal.Decimal { return b.Order.Price }

// Compare ranks bids highest price first, with the same larger price*amount
// preference as asks on equal price.
func (b Bid) Compare(other Bid) int {
	if c := other.Order.Price.Cmp(b.Order.Price); c != 0 {
		return c
	}
	return other.Order.Value().Cmp(b.Order.Value())
}

func (b Bid) WithAmount(amount decimal.Decimal) Bid {
	b.Order = partialOrder(b.Order, amount)
	return b
}

func (b Bid) WithVenue(venue string) Bid {
	b.VenueName = venue
	return b
}

func partialOrder(order Order, amount decimal.Decimal) Order {
	partial := Order{
		Time:   order.Time,
		Type:   order.Type,
		Kind:   order.Kind,
		Amount: amount,
		Price:  order.Price,
	}
	if order.ID != nil {
		id := *order.ID
		partial.ID = &id
	}
	return partial
}
