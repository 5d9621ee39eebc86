package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAsk(amount, price float64) Ask {
	return Ask{Order: Order{Type: OrderSideSell, Amount: decimal.NewFromFloat(amount), Price: decimal.NewFromFloat(price)}}
}

func newBid(amount, price float64) Bid {
	return Bid{Order: Order{Type: OrderSideBuy, Amount: decimal.NewFromFloat(amount), Price: decimal.NewFromFloat(price)}}
}

func TestAsk_Compare(t *testing.T) {
	tests := []struct {
		name     string
		a        Ask
		b        Ask
		expected int
	}{
		{name: "lower price first", a: newAsk(1, 1), b: newAsk(1, 2), expected: -1},
		{name: "higher price last", a: newAsk(5, 3), b: newAsk(1, 2), expected: 1},
		{name: "equal price larger value first", a: newAsk(2, 1), b: newAsk(1, 1), expected: -1},
		{name: "equal price smaller value last", a: newAsk(1, 1), b: newAsk(2, 1), expected: 1},
		{name: "full tie", a: newAsk(1, 1), b: newAsk(1, 1), expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.expected, tt.b.Compare(tt.a))
		})
	}
}

func TestBid_Compare(t *testing.T) {
	tests := []struct {
		name     string
		a        Bid
		b        Bid
		expected int
	}{
		{name: "higher price first", a: newBid(1, 3), b: newBid(1, 1), expected: -1},
		{name: "lower price last", a: newBid(10, 1), b: newBid(0.5, 3), expected: 1},
		{name: "equal price larger value first", a: newBid(10, 3), b: newBid(0.5, 3), expected: -1},
		{name: "full tie", a: newBid(2, 2), b: newBid(2, 2), expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.expected, tt.b.Compare(tt.a))
		})
	}
}

func TestAsk_WithAmountCopiesOrder(t *testing.T) {
	id := "ask-1"
	original := Ask{
		Order:     Order{ID: &id, Type: OrderSideSell, Kind: "Limit", Amount: decimal.NewFromInt(5), Price: decimal.NewFromInt(2)},
		VenueName: "venue-a",
	}

	partial := original.WithAmount(decimal.NewFromInt(1))

	assert.Equal(t, "1", partial.Amount().String())
	assert.Equal(t, "5", original.Amount().String())
	assert.Equal(t, "venue-a", partial.Venue())
	assert.Equal(t, "Limit", partial.Order.Kind)
	require.NotNil(t, partial.Order.ID)
	assert.Equal(t, "ask-1", partial.Order.GetID())

	*partial.Order.ID = "changed"
	assert.Equal(t, "ask-1", original.Order.GetID())
}

func TestVenue_TaggedOrders(t *testing.T) {
	venue := Venue{
		Name: "venue-a",
		OrderBook: OrderBook{
			Asks: []Ask{newAsk(1, 1), newAsk(2, 2)},
			Bids: []Bid{newBid(1, 1)},
		},
	}

	for _, ask := range venue.TaggedAsks() {
		assert.Equal(t, "venue-a", ask.Venue())
	}
	for _, bid := range venue.TaggedBids() {
		assert.Equal(t, "venue-a", bid.Venue())
	}
	assert.Empty(t, venue.OrderBook.Asks[0].VenueName)
}

func TestParseOrderSide(t *testing.T) {
	side, err := ParseOrderSide(" BUY ")
	require.NoError(t, err)
	assert.Equal(t, OrderSideBuy, side)

	side, err = ParseOrderSide("sell")
	require.NoError(t, err)
	assert.Equal(t, OrderSideSell, side)

	_, err = ParseOrderSide("hold")
	assert.Error(t, err)
}
