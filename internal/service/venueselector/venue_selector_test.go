package venueselector

import (
	"testing"

	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func ask(amount, price float64) entity.Ask {
	return entity.Ask{Order: entity.Order{Type: entity.OrderSideSell, Amount: decimal.NewFromFloat(amount), Price: decimal.NewFromFloat(price)}}
}

func bid(amount, price float64) entity.Bid {
	return entity.Bid{Order: entity.Order{Type: entity.OrderSideBuy, Amount: decimal.NewFromFloat(amount), Price: decimal.NewFromFloat(price)}}
}

func TestFindVenueWithLowestAskCost(t *testing.T) {
	tests := []struct {
		name          string
		input         map[string][]entity.Ask
		expectedVenue string
		expectedOK    bool
	}{
		{name: "empty", input: map[string][]entity.Ask{}, expectedOK: false},
		{
			name: "lowest total wins",
			input: map[string][]entity.Ask{
				"b": {ask(1, 3), ask(1, 1)},
				"a": {ask(2, 3)},
			},
			expectedVenue: "b",
			expectedOK:    true,
		},
		{
			name: "zero total ignored",
			input: map[string][]entity.Ask{
				"a": {},
				"b": {ask(0, 5)},
				"c": {ask(1, 10)},
			},
			expectedVenue: "c",
			expectedOK:    true,
		},
		{
			name: "tie broken by name",
			input: map[string][]entity.Ask{
				"zeta":  {ask(1, 2)},
				"alpha": {ask(2, 1)},
			},
			expectedVenue: "alpha",
			expectedOK:    true,
		},
		{
			name:       "only empty venues",
			input:      map[string][]entity.Ask{"a": nil},
			expectedOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			venue, asks, ok := FindVenueWithLowestAskCost(tt.input)
			assert.Equal(t, tt.expectedOK, ok)
			assert.Equal(t, tt.expectedVenue, venue)
			if ok {
				assert.Equal(t, tt.input[venue], asks)
			}
		})
	}
}

func TestFindVenueWithHighestBidValue(t *testing.T) {
	venue, bids, ok := FindVenueWithHighestBidValue(map[string][]entity.Bid{
		"a": {bid(1, 1)},
		"b": {bid(2, 3), bid(1, 1)},
		"c": {bid(7, 1)},
	})
	assert.True(t, ok)
	assert.Equal(t, "b", venue)
	assert.Len(t, bids, 2)

	venue, _, ok = FindVenueWithHighestBidValue(map[string][]entity.Bid{
		"y": {bid(1, 4)},
		"x": {bid(2, 2)},
	})
	assert.True(t, ok)
	assert.Equal(t, "x", venue)

	_, _, ok = FindVenueWithHighestBidValue(nil)
	assert.False(t, ok)
}

func TestTotalValue(t *testing.T) {
	total := TotalValue([]entity.Ask{ask(1.5, 2), ask(0.5, 4)})
	assert.Equal(t, "5", total.String())
}
