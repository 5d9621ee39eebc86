package orderbook

import (
	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/shopspring/decimal"
)

type VenueBalance struct {
	Eur decimal.Decimal
	Btc decimal.Decimal
}

// VenueCreator turns named order books into venues holding the configured
// balances.
type VenueCreator struct {
	defaults  VenueBalance
	overrides map[string]VenueBalance
}

func NewVenueCreator(defaults VenueBalance, overrides map[string]VenueBalance) *VenueCreator {
	return &VenueCreator{
		defaults:  defaults,
		overrides: overrides,
	}
}

func (c *VenueCreator) CreateVenues(books []entity.NamedOrderBook) []entity.Venue {
	venues := make([]entity.Venue, 0, len(books))
	for _, book := range books {
		balance := c.defaults
		if override, ok := c.overrides[book.VenueName]; ok {
			balance = override
		}

		venues = append(venues, entity.Venue{
			Name:       book.VenueName,
			OrderBook:  book.OrderBook,
			BalanceEur: balance.Eur,
			BalanceBtc: balance.Btc,
		})
	}
	return venues
}
