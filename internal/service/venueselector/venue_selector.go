package venueselector

import (
	"slices"

	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/shopspring/decimal"
)

// FindVenueWithLowestAskCost returns the venue whose asks cost the least in
// total. Venues with a non-positive total are ignored.
func FindVenueWithLowestAskCost(asksByVenue map[string][]entity.Ask) (string, []entity.Ask, bool) {
	venue, ok := findVenue(asksByVenue, func(candidate, best decimal.Decimal) bool {
		return candidate.LessThan(best)
	})
	if !ok {
		return "", nil, false
	}
	return venue, asksByVenue[venue], true
}

// FindVenueWithHighestBidValue returns the venue whose bids are worth the most
// in total. Venues with a non-positive total are ignored.
func FindVenueWithHighestBidValue(bidsByVenue map[string][]entity.Bid) (string, []entity.Bid, bool) {
	venue, ok := findVenue(bidsByVenue, func(candidate, best decimal.Decimal) bool {
		return candidate.GreaterThan(best)
	})
	if !ok {
		return "", nil, false
	}
	return venue, bidsByVenue[venue], true
}

func findVenue[T entity.OrderElement](elementsByVenue map[string][]T, better func(candidate, best decimal.Decimal) bool) (string, bool) {
	venues := make([]string, 0, len(elementsByVenue))
	for venue := range elementsByVenue {
		venues = append(venues, venue)
	}
	slices.Sort(venues)

	var (
		bestVenue string
		bestTotal decimal.Decimal
		found     bool
	)
	for _, venue := range venues {
		total := TotalValue(elementsByVenue[venue])
		if !total.IsPositive() {
			continue
		}
		if !found || better(total, bestTotal) {
			bestVenue, bestTotal, found = venue, total, true
		}
	}

	return bestVenue, found
}

// TotalValue sums amount*price of elements.
func TotalValue[T entity.OrderElement](elements []T) decimal.Decimal {
	total := decimal.Zero
	for _, element := range elements {
		total = total.Add(element.Amount().Mul(element.Price()))
	}
	return total
}
