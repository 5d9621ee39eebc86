package selector

import (
	"slices"

	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Element is an order element that can be ranked against its own kind and
// copied with a reduced amount.
type Element[T any] interface {
	entity.OrderElement
	Compare(other T) int
	WithAmount(amount decimal.Decimal) T
}

// CombinationSelector greedily picks the best ranked elements until their
// amounts cover a target. Sell side elements are limited by the base asset
// balance the ledger holds for their venue, and the ledger is reduced by every
// amount taken from them.
type CombinationSelector[T Element[T]] struct {
	ledger entity.BalanceLedger
}

func NewCombinationSelector[T Element[T]](ledger entity.BalanceLedger) *CombinationSelector[T] {
	return &CombinationSelector[T]{ledger: ledger}
}

// Select returns the elements covering target, the last one reduced to the
// remaining amount. It returns false when target is not positive or the
// elements cannot cover it. Ledger reductions made before a shortfall are kept.
func (s *CombinationSelector[T]) Select(target decimal.Decimal, elements []T) ([]T, bool) {
	if !target.IsPositive() || len(elements) == 0 {
		return nil, false
	}

	ranked := slices.Clone(elements)
	slices.SortStableFunc(ranked, func(a, b T) int {
		return a.Compare(b)
	})

	var (
		selected  []T
		remaining = target
	)

	for _, element := range ranked {
		if !remaining.IsPositive() {
			break
		}

		available := element.Amount()
		if element.Side() == entity.OrderSideSell {
			balance := s.ledger.Get(element.Venue())
			if !balance.IsPositive() {
				continue
			}
			available = decimal.Min(available, balance)
		}

		take := decimal.Min(available, remaining)
		if !take.IsPositive() {
			continue
		}

		if element.Side() == entity.OrderSideSell {
			s.ledger.Reduce(element.Venue(), take)
		}

		selected = append(selected, element.WithAmount(take))
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		logrus.WithFields(logrus.Fields{
			"target":    target.String(),
			"remaining": remaining.String(),
		}).Debug("elements could not cover target")
		return nil, false
	}

	return selected, true
}
