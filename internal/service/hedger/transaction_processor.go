package hedger

import (
	"fmt"
	"sync"

	"github.com/krobus00/meta-exchange/internal/constant"
	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/krobus00/meta-exchange/internal/service/selector"
	"github.com/krobus00/meta-exchange/internal/service/venueselector"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Ledger is the balance ledger consumed by the processor. Snapshot and Restore
// make a failed selection atomic.
type Ledger interface {
	entity.BalanceLedger
	Snapshot() map[string]decimal.Decimal
	Restore(snapshot map[string]decimal.Decimal)
}

type ProcessorConfig struct {
	Strategy          string
	RollbackOnFailure bool
}

type TransactionProcessor struct {
	mu          sync.Mutex
	ledger      Ledger
	askSelector *selector.CombinationSelector[entity.Ask]
	bidSelector *selector.CombinationSelector[entity.Bid]
	cfg         ProcessorConfig
}

func NewTransactionProcessor(ledger Ledger, cfg ProcessorConfig) *TransactionProcessor {
	if cfg.Strategy == "" {
		cfg.Strategy = constant.HedgerStrategyPooled
	}

	return &TransactionProcessor{
		ledger:      ledger,
		askSelector: selector.NewCombinationSelector[entity.Ask](ledger),
		bidSelector: selector.NewCombinationSelector[entity.Bid](ledger),
		cfg:         cfg,
	}
}

// ProcessTransaction decides which venue orders fill request. Buy requests are
// filled from asks and sell requests from bids. Failures are reported through
// the returned result, never as a panic, except for a ledger that does not know
// one of the venues.
func (p *TransactionProcessor) ProcessTransaction(request entity.TransactionRequest, venues []entity.Venue) (result entity.ProcessorResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger := logrus.WithFields(logrus.Fields{
		"request_id": request.RequestID,
		"side":       request.Side,
		"amount":     request.Amount.String(),
		"strategy":   p.cfg.Strategy,
	})

	defer func() {
		observeResult(request.Side, result)
		if !result.Valid {
			logger.WithField("reason", result.ErrorMessage).Info("transaction request rejected")
			return
		}
		logger.WithField("transactions", len(result.Transactions)).Info("transaction request processed")
	}()

	if !request.Amount.IsPositive() {
		return invalidResult(ErrInvalidAmount, ErrInvalidAmount.Error())
	}

	if len(venues) == 0 {
		return invalidResult(ErrNoVenuesEligible, "no venues exist")
	}

	switch request.Side {
	case entity.OrderSideBuy:
		asksByVenue := make(map[string][]entity.Ask, len(venues))
		for _, venue := range venues {
			if asks := venue.TaggedAsks(); len(asks) > 0 {
				asksByVenue[venue.Name] = asks
			}
		}
		if len(asksByVenue) == 0 {
			return invalidResult(ErrNoVenuesEligible, "no venues with non-empty ask list exist")
		}

		selected, ok := selectElements(p, request.Amount, venues, asksByVenue, p.askSelector, venueselector.FindVenueWithLowestAskCost)
		if !ok {
			return invalidResult(ErrInsufficientLiquidity, p.insufficientMessage("asks"))
		}
		return validResult(selected)
	case entity.OrderSideSell:
		bidsByVenue := make(map[string][]entity.Bid, len(venues))
		for _, venue := range venues {
			if bids := venue.TaggedBids(); len(bids) > 0 {
				bidsByVenue[venue.Name] = bids
			}
		}
		if len(bidsByVenue) == 0 {
			return invalidResult(ErrNoVenuesEligible, "no venues with non-empty bid list exist")
		}

		selected, ok := selectElements(p, request.Amount, venues, bidsByVenue, p.bidSelector, venueselector.FindVenueWithHighestBidValue)
		if !ok {
			return invalidResult(ErrInsufficientLiquidity, p.insufficientMessage("bids"))
		}
		return validResult(selected)
	default:
		return invalidResult(ErrInvalidSide, fmt.Sprintf("%s: %q", ErrInvalidSide.Error(), request.Side))
	}
}

func (p *TransactionProcessor) insufficientMessage(elements string) string {
	if p.cfg.Strategy == constant.HedgerStrategySingleVenue {
		return fmt.Sprintf("no single venue %s could satisfy the requested amount", elements)
	}
	return fmt.Sprintf("pooled %s could not satisfy the requested amount", elements)
}

func selectElements[T selector.Element[T]](
	p *TransactionProcessor,
	amount decimal.Decimal,
	venues []entity.Venue,
	byVenue map[string][]T,
	sel *selector.CombinationSelector[T],
	pick func(map[string][]T) (string, []T, bool),
) ([]entity.OrderElement, bool) {
	snapshot := p.ledger.Snapshot()

	var (
		selected []entity.OrderElement
		ok       bool
	)
	if p.cfg.Strategy == constant.HedgerStrategySingleVenue {
		selected, ok = selectSingleVenue(p.ledger, snapshot, amount, byVenue, sel, pick)
	} else {
		selected, ok = selectPooled(amount, venues, byVenue, sel)
	}

	if !ok && p.cfg.RollbackOnFailure {
		p.ledger.Restore(snapshot)
	}

	return selected, ok
}

// selectPooled pools the elements of every venue in venue order and lets the
// selector pick across all of them.
func selectPooled[T selector.Element[T]](
	amount decimal.Decimal,
	venues []entity.Venue,
	byVenue map[string][]T,
	sel *selector.CombinationSelector[T],
) ([]entity.OrderElement, bool) {
	pooled := make([]T, 0)
	for _, venue := range venues {
		pooled = append(pooled, byVenue[venue.Name]...)
	}

	selected, ok := sel.Select(amount, pooled)
	if !ok || len(selected) == 0 {
		return nil, false
	}
	return toOrderElements(selected), true
}

// selectSingleVenue tries every venue alone, picks the cheapest fill for asks
// or the most valuable fill for bids and commits only that venue selection.
func selectSingleVenue[T selector.Element[T]](
	ledger Ledger,
	snapshot map[string]decimal.Decimal,
	amount decimal.Decimal,
	byVenue map[string][]T,
	sel *selector.CombinationSelector[T],
	pick func(map[string][]T) (string, []T, bool),
) ([]entity.OrderElement, bool) {
	candidates := make(map[string][]T, len(byVenue))
	for venue, elements := range byVenue {
		selected, ok := sel.Select(amount, elements)
		ledger.Restore(snapshot)
		if ok && len(selected) > 0 {
			candidates[venue] = selected
		}
	}

	venue, _, ok := pick(candidates)
	if !ok {
		return nil, false
	}

	selected, ok := sel.Select(amount, byVenue[venue])
	if !ok || len(selected) == 0 {
		return nil, false
	}
	return toOrderElements(selected), true
}

func toOrderElements[T entity.OrderElement](elements []T) []entity.OrderElement {
	result := make([]entity.OrderElement, 0, len(elements))
	for _, element := range elements {
		result = append(result, element)
	}
	return result
}

func validResult(selected []entity.OrderElement) entity.ProcessorResult {
	transactions := make([]entity.HedgerTransaction, 0, len(selected))
	for _, element := range selected {
		transactions = append(transactions, entity.HedgerTransaction{
			Venue: element.Venue(),
			Order: element.GetOrder(),
		})
	}

	return entity.ProcessorResult{
		Valid:        true,
		Transactions: transactions,
	}
}

func invalidResult(err error, message string) entity.ProcessorResult {
	return entity.ProcessorResult{
		Valid:        false,
		Transactions: []entity.HedgerTransaction{},
		ErrorMessage: message,
		Err:          err,
	}
}

func observeResult(side entity.OrderSide, result entity.ProcessorResult) {
	sideLabel := string(side)
	if side != entity.OrderSideBuy && side != entity.OrderSideSell {
		sideLabel = "unknown"
	}

	resultLabel := "valid"
	if !result.Valid {
		resultLabel = errorLabel(result.Err)
	}

	transactionRequestsTotal.WithLabelValues(sideLabel, resultLabel).Inc()
	if result.Valid {
		hedgerTransactionsPerRequest.WithLabelValues(sideLabel).Observe(float64(len(result.Transactions)))
	}
}
