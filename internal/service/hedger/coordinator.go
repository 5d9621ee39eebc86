package hedger

import (
	"context"
	"fmt"

	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/sirupsen/logrus"
)

type OrderBookRetriever interface {
	RetrieveOrderBooks(ctx context.Context, count int) ([]entity.NamedOrderBook, error)
}

type VenueCreator interface {
	CreateVenues(books []entity.NamedOrderBook) []entity.Venue
}

type LedgerInitializer interface {
	Initialize(venues []entity.Venue) error
}

type TransactionRequestProcessor interface {
	ProcessTransaction(request entity.TransactionRequest, venues []entity.Venue) entity.ProcessorResult
}

type Presenter interface {
	PresentVenues(venues []entity.Venue)
	PresentRequest(request entity.TransactionRequest)
	PresentResult(result entity.ProcessorResult)
}

// PrepareVenues reads count order books, turns them into venues and seeds the
// ledger with their balances.
func PrepareVenues(ctx context.Context, retriever OrderBookRetriever, creator VenueCreator, initializer LedgerInitializer, count int) ([]entity.Venue, error) {
	books, err := retriever.RetrieveOrderBooks(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieveOrderBooks, err)
	}

	venues := creator.CreateVenues(books)

	err = initializer.Initialize(venues)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedgerNotInitialized, err)
	}

	logrus.WithField("venues", len(venues)).Info("venues prepared")

	return venues, nil
}

// Coordinator runs one hedging session: it prepares the venues once and then
// processes every configured request against them in order.
type Coordinator struct {
	retriever      OrderBookRetriever
	creator        VenueCreator
	initializer    LedgerInitializer
	processor      TransactionRequestProcessor
	presenter      Presenter
	requests       []entity.TransactionRequest
	orderBookCount int
}

func NewCoordinator(
	retriever OrderBookRetriever,
	creator VenueCreator,
	initializer LedgerInitializer,
	processor TransactionRequestProcessor,
	presenter Presenter,
	requests []entity.TransactionRequest,
	orderBookCount int,
) *Coordinator {
	if orderBookCount <= 0 {
		orderBookCount = 1
	}

	return &Coordinator{
		retriever:      retriever,
		creator:        creator,
		initializer:    initializer,
		processor:      processor,
		presenter:      presenter,
		requests:       requests,
		orderBookCount: orderBookCount,
	}
}

// Run returns the results in request order. It stops before the next request
// once ctx is done.
func (c *Coordinator) Run(ctx context.Context) ([]entity.ProcessorResult, error) {
	if len(c.requests) == 0 {
		return nil, ErrNoTransactionRequested
	}

	venues, err := PrepareVenues(ctx, c.retriever, c.creator, c.initializer, c.orderBookCount)
	if err != nil {
		return nil, err
	}
	c.presenter.PresentVenues(venues)

	results := make([]entity.ProcessorResult, 0, len(c.requests))
	for _, request := range c.requests {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		c.presenter.PresentRequest(request)
		result := c.processor.ProcessTransaction(request, venues)
		c.presenter.PresentResult(result)

		results = append(results, result)
	}

	return results, nil
}
