package hedger

import (
	"context"
	"errors"
	"testing"

	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/krobus00/meta-exchange/internal/service/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	books     []entity.NamedOrderBook
	err       error
	requested int
}

func (f *fakeRetriever) RetrieveOrderBooks(_ context.Context, count int) ([]entity.NamedOrderBook, error) {
	f.requested = count
	return f.books, f.err
}

type fakeVenueCreator struct{}

func (fakeVenueCreator) CreateVenues(books []entity.NamedOrderBook) []entity.Venue {
	venues := make([]entity.Venue, 0, len(books))
	for _, book := range books {
		venues = append(venues, entity.Venue{Name: book.VenueName, OrderBook: book.OrderBook, BalanceBtc: dec(1)})
	}
	return venues
}

type recordingPresenter struct {
	venues   []entity.Venue
	requests []entity.TransactionRequest
	results  []entity.ProcessorResult
}

func (p *recordingPresenter) PresentVenues(venues []entity.Venue) {
	p.venues = venues
}

func (p *recordingPresenter) PresentRequest(request entity.TransactionRequest) {
	p.requests = append(p.requests, request)
}

func (p *recordingPresenter) PresentResult(result entity.ProcessorResult) {
	p.results = append(p.results, result)
}

func TestCoordinator_Run(t *testing.T) {
	retriever := &fakeRetriever{books: []entity.NamedOrderBook{
		{VenueName: "alpha", OrderBook: entity.OrderBook{Asks: []entity.Ask{ask(2, 3000)}, Bids: []entity.Bid{bid(1, 2990)}}},
		{VenueName: "beta", OrderBook: entity.OrderBook{Asks: []entity.Ask{ask(1, 3010)}}},
	}}
	l := ledger.NewBalanceLedger()
	presenter := &recordingPresenter{}
	requests := []entity.TransactionRequest{
		request(entity.OrderSideBuy, 1.5),
		request(entity.OrderSideSell, 0.5),
		request(entity.OrderSideBuy, 0),
	}

	c := NewCoordinator(retriever, fakeVenueCreator{}, l, NewTransactionProcessor(l, ProcessorConfig{RollbackOnFailure: true}), presenter, requests, 2)

	results, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, retriever.requested)

	require.Len(t, presenter.venues, 2)
	assert.Equal(t, requests, presenter.requests)
	require.Len(t, results, 3)
	assert.Equal(t, results, presenter.results)

	assert.True(t, results[0].Valid)
	require.Len(t, results[0].Transactions, 2)
	assert.Equal(t, "alpha", results[0].Transactions[0].Venue)
	assert.Equal(t, "1", results[0].Transactions[0].Order.Amount.String())
	assert.Equal(t, "beta", results[0].Transactions[1].Venue)
	assert.Equal(t, "0.5", results[0].Transactions[1].Order.Amount.String())

	assert.True(t, results[1].Valid)
	assert.False(t, results[2].Valid)
	assert.ErrorIs(t, results[2].Err, ErrInvalidAmount)

	assert.True(t, l.Get("alpha").IsZero())
	assert.Equal(t, "0.5", l.Get("beta").String())
}

func TestCoordinator_RunErrors(t *testing.T) {
	t.Run("no requests", func(t *testing.T) {
		c := NewCoordinator(&fakeRetriever{}, fakeVenueCreator{}, ledger.NewBalanceLedger(), nil, &recordingPresenter{}, nil, 1)

		_, err := c.Run(context.Background())
		assert.ErrorIs(t, err, ErrNoTransactionRequested)
	})

	t.Run("retriever failure", func(t *testing.T) {
		retriever := &fakeRetriever{err: errors.New("file not found")}
		c := NewCoordinator(retriever, fakeVenueCreator{}, ledger.NewBalanceLedger(), nil, &recordingPresenter{}, []entity.TransactionRequest{request(entity.OrderSideBuy, 1)}, 0)

		_, err := c.Run(context.Background())
		assert.ErrorIs(t, err, ErrRetrieveOrderBooks)
		assert.Equal(t, 1, retriever.requested)
	})

	t.Run("ledger already initialized", func(t *testing.T) {
		l := ledger.NewBalanceLedger()
		require.NoError(t, l.Initialize(nil))

		c := NewCoordinator(&fakeRetriever{}, fakeVenueCreator{}, l, nil, &recordingPresenter{}, []entity.TransactionRequest{request(entity.OrderSideBuy, 1)}, 1)

		_, err := c.Run(context.Background())
		assert.ErrorIs(t, err, ErrLedgerNotInitialized)
		assert.ErrorIs(t, err, ledger.ErrLedgerAlreadyInitialized)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		l := ledger.NewBalanceLedger()
		presenter := &recordingPresenter{}
		c := NewCoordinator(&fakeRetriever{}, fakeVenueCreator{}, l, NewTransactionProcessor(l, ProcessorConfig{}), presenter, []entity.TransactionRequest{request(entity.OrderSideBuy, 1)}, 1)

		results, err := c.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, results)
		assert.Empty(t, presenter.requests)
	})
}
