package orderbook

import (
	"context"
	"fmt"

	"github.com/krobus00/meta-exchange/internal/entity"
)

type SnapshotReader interface {
	GetLatest(ctx context.Context, limit int) ([]entity.OrderBookSnapshot, error)
}

// RepositoryOrderBookRetriever reads order books stored as snapshots in the
// market data database.
type RepositoryOrderBookRetriever struct {
	repo SnapshotReader
}

func NewRepositoryOrderBookRetriever(repo SnapshotReader) *RepositoryOrderBookRetriever {
	return &RepositoryOrderBookRetriever{repo: repo}
}

func (r *RepositoryOrderBookRetriever) RetrieveOrderBooks(ctx context.Context, count int) ([]entity.NamedOrderBook, error) {
	snapshots, err := r.repo.GetLatest(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("get latest order book snapshots: %w", err)
	}

	books := make([]entity.NamedOrderBook, 0, len(snapshots))
	for _, snapshot := range snapshots {
		book, err := DecodeOrderBook(snapshot.Payload)
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", snapshot.VenueName, err)
		}
		if book.AcqTime.IsZero() && snapshot.AcquiredAt.Valid {
			book.AcqTime = snapshot.AcquiredAt.Time
		}
		books = append(books, entity.NamedOrderBook{VenueName: snapshot.VenueName, OrderBook: book})
	}

	return books, nil
}
