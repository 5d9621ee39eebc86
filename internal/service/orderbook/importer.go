package orderbook

import (
	"context"
	"fmt"
	"time"

	"github.com/guregu/null/v6"
	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/sirupsen/logrus"
)

type SnapshotWriter interface {
	Create(ctx context.Context, snapshot *entity.OrderBookSnapshot) error
}

// Importer copies order books from a file into the snapshot store so the
// database source can serve them.
type Importer struct {
	file *FileOrderBookRetriever
	repo SnapshotWriter
}

func NewImporter(file *FileOrderBookRetriever, repo SnapshotWriter) *Importer {
	return &Importer{file: file, repo: repo}
}

func (i *Importer) Import(ctx context.Context, count int) (int, error) {
	raws, err := i.file.ReadRawOrderBooks(ctx, count)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, raw := range raws {
		book, err := DecodeOrderBook(raw.Payload)
		if err != nil {
			return imported, fmt.Errorf("venue %s: %w", raw.VenueName, err)
		}

		snapshot := &entity.OrderBookSnapshot{
			VenueName:  raw.VenueName,
			AcquiredAt: null.NewTime(book.AcqTime, !book.AcqTime.IsZero()),
			Payload:    raw.Payload,
			CreatedAt:  time.Now().UTC(),
		}

		err = i.repo.Create(ctx, snapshot)
		if err != nil {
			return imported, fmt.Errorf("create order book snapshot %s: %w", raw.VenueName, err)
		}
		imported++

		logrus.WithFields(logrus.Fields{
			"venue": raw.VenueName,
			"id":    snapshot.ID,
			"bids":  len(book.Bids),
			"asks":  len(book.Asks),
		}).Debug("order book snapshot imported")
	}

	return imported, nil
}
