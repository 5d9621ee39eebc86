package orderbook

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/shopspring/decimal"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

type orderRecord struct {
	ID     *string         `json:"Id"`
	Time   string          `json:"Time"`
	Type   string          `json:"Type"`
	Kind   string          `json:"Kind"`
	Amount decimal.Decimal `json:"Amount"`
	Price  decimal.Decimal `json:"Price"`
}

type orderEntry struct {
	Order orderRecord `json:"Order"`
}

type orderBookRecord struct {
	AcqTime string       `json:"AcqTime"`
	Bids    []orderEntry `json:"Bids"`
	Asks    []orderEntry `json:"Asks"`
}

// DecodeOrderBook decodes an order book document. Timestamps without a zone
// are read as UTC.
func DecodeOrderBook(data []byte) (entity.OrderBook, error) {
	var record orderBookRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return entity.OrderBook{}, fmt.Errorf("decode order book: %w", err)
	}

	acqTime, err := parseTime(record.AcqTime)
	if err != nil {
		return entity.OrderBook{}, fmt.Errorf("decode order book AcqTime: %w", err)
	}

	book := entity.OrderBook{
		AcqTime: acqTime,
		Bids:    make([]entity.Bid, 0, len(record.Bids)),
		Asks:    make([]entity.Ask, 0, len(record.Asks)),
	}

	for i, entry := range record.Bids {
		order, err := entry.Order.toOrder()
		if err != nil {
			return entity.OrderBook{}, fmt.Errorf("decode bid %d: %w", i, err)
		}
		book.Bids = append(book.Bids, entity.Bid{Order: order})
	}

	for i, entry := range record.Asks {
		order, err := entry.Order.toOrder()
		if err != nil {
			return entity.OrderBook{}, fmt.Errorf("decode ask %d: %w", i, err)
		}
		book.Asks = append(book.Asks, entity.Ask{Order: order})
	}

	return book, nil
}

func (r orderRecord) toOrder() (entity.Order, error) {
	orderTime, err := parseTime(r.Time)
	if err != nil {
		return entity.Order{}, err
	}

	side, err := entity.ParseOrderSide(r.Type)
	if err != nil {
		return entity.Order{}, err
	}

	return entity.Order{
		ID:     r.ID,
		Time:   orderTime,
		Type:   side,
		Kind:   r.Kind,
		Amount: r.Amount,
		Price:  r.Price,
	}, nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}

	var lastErr error
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			return parsed.UTC(), nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("invalid time %q: %w", raw, lastErr)
}
