package orderbook

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/sirupsen/logrus"
)

const maxLineSize = 64 * 1024 * 1024

var (
	ErrInvalidOrderBookLine = errors.New("invalid order book line")
)

// RawOrderBook is one undecoded order book line.
type RawOrderBook struct {
	VenueName string
	Payload   []byte
}

// FileOrderBookRetriever reads order books from a file where every line holds
// a timestamp followed by an order book document. The timestamp is used as
// the venue name.
type FileOrderBookRetriever struct {
	path string
}

func NewFileOrderBookRetriever(path string) *FileOrderBookRetriever {
	return &FileOrderBookRetriever{path: path}
}

func (r *FileOrderBookRetriever) RetrieveOrderBooks(ctx context.Context, count int) ([]entity.NamedOrderBook, error) {
	raws, err := r.ReadRawOrderBooks(ctx, count)
	if err != nil {
		return nil, err
	}

	books := make([]entity.NamedOrderBook, 0, len(raws))
	for _, raw := range raws {
		book, err := DecodeOrderBook(raw.Payload)
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", raw.VenueName, err)
		}
		books = append(books, entity.NamedOrderBook{VenueName: raw.VenueName, OrderBook: book})
	}

	return books, nil
}

// ReadRawOrderBooks returns the first count order book lines of the file.
// Blank lines are skipped and a file with fewer lines returns what it has.
func (r *FileOrderBookRetriever) ReadRawOrderBooks(ctx context.Context, count int) ([]RawOrderBook, error) {
	if count <= 0 {
		return []RawOrderBook{}, nil
	}

	file, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open order book file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxLineSize)

	var (
		raws    = make([]RawOrderBook, 0, count)
		lineNum = 0
		seen    = make(map[string]struct{}, count)
	)
	for len(raws) < count && scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		idx := bytes.IndexByte(line, '{')
		if idx <= 0 {
			return nil, fmt.Errorf("%w: line %d", ErrInvalidOrderBookLine, lineNum)
		}

		venueName := strings.TrimSpace(string(line[:idx]))
		if venueName == "" {
			return nil, fmt.Errorf("%w: line %d has no timestamp", ErrInvalidOrderBookLine, lineNum)
		}
		if _, ok := seen[venueName]; ok {
			return nil, fmt.Errorf("%w: line %d duplicates venue %s", ErrInvalidOrderBookLine, lineNum, venueName)
		}
		seen[venueName] = struct{}{}

		raws = append(raws, RawOrderBook{
			VenueName: venueName,
			Payload:   bytes.Clone(line[idx:]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read order book file: %w", err)
	}

	if len(raws) < count {
		logrus.WithFields(logrus.Fields{
			"path":      r.path,
			"requested": count,
			"read":      len(raws),
		}).Warn("order book file has fewer order books than requested")
	}

	return raws, nil
}
