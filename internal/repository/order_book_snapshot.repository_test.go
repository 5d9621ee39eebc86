package repository

import (
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCreateOrderBookSnapshotQuery(t *testing.T) {
	now := time.Date(2019, 1, 29, 11, 59, 59, 0, time.UTC)
	snapshot := &entity.OrderBookSnapshot{
		VenueName:  "1548759600.25189",
		AcquiredAt: null.TimeFrom(now),
		Payload:    []byte(`{"Bids":[],"Asks":[]}`),
		CreatedAt:  now,
	}

	query, args, err := buildCreateOrderBookSnapshotQuery(snapshot)
	require.NoError(t, err)

	assert.Contains(t, query, "INSERT INTO order_book_snapshots (venue_name,acquired_at,payload,created_at) VALUES ($1,$2,$3,$4)")
	assert.Contains(t, query, "ON CONFLICT (venue_name)")
	assert.Contains(t, query, "RETURNING id")
	require.Len(t, args, 4)
	assert.Equal(t, "1548759600.25189", args[0])
}

func TestBuildGetLatestOrderBookSnapshotsQuery(t *testing.T) {
	query, args, err := buildGetLatestOrderBookSnapshotsQuery(3)
	require.NoError(t, err)

	assert.Contains(t, query, "FROM order_book_snapshots ORDER BY created_at desc, venue_name asc LIMIT 3")
	assert.Contains(t, query, "AS latest ORDER BY created_at asc, venue_name asc")
	assert.Empty(t, args)
}
