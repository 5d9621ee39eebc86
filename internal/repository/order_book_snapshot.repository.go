package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/krobus00/meta-exchange/internal/entity"
)

type OrderBookSnapshotRepository struct {
	db *sqlx.DB
}

func NewOrderBookSnapshotRepository(db *sqlx.DB) *OrderBookSnapshotRepository {
	return &OrderBookSnapshotRepository{db: db}
}

func (r *OrderBookSnapshotRepository) Create(ctx context.Context, snapshot *entity.OrderBookSnapshot) error {
	query, args, err := buildCreateOrderBookSnapshotQuery(snapshot)
	if err != nil {
		return err
	}

	var id string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err != nil {
		return err
	}

	snapshot.ID = id

	return nil
}

// GetLatest returns the most recently acquired snapshot of at most limit
// venues, oldest first.
func (r *OrderBookSnapshotRepository) GetLatest(ctx context.Context, limit int) ([]entity.OrderBookSnapshot, error) {
	if limit <= 0 {
		return []entity.OrderBookSnapshot{}, nil
	}

	query, args, err := buildGetLatestOrderBookSnapshotsQuery(limit)
	if err != nil {
		return nil, err
	}

	var snapshots []entity.OrderBookSnapshot
	err = r.db.SelectContext(ctx, &snapshots, query, args...)
	if err != nil {
		return nil, err
	}

	return snapshots, nil
}

func buildCreateOrderBookSnapshotQuery(snapshot *entity.OrderBookSnapshot) (string, []any, error) {
	return sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(snapshot.TableName()).
		Columns(
			"venue_name",
			"acquired_at",
			"payload",
			"created_at",
		).
		Values(
			snapshot.VenueName,
			snapshot.AcquiredAt,
			snapshot.Payload,
			snapshot.CreatedAt,
		).
		Suffix(`ON CONFLICT (venue_name)
DO UPDATE SET
	acquired_at = EXCLUDED.acquired_at,
	payload = EXCLUDED.payload,
	created_at = EXCLUDED.created_at
RETURNING id`).
		ToSql()
}

func buildGetLatestOrderBookSnapshotsQuery(limit int) (string, []any, error) {
	latest := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("id", "venue_name", "acquired_at", "payload", "created_at").
		From(entity.OrderBookSnapshot{}.TableName()).
		OrderBy("created_at desc", "venue_name asc").
		Limit(uint64(limit))

	return sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("*").
		FromSelect(latest, "latest").
		OrderBy("created_at asc", "venue_name asc").
		ToSql()
}
