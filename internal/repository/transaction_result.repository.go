package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/krobus00/meta-exchange/internal/entity"
)

type TransactionResultRepository struct {
	db *sqlx.DB
}

func NewTransactionResultRepository(db *sqlx.DB) *TransactionResultRepository {
	return &TransactionResultRepository{db: db}
}

// Create stores record. A request id that is already stored keeps its first
// result and the existing id is returned.
func (r *TransactionResultRepository) Create(ctx context.Context, record *entity.TransactionResultRecord) error {
	query, args, err := buildCreateTransactionResultQuery(record)
	if err != nil {
		return err
	}

	var id string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err != nil {
		return err
	}

	record.ID = id

	return nil
}

func (r *TransactionResultRepository) GetByRequestID(ctx context.Context, requestID string) (*entity.TransactionResultRecord, error) {
	query, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("*").
		From(entity.TransactionResultRecord{}.TableName()).
		Where(sq.Eq{"request_id": requestID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var record entity.TransactionResultRecord
	err = r.db.GetContext(ctx, &record, query, args...)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func buildCreateTransactionResultQuery(record *entity.TransactionResultRecord) (string, []any, error) {
	return sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(record.TableName()).
		Columns(
			"request_id",
			"side",
			"amount",
			"valid",
			"error_message",
			"transactions",
			"total_amount",
			"total_value",
			"processed_at",
			"created_at",
		).
		Values(
			record.RequestID,
			record.Side,
			record.Amount,
			record.Valid,
			record.ErrorMessage,
			record.Transactions,
			record.TotalAmount,
			record.TotalValue,
			record.ProcessedAt,
			record.CreatedAt,
		).
		Suffix(`ON CONFLICT (request_id)
DO UPDATE SET request_id = EXCLUDED.request_id
RETURNING id`).
		ToSql()
}
