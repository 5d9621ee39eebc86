package entity

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// TransactionResultRecord is the stored audit row of one processed transaction
// request. Transactions holds the hedger transactions as a JSON array.
type TransactionResultRecord struct {
	ID           string          `db:"id" json:"id"`
	RequestID    string          `db:"request_id" json:"request_id"`
	Side         OrderSide       `db:"side" json:"side"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Valid        bool            `db:"valid" json:"valid"`
	ErrorMessage null.String     `db:"error_message" json:"error_message"`
	Transactions []byte          `db:"transactions" json:"transactions"`
	TotalAmount  decimal.Decimal `db:"total_amount" json:"total_amount"`
	TotalValue   decimal.Decimal `db:"total_value" json:"total_value"`
	ProcessedAt  time.Time       `db:"processed_at" json:"processed_at"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

func (TransactionResultRecord) TableName() string {
	return "transaction_results"
}

func NewTransactionResultRecord(event TransactionResultEvent) (*TransactionResultRecord, error) {
	transactions := event.Result.Transactions
	if transactions == nil {
		transactions = []HedgerTransaction{}
	}

	payload, err := json.Marshal(transactions)
	if err != nil {
		return nil, err
	}

	return &TransactionResultRecord{
		RequestID:    event.RequestID,
		Side:         event.Request.Side,
		Amount:       event.Request.Amount,
		Valid:        event.Result.Valid,
		ErrorMessage: null.NewString(event.Result.ErrorMessage, event.Result.ErrorMessage != ""),
		Transactions: payload,
		TotalAmount:  event.Result.TotalAmount(),
		TotalValue:   event.Result.TotalValue(),
		ProcessedAt:  event.ProcessedAt,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
