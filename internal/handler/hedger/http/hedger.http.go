package http

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/guregu/null/v6"
	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/krobus00/meta-exchange/internal/service/hedger"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const maxRequestBodyBytes = 1 << 16

type HedgerService interface {
	ProcessTransaction(ctx context.Context, request entity.TransactionRequest) (*entity.TransactionResultEvent, error)
	EnqueueTransaction(ctx context.Context, request entity.TransactionRequest) (string, error)
	Venues() []entity.Venue
	Balances() map[string]decimal.Decimal
	TransactionResult(ctx context.Context, requestID string) (*entity.TransactionResultRecord, error)
}

type TransactionRequest struct {
	ApiKey    string `json:"api_key"`
	RequestID string `json:"request_id"`
	Side      string `json:"side"`
	Amount    string `json:"amount"`
}

type HedgerTransactionResponse struct {
	Venue   string  `json:"venue"`
	OrderID *string `json:"order_id,omitempty"`
	Type    string  `json:"type"`
	Kind    string  `json:"kind"`
	Amount  string  `json:"amount"`
	Price   string  `json:"price"`
}

type TransactionResponse struct {
	RequestID    string                      `json:"request_id"`
	Side         string                      `json:"side"`
	Amount       string                      `json:"amount"`
	Valid        bool                        `json:"valid"`
	Transactions []HedgerTransactionResponse `json:"transactions"`
	TotalAmount  string                      `json:"total_amount"`
	TotalValue   string                      `json:"total_value"`
	ErrorMessage *string                     `json:"error_message,omitempty"`
	ProcessedAt  int64                       `json:"processed_at"`
}

type TransactionResultResponse struct {
	ID           string          `json:"id"`
	RequestID    string          `json:"request_id"`
	Side         string          `json:"side"`
	Amount       string          `json:"amount"`
	Valid        bool            `json:"valid"`
	Transactions json.RawMessage `json:"transactions"`
	TotalAmount  string          `json:"total_amount"`
	TotalValue   string          `json:"total_value"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	ProcessedAt  int64           `json:"processed_at"`
}

type TransactionAsyncResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

type VenueResponse struct {
	Name       string `json:"name"`
	BalanceEur string `json:"balance_eur"`
	BalanceBtc string `json:"balance_btc"`
	Bids       int    `json:"bids"`
	Asks       int    `json:"asks"`
}

type Handler struct {
	hedgerService HedgerService
	stream        http.Handler
}

// NewHedgerHTTPHandler builds the handler. stream serves the transaction result
// websocket and may be nil.
func NewHedgerHTTPHandler(hedgerService HedgerService, stream http.Handler) *Handler {
	return &Handler{
		hedgerService: hedgerService,
		stream:        stream,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/meta-exchange/v1/transactions", h.ProcessTransaction)
	mux.HandleFunc("/meta-exchange/v1/transactions/async", h.ProcessTransactionAsync)
	mux.HandleFunc("/meta-exchange/v1/venues", h.withDesk(http.MethodGet, h.GetVenues))
	mux.HandleFunc("/meta-exchange/v1/balances", h.withDesk(http.MethodGet, h.GetBalances))
	mux.HandleFunc("/meta-exchange/v1/transaction-results/{request_id}", h.withDesk(http.MethodGet, h.GetTransactionResult))
	if h.stream != nil {
		mux.HandleFunc("/meta-exchange/v1/transactions/stream", h.withDesk(http.MethodGet, h.stream.ServeHTTP))
	}
}

func (h *Handler) ProcessTransaction(w http.ResponseWriter, r *http.Request) {
	r, request, ok := h.decodeTransactionRequest(w, r)
	if !ok {
		return
	}

	event, err := h.hedgerService.ProcessTransaction(r.Context(), request)
	if err != nil {
		switch {
		case errors.Is(err, hedger.ErrDuplicateRequest):
			writeJSON(w, http.StatusConflict, map[string]any{"error": "duplicate request"})
		case errors.Is(err, hedger.ErrRequestGuardFailed):
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeJSON(w, http.StatusRequestTimeout, map[string]any{"error": err.Error()})
		default:
			logrus.WithFields(logrus.Fields{
				"desk":       deskFromContext(r.Context()),
				"request_id": request.RequestID,
			}).Errorf("failed to process transaction: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal server error"})
		}
		return
	}

	code := http.StatusOK
	if !event.Result.Valid {
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, mapResultEventToHTTPResponse(event))
}

func (h *Handler) ProcessTransactionAsync(w http.ResponseWriter, r *http.Request) {
	r, request, ok := h.decodeTransactionRequest(w, r)
	if !ok {
		return
	}

	requestID, err := h.hedgerService.EnqueueTransaction(r.Context(), request)
	if err != nil {
		switch {
		case errors.Is(err, hedger.ErrPublishRequestFailed):
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		}
		return
	}

	logrus.WithFields(logrus.Fields{
		"desk":       deskFromContext(r.Context()),
		"request_id": requestID,
	}).Info("transaction request queued")

	writeJSON(w, http.StatusAccepted, TransactionAsyncResponse{
		RequestID: requestID,
		Status:    "queued",
	})
}

func (h *Handler) GetVenues(w http.ResponseWriter, r *http.Request) {
	venues := h.hedgerService.Venues()
	resp := make([]VenueResponse, 0, len(venues))
	for _, venue := range venues {
		resp = append(resp, VenueResponse{
			Name:       venue.Name,
			BalanceEur: venue.BalanceEur.String(),
			BalanceBtc: venue.BalanceBtc.String(),
			Bids:       len(venue.OrderBook.Bids),
			Asks:       len(venue.OrderBook.Asks),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"venues": resp})
}

// GetBalances returns the remaining base asset balance of every venue.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	balances := h.hedgerService.Balances()
	names := make([]string, 0, len(balances))
	for name := range balances {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := make(map[string]string, len(balances))
	for _, name := range names {
		resp[name] = balances[name].String()
	}

	writeJSON(w, http.StatusOK, map[string]any{"balances": resp})
}

func (h *Handler) GetTransactionResult(w http.ResponseWriter, r *http.Request) {
	record, err := h.hedgerService.TransactionResult(r.Context(), r.PathValue("request_id"))
	if err != nil {
		switch {
		case errors.Is(err, hedger.ErrTransactionResultNotFound):
			writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		case errors.Is(err, hedger.ErrResultStoreDisabled):
			writeJSON(w, http.StatusNotImplemented, map[string]any{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, TransactionResultResponse{
		ID:           record.ID,
		RequestID:    record.RequestID,
		Side:         string(record.Side),
		Amount:       record.Amount.String(),
		Valid:        record.Valid,
		Transactions: json.RawMessage(record.Transactions),
		TotalAmount:  record.TotalAmount.String(),
		TotalValue:   record.TotalValue.String(),
		ErrorMessage: record.ErrorMessage.Ptr(),
		ProcessedAt:  record.ProcessedAt.UnixMilli(),
	})
}

// decodeTransactionRequest also accepts the desk key as the api_key body field.
// The returned request carries the desk.
func (h *Handler) decodeTransactionRequest(w http.ResponseWriter, r *http.Request) (*http.Request, entity.TransactionRequest, bool) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return r, entity.TransactionRequest{}, false
	}

	defer r.Body.Close()

	var req TransactionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json body"})
		return r, entity.TransactionRequest{}, false
	}

	r, ok := authenticateDesk(w, r, req.ApiKey)
	if !ok {
		return r, entity.TransactionRequest{}, false
	}

	if strings.TrimSpace(req.Side) == "" || strings.TrimSpace(req.Amount) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing required fields"})
		return r, entity.TransactionRequest{}, false
	}

	request, err := mapHTTPRequestToTransactionRequest(&req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return r, entity.TransactionRequest{}, false
	}

	return r, request, true
}

func mapHTTPRequestToTransactionRequest(req *TransactionRequest) (entity.TransactionRequest, error) {
	side, err := entity.ParseOrderSide(req.Side)
	if err != nil {
		return entity.TransactionRequest{}, err
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return entity.TransactionRequest{}, errors.New("invalid amount")
	}

	return entity.TransactionRequest{
		RequestID: strings.TrimSpace(req.RequestID),
		Side:      side,
		Amount:    amount,
	}, nil
}

func mapResultEventToHTTPResponse(event *entity.TransactionResultEvent) *TransactionResponse {
	transactions := make([]HedgerTransactionResponse, 0, len(event.Result.Transactions))
	for _, tx := range event.Result.Transactions {
		orderID := tx.Order.GetID()
		transactions = append(transactions, HedgerTransactionResponse{
			Venue:   tx.Venue,
			OrderID: null.NewString(orderID, orderID != "").Ptr(),
			Type:    string(tx.Order.Type),
			Kind:    tx.Order.Kind,
			Amount:  tx.Order.Amount.String(),
			Price:   tx.Order.Price.String(),
		})
	}

	return &TransactionResponse{
		RequestID:    event.RequestID,
		Side:         string(event.Request.Side),
		Amount:       event.Request.Amount.String(),
		Valid:        event.Result.Valid,
		Transactions: transactions,
		TotalAmount:  event.Result.TotalAmount().String(),
		TotalValue:   event.Result.TotalValue().String(),
		ErrorMessage: null.NewString(event.Result.ErrorMessage, event.Result.ErrorMessage != "").Ptr(),
		ProcessedAt:  event.ProcessedAt.UnixMilli(),
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
