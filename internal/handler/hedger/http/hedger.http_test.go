package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/meta-exchange/internal/config"
	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/krobus00/meta-exchange/internal/service/hedger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

type mockHedgerService struct {
	mock.Mock
}

func (m *mockHedgerService) ProcessTransaction(ctx context.Context, request entity.TransactionRequest) (*entity.TransactionResultEvent, error) {
	args := m.Called(ctx, request)
	event, _ := args.Get(0).(*entity.TransactionResultEvent)
	return event, args.Error(1)
}

func (m *mockHedgerService) EnqueueTransaction(ctx context.Context, request entity.TransactionRequest) (string, error) {
	args := m.Called(ctx, request)
	return args.String(0), args.Error(1)
}

func (m *mockHedgerService) Venues() []entity.Venue {
	args := m.Called()
	return args.Get(0).([]entity.Venue)
}

func (m *mockHedgerService) Balances() map[string]decimal.Decimal {
	args := m.Called()
	return args.Get(0).(map[string]decimal.Decimal)
}

func (m *mockHedgerService) TransactionResult(ctx context.Context, requestID string) (*entity.TransactionResultRecord, error) {
	args := m.Called(ctx, requestID)
	record, _ := args.Get(0).(*entity.TransactionResultRecord)
	return record, args.Error(1)
}

func setupAPIKeys(t *testing.T) {
	t.Helper()

	previous := config.Env
	config.Env = &config.EnvConfig{
		APIKeys: []config.APIKeyConfig{
			{Name: "desk", Key: testAPIKey, Active: true},
			{Name: "disabled", Key: "inactive-key", Active: false},
			{Name: "old", Key: "expired-key", Active: true, ExpiredAt: "2020-01-01"},
		},
	}
	t.Cleanup(func() { config.Env = previous })
}

func newMux(service HedgerService, stream http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	NewHedgerHTTPHandler(service, stream).Register(mux)
	return mux
}

func doRequest(mux *http.ServeMux, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_ProcessTransaction(t *testing.T) {
	setupAPIKeys(t)

	orderID := "order-1"
	service := new(mockHedgerService)
	service.On("ProcessTransaction", mock.Anything, mock.MatchedBy(func(request entity.TransactionRequest) bool {
		return request.RequestID == "req-1" && request.Side == entity.OrderSideBuy && request.Amount.Equal(decimal.RequireFromString("0.5"))
	})).Return(&entity.TransactionResultEvent{
		RequestID: "req-1",
		Request:   entity.TransactionRequest{RequestID: "req-1", Side: entity.OrderSideBuy, Amount: decimal.RequireFromString("0.5")},
		Result: entity.ProcessorResult{
			Valid: true,
			Transactions: []entity.HedgerTransaction{{
				Venue: "alpha",
				Order: entity.Order{ID: &orderID, Type: entity.OrderSideSell, Kind: "Limit", Amount: decimal.RequireFromString("0.5"), Price: decimal.NewFromInt(3000)},
			}},
		},
		ProcessedAt: time.UnixMilli(1700000000000),
	}, nil)

	rec := doRequest(newMux(service, nil), http.MethodPost, "/meta-exchange/v1/transactions", testAPIKey, TransactionRequest{
		RequestID: "req-1",
		Side:      "buy",
		Amount:    "0.5",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TransactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "Buy", resp.Side)
	assert.True(t, resp.Valid)
	require.Len(t, resp.Transactions, 1)
	assert.Equal(t, "alpha", resp.Transactions[0].Venue)
	require.NotNil(t, resp.Transactions[0].OrderID)
	assert.Equal(t, "order-1", *resp.Transactions[0].OrderID)
	assert.Equal(t, "1500", resp.TotalValue)
	assert.Nil(t, resp.ErrorMessage)
	assert.Equal(t, int64(1700000000000), resp.ProcessedAt)

	service.AssertExpectations(t)
}

func TestHandler_ProcessTransactionInvalidResult(t *testing.T) {
	setupAPIKeys(t)

	service := new(mockHedgerService)
	service.On("ProcessTransaction", mock.Anything, mock.Anything).Return(&entity.TransactionResultEvent{
		RequestID: "req-2",
		Result: entity.ProcessorResult{
			Valid:        false,
			Transactions: []entity.HedgerTransaction{},
			ErrorMessage: "pooled asks could not satisfy the requested amount",
		},
	}, nil)

	rec := doRequest(newMux(service, nil), http.MethodPost, "/meta-exchange/v1/transactions", testAPIKey, TransactionRequest{Side: "Buy", Amount: "100"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp TransactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.Empty(t, resp.Transactions)
	require.NotNil(t, resp.ErrorMessage)
	assert.Equal(t, "pooled asks could not satisfy the requested amount", *resp.ErrorMessage)
}

func TestHandler_ProcessTransactionErrors(t *testing.T) {
	setupAPIKeys(t)

	tests := []struct {
		name         string
		method       string
		apiKey       string
		body         any
		serviceErr   error
		expectedCode int
	}{
		{name: "wrong method", method: http.MethodGet, apiKey: testAPIKey, expectedCode: http.StatusMethodNotAllowed},
		{name: "missing api key", method: http.MethodPost, body: TransactionRequest{Side: "Buy", Amount: "1"}, expectedCode: http.StatusUnauthorized},
		{name: "unknown api key", method: http.MethodPost, apiKey: "nope", body: TransactionRequest{Side: "Buy", Amount: "1"}, expectedCode: http.StatusUnauthorized},
		{name: "inactive api key", method: http.MethodPost, apiKey: "inactive-key", body: TransactionRequest{Side: "Buy", Amount: "1"}, expectedCode: http.StatusUnauthorized},
		{name: "expired api key", method: http.MethodPost, apiKey: "expired-key", body: TransactionRequest{Side: "Buy", Amount: "1"}, expectedCode: http.StatusUnauthorized},
		{name: "missing fields", method: http.MethodPost, apiKey: testAPIKey, body: TransactionRequest{Side: "Buy"}, expectedCode: http.StatusBadRequest},
		{name: "invalid side", method: http.MethodPost, apiKey: testAPIKey, body: TransactionRequest{Side: "Hold", Amount: "1"}, expectedCode: http.StatusBadRequest},
		{name: "invalid amount", method: http.MethodPost, apiKey: testAPIKey, body: TransactionRequest{Side: "Sell", Amount: "one"}, expectedCode: http.StatusBadRequest},
		{name: "duplicate request", method: http.MethodPost, apiKey: testAPIKey, body: TransactionRequest{Side: "Sell", Amount: "1"}, serviceErr: hedger.ErrDuplicateRequest, expectedCode: http.StatusConflict},
		{name: "guard failure", method: http.MethodPost, apiKey: testAPIKey, body: TransactionRequest{Side: "Sell", Amount: "1"}, serviceErr: hedger.ErrRequestGuardFailed, expectedCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mockHedgerService)
			if tt.serviceErr != nil {
				service.On("ProcessTransaction", mock.Anything, mock.Anything).Return(nil, tt.serviceErr)
			}

			rec := doRequest(newMux(service, nil), tt.method, "/meta-exchange/v1/transactions", tt.apiKey, tt.body)
			assert.Equal(t, tt.expectedCode, rec.Code)
			if tt.serviceErr == nil {
				service.AssertNotCalled(t, "ProcessTransaction", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestHandler_ProcessTransactionInvalidJSON(t *testing.T) {
	setupAPIKeys(t)

	req := httptest.NewRequest(http.MethodPost, "/meta-exchange/v1/transactions", bytes.NewBufferString("{"))
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	newMux(new(mockHedgerService), nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ProcessTransactionAsync(t *testing.T) {
	setupAPIKeys(t)

	service := new(mockHedgerService)
	service.On("EnqueueTransaction", mock.Anything, mock.MatchedBy(func(request entity.TransactionRequest) bool {
		return request.Side == entity.OrderSideSell && request.Amount.Equal(decimal.NewFromInt(2))
	})).Return("req-3", nil).Once()
	service.On("EnqueueTransaction", mock.Anything, mock.Anything).Return("", hedger.ErrPublishRequestFailed).Once()

	mux := newMux(service, nil)

	rec := doRequest(mux, http.MethodPost, "/meta-exchange/v1/transactions/async", testAPIKey, TransactionRequest{Side: "sell", Amount: "2"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp TransactionAsyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-3", resp.RequestID)
	assert.Equal(t, "queued", resp.Status)

	rec = doRequest(mux, http.MethodPost, "/meta-exchange/v1/transactions/async", testAPIKey, TransactionRequest{Side: "sell", Amount: "3"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	service.AssertExpectations(t)
}

func TestHandler_GetVenuesAndBalances(t *testing.T) {
	setupAPIKeys(t)

	service := new(mockHedgerService)
	service.On("Venues").Return([]entity.Venue{{
		Name:       "alpha",
		BalanceEur: decimal.NewFromInt(10000),
		BalanceBtc: decimal.NewFromInt(1),
		OrderBook:  entity.OrderBook{Asks: []entity.Ask{{}, {}}, Bids: []entity.Bid{{}}},
	}})
	service.On("Balances").Return(map[string]decimal.Decimal{
		"alpha": decimal.RequireFromString("0.25"),
		"beta":  decimal.NewFromInt(-1),
	})

	mux := newMux(service, nil)

	rec := doRequest(mux, http.MethodGet, "/meta-exchange/v1/venues", testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var venues struct {
		Venues []VenueResponse `json:"venues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &venues))
	require.Len(t, venues.Venues, 1)
	assert.Equal(t, VenueResponse{Name: "alpha", BalanceEur: "10000", BalanceBtc: "1", Bids: 1, Asks: 2}, venues.Venues[0])

	rec = doRequest(mux, http.MethodGet, "/meta-exchange/v1/balances", testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var balances struct {
		Balances map[string]string `json:"balances"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balances))
	assert.Equal(t, map[string]string{"alpha": "0.25", "beta": "-1"}, balances.Balances)

	rec = doRequest(mux, http.MethodPost, "/meta-exchange/v1/balances", testAPIKey, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(mux, http.MethodGet, "/meta-exchange/v1/balances", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_StreamRequiresAPIKey(t *testing.T) {
	setupAPIKeys(t)

	var (
		served bool
		desk   string
	)
	stream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served = true
		desk = deskFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	mux := newMux(new(mockHedgerService), stream)

	rec := doRequest(mux, http.MethodGet, "/meta-exchange/v1/transactions/stream", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, served)

	rec = doRequest(mux, http.MethodGet, "/meta-exchange/v1/transactions/stream?api_key="+testAPIKey, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, served)
	assert.Equal(t, "desk", desk)

	served = false
	rec = doRequest(mux, http.MethodGet, "/meta-exchange/v1/transactions/stream?api_key=expired-key", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, served)
}

func TestHandler_GetTransactionResult(t *testing.T) {
	setupAPIKeys(t)

	service := new(mockHedgerService)
	service.On("TransactionResult", mock.Anything, "req-1").Return(&entity.TransactionResultRecord{
		ID:           "id-1",
		RequestID:    "req-1",
		Side:         entity.OrderSideSell,
		Amount:       decimal.NewFromInt(1),
		Valid:        true,
		Transactions: []byte(`[{"venue":"alpha"}]`),
		TotalAmount:  decimal.NewFromInt(1),
		TotalValue:   decimal.NewFromInt(2900),
		ProcessedAt:  time.UnixMilli(1700000000000),
	}, nil)
	service.On("TransactionResult", mock.Anything, "req-2").Return(nil, hedger.ErrTransactionResultNotFound)
	service.On("TransactionResult", mock.Anything, "req-3").Return(nil, hedger.ErrResultStoreDisabled)

	mux := newMux(service, nil)

	rec := doRequest(mux, http.MethodGet, "/meta-exchange/v1/transaction-results/req-1", testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TransactionResultResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "id-1", resp.ID)
	assert.Equal(t, "Sell", resp.Side)
	assert.Equal(t, "2900", resp.TotalValue)
	assert.JSONEq(t, `[{"venue":"alpha"}]`, string(resp.Transactions))
	assert.Nil(t, resp.ErrorMessage)

	rec = doRequest(mux, http.MethodGet, "/meta-exchange/v1/transaction-results/req-2", testAPIKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(mux, http.MethodGet, "/meta-exchange/v1/transaction-results/req-3", testAPIKey, nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestDeskForKey(t *testing.T) {
	setupAPIKeys(t)
	config.Env.APIKeys = append(config.Env.APIKeys,
		config.APIKeyConfig{Name: "night", Key: "night-key", Active: true, ExpiredAt: "2030-01-02T10:00:00Z"},
		config.APIKeyConfig{Name: "broken", Key: "broken-key", Active: true, ExpiredAt: "soon"},
	)

	now := time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		key     string
		desk    string
		wantErr error
	}{
		{name: "active key", key: testAPIKey, desk: "desk"},
		{name: "not yet expired", key: "night-key", desk: "night"},
		{name: "missing key", key: "", wantErr: errAPIKeyMissing},
		{name: "unknown key", key: "nope", wantErr: errAPIKeyInvalid},
		{name: "inactive key", key: "inactive-key", wantErr: errAPIKeyInactive},
		{name: "expired key", key: "expired-key", wantErr: errAPIKeyExpired},
		{name: "unparsable expiry", key: "broken-key", wantErr: errAPIKeyInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desk, err := deskForKey(tt.key, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.desk, desk)
		})
	}

	_, err := deskForKey("night-key", now.Add(time.Hour))
	assert.ErrorIs(t, err, errAPIKeyExpired)
}

func TestKeyExpiry(t *testing.T) {
	expiry, err := keyExpiry(nil)
	require.NoError(t, err)
	assert.True(t, expiry.IsZero())

	expiry, err = keyExpiry("  ")
	require.NoError(t, err)
	assert.True(t, expiry.IsZero())

	expiry, err = keyExpiry("2030-01-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 3, 0, 0, 0, 0, time.UTC), expiry)

	expiry, err = keyExpiry("2030-01-02T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 2, 8, 0, 0, 0, time.UTC), expiry)

	_, err = keyExpiry(42)
	assert.Error(t, err)
}
