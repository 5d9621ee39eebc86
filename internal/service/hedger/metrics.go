package hedger

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	transactionRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meta_exchange_transaction_requests_total",
		Help: "Total number of processed transaction requests",
	}, []string{"side", "result"})

	hedgerTransactionsPerRequest = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meta_exchange_hedger_transactions_per_request",
		Help:    "Number of hedger transactions produced for a valid transaction request",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	}, []string{"side"})
)

func init() {
	prometheus.MustRegister(transactionRequestsTotal)
	prometheus.MustRegister(hedgerTransactionsPerRequest)
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, ErrNoVenuesEligible):
		return "no_venues_eligible"
	case errors.Is(err, ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	default:
		return "error"
	}
}
