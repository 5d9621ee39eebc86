package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/krobus00/meta-exchange/internal/config"
	"github.com/krobus00/meta-exchange/internal/constant"
	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/krobus00/meta-exchange/internal/infrastructure"
	"github.com/krobus00/meta-exchange/internal/repository"
	"github.com/krobus00/meta-exchange/internal/service/hedger"
	"github.com/krobus00/meta-exchange/internal/service/ledger"
	"github.com/krobus00/meta-exchange/internal/service/orderbook"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

type operation func(ctx context.Context) error

// gracefulShutdown waits for termination syscalls and doing clean up operations after received it.
func gracefulShutdown(ctx context.Context, timeout time.Duration, ops map[string]operation) <-chan struct{} {
	wait := make(chan struct{})
	go func() {
		s := make(chan os.Signal, 1)

		// add any other syscalls that you want to be notified with
		signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		<-s

		logrus.Info("shutting down")

		// set timeout for the ops to be done to prevent system hang
		timeoutFunc := time.AfterFunc(timeout, func() {
			logrus.Error(fmt.Sprintf("timeout %d ms has been elapsed, force exit", timeout.Milliseconds()))
			os.Exit(0)
		})

		defer timeoutFunc.Stop()

		var wg sync.WaitGroup

		// Do the operations asynchronously to save time
		for key, op := range ops {
			wg.Add(1)
			go func() {
				defer wg.Done()

				logrus.Info(fmt.Sprintf("cleaning up: %s", key))
				if err := op(ctx); err != nil {
					logrus.Error(fmt.Sprintf("%s: clean up failed: %s", key, err.Error()))
					return
				}

				logrus.Info(fmt.Sprintf("%s was shutdown gracefully", key))
			}()
		}

		wg.Wait()

		close(wait)
	}()

	return wait
}

// hedgerRuntime is everything a process needs to serve transaction requests
// against the venues loaded at startup.
type hedgerRuntime struct {
	venues    []entity.Venue
	ledger    *ledger.BalanceLedger
	processor *hedger.TransactionProcessor
	recorder  hedger.ResultRecorder
	db        *sqlx.DB
}

func (r *hedgerRuntime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// newHedgerRuntime loads the order books from the configured source, creates
// the venues and seeds a fresh ledger.
func newHedgerRuntime(ctx context.Context) (*hedgerRuntime, error) {
	rt := &hedgerRuntime{ledger: ledger.NewBalanceLedger()}

	retriever, err := rt.newOrderBookRetriever(ctx)
	if err != nil {
		return nil, err
	}

	if config.Env.Hedger.RecordResults {
		db, err := rt.marketDataDB(ctx)
		if err != nil {
			return nil, err
		}
		rt.recorder = repository.NewTransactionResultRepository(db)
	}

	rt.processor = newTransactionProcessor(rt.ledger)
	rt.venues, err = hedger.PrepareVenues(ctx, retriever, newVenueCreator(), rt.ledger, config.Env.OrderBook.NumberToRead)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	return rt, nil
}

func (r *hedgerRuntime) newOrderBookRetriever(ctx context.Context) (hedger.OrderBookRetriever, error) {
	switch config.Env.OrderBook.Source {
	case constant.OrderBookSourceDatabase:
		db, err := r.marketDataDB(ctx)
		if err != nil {
			return nil, err
		}

		return orderbook.NewRepositoryOrderBookRetriever(repository.NewOrderBookSnapshotRepository(db)), nil
	case constant.OrderBookSourceFile, "":
		return orderbook.NewFileOrderBookRetriever(config.Env.OrderBook.FilePath), nil
	default:
		return nil, fmt.Errorf("unknown order book source: %q", config.Env.OrderBook.Source)
	}
}

// marketDataDB opens the market data connection once and shares it.
func (r *hedgerRuntime) marketDataDB(ctx context.Context) (*sqlx.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	dbConfig := config.Env.Database[constant.MarketDataDatabaseName]
	db, err := infrastructure.NewPostgresConnection(ctx, dbConfig)
	if err != nil {
		return nil, err
	}
	r.db = db

	infrastructure.StartPostgresHealthCheck(ctx, constant.MarketDataDatabaseName, db, dbConfig.PingInterval)

	return db, nil
}

// readinessChecks covers the connections a hedger process cannot serve without.
func (r *hedgerRuntime) readinessChecks(nc *nats.Conn) []infrastructure.ReadinessCheck {
	checks := make([]infrastructure.ReadinessCheck, 0, 2)
	if r.db != nil {
		checks = append(checks, infrastructure.ReadinessCheck{Name: "postgres", Check: r.db.PingContext})
	}
	if nc != nil {
		checks = append(checks, infrastructure.ReadinessCheck{Name: "nats", Check: func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("nats status %s", nc.Status())
			}
			return nil
		}})
	}

	return checks
}

func newVenueCreator() *orderbook.VenueCreator {
	venueConfig := config.Env.Venue

	overrides := make(map[string]orderbook.VenueBalance, len(venueConfig.Balances))
	for name, balance := range venueConfig.Balances {
		overrides[name] = orderbook.VenueBalance{Eur: balance.BalanceEur, Btc: balance.BalanceBtc}
	}

	return orderbook.NewVenueCreator(orderbook.VenueBalance{
		Eur: venueConfig.DefaultBalanceEur,
		Btc: venueConfig.DefaultBalanceBtc,
	}, overrides)
}

func newTransactionProcessor(l hedger.Ledger) *hedger.TransactionProcessor {
	return hedger.NewTransactionProcessor(l, hedger.ProcessorConfig{
		Strategy:          config.Env.Hedger.Strategy,
		RollbackOnFailure: config.Env.Ledger.RollbackOnFailure,
	})
}

func transactionRequestsFromConfig(requests []config.TransactionRequestConfig) ([]entity.TransactionRequest, error) {
	result := make([]entity.TransactionRequest, 0, len(requests))
	for idx, request := range requests {
		side, err := entity.ParseOrderSide(request.Side)
		if err != nil {
			return nil, fmt.Errorf("transaction_requests[%d]: %w", idx, err)
		}

		result = append(result, entity.TransactionRequest{
			RequestID: fmt.Sprintf("config-%d", idx+1),
			Side:      side,
			Amount:    request.Amount,
		})
	}

	return result, nil
}

// newRequestGuard returns nil when no cache redis is configured, which turns
// request de-duplication off.
func newRequestGuard() (hedger.RequestGuard, func(ctx context.Context) error, error) {
	redisConfig, ok := config.Env.Redis["cache"]
	if !ok || strings.TrimSpace(redisConfig.CacheDSN) == "" {
		logrus.Warn("redis cache is not configured, transaction request de-duplication is disabled")
		return nil, func(context.Context) error { return nil }, nil
	}

	client, err := hedger.NewRedisClient(redisConfig.CacheDSN)
	if err != nil {
		return nil, nil, err
	}

	hostname, _ := os.Hostname()
	guard := hedger.NewRedisRequestGuard(client, config.Env.RequestGuardTTL, fmt.Sprintf("%s@%s", config.ServiceName, hostname))

	return guard, func(context.Context) error { return client.Close() }, nil
}
