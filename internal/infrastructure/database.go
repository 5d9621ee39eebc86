package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/krobus00/meta-exchange/internal/config"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var postgresDefaultRetry = &retryPolicy{
	maxRetry:  3,
	factor:    2.0,
	minJitter: 100 * time.Millisecond,
	maxJitter: 1 * time.Second,
}

var postgresUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "meta_exchange_postgres_up",
	Help: "1 when the last postgres ping succeeded",
}, []string{"database"})

func init() {
	prometheus.MustRegister(postgresUp)
}

type postgresPool struct {
	connectTimeout  time.Duration
	maxIdleConns    int
	maxOpenConns    int
	maxConnLifetime time.Duration
	maxIdleTime     time.Duration
}

func newPostgresPool(cfg config.DatabaseConfig) postgresPool {
	pool := postgresPool{
		connectTimeout:  5 * time.Second,
		maxIdleConns:    10,
		maxOpenConns:    100,
		maxConnLifetime: time.Hour,
		maxIdleTime:     cfg.PingInterval,
	}

	if cfg.PingInterval > 0 {
		pool.connectTimeout = cfg.PingInterval
	}
	if cfg.MaxIdleConns > 0 {
		pool.maxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxActiveConns > 0 {
		pool.maxOpenConns = cfg.MaxActiveConns
	}
	if cfg.MaxConnLifetime > 0 {
		pool.maxConnLifetime = cfg.MaxConnLifetime
	}

	return pool
}

func (p postgresPool) apply(db *sqlx.DB) {
	db.SetMaxIdleConns(p.maxIdleConns)
	db.SetMaxOpenConns(p.maxOpenConns)
	db.SetConnMaxLifetime(p.maxConnLifetime)
	if p.maxIdleTime > 0 {
		db.SetConnMaxIdleTime(p.maxIdleTime)
	}
}

// NewPostgresConnection opens the market data database used for order book
// snapshots and transaction results, retrying with backoff until max_retry.
func NewPostgresConnection(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("database dsn is required")
	}

	pool := newPostgresPool(cfg)
	policy := newRetryPolicy(cfg.MaxRetry, cfg.ReconnectFactor, cfg.MinJitter, cfg.MaxJitter, postgresDefaultRetry)
	logger := logrus.WithField("postgres_dsn", maskDSN(cfg.DSN))

	db, err := connectWithRetry(ctx, policy, logger, func(ctx context.Context) (*sqlx.DB, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, pool.connectTimeout)
		defer cancel()
		return sqlx.ConnectContext(attemptCtx, "postgres", cfg.DSN)
	})
	if err != nil {
		return nil, err
	}

	pool.apply(db)

	logger.WithFields(logrus.Fields{
		"max_idle_conns":    pool.maxIdleConns,
		"max_active_conns":  pool.maxOpenConns,
		"max_conn_lifetime": pool.maxConnLifetime,
	}).Info("postgres connection established")

	return db, nil
}

func connectWithRetry[T any](ctx context.Context, policy *retryPolicy, logger *logrus.Entry, connect func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	for attempt := 0; attempt <= policy.maxRetry; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		conn, err := connect(ctx)
		if err == nil {
			return conn, nil
		}

		lastErr = err
		if attempt == policy.maxRetry {
			break
		}

		wait := policy.delay(attempt)
		logger.WithFields(logrus.Fields{
			"attempt":   attempt + 1,
			"max_retry": policy.maxRetry,
			"retry_in":  wait.String(),
		}).Warnf("connection failed: %v", err)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, fmt.Errorf("connect after %d attempts: %w", policy.maxRetry+1, lastErr)
}

// StartPostgresHealthCheck pings db every interval until ctx is done and
// reports the outcome on meta_exchange_postgres_up.
func StartPostgresHealthCheck(ctx context.Context, name string, db *sqlx.DB, interval time.Duration) {
	if db == nil || interval <= 0 {
		return
	}

	up := postgresUp.WithLabelValues(name)
	up.Set(1)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, interval)
				err := db.PingContext(pingCtx)
				cancel()
				if err != nil {
					up.Set(0)
					logrus.WithField("database", name).Errorf("postgres health check failed: %v", err)
					continue
				}
				up.Set(1)
			}
		}
	}()
}

func maskDSN(dsn string) string {
	idx := strings.Index(dsn, "@")
	if idx == -1 {
		return dsn
	}

	prefix := dsn[:idx]
	credsIdx := strings.LastIndex(prefix, "://")
	if credsIdx == -1 {
		return "***" + dsn[idx:]
	}

	return prefix[:credsIdx+3] + "***" + dsn[idx:]
}
