package infrastructure

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/krobus00/meta-exchange/internal/config"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var natsDefaultRetry = &retryPolicy{
	maxRetry:  10,
	factor:    2.0,
	minJitter: 100 * time.Millisecond,
	maxJitter: 2 * time.Second,
}

var natsConnected = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "meta_exchange_nats_connected",
	Help: "1 while the nats connection used for hedger events is up",
})

func init() {
	prometheus.MustRegister(natsConnected)
}

func natsOptions(policy *retryPolicy) []nats.Option {
	return []nats.Option{
		nats.Name(config.ServiceName),
		nats.Timeout(5 * time.Second),
		nats.DrainTimeout(10 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(policy.maxRetry),
		nats.PingInterval(30 * time.Second),
		nats.MaxPingsOutstanding(3),
		nats.CustomReconnectDelay(policy.delay),
		nats.ConnectHandler(func(conn *nats.Conn) {
			natsConnected.Set(1)
		}),
		nats.DisconnectErrHandler(func(conn *nats.Conn, err error) {
			natsConnected.Set(0)
			logrus.WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			natsConnected.Set(1)
			logrus.WithField("url", conn.ConnectedUrl()).Info("nats reconnected")
		}),
		nats.ClosedHandler(func(conn *nats.Conn) {
			natsConnected.Set(0)
			logrus.WithError(conn.LastError()).Warn("nats connection closed")
		}),
	}
}

// NewJetstream connects to NATS for the hedger request and result subjects.
func NewJetstream(cfg config.NatsJetstreamConfig) (*nats.Conn, nats.JetStreamContext, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, nil, errors.New("nats jetstream url is required")
	}

	policy := newRetryPolicy(cfg.MaxRetries, cfg.ReconnectFactor, cfg.MinJitter, cfg.MaxJitter, natsDefaultRetry)

	nc, err := nats.Connect(cfg.URL, natsOptions(policy)...)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	if nc.IsConnected() {
		natsConnected.Set(1)
	}

	js, err := nc.JetStream(
		nats.PublishAsyncMaxPending(256),
		nats.MaxWait(5*time.Second),
	)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"url":         cfg.URL,
		"max_retries": policy.maxRetry,
	}).Info("nats jetstream connection established")

	return nc, js, nil
}

func CloseJetstream(nc *nats.Conn) error {
	if nc == nil {
		return nil
	}

	if err := nc.Drain(); err != nil {
		nc.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}

	return nil
}
