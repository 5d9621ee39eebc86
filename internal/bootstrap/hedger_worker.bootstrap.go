package bootstrap

import (
	"context"
	"fmt"

	"github.com/krobus00/meta-exchange/internal/config"
	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/krobus00/meta-exchange/internal/infrastructure"
	"github.com/krobus00/meta-exchange/internal/service/hedger"
	"github.com/krobus00/meta-exchange/internal/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// StartHedgerWorker consumes transaction requests from JetStream and publishes
// the results back to the hedger stream.
func StartHedgerWorker(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := newHedgerRuntime(ctx)
	util.ContinueOrFatal(err)

	guard, closeGuard, err := newRequestGuard()
	util.ContinueOrFatal(err)

	nc, js, err := infrastructure.NewJetstream(config.Env.NatsJetstream)
	util.ContinueOrFatal(err)

	hedgerService := hedger.NewHedgerService(rt.processor, rt.venues, rt.ledger, guard, nil, rt.recorder, js)

	subscribers := make([]entity.Subscriber, 0)
	subscribers = append(subscribers, hedgerService)
	for _, v := range subscribers {
		err = v.JetstreamEventSubscribe(ctx)
		util.ContinueOrFatal(err)
	}

	ops := map[string]operation{
		"order book database": func(ctx context.Context) error {
			return rt.Close()
		},
		"request guard": closeGuard,
		"nats connection": func(ctx context.Context) error {
			cancel()
			return infrastructure.CloseJetstream(nc)
		},
	}

	// health probes and metrics
	if port := config.Env.Port["hedger_worker_http"]; port != "" {
		httpConfig := infrastructure.DefaultHTTPServerConfig()
		httpConfig.Addr = fmt.Sprintf(":%s", port)
		httpConfig.ShutdownTimeout = config.Env.GracefulShutdownTimeout
		httpServer := infrastructure.NewHTTPServerWithConfig(httpConfig, infrastructure.NewHTTPMux(rt.readinessChecks(nc)...))

		go func() {
			err := httpServer.Start()
			if err != nil {
				logrus.Error(err)
			}
		}()

		ops["http"] = func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		}
	}

	logrus.WithField("venues", len(rt.venues)).Info("hedger worker started")

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout, ops)

	<-wait
}
