package bootstrap

import (
	"context"
	"fmt"
	"net"

	"github.com/krobus00/meta-exchange/internal/config"
	"github.com/krobus00/meta-exchange/internal/constant"
	"github.com/krobus00/meta-exchange/internal/entity"
	grpcHandler "github.com/krobus00/meta-exchange/internal/handler/hedger/grpc"
	httpHandler "github.com/krobus00/meta-exchange/internal/handler/hedger/http"
	"github.com/krobus00/meta-exchange/internal/infrastructure"
	"github.com/krobus00/meta-exchange/internal/service/hedger"
	"github.com/krobus00/meta-exchange/internal/service/presenter"
	"github.com/krobus00/meta-exchange/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// StartHedgerGateway serves transaction requests over HTTP and gRPC. Results
// are pushed to websocket clients, including results published by hedger
// workers when NATS is configured.
func StartHedgerGateway(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := newHedgerRuntime(ctx)
	util.ContinueOrFatal(err)

	guard, closeGuard, err := newRequestGuard()
	util.ContinueOrFatal(err)

	var (
		nc *nats.Conn
		js nats.JetStreamContext
	)
	if config.Env.NatsJetstream.URL != "" {
		nc, js, err = infrastructure.NewJetstream(config.Env.NatsJetstream)
		util.ContinueOrFatal(err)
	} else {
		logrus.Warn("nats jetstream is not configured, async transaction requests are disabled")
	}

	hub := presenter.NewResultHub()
	hedgerService := hedger.NewHedgerService(rt.processor, rt.venues, rt.ledger, guard, hub, rt.recorder, js)

	var resultSub *nats.Subscription
	if js != nil {
		publishers := make([]entity.Publisher, 0)
		publishers = append(publishers, hedgerService)
		for _, v := range publishers {
			err = v.JetstreamEventInit(ctx)
			util.ContinueOrFatal(err)
		}

		resultSub, err = hedgerService.SubscribeTransactionResults(ctx)
		util.ContinueOrFatal(err)
	}

	grpcServer := infrastructure.NewGRPCServer(infrastructure.GRPCServerConfig{
		EnableReflection: config.Env.Env == constant.DevelopmentEnvironment,
	})
	grpcHandler.RegisterHedgerServiceServer(grpcServer.Server(), grpcHandler.NewHedgerGRPCServer(hedgerService))
	grpcServer.SetServing(grpcHandler.HedgerServiceName)

	grpcPort := fmt.Sprintf(":%s", config.Env.Port["hedger_gateway_grpc"])
	lis, err := net.Listen("tcp", grpcPort)
	util.ContinueOrFatal(err)

	httpMux := infrastructure.NewHTTPMux(rt.readinessChecks(nc)...)
	httpHandler.NewHedgerHTTPHandler(hedgerService, hub).Register(httpMux)

	httpConfig := infrastructure.DefaultHTTPServerConfig()
	httpConfig.Addr = fmt.Sprintf(":%s", config.Env.Port["hedger_gateway_http"])
	httpConfig.ShutdownTimeout = config.Env.GracefulShutdownTimeout
	httpServer := infrastructure.NewHTTPServerWithConfig(httpConfig, httpMux)

	servers := new(errgroup.Group)
	servers.Go(func() error {
		return grpcServer.Serve(lis)
	})
	servers.Go(httpServer.Start)
	go func() {
		util.ContinueOrFatal(servers.Wait())
	}()

	logrus.WithFields(logrus.Fields{
		"http":   httpConfig.Addr,
		"grpc":   grpcPort,
		"venues": len(rt.venues),
	}).Info("hedger gateway started")

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout, map[string]operation{
		"order book database": func(ctx context.Context) error {
			return rt.Close()
		},
		"grpc": func(ctx context.Context) error {
			return grpcServer.Shutdown(ctx)
		},
		"http": func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
		"result hub": func(ctx context.Context) error {
			return hub.Close(ctx)
		},
		"request guard": closeGuard,
		"nats connection": func(ctx context.Context) error {
			if resultSub != nil {
				_ = resultSub.Unsubscribe()
			}
			return infrastructure.CloseJetstream(nc)
		},
	})

	<-wait
}
