package infrastructure

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

type GRPCServer struct {
	server *grpc.Server
	health *health.Server
}

type GRPCServerConfig struct {
	EnableReflection bool
}

// NewGRPCServer creates a server with panic recovery, access logging and the
// standard health service. Services registered later are reported as serving
// once SetServing is called.
func NewGRPCServer(cfg GRPCServerConfig, opts ...grpc.ServerOption) *GRPCServer {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		grpcRecoveryInterceptor,
		grpcAccessLogInterceptor,
	))

	server := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	if cfg.EnableReflection {
		reflection.Register(server)
	}

	return &GRPCServer{
		server: server,
		health: healthServer,
	}
}

func (s *GRPCServer) Server() *grpc.Server {
	return s.server
}

// SetServing marks service (empty for the whole server) as serving.
func (s *GRPCServer) SetServing(service string) {
	s.health.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
}

func (s *GRPCServer) Serve(lis net.Listener) error {
	logrus.WithField("addr", lis.Addr().String()).Info("grpc server starting")
	err := s.server.Serve(lis)
	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}

// Shutdown stops accepting new rpcs and waits for in-flight ones until ctx is
// done, then stops the server forcefully.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return ctx.Err()
	}
}

func grpcRecoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logrus.WithFields(logrus.Fields{
				"method": info.FullMethod,
				"panic":  recovered,
			}).Error("panic recovered in grpc handler")
			err = status.Error(codes.Internal, "internal server error")
		}
	}()

	return handler(ctx, req)
}

func grpcAccessLogInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	started := time.Now()
	resp, err := handler(ctx, req)

	logrus.WithFields(logrus.Fields{
		"method":      info.FullMethod,
		"code":        status.Code(err).String(),
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("grpc request handled")

	return resp, err
}
