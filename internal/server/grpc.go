package server

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/elskow/amsterdam-discovery/internal/config"
)

// opsServer is the gRPC listener orchestrators probe. It carries only
// the standard health service and, optionally, reflection.
type opsServer struct {
	config *config.AppConfig
	log    *zap.Logger
	grpc   *grpc.Server
	health *health.Server

	serving atomic.Bool
}

func newOpsServer(cfg *config.AppConfig, log *zap.Logger) *opsServer {
	recoveryHandler := func(p any) error {
		log.Error("panic in grpc handler", zap.Any("panic", p))
		return status.Error(codes.Internal, "internal error")
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(interceptorLogger(log)),
			recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(recoveryHandler)),
		),
		grpc.ChainStreamInterceptor(
			logging.StreamServerInterceptor(interceptorLogger(log)),
			recovery.StreamServerInterceptor(recovery.WithRecoveryHandler(recoveryHandler)),
		),
		grpc.MaxRecvMsgSize(cfg.GRPC.MaxReceiveMessageSize),
		grpc.MaxSendMsgSize(cfg.GRPC.MaxSendMessageSize),
	}

	s := &opsServer{
		config: cfg,
		log:    log,
		grpc:   grpc.NewServer(opts...),
		health: health.NewServer(),
	}

	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	if cfg.GRPC.EnableReflection {
		reflection.Register(s.grpc)
	}

	return s
}

func (s *opsServer) setServing(serving bool) {
	if s.serving.Swap(serving) != serving {
		s.log.Info("health status changed", zap.Bool("serving", serving))
	}
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
}

// watch pings right away and then every interval until ctx is done, so the
// status follows the database through outages in both directions.
func (s *opsServer) watch(ctx context.Context, ping func() error, interval time.Duration) {
	s.setServing(ping() == nil)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.setServing(ping() == nil)
		}
	}
}

func (s *opsServer) serve() error {
	addr := fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.log.Info("Starting gRPC health server",
		zap.String("address", addr),
		zap.Bool("reflection_enabled", s.config.GRPC.EnableReflection))

	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func (s *opsServer) stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// interceptorLogger adapts zap to the go-grpc-middleware logging interface.
func interceptorLogger(l *zap.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		f := make([]zap.Field, 0, len(fields)/2)
		for i := 0; i+1 < len(fields); i += 2 {
			key, _ := fields[i].(string)
			f = append(f, zap.Any(key, fields[i+1]))
		}

		logger := l.WithOptions(zap.AddCallerSkip(1)).With(f...)
		switch lvl {
		case logging.LevelDebug:
			logger.Debug(msg)
		case logging.LevelInfo:
			logger.Info(msg)
		case logging.LevelWarn:
			logger.Warn(msg)
		case logging.LevelError:
			logger.Error(msg)
		default:
			logger.Info(msg, zap.Any("level", lvl))
		}
	})
}
