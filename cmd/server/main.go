// Command watsh-server starts the watsh gRPC server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/watsh-io/backend/internal/config"
	"github.com/watsh-io/backend/internal/crypto"
	"github.com/watsh-io/backend/internal/limiter"
	"github.com/watsh-io/backend/internal/migrate"
	"github.com/watsh-io/backend/internal/notify"
	"github.com/watsh-io/backend/internal/repository"
	"github.com/watsh-io/backend/internal/repository/memory"
	"github.com/watsh-io/backend/internal/repository/postgres"
	grpcserver "github.com/watsh-io/backend/internal/server/grpc"
	"github.com/watsh-io/backend/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, opens the store, and serves gRPC until signalled.
func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Server.Addr),
		zap.String("storage", cfg.Database.Storage),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// openStore returns the store and the limiter sharing its backend.
func openStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (repository.Store, limiter.Limiter, func(), error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on exit")
		return memory.New(), limiter.NewMemory(limiter.DefaultPolicy), func() {}, nil
	}
	if err := migrate.Up(ctx, cfg.DSN, log); err != nil {
		return nil, nil, nil, fmt.Errorf("migrate up: %w", err)
	}
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	return postgres.NewStore(db), limiter.NewPG(db.Pool, limiter.DefaultPolicy), db.Close, nil
}

// sinkQueue bounds the events waiting for a slow broker.
const sinkQueue = 256

func sinkError(log *zap.Logger, sink string) func(error) {
	return func(err error) { log.Warn("commit notification failed", zap.String("sink", sink), zap.Error(err)) }
}

// notifiers fans commits out to the in-process hub and the optional sinks.
func notifiers(ctx context.Context, cfg *config.Config, hub *notify.Hub, log *zap.Logger) (notify.Multi, func(), error) {
	out := notify.Multi{hub}
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.MQTT.Enabled {
		p, err := notify.DialMQTT(notify.MQTTConfig{
			Broker:         cfg.MQTT.Broker,
			ClientID:       cfg.MQTT.ClientID,
			TopicPrefix:    cfg.MQTT.TopicPrefix,
			QoS:            byte(cfg.MQTT.QoS),
			PublishTimeout: cfg.MQTT.PublishTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("mqtt: %w", err)
		}
		a := notify.NewAsync(p, sinkQueue, sinkError(log, "mqtt"))
		closers = append(closers, func() { a.Close(); p.Close() })
		out = append(out, a)
		log.Info("publishing commits to mqtt", zap.String("broker", cfg.MQTT.Broker))
	}

	if cfg.Influx.Enabled {
		r, err := notify.DialInflux(ctx, notify.InfluxConfig{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		}, func(err error) { log.Warn("influx write", zap.Error(err)) })
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("influx: %w", err)
		}
		a := notify.NewAsync(r, sinkQueue, sinkError(log, "influx"))
		closers = append(closers, func() { a.Close(); r.Close() })
		out = append(out, a)
		log.Info("recording commits in influxdb", zap.String("url", cfg.Influx.URL))
	}
	return out, closeAll, nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, lim, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := notify.NewHub(64)
	sinks, closeSinks, err := notifiers(ctx, cfg, hub, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	// Services
	svc := service.New(store, crypto.NewCodec(cfg.Security.AESSecret),
		service.WithNotifier(sinks),
		service.WithLogger(logger.Named("service")),
	)

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
		),
		grpc.ChainStreamInterceptor(
			grpcserver.RecoverStream(logger),
			grpcserver.LoggingStream(logger),
		),
	}
	if cfg.Server.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.Server.TLSCert, cfg.Server.TLSKey)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("TLS disabled")
	}
	s := grpc.NewServer(opts...)

	// App service
	app := grpcserver.New(svc, []byte(cfg.Security.JWTKey),
		grpcserver.WithHub(hub),
		grpcserver.WithLimiter(lim),
		grpcserver.WithLogger(logger.Named("grpc")),
	)
	app.Register(s)

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Server.Dev {
		reflection.Register(s)
	}

	// Listen
	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr), zap.Bool("tls", cfg.Server.TLSCert != ""))
		errCh <- s.Serve(lis)
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
