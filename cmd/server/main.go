// server runs the session gateway: the HTTP API on HTTP_ADDR and the gRPC services on GRPC_ADDR,
// both backed by one in-process session cache in front of Postgres or Redis.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"studyassist/backend/internal/config"
	"studyassist/backend/internal/db"
	healthhandler "studyassist/backend/internal/health/handler"
	"studyassist/backend/internal/logger"
	"studyassist/backend/internal/server"
	"studyassist/backend/internal/server/middleware"
	"studyassist/backend/internal/session/cache"
	sessionhandler "studyassist/backend/internal/session/handler"
	"studyassist/backend/internal/session/repository"
	"studyassist/backend/internal/telemetry"
	telemetryotel "studyassist/backend/internal/telemetry/otel"
	"studyassist/backend/internal/telemetry/producer"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", logger.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	events := telemetry.MultiEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	kafkaProducer := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.SessionEventsTopic)
	if kafkaProducer != nil {
		events = append(events, kafkaProducer)
		log.Info("publishing session events to kafka", slog.String("topic", cfg.SessionEventsTopic))
	}

	sessions, err := cache.New(store, cache.Options{
		RenewalWindow: cfg.RenewalWindow(),
		FlushInterval: cfg.FlushInterval(),
		LookupTimeout: cfg.LookupTimeout(),
		FlushTimeout:  cfg.FlushTimeout(),
		Logger:        log,
		Events:        events,
		Meter:         providers.MeterProvider.Meter("studyassist.sessions"),
	})
	if err != nil {
		return err
	}

	deps := server.Deps{
		Sessions:           sessions,
		Health:             healthhandler.NewServer(store, sessionhandler.SessionServiceName),
		ClearCacheOnLogout: cfg.ClearCacheOnLogout,
		Logger:             log,
	}
	grpcServer := server.NewGRPCServer(deps)
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewRouter(server.HTTPDeps{
			Deps:    deps,
			Cookies: middleware.Cookies{Name: cfg.SessionCookieName, Secure: cfg.CookieSecure},
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("gRPC server listening", slog.String("addr", cfg.GRPCAddr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.Info("HTTP server listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})
	serveErr := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.FlushTimeout()+time.Second)
	defer cancel()
	if err := sessions.Drain(drainCtx); err != nil {
		log.Warn("pending session flushes abandoned", logger.Err(err))
	}

	// Let in-flight async emits finish before the providers and producer go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := kafkaProducer.Close(); err != nil {
		log.Warn("kafka producer close", logger.Err(err))
	}
	otelCtx, otelCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer otelCancel()
	if err := providers.Shutdown(otelCtx); err != nil {
		log.Warn("otel shutdown", logger.Err(err))
	}
	log.Info("server stopped")
	return serveErr
}

// openStore returns the configured session repository and a function releasing its connection.
func openStore(ctx context.Context, cfg *config.Config) (repository.Repository, func(), error) {
	switch cfg.SessionStore {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		repo := repository.NewRedisRepository(client, repository.DefaultRetention)
		if err := repo.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		return repo, func() { _ = client.Close() }, nil
	default:
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db: %w", err)
		}
		return repository.NewPostgresRepository(conn), func() { _ = conn.Close() }, nil
	}
}
