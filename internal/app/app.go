package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/loja/internal/health"
	"github.com/vladislavdragonenkov/loja/internal/metrics"
	"github.com/vladislavdragonenkov/loja/internal/service/idempotency"
	"github.com/vladislavdragonenkov/loja/internal/service/outbox"
	"github.com/vladislavdragonenkov/loja/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/loja/internal/version"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Run поднимает HTTP API, ops-сервер (/metrics, /healthz, /livez, /readyz), gRPC health,
// outbox worker и очистку ключей идемпотентности; работает до отмены ctx или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	// Kafka опциональна: без неё события outbox пишутся в лог.
	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(producer, logger)

	services, err := createServices(cfg, deps, metrics.NewServiceMetrics(), logger.WithField("layer", "service"))
	if err != nil {
		return err
	}

	healthHandler := healthcheck.NewHandler(version.Get().Version)
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}

	idempotencyMetrics := metrics.NewIdempotencyMetrics()
	router := httpapi.NewRouter(services, httpapi.Options{
		Logger:             logger.WithField("layer", "http"),
		Metrics:            metrics.NewHTTPMetrics(),
		Idempotency:        deps.idempotency,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		IdempotencyMetrics: idempotencyMetrics,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
	})
	cleanup := idempotency.NewCleanupWorker(deps.idempotency,
		idempotency.WithLogger(logger.WithField("layer", "idempotency")),
		idempotency.WithMetrics(idempotencyMetrics),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
	)

	publisher, dlq := outboxPublishers(cfg, producer, logger)
	worker := outbox.NewWorker(deps.outbox, publisher,
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithMetrics(metrics.NewOutboxMetrics()),
		outbox.WithDLQPublisher(dlq),
		outbox.WithCircuitBreaker(newPublisherBreaker(cfg, logger)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)

	listeners, err := listenAll(cfg.HTTPAddr, cfg.MetricsAddr, cfg.GRPCAddr)
	if err != nil {
		return err
	}
	apiLis, opsLis, grpcLis := listeners[0], listeners[1], listeners[2]

	apiSrv := &http.Server{Handler: router, ReadHeaderTimeout: readHeaderTimeout}
	opsSrv := &http.Server{Handler: newOpsHandler(healthHandler), ReadHeaderTimeout: readHeaderTimeout}
	grpcServer, healthServer := newGRPCServer(logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("HTTP API слушает %s", apiLis.Addr())
		return serveHTTP(apiSrv, apiLis)
	})
	g.Go(func() error {
		logger.Infof("метрики доступны по адресу %s/metrics", opsLis.Addr())
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", opsLis.Addr(), opsLis.Addr(), opsLis.Addr())
		return serveHTTP(opsSrv, opsLis)
	})
	g.Go(func() error {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		cleanup.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("получен сигнал остановки, останавливаем серверы")
		stopGRPC(grpcServer, healthServer, logger)
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(opsSrv, logger)
		return nil
	})

	err = g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// newPublisherBreaker возвращает nil, если breaker отключён конфигурацией.
func newPublisherBreaker(cfg Config, logger *log.Entry) *outbox.CircuitBreaker {
	if cfg.OutboxBreakerFailures <= 0 {
		return nil
	}
	return outbox.NewCircuitBreaker(cfg.OutboxBreakerFailures, cfg.OutboxBreakerReset, logger.WithField("layer", "outbox"))
}

// listenAll открывает все адреса или ни одного.
func listenAll(addrs ...string) ([]net.Listener, error) {
	listeners := make([]net.Listener, 0, len(addrs))
	for _, addr := range addrs {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			for _, opened := range listeners {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("listen %s: %w", addr, err)
		}
		listeners = append(listeners, lis)
	}
	return listeners, nil
}

func serveHTTP(srv *http.Server, lis net.Listener) error {
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newGRPCServer создаёт gRPC-сервер с health, reflection и Prometheus-интерсепторами.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Reflection для grpcurl и инструментов нагрузочного тестирования.
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	return grpcServer, healthServer
}

// stopGRPC останавливает gRPC-сервер, давая активным вызовам shutdownTimeout.
func stopGRPC(grpcServer *grpc.Server, healthServer *health.Server, logger *log.Entry) {
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	stoppedCh := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedCh)
	}()
	select {
	case <-stoppedCh:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		grpcServer.Stop()
	}
}

// newOpsHandler отдаёт /metrics для Prometheus и health-пробы.
func newOpsHandler(healthHandler *healthcheck.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
