package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/loja/internal/health"
)

func testRunConfig() Config {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.StorageDriver = StorageDriverMemory
	cfg.KafkaBrokers = nil
	return cfg
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, testRunConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := testRunConfig()
	cfg.StorageDriver = "invalid-driver"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestRun_AddressInUse(t *testing.T) {
	cfg := testRunConfig()

	lis, err := listenAll("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lis[0].Close()

	cfg.MetricsAddr = lis[0].Addr().String()
	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected listen error for busy metrics address")
	}
}

func TestInitRuntimeDependencies_PostgresSuccess(t *testing.T) {
	dsn := postgresTestDSNCandidate()
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn
	cfg.PostgresAutoMigrate = true

	logger := log.WithField("test", "postgres-init")
	deps, err := initRuntimeDependencies(context.Background(), cfg, logger)
	if err != nil {
		t.Skipf("postgres is not available for app integration test: %v", err)
	}
	defer deps.close(logger)

	if deps.orders == nil || deps.outbox == nil || deps.timeline == nil {
		t.Fatalf("postgres dependencies must be initialized: %+v", deps)
	}
	if deps.storageChecker == nil {
		t.Fatal("expected non-nil storage checker for postgres")
	}
	check := deps.storageChecker.Check(context.Background())
	if check.Status == healthcheck.StatusUnhealthy {
		t.Fatalf("expected reachable storage, got %+v", check)
	}
}

func postgresTestDSNCandidate() string {
	return strings.TrimSpace(os.Getenv("LOJA_POSTGRES_TEST_DSN"))
}
