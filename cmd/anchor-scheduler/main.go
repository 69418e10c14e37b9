package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/filevault/fv-registry/internal/adapter"
	"github.com/filevault/fv-registry/internal/anchoring"
	"github.com/filevault/fv-registry/internal/chain"
	"github.com/filevault/fv-registry/internal/config"
	"github.com/filevault/fv-registry/internal/eventlog"
	"github.com/filevault/fv-registry/internal/locker"
	"github.com/filevault/fv-registry/internal/logger"
	"github.com/filevault/fv-registry/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAnchorSchedulerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "anchor-scheduler",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting FileVault Registry anchor scheduler")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clock := adapter.NewClock()
	redisClient := adapter.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}()
	if err := redisClient.Ping(ctx); err != nil {
		logger.FatalCtx(ctx, "Failed to connect to Redis", zap.Error(err))
	}

	// Connect to the chain; root submission needs the relayer key, reads do
	// not, so an absent key only disables on-chain submission
	var oracle chain.Oracle
	if cfg.Anchoring.SubmitOnchain {
		oracle, err = chain.NewEthereumOracle(ctx, adapter.NewEthClientDialer(), clock, cfg.Chain)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect to chain RPC", zap.Error(err))
		}
		defer oracle.Close()
		logger.InfoCtx(ctx, "Connected to chain RPC",
			zap.String("rpc_url", cfg.Chain.RPCURL),
			zap.Int64("chain_id", cfg.Chain.ChainID),
		)
	} else {
		logger.WarnCtx(ctx, "On-chain submission disabled, anchors stay local")
	}

	// Wire the anchoring service and scheduler
	lk := locker.New(redisClient)
	events := eventlog.NewLogger(dataStore, nil, clock, cfg.Anchoring.Period, "")
	service := anchoring.NewService(dataStore, oracle, events, lk, clock, cfg.Anchoring)
	scheduler := anchoring.NewScheduler(service, dataStore, lk, clock, cfg.Anchoring)

	errCh := make(chan error, 1)
	go func() {
		if err := scheduler.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "scheduler"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Scheduler forced to shutdown", zap.Error(err))
	}

	logger.InfoCtx(shutdownCtx, "Anchor scheduler stopped")
}
