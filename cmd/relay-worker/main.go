package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/filevault/fv-registry/internal/adapter"
	"github.com/filevault/fv-registry/internal/chain"
	"github.com/filevault/fv-registry/internal/config"
	"github.com/filevault/fv-registry/internal/eventlog"
	"github.com/filevault/fv-registry/internal/logger"
	"github.com/filevault/fv-registry/internal/relay"
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
	cfg, err := config.LoadRelayWorkerConfig(*configFile, *envPath)
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
			"service": "relay-worker",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting FileVault Registry relay worker")

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

	// Connect to NATS JetStream for event fan-out (optional)
	var js adapter.JetStream
	if cfg.NATS.URL != "" {
		natsConn, jetStream, err := adapter.NewNatsJetStream().Connect(cfg.NATS.URL,
			nats.Name(cfg.NATS.ConnectionName),
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.ReconnectWait(cfg.NATS.ReconnectWait),
		)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Close()
		js = jetStream
		logger.InfoCtx(ctx, "Connected to NATS", zap.String("url", cfg.NATS.URL))
	} else {
		logger.WarnCtx(ctx, "NATS not configured, event notifications disabled")
	}

	// Connect to the chain with the relayer key
	oracle, err := chain.NewEthereumOracle(ctx, adapter.NewEthClientDialer(), clock, cfg.Chain)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to chain RPC", zap.Error(err))
	}
	defer oracle.Close()
	logger.InfoCtx(ctx, "Connected to chain RPC",
		zap.String("rpc_url", cfg.Chain.RPCURL),
		zap.Int64("chain_id", cfg.Chain.ChainID),
	)

	// Wire the worker behind the requeue sweeper; the sweeper runs its own
	// worker pool so a backlog drains at pool width
	events := eventlog.NewLogger(dataStore, js, clock, cfg.Anchoring.Period, cfg.NATS.StreamName)
	worker := relay.NewWorker(dataStore, oracle, events, clock, cfg.Relay)
	sweep := relay.NewRequeueSweeper(dataStore, worker, clock, cfg.Relay)

	errCh := make(chan error, 1)
	go func() {
		if err := sweep.Start(ctx); err != nil {
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
		logger.ErrorCtx(ctx, err, zap.String("component", "sweeper"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sweep.Stop(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Sweeper forced to shutdown", zap.Error(err))
	}

	logger.InfoCtx(shutdownCtx, "Relay worker stopped")
}
