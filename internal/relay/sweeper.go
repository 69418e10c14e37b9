package relay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/filevault/fv-registry/internal/adapter"
	"github.com/filevault/fv-registry/internal/config"
	"github.com/filevault/fv-registry/internal/logger"
	"github.com/filevault/fv-registry/internal/store"
	"github.com/filevault/fv-registry/internal/sweeper"
)

const requeueBatchSize = 100

// requeueSweeper re-drives relay requests that lost their in-memory task:
// rows abandoned in queued (the accepting process died before pickup) and
// rows stuck in sent past the staleness cutoff (process died mid-submit).
// Requeued rows go through the same sized worker pool as fresh submissions,
// so a backlog drains at pool width rather than one block-inclusion at a
// time; the claim on the queued->sent edge keeps overlapping drivers off the
// same request.
type requeueSweeper struct {
	store     store.Store
	worker    *Worker
	clock     adapter.Clock
	cfg       config.RelayConfig
	pool      pond.Pool
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewRequeueSweeper creates the relay requeue sweeper
func NewRequeueSweeper(st store.Store, worker *Worker, clock adapter.Clock, cfg config.RelayConfig) sweeper.Sweeper {
	return &requeueSweeper{
		store:     st,
		worker:    worker,
		clock:     clock,
		cfg:       cfg,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *requeueSweeper) Name() string {
	return "relay-requeue-sweeper"
}

// Start begins the sweeper's main loop
func (s *requeueSweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}

	s.pool = pond.NewPool(
		s.cfg.WorkerPoolSize,
		pond.WithQueueSize(s.cfg.WorkerQueueSize),
		pond.WithContext(ctx),
	)
	defer func() {
		s.pool.StopAndWait()
		s.running.Store(false)
		close(s.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting relay requeue sweeper",
		zap.Duration("sweep_interval", s.cfg.SweepInterval),
		zap.Duration("stale_after", s.cfg.StaleAfter),
		zap.Int("pool_size", s.cfg.WorkerPoolSize),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Relay requeue sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Relay requeue sweeper stop requested")
			return nil
		default:
			if err := s.runSweepCycle(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err)
				}
			}
		}
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *requeueSweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping relay requeue sweeper")
	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Relay requeue sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Relay requeue sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle re-processes one batch of orphaned requests, then sleeps
func (s *requeueSweeper) runSweepCycle(ctx context.Context) error {
	startTime := s.clock.Now()

	requests, err := s.store.ListRequeueableMetaTxRequests(ctx, s.cfg.StaleAfter, requeueBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list requeueable requests: %w", err)
	}

	if len(requests) > 0 {
		logger.InfoCtx(ctx, "Requeueing orphaned relay requests", zap.Int("count", len(requests)))

		for _, req := range requests {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.stopChan:
				return nil
			default:
			}
			requestID := req.RequestID
			s.pool.Submit(func() {
				s.worker.Process(ctx, requestID)
			})
		}

		logger.InfoCtx(ctx, "Requeue cycle completed",
			zap.Duration("duration", s.clock.Since(startTime)),
			zap.Int("requeued", len(requests)))
	}

	if !s.sleep(ctx, s.cfg.SweepInterval) {
		return ctx.Err()
	}
	return nil
}

// sleep sleeps for the given duration but can be interrupted by context
// cancellation or a stop request. Returns true if sleep completed normally.
func (s *requeueSweeper) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true
	case <-s.stopChan:
		return true
	case <-ctx.Done():
		return false
	}
}
