package anchoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/filevault/fv-registry/internal/adapter"
	"github.com/filevault/fv-registry/internal/config"
	"github.com/filevault/fv-registry/internal/locker"
	"github.com/filevault/fv-registry/internal/logger"
	"github.com/filevault/fv-registry/internal/store"
	"github.com/filevault/fv-registry/internal/sweeper"
)

const (
	// anchorCursorKey tracks the highest period this deployment has anchored,
	// so a scheduler that was down for several periods catches up
	anchorCursorKey = "anchoring:last_anchored_period"

	// maxBackfillPeriods bounds one catch-up burst
	maxBackfillPeriods = 48
)

// scheduler anchors the previous completed period on a fixed cadence. The
// current period is still filling and is never anchored.
type scheduler struct {
	service   *Service
	store     store.Store
	locker    *locker.Locker
	clock     adapter.Clock
	cfg       config.AnchoringConfig
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewScheduler creates the periodic anchoring scheduler
func NewScheduler(service *Service, st store.Store, lk *locker.Locker, clock adapter.Clock, cfg config.AnchoringConfig) sweeper.Sweeper {
	return &scheduler{
		service:   service,
		store:     st,
		locker:    lk,
		clock:     clock,
		cfg:       cfg,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the scheduler's name
func (s *scheduler) Name() string {
	return "anchor-scheduler"
}

// Start begins the scheduler's main loop
func (s *scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting anchor scheduler",
		zap.Duration("period", s.cfg.Period),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Anchor scheduler stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Anchor scheduler stop requested")
			return nil
		default:
			if err := s.runCycle(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err)
				}
			}
		}
	}
}

// Stop gracefully stops the scheduler with timeout support
func (s *scheduler) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping anchor scheduler")
	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Anchor scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Anchor scheduler stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runCycle anchors every completed period past the cursor, newest last, then
// sleeps until the next boundary. The schedule marker keeps replicated
// schedulers from anchoring the same period twice within a cadence; anchoring
// is idempotent regardless. A failed period aborts the burst so the cursor
// never advances past an unanchored period; the next cycle resumes there.
func (s *scheduler) runCycle(ctx context.Context) error {
	target := s.service.CurrentPeriod() - 1
	start := s.backfillStart(ctx, target)

	for periodID := start; periodID <= target; periodID++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopChan:
			return nil
		default:
		}
		if !s.anchorOne(ctx, periodID) {
			break
		}
	}

	if !s.sleep(ctx, s.untilNextBoundary()) {
		return ctx.Err()
	}
	return nil
}

// backfillStart returns the first period to anchor this cycle. A stored
// cursor behind the target means missed cadences (downtime); catch up from
// there, bounded per cycle.
func (s *scheduler) backfillStart(ctx context.Context, target int64) int64 {
	raw, err := s.store.GetValue(ctx, anchorCursorKey)
	if err != nil {
		logger.WarnCtx(ctx, "failed to read anchor cursor", zap.Error(err))
		return target
	}
	if raw == "" {
		return target
	}

	last, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logger.WarnCtx(ctx, "malformed anchor cursor, ignoring",
			zap.String("cursor", raw))
		return target
	}
	if last >= target {
		return target
	}

	start := last + 1
	if target-start >= maxBackfillPeriods {
		start = target - maxBackfillPeriods + 1
	}
	if start < target {
		logger.InfoCtx(ctx, "anchor scheduler catching up missed periods",
			zap.Int64("from", start),
			zap.Int64("to", target))
	}
	return start
}

// anchorOne anchors a single period and advances the cursor past it. Returns
// false when anchoring failed, in which case the cursor stays behind the
// period so the next cycle retries it.
func (s *scheduler) anchorOne(ctx context.Context, periodID int64) bool {
	won, err := s.locker.AcquireScheduleSlot(ctx, periodID, s.cfg.ScheduleTTL)
	if err != nil {
		logger.WarnCtx(ctx, "schedule slot unavailable, anchoring anyway",
			zap.Int64("periodID", periodID),
			zap.Error(err))
		won = true
	}
	if won {
		if _, err := s.service.AnchorPeriod(ctx, periodID); err != nil {
			logger.ErrorCtx(ctx, fmt.Errorf("scheduled anchoring failed: %w", err),
				zap.Int64("periodID", periodID))
			return false
		}
	}

	if err := s.store.SetValue(ctx, anchorCursorKey, strconv.FormatInt(periodID, 10)); err != nil {
		logger.WarnCtx(ctx, "failed to advance anchor cursor",
			zap.Int64("periodID", periodID),
			zap.Error(err))
	}
	return true
}

// untilNextBoundary returns the time remaining in the current period, plus a
// small skew allowance so the period is definitely closed when the cycle runs
func (s *scheduler) untilNextBoundary() time.Duration {
	now := s.clock.Now()
	elapsed := time.Duration(now.Unix()%int64(s.cfg.Period.Seconds())) * time.Second
	return s.cfg.Period - elapsed + time.Second
}

// sleep sleeps for the given duration but can be interrupted by context
// cancellation or a stop request. Returns true if sleep completed normally.
func (s *scheduler) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true
	case <-s.stopChan:
		return true
	case <-ctx.Done():
		return false
	}
}
