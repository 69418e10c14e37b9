package anchoring

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/filevault/fv-registry/internal/adapter"
	"github.com/filevault/fv-registry/internal/chain"
	"github.com/filevault/fv-registry/internal/config"
	"github.com/filevault/fv-registry/internal/domain"
	"github.com/filevault/fv-registry/internal/eventlog"
	"github.com/filevault/fv-registry/internal/locker"
	"github.com/filevault/fv-registry/internal/logger"
	"github.com/filevault/fv-registry/internal/merkle"
	"github.com/filevault/fv-registry/internal/store"
	"github.com/filevault/fv-registry/internal/store/schema"
)

// Trigger outcome statuses
const (
	TriggerStatusQueued          = "queued"
	TriggerStatusAlreadyAnchored = "already_anchored"
)

// TriggerResult is the synchronous outcome of a manual anchoring trigger
type TriggerResult struct {
	Status string `json:"status"`
	TaskID string `json:"task_id,omitempty"`
}

// Service computes and persists the per-period Merkle commitment over the
// event log and submits the root on-chain. Anchoring a period is idempotent
// everywhere: the anchor row, the schedule marker, and the on-chain
// submission each tolerate re-runs.
type Service struct {
	store  store.Store
	oracle chain.Oracle
	events *eventlog.Logger
	locker *locker.Locker
	clock  adapter.Clock
	cfg    config.AnchoringConfig
}

// NewService creates an anchoring service. oracle may be nil when on-chain
// submission is disabled.
func NewService(st store.Store, oracle chain.Oracle, events *eventlog.Logger, lk *locker.Locker, clock adapter.Clock, cfg config.AnchoringConfig) *Service {
	return &Service{
		store:  st,
		oracle: oracle,
		events: events,
		locker: lk,
		clock:  clock,
		cfg:    cfg,
	}
}

// CurrentPeriod returns the period bucket containing now
func (s *Service) CurrentPeriod() int64 {
	return domain.PeriodID(s.clock.Now(), s.cfg.Period)
}

// AnchorPeriod computes and persists the anchor for a period. An existing
// anchor is returned unchanged. Periods without events anchor the zero root.
func (s *Service) AnchorPeriod(ctx context.Context, periodID int64) (*schema.Anchor, error) {
	existing, err := s.store.GetAnchor(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up anchor: %w", err)
	}
	if existing != nil {
		// Re-anchoring never recomputes; at most the pending tx hash gets
		// another submission attempt
		if existing.TxHash == nil && s.submitEnabled() {
			s.submitRoot(ctx, existing)
		}
		return existing, nil
	}

	events, err := s.store.ListEventsByPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list period events: %w", err)
	}

	leaves := make([][32]byte, 0, len(events))
	for _, ev := range events {
		leaves = append(leaves, merkle.EventLeaf(ev.ID, ev.Type, hashFromHex(ev.PayloadHash), ev.Timestamp))
	}
	root := merkle.Root(leaves)

	anchor, err := s.store.CreateAnchor(ctx, schema.Anchor{
		PeriodID:   periodID,
		MerkleRoot: "0x" + hex.EncodeToString(root[:]),
		EventCount: int64(len(events)),
		CreatedAt:  s.clock.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist anchor: %w", err)
	}

	logger.InfoCtx(ctx, "period anchored",
		zap.Int64("periodID", periodID),
		zap.String("merkleRoot", anchor.MerkleRoot),
		zap.Int64("eventCount", anchor.EventCount))

	s.logAnchorEvent(ctx, anchor)

	if anchor.TxHash == nil && s.submitEnabled() {
		s.submitRoot(ctx, anchor)
	}
	return anchor, nil
}

// Trigger requests anchoring for a period out of cadence. The schedule
// marker closes the race between the existence check and the worker writing
// the row; losing the marker reports already_anchored rather than queueing
// duplicate work.
func (s *Service) Trigger(ctx context.Context, periodID int64) (*TriggerResult, error) {
	existing, err := s.store.GetAnchor(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up anchor: %w", err)
	}
	if existing != nil {
		return &TriggerResult{Status: TriggerStatusAlreadyAnchored}, nil
	}

	won, err := s.locker.AcquireScheduleSlot(ctx, periodID, s.cfg.ScheduleTTL)
	if err != nil {
		return nil, err
	}
	if !won {
		return &TriggerResult{Status: TriggerStatusAlreadyAnchored}, nil
	}

	taskID := ulid.MustNewDefault(s.clock.Now()).String()
	go func() {
		// Detached from the request; anchoring a period takes however long
		// the chain takes
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.AnchorPeriod(ctx, periodID); err != nil {
			logger.ErrorCtx(ctx, fmt.Errorf("triggered anchoring failed: %w", err),
				zap.Int64("periodID", periodID),
				zap.String("taskID", taskID))
		}
	}()

	return &TriggerResult{Status: TriggerStatusQueued, TaskID: taskID}, nil
}

// GetAnchor returns the anchor for a period, ErrAnchorNotFound when absent
func (s *Service) GetAnchor(ctx context.Context, periodID int64) (*schema.Anchor, error) {
	anchor, err := s.store.GetAnchor(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up anchor: %w", err)
	}
	if anchor == nil {
		return nil, domain.ErrAnchorNotFound
	}
	return anchor, nil
}

// GetLatestAnchor returns the highest-period anchor, ErrAnchorNotFound when
// none exist
func (s *Service) GetLatestAnchor(ctx context.Context) (*schema.Anchor, error) {
	anchor, err := s.store.GetLatestAnchor(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up latest anchor: %w", err)
	}
	if anchor == nil {
		return nil, domain.ErrAnchorNotFound
	}
	return anchor, nil
}

func (s *Service) submitEnabled() bool {
	return s.oracle != nil && s.cfg.SubmitOnchain
}

// submitRoot submits the anchor's root on-chain and attaches the tx hash.
// Failures only log; the anchor row stands and the next cadence retries the
// submission.
func (s *Service) submitRoot(ctx context.Context, anchor *schema.Anchor) {
	root := hashFromHex(anchor.MerkleRoot)

	var txHash string
	operation := func() error {
		h, err := s.oracle.AnchorRoot(ctx, anchor.PeriodID, root)
		if err != nil {
			return err
		}
		txHash = h
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		logger.WarnCtx(ctx, "anchor submission failed, will retry next cadence",
			zap.Int64("periodID", anchor.PeriodID),
			zap.Error(err))
		return
	}

	if err := s.store.AttachAnchorTxHash(ctx, anchor.PeriodID, txHash); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to attach anchor tx hash: %w", err),
			zap.Int64("periodID", anchor.PeriodID),
			zap.String("txHash", txHash))
		return
	}
	anchor.TxHash = &txHash

	logger.InfoCtx(ctx, "anchor root submitted",
		zap.Int64("periodID", anchor.PeriodID),
		zap.String("txHash", txHash))
}

// anchorEventPayload is the hashed payload for anchor.created events
type anchorEventPayload struct {
	PeriodID   int64  `json:"period_id"`
	MerkleRoot string `json:"merkle_root"`
	EventCount int64  `json:"event_count"`
}

// logAnchorEvent appends the anchor.created event. The event lands in the
// current period, never the one just closed.
func (s *Service) logAnchorEvent(ctx context.Context, anchor *schema.Anchor) {
	payload := anchorEventPayload{
		PeriodID:   anchor.PeriodID,
		MerkleRoot: anchor.MerkleRoot,
		EventCount: anchor.EventCount,
	}
	if _, err := s.events.Log(ctx, domain.EventTypeAnchorCreated, payload, nil, nil); err != nil {
		logger.WarnCtx(ctx, "failed to append anchor event",
			zap.Int64("periodID", anchor.PeriodID),
			zap.Error(err))
	}
}

// hashFromHex decodes a 0x-prefixed 32-byte hex string; malformed input
// yields the zero hash
func hashFromHex(s string) [32]byte {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err == nil && len(b) == 32 {
		copy(out[:], b)
	}
	return out
}
