package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/filevault/fv-registry/internal/adapter"
	"github.com/filevault/fv-registry/internal/chain"
	"github.com/filevault/fv-registry/internal/config"
	"github.com/filevault/fv-registry/internal/domain"
	"github.com/filevault/fv-registry/internal/eventlog"
	"github.com/filevault/fv-registry/internal/logger"
	"github.com/filevault/fv-registry/internal/store"
	"github.com/filevault/fv-registry/internal/store/schema"
)

// Terminal failure reasons recorded on the request row
const (
	failureBadSignature = "bad_signature"
	failureReverted     = "revert"
)

// Worker drives one relay request from queued to mined or failed. It is
// stateless; every invocation re-reads the row, so requeued and freshly
// enqueued requests take the same path.
type Worker struct {
	store  store.Store
	oracle chain.Oracle
	events *eventlog.Logger
	clock  adapter.Clock
	cfg    config.RelayConfig
}

// NewWorker creates a relay worker
func NewWorker(st store.Store, oracle chain.Oracle, events *eventlog.Logger, clock adapter.Clock, cfg config.RelayConfig) *Worker {
	return &Worker{
		store:  st,
		oracle: oracle,
		events: events,
		clock:  clock,
		cfg:    cfg,
	}
}

// Process submits one request's forwarding transaction. Safe to call
// repeatedly and concurrently for the same id: terminal rows are skipped and
// the claim below admits at most one driver per request at a time.
func (w *Worker) Process(ctx context.Context, requestID string) {
	req, err := w.store.GetMetaTxRequest(ctx, requestID)
	if err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to load relay request %s: %w", requestID, err))
		return
	}
	if req == nil {
		logger.WarnCtx(ctx, "relay request vanished before processing",
			zap.String("requestID", requestID))
		return
	}
	if req.Status == schema.MetaTxStatusMined || req.Status == schema.MetaTxStatusFailed {
		return
	}

	claimed, err := w.store.ClaimMetaTxRequest(ctx, requestID, w.cfg.StaleAfter)
	if err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to claim relay request: %w", err),
			zap.String("requestID", requestID))
		return
	}
	if !claimed {
		// Another pool or the sweeper owns this row right now
		logger.InfoCtx(ctx, "relay request already claimed, skipping",
			zap.String("requestID", requestID))
		return
	}

	receipt, err := w.submitForward(ctx, req)
	if err != nil {
		w.fail(ctx, requestID, err)
		return
	}

	txHash := receipt.TxHash.Hex()
	if err := w.store.MarkMetaTxMined(ctx, requestID, txHash); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to mark relay request mined: %w", err),
			zap.String("requestID", requestID),
			zap.String("txHash", txHash))
		return
	}

	logger.InfoCtx(ctx, "relay request mined",
		zap.String("requestID", requestID),
		zap.String("txHash", txHash))

	w.mirrorReceipt(ctx, receipt)
}

// submitForward verifies the signature on-chain and executes the forwarding
// call with bounded retries. Invalid signatures and contract reverts are
// permanent; everything else retries up to the attempt budget.
func (w *Worker) submitForward(ctx context.Context, req *schema.MetaTxRequest) (*types.Receipt, error) {
	var receipt *types.Receipt

	operation := func() error {
		valid, err := w.oracle.VerifyForwardSignature(ctx, []byte(req.TypedData), req.Signature)
		if err != nil {
			return fmt.Errorf("signature verification call failed: %w", err)
		}
		if !valid {
			return backoff.Permanent(domain.ErrBadSignature)
		}

		r, err := w.oracle.ExecuteForward(ctx, []byte(req.TypedData), req.Signature)
		if err != nil {
			if errors.Is(err, chain.ErrExecutionReverted) {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("forward execution failed: %w", err)
		}
		receipt = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.InitialBackoff
	b.MaxInterval = w.cfg.MaxBackoff
	b.MaxElapsedTime = 0 // attempts are bounded, not elapsed time

	maxRetries := uint64(0)
	if w.cfg.MaxAttempts > 1 {
		maxRetries = uint64(w.cfg.MaxAttempts - 1)
	}
	bounded := backoff.WithMaxRetries(backoff.WithContext(b, ctx), maxRetries)

	var attempts int
	notify := func(err error, next time.Duration) {
		attempts++
		logger.WarnCtx(ctx, "relay submission failed, retrying",
			zap.String("requestID", req.RequestID),
			zap.Int("attempt", attempts),
			zap.Duration("next_retry_in", next),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, bounded, notify); err != nil {
		return nil, err
	}
	return receipt, nil
}

// fail records a terminal failure with a stable reason for the known
// terminal cases
func (w *Worker) fail(ctx context.Context, requestID string, cause error) {
	reason := cause.Error()
	switch {
	case errors.Is(cause, domain.ErrBadSignature):
		reason = failureBadSignature
	case errors.Is(cause, chain.ErrExecutionReverted):
		reason = failureReverted
	}

	logger.WarnCtx(ctx, "relay request failed",
		zap.String("requestID", requestID),
		zap.String("reason", reason),
		zap.Error(cause))

	if err := w.store.MarkMetaTxFailed(ctx, requestID, reason); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to mark relay request failed: %w", err),
			zap.String("requestID", requestID))
	}
}

// mirrorReceipt applies the registry events from a mined receipt to the
// off-chain mirror and appends them to the event log. Mirror updates are
// best-effort; the reconciler never trusts them while the chain is reachable.
func (w *Worker) mirrorReceipt(ctx context.Context, receipt *types.Receipt) {
	events, err := w.oracle.DecodeGrantEvents(receipt)
	if err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to decode receipt events: %w", err),
			zap.String("txHash", receipt.TxHash.Hex()))
		return
	}

	for _, ev := range events {
		switch ev.Type {
		case domain.EventTypeGrantCreated:
			if err := w.store.MarkGrantConfirmed(ctx, string(ev.CapID), ev.TxHash); err != nil {
				logger.WarnCtx(ctx, "failed to mirror grant confirmation",
					zap.String("capID", string(ev.CapID)), zap.Error(err))
			}
			w.logGrantEvent(ctx, ev, &ev.Grantor)

		case domain.EventTypeGrantRevoked:
			w.mirrorRevocation(ctx, ev)
			w.logGrantEvent(ctx, ev, &ev.Grantor)

		case domain.EventTypeGrantUsed:
			if err := w.store.MirrorGrantUsage(ctx, string(ev.CapID), ev.UsedDownloads, nil); err != nil {
				logger.WarnCtx(ctx, "failed to mirror grant usage",
					zap.String("capID", string(ev.CapID)), zap.Error(err))
			}
			w.logGrantEvent(ctx, ev, &ev.Grantee)
		}
	}
}

func (w *Worker) mirrorRevocation(ctx context.Context, ev chain.GrantEvent) {
	cached, err := w.store.GetGrant(ctx, string(ev.CapID))
	if err != nil {
		logger.WarnCtx(ctx, "failed to load grant for revocation mirror",
			zap.String("capID", string(ev.CapID)), zap.Error(err))
		return
	}
	if cached == nil {
		return
	}

	now := w.clock.Now().UTC()
	if err := w.store.MirrorGrantUsage(ctx, string(ev.CapID), cached.UsedDownloads, &now); err != nil {
		logger.WarnCtx(ctx, "failed to mirror grant revocation",
			zap.String("capID", string(ev.CapID)), zap.Error(err))
	}
}

// grantEventPayload is the hashed payload for grant lifecycle events
type grantEventPayload struct {
	CapID         string `json:"cap_id"`
	Grantor       string `json:"grantor,omitempty"`
	Grantee       string `json:"grantee,omitempty"`
	UsedDownloads uint64 `json:"used_downloads,omitempty"`
	TxHash        string `json:"tx_hash"`
}

func (w *Worker) logGrantEvent(ctx context.Context, ev chain.GrantEvent, userID *string) {
	payload := grantEventPayload{
		CapID:         string(ev.CapID),
		Grantor:       ev.Grantor,
		Grantee:       ev.Grantee,
		UsedDownloads: ev.UsedDownloads,
		TxHash:        ev.TxHash,
	}

	if _, err := w.events.Log(ctx, ev.Type, payload, nil, userID); err != nil {
		logger.WarnCtx(ctx, "failed to append grant event",
			zap.String("capID", string(ev.CapID)),
			zap.String("type", string(ev.Type)),
			zap.Error(err))
	}
}
