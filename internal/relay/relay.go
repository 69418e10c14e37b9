package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/filevault/fv-registry/internal/adapter"
	"github.com/filevault/fv-registry/internal/chain"
	"github.com/filevault/fv-registry/internal/config"
	"github.com/filevault/fv-registry/internal/domain"
	"github.com/filevault/fv-registry/internal/locker"
	"github.com/filevault/fv-registry/internal/logger"
	"github.com/filevault/fv-registry/internal/store"
)

// relayNamespace is the UUIDv5 namespace for system-generated request ids.
// Fixed so every instance derives the same id for the same logical operation.
var relayNamespace = uuid.MustParse("8f6f7c5a-1f1f-4b8e-9f0e-2a6a3c9d4e21")

// Submit outcome statuses
const (
	SubmitStatusQueued    = "queued"
	SubmitStatusDuplicate = "duplicate"
)

// SubmitResult is the synchronous outcome of a relay submission
type SubmitResult struct {
	Status string `json:"status"`
	TaskID string `json:"task_id,omitempty"`
}

// Relay accepts signed meta-transactions and hands them to the worker pool.
// Submission is idempotent by request id: the same id is accepted exactly
// once no matter how many clients race it.
type Relay struct {
	store   store.Store
	oracle  chain.Oracle
	locker  *locker.Locker
	worker  *Worker
	pool    pond.Pool
	clock   adapter.Clock
	cfg     config.RelayConfig
	procCtx context.Context
}

// NewRelay creates a relay backed by a pond worker pool. procCtx bounds the
// lifetime of asynchronous submissions; cancelling it drains the pool.
func NewRelay(procCtx context.Context, st store.Store, oracle chain.Oracle, lk *locker.Locker, worker *Worker, clock adapter.Clock, cfg config.RelayConfig) *Relay {
	return &Relay{
		store:  st,
		oracle: oracle,
		locker: lk,
		worker: worker,
		pool: pond.NewPool(
			cfg.WorkerPoolSize,
			pond.WithQueueSize(cfg.WorkerQueueSize),
			pond.WithContext(procCtx),
		),
		clock:   clock,
		cfg:     cfg,
		procCtx: procCtx,
	}
}

// SystemRequestID derives the deterministic request id for a system-initiated
// operation (UUIDv5). Retries of the same logical operation collapse onto the
// same id and deduplicate at submission.
func SystemRequestID(operation string, capID domain.CapabilityID, userID string) string {
	name := fmt.Sprintf("%s:%s:%s", operation, capID, userID)
	return uuid.NewSHA1(relayNamespace, []byte(name)).String()
}

// Submit accepts one meta-transaction for asynchronous forwarding.
// The idempotency marker is claimed before anything is persisted or enqueued;
// losing the claim means another submitter owns the request id, confirmed
// against the durable row before the duplicate answer.
func (r *Relay) Submit(ctx context.Context, requestID string, typedData json.RawMessage, signature string) (*SubmitResult, error) {
	if _, err := uuid.Parse(requestID); err != nil {
		return nil, fmt.Errorf("invalid request id: %w", err)
	}

	acquired, err := r.locker.AcquireRequestMarker(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		// The marker alone is not proof of an accepted request: a submitter
		// that crashed between claiming it and persisting the row left no row
		// behind, and answering duplicate there would lose the request.
		existing, err := r.store.GetMetaTxRequest(ctx, requestID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up relay request: %w", err)
		}
		if existing != nil {
			return &SubmitResult{Status: SubmitStatusDuplicate}, nil
		}
		logger.WarnCtx(ctx, "request marker without a persisted row, re-accepting",
			zap.String("requestID", requestID))
	}

	// Fast non-authoritative rejection before the request is persisted. The
	// worker still runs the authoritative check.
	if r.cfg.Preflight {
		valid, err := r.oracle.VerifyForwardSignature(ctx, typedData, signature)
		if err != nil {
			logger.WarnCtx(ctx, "preflight signature check unavailable, continuing",
				zap.String("requestID", requestID),
				zap.Error(err))
		} else if !valid {
			if relErr := r.locker.ReleaseRequestMarker(ctx, requestID); relErr != nil {
				logger.WarnCtx(ctx, "failed to release request marker", zap.Error(relErr))
			}
			return nil, domain.ErrBadSignature
		}
	}

	taskID := ulid.MustNewDefault(r.clock.Now()).String()
	created, err := r.store.CreateMetaTxRequest(ctx, store.CreateMetaTxRequestInput{
		RequestID: requestID,
		TypedData: datatypes.JSON(typedData),
		Signature: signature,
		TaskID:    taskID,
	})
	if err != nil {
		// Row insert failed; free the marker so a clean retry can get through
		if relErr := r.locker.ReleaseRequestMarker(ctx, requestID); relErr != nil {
			logger.WarnCtx(ctx, "failed to release request marker", zap.Error(relErr))
		}
		return nil, fmt.Errorf("failed to persist relay request: %w", err)
	}
	if !created {
		// Marker was lost (flush, failover) but the durable row survived
		return &SubmitResult{Status: SubmitStatusDuplicate}, nil
	}

	r.enqueue(requestID)

	logger.InfoCtx(ctx, "relay request accepted",
		zap.String("requestID", requestID),
		zap.String("taskID", taskID))

	return &SubmitResult{Status: SubmitStatusQueued, TaskID: taskID}, nil
}

// enqueue hands a persisted request to the worker pool. The durable row is
// already written, so losing the pool (shutdown, saturation) only delays
// processing until the requeue sweep picks the row up again.
func (r *Relay) enqueue(requestID string) {
	r.pool.Submit(func() {
		r.worker.Process(r.procCtx, requestID)
	})
}

// Stop drains the worker pool, waiting for in-flight submissions
func (r *Relay) Stop() {
	r.pool.StopAndWait()
}
