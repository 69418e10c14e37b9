package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/filevault/fv-registry/internal/adapter"
)

const (
	relayMarkerPrefix    = "relay:req:"
	scheduleMarkerPrefix = "anchor:sched:"
)

// RequestMarkerTTL bounds how long a submit marker can outlive its database
// row. A submitter that crashes between claiming the marker and inserting the
// row would otherwise wedge the request id forever; after the TTL the id is
// submittable again, and the row keyed by the same id keeps true duplicates
// deduplicated past expiry.
const RequestMarkerTTL = 24 * time.Hour

// Locker coordinates the at-most-once markers shared by all API and worker
// instances. Markers live in Redis; the database rows behind them stay the
// durable record, the markers only close races between concurrent submitters.
type Locker struct {
	redis adapter.RedisClient
}

// New creates a locker over the shared Redis instance
func New(redis adapter.RedisClient) *Locker {
	return &Locker{redis: redis}
}

// AcquireRequestMarker claims the submit marker for a meta-tx request id.
// Returns false when another submitter already holds it. Relay rows are keyed
// by the same id, so a marker lost to the TTL or a flush still resolves to
// duplicate via the row.
func (l *Locker) AcquireRequestMarker(ctx context.Context, requestID string) (bool, error) {
	ok, err := l.redis.SetNX(ctx, relayMarkerPrefix+requestID, "1", RequestMarkerTTL)
	if err != nil {
		return false, fmt.Errorf("failed to acquire request marker: %w", err)
	}
	return ok, nil
}

// ReleaseRequestMarker drops the submit marker so a failed persist does not
// wedge the request id
func (l *Locker) ReleaseRequestMarker(ctx context.Context, requestID string) error {
	if err := l.redis.Del(ctx, relayMarkerPrefix+requestID); err != nil {
		return fmt.Errorf("failed to release request marker: %w", err)
	}
	return nil
}

// AcquireScheduleSlot claims the anchoring slot for a period across scheduler
// replicas. The TTL bounds how long a crashed holder blocks the period;
// anchoring itself is idempotent, so a re-run after expiry is harmless.
func (l *Locker) AcquireScheduleSlot(ctx context.Context, periodID int64, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("%s%d", scheduleMarkerPrefix, periodID)
	ok, err := l.redis.SetNX(ctx, key, "1", ttl)
	if err != nil {
		return false, fmt.Errorf("failed to acquire schedule slot: %w", err)
	}
	return ok, nil
}
