package eventlog

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gowebpki/jcs"
	"go.uber.org/zap"

	"github.com/filevault/fv-registry/internal/adapter"
	"github.com/filevault/fv-registry/internal/domain"
	"github.com/filevault/fv-registry/internal/logger"
	"github.com/filevault/fv-registry/internal/store"
	"github.com/filevault/fv-registry/internal/store/schema"
)

// notification is the fan-out payload published to JetStream alongside each
// appended event. Consumers needing the full payload read the database.
type notification struct {
	Type        string `json:"type"`
	PayloadHash string `json:"payload_hash"`
	PeriodID    int64  `json:"period_id"`
}

// Logger appends domain events to the anchorable event log. Rows are
// append-only; the payload itself is never stored, only its hash over the
// canonicalized JSON form.
type Logger struct {
	store         store.Store
	js            adapter.JetStream
	clock         adapter.Clock
	period        time.Duration
	subjectPrefix string
}

// NewLogger creates an event logger. js may be nil when no notification
// fan-out is wired.
func NewLogger(st store.Store, js adapter.JetStream, clock adapter.Clock, period time.Duration, subjectPrefix string) *Logger {
	if subjectPrefix == "" {
		subjectPrefix = "fvregistry.events"
	}
	return &Logger{
		store:         st,
		js:            js,
		clock:         clock,
		period:        period,
		subjectPrefix: subjectPrefix,
	}
}

// PayloadHash canonicalizes the payload (RFC 8785) and returns the keccak256
// digest of the canonical bytes. Two payloads that differ only in key order
// or whitespace hash identically.
func PayloadHash(payload any) ([32]byte, error) {
	var out [32]byte

	raw, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("failed to marshal payload: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return out, fmt.Errorf("failed to canonicalize payload: %w", err)
	}

	copy(out[:], crypto.Keccak256(canonical))
	return out, nil
}

// Log appends one event. The timestamp defaults to the current time; passing
// ts pins it, which receipt-driven callers use to bucket the event into the
// period the chain observed.
func (l *Logger) Log(ctx context.Context, eventType domain.EventType, payload any, fileID *domain.FileID, userID *string, ts ...time.Time) (*schema.Event, error) {
	hash, err := PayloadHash(payload)
	if err != nil {
		return nil, err
	}

	timestamp := l.clock.Now().UTC()
	if len(ts) > 0 {
		timestamp = ts[0].UTC()
	}

	input := store.CreateEventInput{
		Type:        string(eventType),
		PeriodID:    domain.PeriodID(timestamp, l.period),
		PayloadHash: "0x" + hex.EncodeToString(hash[:]),
		Timestamp:   timestamp,
	}
	if fileID != nil {
		s := string(*fileID)
		input.FileID = &s
	}
	if userID != nil {
		input.UserID = userID
	}

	event, err := l.store.CreateEvent(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	l.notify(ctx, event)
	return event, nil
}

// notify publishes the fan-out message. Failures are logged and swallowed;
// the appended row is the source of truth and anchoring does not depend on
// delivery.
func (l *Logger) notify(ctx context.Context, event *schema.Event) {
	if l.js == nil {
		return
	}

	data, err := json.Marshal(notification{
		Type:        event.Type,
		PayloadHash: event.PayloadHash,
		PeriodID:    event.PeriodID,
	})
	if err != nil {
		logger.WarnCtx(ctx, "failed to marshal event notification", zap.Error(err))
		return
	}

	subject := fmt.Sprintf("%s.%s", l.subjectPrefix, event.Type)
	if _, err := l.js.Publish(ctx, subject, data); err != nil {
		logger.WarnCtx(ctx, "failed to publish event notification",
			zap.String("subject", subject),
			zap.Uint64("eventID", event.ID),
			zap.Error(err))
	}
}
