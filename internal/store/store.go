package store

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/filevault/fv-registry/internal/store/schema"
)

// CreateGrantInput carries the fields for a new pending grant record
type CreateGrantInput struct {
	CapID        string
	FileID       string
	GrantorID    string
	GranteeID    string
	ExpiresAt    time.Time
	MaxDownloads uint64
}

// CreateMetaTxRequestInput carries the fields for a new relay request row
type CreateMetaTxRequestInput struct {
	RequestID string
	TypedData datatypes.JSON
	Signature string
	TaskID    string
}

// CreateEventInput carries the fields for a new domain event row
type CreateEventInput struct {
	Type        string
	PeriodID    int64
	FileID      *string
	UserID      *string
	PayloadHash string
	Timestamp   time.Time
}

// Store defines the interface for database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// CreateGrant inserts a pending grant record; inserting an existing
	// cap_id is a no-op and reports created=false
	CreateGrant(ctx context.Context, input CreateGrantInput) (bool, error)
	// GetGrant retrieves a grant by capability id, nil when absent
	GetGrant(ctx context.Context, capID string) (*schema.Grant, error)
	// GrantExists reports whether a grant row exists for the capability id
	GrantExists(ctx context.Context, capID string) (bool, error)
	// MarkGrantConfirmed records that the granting transaction was mined
	MarkGrantConfirmed(ctx context.Context, capID string, txHash string) error
	// MirrorGrantUsage updates the best-effort mirror of on-chain usage
	MirrorGrantUsage(ctx context.Context, capID string, usedDownloads uint64, revokedAt *time.Time) error

	// CreateMetaTxRequest inserts a queued relay request; inserting an
	// existing request_id is a no-op and reports created=false
	CreateMetaTxRequest(ctx context.Context, input CreateMetaTxRequestInput) (bool, error)
	// GetMetaTxRequest retrieves a relay request by id, nil when absent
	GetMetaTxRequest(ctx context.Context, requestID string) (*schema.MetaTxRequest, error)
	// ClaimMetaTxRequest transitions a row to sent and bumps attempts, but
	// only for a queued row or a sent row whose last transition is older than
	// staleAfter. Exactly one concurrent claimer wins; the rest get false.
	ClaimMetaTxRequest(ctx context.Context, requestID string, staleAfter time.Duration) (bool, error)
	// MarkMetaTxMined transitions sent -> mined with the transaction hash.
	// A mined row is terminal and never regresses.
	MarkMetaTxMined(ctx context.Context, requestID string, txHash string) error
	// MarkMetaTxFailed transitions queued|sent -> failed with the last error
	MarkMetaTxFailed(ctx context.Context, requestID string, lastError string) error
	// ListRequeueableMetaTxRequests returns queued and sent rows whose last
	// transition is older than staleAfter, ordered by updated_at. The age
	// floor keeps the sweep off rows the in-process pool is still working.
	ListRequeueableMetaTxRequests(ctx context.Context, staleAfter time.Duration, limit int) ([]schema.MetaTxRequest, error)

	// CreateAnchor inserts an anchor for a period; when a row already exists
	// the existing row is returned unchanged (idempotent)
	CreateAnchor(ctx context.Context, anchor schema.Anchor) (*schema.Anchor, error)
	// GetAnchor retrieves an anchor by period id, nil when absent
	GetAnchor(ctx context.Context, periodID int64) (*schema.Anchor, error)
	// GetLatestAnchor retrieves the anchor with the highest period id, nil
	// when none exist
	GetLatestAnchor(ctx context.Context) (*schema.Anchor, error)
	// AttachAnchorTxHash fills in the anchoring transaction hash once; a
	// non-null tx_hash is never overwritten
	AttachAnchorTxHash(ctx context.Context, periodID int64, txHash string) error

	// CreateEvent appends a domain event
	CreateEvent(ctx context.Context, input CreateEventInput) (*schema.Event, error)
	// ListEventsByPeriod returns a period's events ordered by id
	ListEventsByPeriod(ctx context.Context, periodID int64) ([]schema.Event, error)
	// CountEventsByPeriod returns the number of events in a period
	CountEventsByPeriod(ctx context.Context, periodID int64) (int64, error)

	// GetValue retrieves a value from the key-value store, "" when absent
	GetValue(ctx context.Context, key string) (string, error)
	// SetValue upserts a value in the key-value store
	SetValue(ctx context.Context, key string, value string) error
}
