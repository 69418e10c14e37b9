package schema

import (
	"time"

	"gorm.io/datatypes"
)

// MetaTxStatus is the relay lifecycle status of a meta-transaction request
type MetaTxStatus string

const (
	// MetaTxStatusQueued is a persisted request waiting for a worker
	MetaTxStatusQueued MetaTxStatus = "queued"
	// MetaTxStatusSent is a request picked up by a worker and being submitted
	MetaTxStatusSent MetaTxStatus = "sent"
	// MetaTxStatusMined is a request whose forwarding transaction was mined
	MetaTxStatusMined MetaTxStatus = "mined"
	// MetaTxStatusFailed is a request that exhausted its retry budget or was
	// rejected terminally (bad signature, contract revert)
	MetaTxStatusFailed MetaTxStatus = "failed"
)

// MetaTxRequest represents the meta_tx_requests table - the durable record
// behind relay idempotency. At most one non-failed row exists per request id.
type MetaTxRequest struct {
	// RequestID is the client-supplied idempotency key (UUID). System
	// callers derive it with uuid5 so retries of the same logical operation
	// collapse onto one row.
	RequestID string `gorm:"column:request_id;primaryKey;type:varchar(36)"`
	// TypedData is the EIP-712 payload being relayed, as JSON
	TypedData datatypes.JSON `gorm:"column:typed_data;not null;type:jsonb"`
	// Signature is the grantor's signature over TypedData (0x-prefixed hex)
	Signature string `gorm:"column:signature;not null;type:text"`
	// Status is the forward-only relay status
	Status MetaTxStatus `gorm:"column:status;not null;default:queued;type:text;index:idx_meta_tx_status_updated,priority:1"`
	// TaskID identifies the worker task processing this request (ULID)
	TaskID string `gorm:"column:task_id;not null;type:varchar(26)"`
	// Attempts is the number of submission attempts made
	Attempts int `gorm:"column:attempts;not null;default:0"`
	// TxHash is the forwarding transaction hash once submitted
	TxHash *string `gorm:"column:tx_hash;type:varchar(66)"`
	// LastError records the most recent submission error
	LastError *string `gorm:"column:last_error;type:text"`
	// CreatedAt is the timestamp the request was accepted
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp of the last status transition; the requeue
	// sweep scans (status, updated_at) for orphaned work
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz;index:idx_meta_tx_status_updated,priority:2"`
}

// TableName specifies the table name for the MetaTxRequest model
func (MetaTxRequest) TableName() string {
	return "meta_tx_requests"
}
