package schema

import "time"

// Event represents the events table - the append-only domain event log that
// anchoring commits to. Rows carry only a digest of the event payload, never
// the payload itself, so anchored state cannot leak PII.
type Event struct {
	// ID is an auto-incrementing sequence number; period retrieval orders by
	// it for deterministic Merkle roots
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Type is the domain event kind (file.registered, grant.created, ...)
	Type string `gorm:"column:type;not null;type:text"`
	// PeriodID is floor(ts / period duration); must agree with Timestamp
	PeriodID int64 `gorm:"column:period_id;not null;index:idx_events_period_id,priority:1"`
	// FileID optionally references the file the event concerns
	FileID *string `gorm:"column:file_id;type:varchar(66)"`
	// UserID optionally references the acting user
	UserID *string `gorm:"column:user_id;type:text"`
	// PayloadHash is the keccak256 digest of the canonicalized JSON payload
	PayloadHash string `gorm:"column:payload_hash;not null;type:varchar(66)"`
	// Timestamp is the event time
	Timestamp time.Time `gorm:"column:ts;not null;type:timestamptz"`
}

// TableName specifies the table name for the Event model
func (Event) TableName() string {
	return "events"
}
