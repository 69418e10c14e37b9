package schema

import "time"

// Anchor represents the anchors table - one immutable Merkle commitment per
// closed period. The only permitted update is attaching the transaction hash
// after the root is submitted on-chain.
type Anchor struct {
	// PeriodID is floor(event timestamp / period duration)
	PeriodID int64 `gorm:"column:period_id;primaryKey;autoIncrement:false"`
	// MerkleRoot is the 32-byte root over the period's event leaves, in
	// 0x-prefixed hex. All-zero when the period had no events.
	MerkleRoot string `gorm:"column:merkle_root;not null;type:varchar(66)"`
	// EventCount is the number of leaves committed by the root
	EventCount int64 `gorm:"column:event_count;not null;default:0"`
	// TxHash is the anchoring transaction hash, null until submitted
	TxHash *string `gorm:"column:tx_hash;type:varchar(66)"`
	// CreatedAt is the timestamp the anchor row was computed
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Anchor model
func (Anchor) TableName() string {
	return "anchors"
}
