package schema

import (
	"time"
)

// Grant represents the grants table - the off-chain cache of capability
// grants. Fields mirror on-chain state but are never authoritative when the
// chain is reachable; the reconciler derives the effective status at read
// time. Rows are created pending and are never deleted, only superseded.
type Grant struct {
	// CapID is the derived 32-byte capability identifier in 0x-prefixed hex
	CapID string `gorm:"column:cap_id;primaryKey;type:varchar(66)"`
	// FileID is the 32-byte file identifier this capability covers
	FileID string `gorm:"column:file_id;not null;type:varchar(66);index:idx_grants_file_id"`
	// GrantorID is the sharing user's identifier (their address)
	GrantorID string `gorm:"column:grantor_id;not null;type:text"`
	// GranteeID is the receiving user's identifier (their address)
	GranteeID string `gorm:"column:grantee_id;not null;type:text;index:idx_grants_grantee_expires,priority:1"`
	// ExpiresAt is the capability expiry timestamp
	ExpiresAt time.Time `gorm:"column:expires_at;not null;type:timestamptz;index:idx_grants_grantee_expires,priority:2"`
	// MaxDownloads is the permitted download count (>= 1)
	MaxDownloads uint64 `gorm:"column:max_downloads;not null"`
	// UsedDownloads is a best-effort mirror of the on-chain usage counter
	UsedDownloads uint64 `gorm:"column:used_downloads;not null;default:0"`
	// RevokedAt mirrors the on-chain revocation timestamp once observed
	RevokedAt *time.Time `gorm:"column:revoked_at;type:timestamptz"`
	// Confirmed is set once the granting transaction has been observed mined
	Confirmed bool `gorm:"column:confirmed;not null;default:false"`
	// TxHash is the transaction that executed the grant on-chain
	TxHash *string `gorm:"column:tx_hash;type:varchar(66)"`
	// CreatedAt is the timestamp the share request was accepted off-chain
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp of the last mirror update
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Grant model
func (Grant) TableName() string {
	return "grants"
}
