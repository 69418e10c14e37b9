package domain

import (
	"encoding/hex"
	"strings"
	"time"
)

// CapabilityID is the 32-byte capability identifier in 0x-prefixed hex.
// It is derived, never random: keccak256(grantor || grantee || fileId || nonce+offset),
// the same digest the registry contract emits in its GrantCreated event.
type CapabilityID string

// FileID is the 32-byte file identifier in 0x-prefixed hex.
type FileID string

// GrantStatus is the derived exercisability state of a capability.
// It is never stored as truth; the reconciler recomputes it at read time.
type GrantStatus string

const (
	// GrantStatusPending means the granting transaction has not been mined yet
	GrantStatusPending GrantStatus = "pending"
	// GrantStatusConfirmed means the grant is live on-chain and exercisable
	GrantStatusConfirmed GrantStatus = "confirmed"
	// GrantStatusRevoked means the grantor revoked the capability
	GrantStatusRevoked GrantStatus = "revoked"
	// GrantStatusExpired means the expiry timestamp has passed
	GrantStatusExpired GrantStatus = "expired"
	// GrantStatusExhausted means all permitted downloads were used
	GrantStatusExhausted GrantStatus = "exhausted"
)

// MetaTxStatus is the relay-side lifecycle of a meta-transaction request.
// Transitions are forward-only: queued -> sent -> mined | failed.
type MetaTxStatus string

const (
	MetaTxStatusQueued MetaTxStatus = "queued"
	MetaTxStatusSent   MetaTxStatus = "sent"
	MetaTxStatusMined  MetaTxStatus = "mined"
	MetaTxStatusFailed MetaTxStatus = "failed"
)

// EventType identifies a domain event kind in the anchored event log.
type EventType string

const (
	EventTypeFileRegistered EventType = "file.registered"
	EventTypeGrantCreated   EventType = "grant.created"
	EventTypeGrantRevoked   EventType = "grant.revoked"
	EventTypeGrantUsed      EventType = "grant.used"
	EventTypeAnchorCreated  EventType = "anchor.created"
)

// GrantView is the reconciled, authoritative read of a capability.
type GrantView struct {
	CapID         CapabilityID `json:"cap_id"`
	FileID        FileID       `json:"file_id"`
	GrantorID     string       `json:"grantor_id"`
	GranteeID     string       `json:"grantee_id"`
	Status        GrantStatus  `json:"status"`
	UsedDownloads uint64       `json:"used_downloads"`
	MaxDownloads  uint64       `json:"max_downloads"`
	ExpiresAt     time.Time    `json:"expires_at"`
	// OnChain reports whether the chain record backed this view or the
	// off-chain cache was used as a fallback.
	OnChain bool `json:"on_chain"`
}

// OnChainGrant is the grant record as read from the registry contract.
// A zero CreatedAt means the granting transaction has not been mined.
type OnChainGrant struct {
	Grantor       string
	Grantee       string
	FileID        FileID
	ExpiresAt     time.Time
	MaxDownloads  uint64
	UsedDownloads uint64
	CreatedAt     time.Time
	Revoked       bool
}

// Mined reports whether the grant exists on-chain.
func (g *OnChainGrant) Mined() bool {
	return !g.CreatedAt.IsZero()
}

// hex32Valid reports whether s is a 0x-prefixed 32-byte hex string.
func hex32Valid(s string) bool {
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// Valid reports whether the capability id is well-formed.
func (c CapabilityID) Valid() bool {
	return hex32Valid(string(c))
}

// Bytes32 decodes the capability id into a fixed 32-byte array.
// The id must be valid.
func (c CapabilityID) Bytes32() [32]byte {
	var out [32]byte
	b, _ := hex.DecodeString(strings.TrimPrefix(string(c), "0x"))
	copy(out[:], b)
	return out
}

// NewCapabilityID builds a capability id from a raw 32-byte digest.
func NewCapabilityID(digest [32]byte) CapabilityID {
	return CapabilityID("0x" + hex.EncodeToString(digest[:]))
}

// Valid reports whether the file id is well-formed.
func (f FileID) Valid() bool {
	return hex32Valid(string(f))
}

// Bytes32 decodes the file id into a fixed 32-byte array.
func (f FileID) Bytes32() [32]byte {
	var out [32]byte
	b, _ := hex.DecodeString(strings.TrimPrefix(string(f), "0x"))
	copy(out[:], b)
	return out
}

// NewFileID builds a file id from a raw 32-byte digest.
func NewFileID(digest [32]byte) FileID {
	return FileID("0x" + hex.EncodeToString(digest[:]))
}

// PeriodID computes the anchoring period bucket for a timestamp.
func PeriodID(ts time.Time, period time.Duration) int64 {
	return ts.Unix() / int64(period.Seconds())
}
