package dto

import (
	"encoding/json"
	"time"

	"github.com/filevault/fv-registry/internal/domain"
	"github.com/filevault/fv-registry/internal/store/schema"
)

// PredictGrantRequest asks for the capability id the next grant transaction
// for this triple will produce
type PredictGrantRequest struct {
	Grantor string `json:"grantor" binding:"required"`
	Grantee string `json:"grantee" binding:"required"`
	FileID  string `json:"file_id" binding:"required"`
}

// PredictGrantResponse carries the predicted capability id
type PredictGrantResponse struct {
	CapID  string `json:"cap_id"`
	Offset uint64 `json:"offset"`
}

// CreateGrantRequest accepts a share and records the pending grant under the
// predicted capability id
type CreateGrantRequest struct {
	Grantee      string    `json:"grantee" binding:"required"`
	FileID       string    `json:"file_id" binding:"required"`
	ExpiresAt    time.Time `json:"expires_at" binding:"required"`
	MaxDownloads uint64    `json:"max_downloads" binding:"required,min=1"`
}

// CreateGrantResponse carries the pending grant's capability id
type CreateGrantResponse struct {
	CapID  string `json:"cap_id"`
	Status string `json:"status"`
}

// GrantResponse is the reconciled grant view
type GrantResponse struct {
	CapID         string    `json:"cap_id"`
	FileID        string    `json:"file_id"`
	GrantorID     string    `json:"grantor_id"`
	GranteeID     string    `json:"grantee_id"`
	Status        string    `json:"status"`
	UsedDownloads uint64    `json:"used_downloads"`
	MaxDownloads  uint64    `json:"max_downloads"`
	ExpiresAt     time.Time `json:"expires_at"`
	OnChain       bool      `json:"on_chain"`
}

// NewGrantResponse maps a reconciled view to the response shape
func NewGrantResponse(view *domain.GrantView) GrantResponse {
	return GrantResponse{
		CapID:         string(view.CapID),
		FileID:        string(view.FileID),
		GrantorID:     view.GrantorID,
		GranteeID:     view.GranteeID,
		Status:        string(view.Status),
		UsedDownloads: view.UsedDownloads,
		MaxDownloads:  view.MaxDownloads,
		ExpiresAt:     view.ExpiresAt,
		OnChain:       view.OnChain,
	}
}

// SubmitRelayRequest carries a signed meta-transaction
type SubmitRelayRequest struct {
	RequestID string          `json:"request_id" binding:"required"`
	TypedData json.RawMessage `json:"typed_data" binding:"required"`
	Signature string          `json:"signature" binding:"required"`
}

// AnchorResponse is an anchor record
type AnchorResponse struct {
	PeriodID   int64     `json:"period_id"`
	MerkleRoot string    `json:"merkle_root"`
	EventCount int64     `json:"event_count"`
	TxHash     *string   `json:"tx_hash,omitempty"`
	AnchoredAt time.Time `json:"anchored_at"`
}

// NewAnchorResponse maps an anchor row to the response shape
func NewAnchorResponse(anchor *schema.Anchor) AnchorResponse {
	return AnchorResponse{
		PeriodID:   anchor.PeriodID,
		MerkleRoot: anchor.MerkleRoot,
		EventCount: anchor.EventCount,
		TxHash:     anchor.TxHash,
		AnchoredAt: anchor.CreatedAt,
	}
}
