package chain

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/filevault/fv-registry/internal/domain"
)

// ForwardRequest is the parsed message portion of the EIP-712 typed data a
// grantor signs for gasless execution through the trusted forwarder.
type ForwardRequest struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
	Gas   uint64 `json:"gas"`
	Nonce uint64 `json:"nonce"`
	Data  string `json:"data"`
}

// TypedData is the EIP-712 envelope relayed on behalf of the grantor. Only
// the message is consumed here; domain/types travel along for signature
// verification by the forwarder.
type TypedData struct {
	Domain  json.RawMessage `json:"domain"`
	Types   json.RawMessage `json:"types"`
	Message ForwardRequest  `json:"message"`
}

// GrantEvent is a registry contract event decoded from a receipt.
type GrantEvent struct {
	Type          domain.EventType
	CapID         domain.CapabilityID
	Grantor       string
	Grantee       string
	UsedDownloads uint64
	TxHash        string
}

// Oracle is the read/write gateway to the on-chain registry and forwarder
// contracts. All methods perform network I/O with bounded timeouts.
//
//go:generate mockgen -source=oracle.go -destination=../mocks/oracle.go -package=mocks -mock_names=Oracle=MockOracle
type Oracle interface {
	// ReadGrant fetches the on-chain grant record for a capability id.
	// The returned record has a zero CreatedAt when the granting
	// transaction has not been mined yet.
	ReadGrant(ctx context.Context, capID domain.CapabilityID) (*domain.OnChainGrant, error)

	// ReadNonce returns the grantor's current registry nonce, used for
	// capability id prediction
	ReadNonce(ctx context.Context, address string) (uint64, error)

	// VerifyForwardSignature asks the forwarder whether the signature over
	// the typed data is valid (view call, authoritative)
	VerifyForwardSignature(ctx context.Context, typedData json.RawMessage, signature string) (bool, error)

	// ExecuteForward submits the forwarding transaction signed by the
	// relayer and waits for the receipt. A reverted execution returns
	// ErrExecutionReverted.
	ExecuteForward(ctx context.Context, typedData json.RawMessage, signature string) (*types.Receipt, error)

	// AnchorRoot submits a period's Merkle root to the registry and returns
	// the transaction hash without waiting for inclusion
	AnchorRoot(ctx context.Context, periodID int64, root [32]byte) (string, error)

	// DecodeGrantEvents decodes registry events from a receipt
	DecodeGrantEvents(receipt *types.Receipt) ([]GrantEvent, error)

	// Close closes the connection
	Close()
}
