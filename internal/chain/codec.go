package chain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/filevault/fv-registry/internal/domain"
)

// Event signatures emitted by the v1 registry contract
var (
	grantCreatedEventSignature = crypto.Keccak256Hash([]byte("GrantCreated(bytes32,address,address)"))
	grantRevokedEventSignature = crypto.Keccak256Hash([]byte("GrantRevoked(bytes32,address)"))
	grantUsedEventSignature    = crypto.Keccak256Hash([]byte("GrantUsed(bytes32,address,uint32)"))
	fileRegisteredSignature    = crypto.Keccak256Hash([]byte("FileRegistered(bytes32,address)"))
	anchorSubmittedSignature   = crypto.Keccak256Hash([]byte("AnchorSubmitted(uint256,bytes32)"))
)

// ContractCodec encodes calls to and decodes results from one known revision
// of the registry/forwarder contract pair. One implementation exists per
// deployed contract shape; the active one is selected at configuration time.
type ContractCodec interface {
	// Version returns the contract revision this codec speaks
	Version() string

	// PackReadGrant encodes the grants(bytes32) view call
	PackReadGrant(capID [32]byte) ([]byte, error)
	// UnpackGrant decodes the grants(bytes32) return data
	UnpackGrant(data []byte) (*domain.OnChainGrant, error)

	// PackReadNonce encodes the nonces(address) view call
	PackReadNonce(address common.Address) ([]byte, error)
	// UnpackNonce decodes the nonces(address) return data
	UnpackNonce(data []byte) (uint64, error)

	// PackVerify encodes the forwarder verify(req, signature) view call
	PackVerify(req ForwardRequest, signature []byte) ([]byte, error)
	// UnpackVerify decodes the verify return data
	UnpackVerify(data []byte) (bool, error)

	// PackExecute encodes the forwarder execute(req, signature) call
	PackExecute(req ForwardRequest, signature []byte) ([]byte, error)

	// PackAnchor encodes the registry anchor(periodId, root) call
	PackAnchor(periodID int64, root [32]byte) ([]byte, error)

	// DecodeGrantEvents decodes registry events from receipt logs
	DecodeGrantEvents(logs []*types.Log) ([]GrantEvent, error)
}

// NewCodec returns the codec for a configured contract version
func NewCodec(version string) (ContractCodec, error) {
	switch version {
	case "v1", "":
		return newRegistryV1Codec()
	default:
		return nil, fmt.Errorf("unknown contract version: %s", version)
	}
}

const registryV1ABI = `[
	{"constant":true,"inputs":[{"name":"capId","type":"bytes32"}],"name":"grants","outputs":[{"name":"grantor","type":"address"},{"name":"grantee","type":"address"},{"name":"fileId","type":"bytes32"},{"name":"expiresAt","type":"uint64"},{"name":"maxDownloads","type":"uint32"},{"name":"usedDownloads","type":"uint32"},{"name":"createdAt","type":"uint64"},{"name":"revoked","type":"bool"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"nonces","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"periodId","type":"uint256"},{"name":"root","type":"bytes32"}],"name":"anchor","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const forwarderV1ABI = `[
	{"constant":true,"inputs":[{"components":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"gas","type":"uint256"},{"name":"nonce","type":"uint256"},{"name":"data","type":"bytes"}],"name":"req","type":"tuple"},{"name":"signature","type":"bytes"}],"name":"verify","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"components":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"gas","type":"uint256"},{"name":"nonce","type":"uint256"},{"name":"data","type":"bytes"}],"name":"req","type":"tuple"},{"name":"signature","type":"bytes"}],"name":"execute","outputs":[{"name":"","type":"bool"},{"name":"","type":"bytes"}],"stateMutability":"payable","type":"function"}
]`

// forwardRequestArg mirrors the forwarder's request tuple for ABI packing
type forwardRequestArg struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Gas   *big.Int
	Nonce *big.Int
	Data  []byte
}

type registryV1Codec struct {
	registry  abi.ABI
	forwarder abi.ABI
}

func newRegistryV1Codec() (*registryV1Codec, error) {
	registry, err := abi.JSON(strings.NewReader(registryV1ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}
	forwarder, err := abi.JSON(strings.NewReader(forwarderV1ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse forwarder ABI: %w", err)
	}
	return &registryV1Codec{registry: registry, forwarder: forwarder}, nil
}

func (c *registryV1Codec) Version() string {
	return "v1"
}

func (c *registryV1Codec) PackReadGrant(capID [32]byte) ([]byte, error) {
	data, err := c.registry.Pack("grants", capID)
	if err != nil {
		return nil, fmt.Errorf("failed to pack grants call: %w", err)
	}
	return data, nil
}

func (c *registryV1Codec) UnpackGrant(data []byte) (*domain.OnChainGrant, error) {
	values, err := c.registry.Unpack("grants", data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack grants result: %w", err)
	}
	if len(values) != 8 {
		return nil, fmt.Errorf("unexpected grants result arity: %d", len(values))
	}

	grantor, ok := values[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected grantor type %T", values[0])
	}
	grantee, ok := values[1].(common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected grantee type %T", values[1])
	}
	fileID, ok := values[2].([32]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected fileId type %T", values[2])
	}
	expiresAt, ok := values[3].(uint64)
	if !ok {
		return nil, fmt.Errorf("unexpected expiresAt type %T", values[3])
	}
	maxDownloads, ok := values[4].(uint32)
	if !ok {
		return nil, fmt.Errorf("unexpected maxDownloads type %T", values[4])
	}
	usedDownloads, ok := values[5].(uint32)
	if !ok {
		return nil, fmt.Errorf("unexpected usedDownloads type %T", values[5])
	}
	createdAt, ok := values[6].(uint64)
	if !ok {
		return nil, fmt.Errorf("unexpected createdAt type %T", values[6])
	}
	revoked, ok := values[7].(bool)
	if !ok {
		return nil, fmt.Errorf("unexpected revoked type %T", values[7])
	}

	grant := &domain.OnChainGrant{
		Grantor:       grantor.Hex(),
		Grantee:       grantee.Hex(),
		FileID:        domain.NewFileID(fileID),
		MaxDownloads:  uint64(maxDownloads),
		UsedDownloads: uint64(usedDownloads),
		Revoked:       revoked,
	}
	if expiresAt > 0 {
		grant.ExpiresAt = time.Unix(int64(expiresAt), 0).UTC() //nolint:gosec,G115 // contract timestamps fit in int64
	}
	// createdAt == 0 is the contract's "not yet mined" marker; a zero
	// time.Time carries the same meaning here
	if createdAt > 0 {
		grant.CreatedAt = time.Unix(int64(createdAt), 0).UTC() //nolint:gosec,G115 // contract timestamps fit in int64
	}
	return grant, nil
}

func (c *registryV1Codec) PackReadNonce(address common.Address) ([]byte, error) {
	data, err := c.registry.Pack("nonces", address)
	if err != nil {
		return nil, fmt.Errorf("failed to pack nonces call: %w", err)
	}
	return data, nil
}

func (c *registryV1Codec) UnpackNonce(data []byte) (uint64, error) {
	values, err := c.registry.Unpack("nonces", data)
	if err != nil {
		return 0, fmt.Errorf("failed to unpack nonces result: %w", err)
	}
	nonce, ok := values[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected nonce type %T", values[0])
	}
	return nonce.Uint64(), nil
}

func (c *registryV1Codec) packForwarder(method string, req ForwardRequest, signature []byte) ([]byte, error) {
	arg, err := toForwardRequestArg(req)
	if err != nil {
		return nil, err
	}
	data, err := c.forwarder.Pack(method, arg, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	return data, nil
}

func (c *registryV1Codec) PackVerify(req ForwardRequest, signature []byte) ([]byte, error) {
	return c.packForwarder("verify", req, signature)
}

func (c *registryV1Codec) UnpackVerify(data []byte) (bool, error) {
	values, err := c.forwarder.Unpack("verify", data)
	if err != nil {
		return false, fmt.Errorf("failed to unpack verify result: %w", err)
	}
	valid, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected verify result type %T", values[0])
	}
	return valid, nil
}

func (c *registryV1Codec) PackExecute(req ForwardRequest, signature []byte) ([]byte, error) {
	return c.packForwarder("execute", req, signature)
}

func (c *registryV1Codec) PackAnchor(periodID int64, root [32]byte) ([]byte, error) {
	data, err := c.registry.Pack("anchor", big.NewInt(periodID), root)
	if err != nil {
		return nil, fmt.Errorf("failed to pack anchor call: %w", err)
	}
	return data, nil
}

// DecodeGrantEvents decodes registry events from receipt logs. Unknown
// events are skipped so foreign contract logs in the same receipt do not
// fail decoding.
func (c *registryV1Codec) DecodeGrantEvents(logs []*types.Log) ([]GrantEvent, error) {
	events := make([]GrantEvent, 0, len(logs))

	for _, vLog := range logs {
		if len(vLog.Topics) == 0 {
			continue
		}

		switch vLog.Topics[0] {
		case grantCreatedEventSignature:
			// GrantCreated(bytes32 indexed capId, address indexed grantor, address indexed grantee)
			if len(vLog.Topics) != 4 {
				return nil, fmt.Errorf("invalid GrantCreated event: expected 4 topics, got %d", len(vLog.Topics))
			}
			events = append(events, GrantEvent{
				Type:    domain.EventTypeGrantCreated,
				CapID:   domain.NewCapabilityID(vLog.Topics[1]),
				Grantor: common.BytesToAddress(vLog.Topics[2].Bytes()).Hex(),
				Grantee: common.BytesToAddress(vLog.Topics[3].Bytes()).Hex(),
				TxHash:  vLog.TxHash.Hex(),
			})

		case grantRevokedEventSignature:
			// GrantRevoked(bytes32 indexed capId, address indexed grantor)
			if len(vLog.Topics) != 3 {
				return nil, fmt.Errorf("invalid GrantRevoked event: expected 3 topics, got %d", len(vLog.Topics))
			}
			events = append(events, GrantEvent{
				Type:    domain.EventTypeGrantRevoked,
				CapID:   domain.NewCapabilityID(vLog.Topics[1]),
				Grantor: common.BytesToAddress(vLog.Topics[2].Bytes()).Hex(),
				TxHash:  vLog.TxHash.Hex(),
			})

		case grantUsedEventSignature:
			// GrantUsed(bytes32 indexed capId, address indexed grantee, uint32 usedDownloads)
			if len(vLog.Topics) != 3 {
				return nil, fmt.Errorf("invalid GrantUsed event: expected 3 topics, got %d", len(vLog.Topics))
			}
			if len(vLog.Data) < 32 {
				return nil, fmt.Errorf("invalid GrantUsed event: insufficient data")
			}
			events = append(events, GrantEvent{
				Type:          domain.EventTypeGrantUsed,
				CapID:         domain.NewCapabilityID(vLog.Topics[1]),
				Grantee:       common.BytesToAddress(vLog.Topics[2].Bytes()).Hex(),
				UsedDownloads: new(big.Int).SetBytes(vLog.Data[0:32]).Uint64(),
				TxHash:        vLog.TxHash.Hex(),
			})

		case fileRegisteredSignature, anchorSubmittedSignature:
			// Registry events with no grant to mirror
			continue

		default:
			continue
		}
	}

	return events, nil
}

func toForwardRequestArg(req ForwardRequest) (forwardRequestArg, error) {
	if !common.IsHexAddress(req.From) || !common.IsHexAddress(req.To) {
		return forwardRequestArg{}, domain.ErrInvalidAddress
	}

	value := new(big.Int)
	if req.Value != "" {
		if _, ok := value.SetString(req.Value, 10); !ok {
			return forwardRequestArg{}, fmt.Errorf("invalid forward request value: %s", req.Value)
		}
	}

	data, err := decodeHex(req.Data)
	if err != nil {
		return forwardRequestArg{}, fmt.Errorf("invalid forward request calldata: %w", err)
	}

	return forwardRequestArg{
		From:  common.HexToAddress(req.From),
		To:    common.HexToAddress(req.To),
		Value: value,
		Gas:   new(big.Int).SetUint64(req.Gas),
		Nonce: new(big.Int).SetUint64(req.Nonce),
		Data:  data,
	}, nil
}
