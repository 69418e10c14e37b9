package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/filevault/fv-registry/internal/adapter"
	"github.com/filevault/fv-registry/internal/config"
	"github.com/filevault/fv-registry/internal/domain"
	"github.com/filevault/fv-registry/internal/logger"
)

// ErrExecutionReverted is returned when a forwarding transaction mines with
// a failed status. The request is unusable; resubmitting the same signature
// yields the same result.
var ErrExecutionReverted = errors.New("execution reverted")

const receiptPollInterval = 2 * time.Second

// ethereumOracle implements Oracle against an Ethereum JSON-RPC endpoint.
type ethereumOracle struct {
	client      adapter.EthClient
	clock       adapter.Clock
	codec       ContractCodec
	registry    common.Address
	forwarder   common.Address
	chainID     *big.Int
	relayerKey  *ecdsa.PrivateKey
	relayer     common.Address
	callTimeout time.Duration
}

// NewEthereumOracle dials the configured RPC endpoint and returns an oracle
// bound to the registry and forwarder contracts. The relayer private key is
// optional; oracles without one can read but not submit transactions.
func NewEthereumOracle(ctx context.Context, dialer adapter.EthClientDialer, clock adapter.Clock, cfg config.ChainConfig) (Oracle, error) {
	if !common.IsHexAddress(cfg.RegistryAddress) {
		return nil, fmt.Errorf("invalid registry address: %s", cfg.RegistryAddress)
	}
	if !common.IsHexAddress(cfg.ForwarderAddress) {
		return nil, fmt.Errorf("invalid forwarder address: %s", cfg.ForwarderAddress)
	}

	codec, err := NewCodec(cfg.ContractVersion)
	if err != nil {
		return nil, err
	}

	client, err := dialer.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ethereum rpc: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Int64() != cfg.ChainID {
		client.Close()
		return nil, fmt.Errorf("chain id mismatch: configured %d, node reports %s", cfg.ChainID, chainID)
	}

	o := &ethereumOracle{
		client:      client,
		clock:       clock,
		codec:       codec,
		registry:    common.HexToAddress(cfg.RegistryAddress),
		forwarder:   common.HexToAddress(cfg.ForwarderAddress),
		chainID:     chainID,
		callTimeout: cfg.CallTimeout,
	}

	if cfg.RelayerPrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.RelayerPrivateKey, "0x"))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to parse relayer private key: %w", err)
		}
		o.relayerKey = key
		o.relayer = crypto.PubkeyToAddress(key.PublicKey)
	}

	return o, nil
}

func (o *ethereumOracle) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.callTimeout)
}

func (o *ethereumOracle) ReadGrant(ctx context.Context, capID domain.CapabilityID) (*domain.OnChainGrant, error) {
	if !capID.Valid() {
		return nil, domain.ErrInvalidCapabilityID
	}

	callData, err := o.codec.PackReadGrant(capID.Bytes32())
	if err != nil {
		return nil, err
	}

	ctx, cancel := o.callContext(ctx)
	defer cancel()

	result, err := o.client.CallContract(ctx, ethereum.CallMsg{
		To:   &o.registry,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("grants call failed: %w", err)
	}

	return o.codec.UnpackGrant(result)
}

func (o *ethereumOracle) ReadNonce(ctx context.Context, address string) (uint64, error) {
	if !common.IsHexAddress(address) {
		return 0, domain.ErrInvalidAddress
	}

	callData, err := o.codec.PackReadNonce(common.HexToAddress(address))
	if err != nil {
		return 0, err
	}

	ctx, cancel := o.callContext(ctx)
	defer cancel()

	result, err := o.client.CallContract(ctx, ethereum.CallMsg{
		To:   &o.registry,
		Data: callData,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("nonces call failed: %w", err)
	}

	return o.codec.UnpackNonce(result)
}

func (o *ethereumOracle) VerifyForwardSignature(ctx context.Context, typedData json.RawMessage, signature string) (bool, error) {
	req, sig, err := parseForward(typedData, signature)
	if err != nil {
		return false, err
	}

	callData, err := o.codec.PackVerify(req, sig)
	if err != nil {
		return false, err
	}

	ctx, cancel := o.callContext(ctx)
	defer cancel()

	result, err := o.client.CallContract(ctx, ethereum.CallMsg{
		To:   &o.forwarder,
		Data: callData,
	}, nil)
	if err != nil {
		return false, fmt.Errorf("verify call failed: %w", err)
	}

	return o.codec.UnpackVerify(result)
}

func (o *ethereumOracle) ExecuteForward(ctx context.Context, typedData json.RawMessage, signature string) (*types.Receipt, error) {
	if o.relayerKey == nil {
		return nil, errors.New("oracle has no relayer key configured")
	}

	req, sig, err := parseForward(typedData, signature)
	if err != nil {
		return nil, err
	}

	callData, err := o.codec.PackExecute(req, sig)
	if err != nil {
		return nil, err
	}

	tx, err := o.submitTransaction(ctx, o.forwarder, callData)
	if err != nil {
		return nil, err
	}

	receipt, err := o.waitForReceipt(ctx, tx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, ErrExecutionReverted
	}
	return receipt, nil
}

func (o *ethereumOracle) AnchorRoot(ctx context.Context, periodID int64, root [32]byte) (string, error) {
	if o.relayerKey == nil {
		return "", errors.New("oracle has no relayer key configured")
	}

	callData, err := o.codec.PackAnchor(periodID, root)
	if err != nil {
		return "", err
	}

	tx, err := o.submitTransaction(ctx, o.registry, callData)
	if err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

func (o *ethereumOracle) DecodeGrantEvents(receipt *types.Receipt) ([]GrantEvent, error) {
	return o.codec.DecodeGrantEvents(receipt.Logs)
}

func (o *ethereumOracle) Close() {
	o.client.Close()
}

// submitTransaction signs and broadcasts a legacy transaction from the
// relayer account
func (o *ethereumOracle) submitTransaction(ctx context.Context, to common.Address, callData []byte) (*types.Transaction, error) {
	ctx, cancel := o.callContext(ctx)
	defer cancel()

	nonce, err := o.client.PendingNonceAt(ctx, o.relayer)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relayer nonce: %w", err)
	}

	gasPrice, err := o.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %w", err)
	}

	gasLimit, err := o.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     o.relayer,
		To:       &to,
		GasPrice: gasPrice,
		Data:     callData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, callData)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(o.chainID), o.relayerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := o.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	logger.DebugCtx(ctx, "transaction submitted",
		zap.String("txHash", signedTx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce))

	return signedTx, nil
}

// waitForReceipt polls for the transaction receipt until the context is
// cancelled. ethereum.NotFound is the pending state, not an error.
func (o *ethereumOracle) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	for {
		receipt, err := o.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to fetch receipt for %s: %w", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for receipt %s: %w", txHash.Hex(), ctx.Err())
		case <-o.clock.After(receiptPollInterval):
		}
	}
}

// parseForward extracts the forward request from the typed data envelope and
// decodes the grantor signature
func parseForward(typedData json.RawMessage, signature string) (ForwardRequest, []byte, error) {
	var td TypedData
	if err := json.Unmarshal(typedData, &td); err != nil {
		return ForwardRequest{}, nil, fmt.Errorf("invalid typed data: %w", err)
	}

	sig, err := decodeHex(signature)
	if err != nil {
		return ForwardRequest{}, nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != 65 {
		return ForwardRequest{}, nil, domain.ErrBadSignature
	}

	return td.Message, sig, nil
}

// decodeHex decodes a hex string with or without the 0x prefix. Empty input
// decodes to nil.
func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}
