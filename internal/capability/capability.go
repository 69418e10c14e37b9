package capability

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/filevault/fv-registry/internal/chain"
	"github.com/filevault/fv-registry/internal/domain"
	"github.com/filevault/fv-registry/internal/logger"
	"github.com/filevault/fv-registry/internal/store"
)

// maxProbes bounds the collision probe loop. Eight consecutive occupied ids
// for the same (grantor, grantee, file) triple means something other than a
// nonce race is going on.
const maxProbes = 8

// Derive computes the deterministic capability id for a grant. The layout
// matches the registry contract's abi.encodePacked hash:
// grantor (20 bytes) || grantee (20 bytes) || fileId (32 bytes) || nonce+offset (uint256).
func Derive(grantor, grantee common.Address, fileID domain.FileID, nonce, offset uint64) domain.CapabilityID {
	fileBytes := fileID.Bytes32()

	var counter [32]byte
	binary.BigEndian.PutUint64(counter[24:], nonce+offset)

	digest := crypto.Keccak256(
		grantor.Bytes(),
		grantee.Bytes(),
		fileBytes[:],
		counter[:],
	)

	var out [32]byte
	copy(out[:], digest)
	return domain.NewCapabilityID(out)
}

// Predictor computes the capability id a grant transaction will produce
// before it is submitted, so clients can wrap file keys to an id that does
// not exist yet.
type Predictor struct {
	oracle chain.Oracle
	store  store.Store
}

// NewPredictor creates a capability id predictor
func NewPredictor(oracle chain.Oracle, st store.Store) *Predictor {
	return &Predictor{
		oracle: oracle,
		store:  st,
	}
}

// Predict derives the next unoccupied capability id for the triple. It reads
// the grantor's current registry nonce and probes forward past ids that are
// already taken on-chain or already tracked off-chain. The returned offset is
// relative to the nonce read here; callers racing other grants from the same
// grantor may still collide and should re-predict on conflict.
func (p *Predictor) Predict(ctx context.Context, grantor, grantee common.Address, fileID domain.FileID) (domain.CapabilityID, uint64, error) {
	if !fileID.Valid() {
		return "", 0, fmt.Errorf("invalid file id: %s", fileID)
	}

	nonce, err := p.oracle.ReadNonce(ctx, grantor.Hex())
	if err != nil {
		return "", 0, fmt.Errorf("failed to read grantor nonce: %w", err)
	}

	for offset := uint64(0); offset < maxProbes; offset++ {
		capID := Derive(grantor, grantee, fileID, nonce, offset)

		occupied, err := p.occupied(ctx, capID)
		if err != nil {
			return "", 0, err
		}
		if !occupied {
			if offset > 0 {
				logger.DebugCtx(ctx, "capability id probe skipped occupied ids",
					zap.String("capID", string(capID)),
					zap.Uint64("offset", offset))
			}
			return capID, offset, nil
		}
	}

	logger.WarnCtx(ctx, "capability id probe ceiling reached",
		zap.String("grantor", grantor.Hex()),
		zap.String("grantee", grantee.Hex()),
		zap.Uint64("nonce", nonce))
	return "", 0, domain.ErrProbeExhausted
}

// occupied reports whether a capability id is taken on-chain or off-chain
func (p *Predictor) occupied(ctx context.Context, capID domain.CapabilityID) (bool, error) {
	grant, err := p.oracle.ReadGrant(ctx, capID)
	if err != nil {
		return false, fmt.Errorf("failed to read grant %s: %w", capID, err)
	}
	if grant.Mined() {
		return true, nil
	}

	exists, err := p.store.GrantExists(ctx, string(capID))
	if err != nil {
		return false, fmt.Errorf("failed to check grant cache for %s: %w", capID, err)
	}
	return exists, nil
}
