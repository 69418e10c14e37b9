package merkle

import (
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroRoot is the root of an empty tree.
var ZeroRoot [32]byte

// Root computes the binary Merkle root over the leaves in order. Levels with
// an odd number of nodes duplicate the last node before pairing. An empty
// input yields ZeroRoot; a single leaf is its own root.
func Root(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return ZeroRoot
	}

	level := make([][32]byte, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		next := make([][32]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, hashPair(level[i], level[i+1]))
		}
		level = next
	}

	return level[0]
}

func hashPair(left, right [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(left[:], right[:]))
	return out
}

// EventLeaf computes the leaf hash for an event log row:
// keccak256(be64(id) || eventType || payloadHash || be64(unix ts)).
func EventLeaf(id uint64, eventType string, payloadHash [32]byte, ts time.Time) [32]byte {
	var idBytes, tsBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], id)
	binary.BigEndian.PutUint64(tsBytes[:], uint64(ts.Unix())) //nolint:gosec,G115 // unix timestamps are non-negative here

	var out [32]byte
	copy(out[:], crypto.Keccak256(
		idBytes[:],
		[]byte(eventType),
		payloadHash[:],
		tsBytes[:],
	))
	return out
}
