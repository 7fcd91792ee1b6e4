// Package crypto provides the key framing and digests the controller needs.
// It performs no signing; keys are held by the wallet daemon.
package crypto

import (
	"encoding/hex"

	"github.com/Klingon-tech/wallet-controller/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// DigestHex returns the hex BLAKE3-256 digest of data.
func DigestHex(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashConcat hashes the concatenation of parts.
func HashConcat(parts ...[]byte) types.Hash {
	h := blake3.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
