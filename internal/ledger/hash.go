package ledger

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// digest returns the hex string of the sha256 digest of b, computed via
// chainhash.HashH rather than crypto/sha256 directly, so every hash this
// package produces carries chainhash.Hash's String()/IsEqual() behavior
// instead of a hand-rolled hex.EncodeToString call. HashH (single sha256),
// not DoubleHashH, matches the single-round digest spec.md Sec 4.6 assumes.
func digest(b []byte) string {
	h := chainhash.HashH(b)
	return h.String()
}

// chainDigest is H(previous_hash || payload_hash): the chain-binding digest
// spec.md Sec 4.6 requires (entry_hash = H(previous_hash ++ payload_hash)).
// Both inputs are decoded back into chainhash.Hash before being concatenated
// and re-hashed, so the digest is a function of the raw 32 bytes each
// represents rather than of whatever hex text happens to encode them.
func chainDigest(previousHash, payloadHash string) (string, error) {
	prev, err := chainhash.NewHashFromStr(previousHash)
	if err != nil {
		return "", fmt.Errorf("decode previous hash %q: %w", previousHash, err)
	}
	payload, err := chainhash.NewHashFromStr(payloadHash)
	if err != nil {
		return "", fmt.Errorf("decode payload hash %q: %w", payloadHash, err)
	}
	buf := make([]byte, 0, chainhash.HashSize*2)
	buf = append(buf, prev[:]...)
	buf = append(buf, payload[:]...)
	return digest(buf), nil
}

// genesisHash is the all-zero chainhash.Hash used as the PreviousHash of
// the first ledger entry -- the zero value of chainhash.Hash is already 32
// zero bytes, so no hashing is needed to produce it.
var genesisHash = (chainhash.Hash{}).String()
