// Package ledger implements the WORM (write-once-read-many) hash-chained
// audit log of spec.md Sec 4.6: every committed PCAg is appended exactly
// once, each entry's hash binds to the one before it, and any tamper to an
// already-committed entry is detectable by re-walking the chain.
//
// Grounded on the teacher's append-only evidence_edge audit-hash pattern
// (internal/db/postgres.go's SaveAnalysisResult, an INSERT ... ON CONFLICT
// that never updates an existing row's audit_hash) and its
// content-addressing style (sha256 over a canonical byte encoding, the same
// shape as the Challenger and State hashes in pkg/models). The digest type
// itself is the teacher's own chainhash.Hash (hash.go), not a bare
// [32]byte.
package ledger

import (
	"encoding/json"

	"github.com/rawblock/evoctl/pkg/models"
)

// canonicalBytes deterministically serializes v. encoding/json already
// sorts map[string]... keys lexicographically and emits struct fields in
// declaration order, which is sufficient determinism for our payloads (no
// floating NaN/Inf ever reaches this layer -- the Aggregator and Guard
// refuse those upstream) without hand-rolling a second serializer.
func canonicalBytes(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// payloadHash returns the hex-encoded chainhash.Hash digest of pcag's
// canonical encoding.
func payloadHash(pcag models.PCAg) (string, error) {
	b, err := canonicalBytes(pcag)
	if err != nil {
		return "", err
	}
	return digest(b), nil
}

// entryHash is H(previous_hash || payload_hash), the chain-binding digest
// spec.md Sec 4.6 requires: entry_hash = H(previous_hash ++ payload_hash).
func entryHash(previousHash, payloadHash string) (string, error) {
	return chainDigest(previousHash, payloadHash)
}
