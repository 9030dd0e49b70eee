package ledger

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/rawblock/evoctl/pkg/evoerrs"
	"github.com/rawblock/evoctl/pkg/models"
)

// Ledger is the append-only store the cycle orchestrator commits every
// PCAg to. Implementations must never allow Append to succeed out of
// sequence, and must never expose a way to rewrite or delete a committed
// entry.
type Ledger interface {
	// Append hash-chains pcag onto the current head and persists it,
	// returning the full LedgerEntry including its computed hashes.
	Append(ctx context.Context, pcag models.PCAg) (models.LedgerEntry, error)
	// Get returns the entry at sequence, or ok=false if none exists.
	Get(ctx context.Context, sequence uint64) (models.LedgerEntry, bool, error)
	// Head returns the most recently appended entry, or ok=false if the
	// ledger is empty.
	Head(ctx context.Context) (models.LedgerEntry, bool, error)
	// Verify walks the full chain from genesis and reports the first
	// inconsistency found, if any.
	Verify(ctx context.Context) (VerifyReport, error)
}

// buildEntry hash-chains pcag onto previous (nil for genesis) and returns
// the fully-populated LedgerEntry, without touching any store -- shared by
// every Ledger implementation so the chaining rule lives in exactly one
// place.
func buildEntry(previous *models.LedgerEntry, pcag models.PCAg) (models.LedgerEntry, error) {
	pHash, err := payloadHash(pcag)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("%w: failed to hash payload: %v", evoerrs.ErrLedgerError, err)
	}

	var prevHash string
	var sequence uint64
	if previous == nil {
		prevHash = genesisHash
		sequence = 0
	} else {
		prevHash, err = entryHash(previous.PreviousHash, previous.PayloadHash)
		if err != nil {
			return models.LedgerEntry{}, fmt.Errorf("%w: failed to compute chain hash: %v", evoerrs.ErrLedgerError, err)
		}
		sequence = previous.Sequence + 1
	}

	return models.LedgerEntry{
		Sequence:     sequence,
		Timestamp:    pcag.CreatedAt,
		PreviousHash: prevHash,
		PayloadHash:  pHash,
		Payload:      pcag,
	}, nil
}

// verifyEntry recomputes an entry's payload hash and confirms it matches
// what was stored, returning false (with a reason) on any mismatch. Hash
// comparisons go through chainhash.Hash.IsEqual rather than string ==, the
// equality chainhash.Hash exists to give us.
func verifyEntry(previousEntryHash string, entry models.LedgerEntry) (bool, string) {
	expectedPrev, err := chainhash.NewHashFromStr(previousEntryHash)
	if err != nil {
		return false, fmt.Sprintf("invalid expected previous hash %q: %v", previousEntryHash, err)
	}
	storedPrev, err := chainhash.NewHashFromStr(entry.PreviousHash)
	if err != nil {
		return false, fmt.Sprintf("invalid stored previous hash %q: %v", entry.PreviousHash, err)
	}
	if !expectedPrev.IsEqual(storedPrev) {
		return false, fmt.Sprintf("previous_hash mismatch: stored %q, chain expects %q", entry.PreviousHash, previousEntryHash)
	}

	recomputed, err := payloadHash(entry.Payload)
	if err != nil {
		return false, fmt.Sprintf("failed to recompute payload hash: %v", err)
	}
	recomputedHash, err := chainhash.NewHashFromStr(recomputed)
	if err != nil {
		return false, fmt.Sprintf("invalid recomputed payload hash %q: %v", recomputed, err)
	}
	storedPayload, err := chainhash.NewHashFromStr(entry.PayloadHash)
	if err != nil {
		return false, fmt.Sprintf("invalid stored payload hash %q: %v", entry.PayloadHash, err)
	}
	if !recomputedHash.IsEqual(storedPayload) {
		return false, fmt.Sprintf("payload_hash mismatch: stored %q, recomputed %q", entry.PayloadHash, recomputed)
	}
	return true, ""
}
