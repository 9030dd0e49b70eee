package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/rawblock/evoctl/pkg/models"
)

// MemoryLedger is an in-process Ledger used by tests and by a cycle runner
// that does not yet have a durable store configured. Safe for concurrent
// use; single-writer is still enforced by the cycle orchestrator's State
// discipline, not by this type.
type MemoryLedger struct {
	mu      sync.Mutex
	entries []models.LedgerEntry
}

// NewMemory returns an empty MemoryLedger.
func NewMemory() *MemoryLedger {
	return &MemoryLedger{}
}

// Append implements Ledger.
func (l *MemoryLedger) Append(ctx context.Context, pcag models.PCAg) (models.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var previous *models.LedgerEntry
	if n := len(l.entries); n > 0 {
		previous = &l.entries[n-1]
	}
	entry, err := buildEntry(previous, pcag)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	l.entries = append(l.entries, entry)
	return entry, nil
}

// Get implements Ledger.
func (l *MemoryLedger) Get(ctx context.Context, sequence uint64) (models.LedgerEntry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sequence >= uint64(len(l.entries)) {
		return models.LedgerEntry{}, false, nil
	}
	return l.entries[sequence], true, nil
}

// Head implements Ledger.
func (l *MemoryLedger) Head(ctx context.Context) (models.LedgerEntry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return models.LedgerEntry{}, false, nil
	}
	return l.entries[len(l.entries)-1], true, nil
}

// Verify implements Ledger.
func (l *MemoryLedger) Verify(ctx context.Context) (VerifyReport, error) {
	l.mu.Lock()
	entries := make([]models.LedgerEntry, len(l.entries))
	copy(entries, l.entries)
	l.mu.Unlock()

	if len(entries) == 0 {
		return VerifyReport{OK: true}, nil
	}

	expectedPrev := genesisHash
	for i, entry := range entries {
		if entry.Sequence != uint64(i) {
			return badSequence(i, entry.Sequence, "sequence is not strictly increasing from 0"), nil
		}
		ok, reason := verifyEntry(expectedPrev, entry)
		if !ok {
			return badSequence(i, entry.Sequence, reason), nil
		}
		next, err := entryHash(entry.PreviousHash, entry.PayloadHash)
		if err != nil {
			return badSequence(i, entry.Sequence, fmt.Sprintf("failed to recompute chain hash: %v", err)), nil
		}
		expectedPrev = next
	}
	return VerifyReport{OK: true, EntriesChecked: len(entries)}, nil
}

var _ Ledger = (*MemoryLedger)(nil)
