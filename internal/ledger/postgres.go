package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/evoctl/pkg/evoerrs"
	"github.com/rawblock/evoctl/pkg/models"
)

// PostgresLedger is the durable WORM store, grounded on the teacher's
// PostgresStore (internal/db/postgres.go): a pgxpool-backed type with a
// Connect constructor and one transactional write path per mutating
// operation. Unlike the teacher's upsert-on-conflict SaveAnalysisResult,
// Append has no ON CONFLICT clause at all -- a sequence collision here is
// always a bug, never a legitimate retry, and must surface as an error.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pool against connStr and confirms connectivity.
func ConnectPostgres(ctx context.Context, connStr string) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to connect to ledger database: %v", evoerrs.ErrLedgerError, err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: ledger database ping failed: %v", evoerrs.ErrLedgerError, err)
	}
	log.Println("[ledger] connected to PostgreSQL WORM store")
	return &PostgresLedger{pool: pool}, nil
}

// Close releases the connection pool.
func (l *PostgresLedger) Close() {
	if l.pool != nil {
		l.pool.Close()
	}
}

// Append implements Ledger. It reads the current head and inserts the next
// entry inside a single transaction so a concurrent Append cannot observe a
// stale head and produce a duplicate sequence.
func (l *PostgresLedger) Append(ctx context.Context, pcag models.PCAg) (models.LedgerEntry, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("%w: %v", evoerrs.ErrLedgerError, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var previous *models.LedgerEntry
	row := tx.QueryRow(ctx, `SELECT sequence, previous_hash, payload_hash, payload, timestamp
		FROM ledger_entries ORDER BY sequence DESC LIMIT 1 FOR UPDATE`)
	var head models.LedgerEntry
	var payloadBytes []byte
	switch err := row.Scan(&head.Sequence, &head.PreviousHash, &head.PayloadHash, &payloadBytes, &head.Timestamp); err {
	case nil:
		if err := json.Unmarshal(payloadBytes, &head.Payload); err != nil {
			return models.LedgerEntry{}, fmt.Errorf("%w: failed to decode head payload: %v", evoerrs.ErrLedgerError, err)
		}
		previous = &head
	case pgx.ErrNoRows:
		previous = nil
	default:
		return models.LedgerEntry{}, fmt.Errorf("%w: %v", evoerrs.ErrLedgerError, err)
	}

	entry, err := buildEntry(previous, pcag)
	if err != nil {
		return models.LedgerEntry{}, err
	}

	payloadJSON, err := canonicalBytes(entry.Payload)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("%w: %v", evoerrs.ErrLedgerError, err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO ledger_entries
		(sequence, timestamp, previous_hash, payload_hash, payload, signature)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Sequence, entry.Timestamp, entry.PreviousHash, entry.PayloadHash, payloadJSON, entry.Signature)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("%w: append failed: %v", evoerrs.ErrLedgerError, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.LedgerEntry{}, fmt.Errorf("%w: %v", evoerrs.ErrLedgerError, err)
	}
	return entry, nil
}

// Get implements Ledger.
func (l *PostgresLedger) Get(ctx context.Context, sequence uint64) (models.LedgerEntry, bool, error) {
	row := l.pool.QueryRow(ctx, `SELECT sequence, timestamp, previous_hash, payload_hash, payload, signature
		FROM ledger_entries WHERE sequence = $1`, sequence)
	return scanEntry(row)
}

// Head implements Ledger.
func (l *PostgresLedger) Head(ctx context.Context) (models.LedgerEntry, bool, error) {
	row := l.pool.QueryRow(ctx, `SELECT sequence, timestamp, previous_hash, payload_hash, payload, signature
		FROM ledger_entries ORDER BY sequence DESC LIMIT 1`)
	return scanEntry(row)
}

func scanEntry(row pgx.Row) (models.LedgerEntry, bool, error) {
	var entry models.LedgerEntry
	var payloadBytes []byte
	err := row.Scan(&entry.Sequence, &entry.Timestamp, &entry.PreviousHash, &entry.PayloadHash, &payloadBytes, &entry.Signature)
	switch err {
	case nil:
		if err := json.Unmarshal(payloadBytes, &entry.Payload); err != nil {
			return models.LedgerEntry{}, false, fmt.Errorf("%w: failed to decode payload: %v", evoerrs.ErrLedgerError, err)
		}
		return entry, true, nil
	case pgx.ErrNoRows:
		return models.LedgerEntry{}, false, nil
	default:
		return models.LedgerEntry{}, false, fmt.Errorf("%w: %v", evoerrs.ErrLedgerError, err)
	}
}

// Verify implements Ledger by streaming every row in sequence order and
// re-deriving the chain exactly as MemoryLedger.Verify does, so the two
// implementations can never silently disagree about what "verified" means.
func (l *PostgresLedger) Verify(ctx context.Context) (VerifyReport, error) {
	rows, err := l.pool.Query(ctx, `SELECT sequence, timestamp, previous_hash, payload_hash, payload, signature
		FROM ledger_entries ORDER BY sequence ASC`)
	if err != nil {
		return VerifyReport{}, fmt.Errorf("%w: %v", evoerrs.ErrLedgerError, err)
	}
	defer rows.Close()

	expectedPrev := genesisHash
	checked := 0
	for rows.Next() {
		var entry models.LedgerEntry
		var payloadBytes []byte
		if err := rows.Scan(&entry.Sequence, &entry.Timestamp, &entry.PreviousHash, &entry.PayloadHash, &payloadBytes, &entry.Signature); err != nil {
			return VerifyReport{}, fmt.Errorf("%w: %v", evoerrs.ErrLedgerError, err)
		}
		if err := json.Unmarshal(payloadBytes, &entry.Payload); err != nil {
			return VerifyReport{}, fmt.Errorf("%w: failed to decode payload at sequence %d: %v", evoerrs.ErrLedgerError, entry.Sequence, err)
		}
		if entry.Sequence != uint64(checked) {
			return badSequence(checked, entry.Sequence, "sequence is not strictly increasing from 0"), nil
		}
		ok, reason := verifyEntry(expectedPrev, entry)
		if !ok {
			return badSequence(checked, entry.Sequence, reason), nil
		}
		next, err := entryHash(entry.PreviousHash, entry.PayloadHash)
		if err != nil {
			return badSequence(checked, entry.Sequence, fmt.Sprintf("failed to recompute chain hash: %v", err)), nil
		}
		expectedPrev = next
		checked++
	}
	if err := rows.Err(); err != nil {
		return VerifyReport{}, fmt.Errorf("%w: %v", evoerrs.ErrLedgerError, err)
	}
	return VerifyReport{OK: true, EntriesChecked: checked}, nil
}

var _ Ledger = (*PostgresLedger)(nil)
