package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-platform/custodia-backend/internal/domain/audit"
	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

// auditChainLockID serializes appends so sequence assignment and hash
// linking stay consistent under concurrent writers.
const auditChainLockID = 0x637573746f6469 // "custodi"

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new audit ledger repository.
func NewAuditRepository(pool *pgxpool.Pool) audit.Repository {
	return &auditRepository{pool: pool}
}

const auditColumns = `
	id, sequence, timestamp, action, result,
	evidence_id, case_id, actor_id, actor_role, from_actor, to_actor,
	detail, origin, anchor_ref, previous_hash, entry_hash
`

// Append seals the entry against the current chain tail and inserts it
// in one transaction. An advisory lock guards the tail read so two
// appends can never claim the same sequence.
func (r *auditRepository) Append(ctx context.Context, entry *audit.Entry) (values.SequenceNumber, error) {
	var seq values.SequenceNumber
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		seq, err = appendEntryTx(ctx, tx, entry)
		return err
	})
	if err != nil {
		return values.SequenceNumber{}, err
	}
	return seq, nil
}

// appendEntryTx seals the entry against the chain tail and inserts it
// inside the caller's transaction, so a ledger append can share a
// transaction with the state change it records.
func appendEntryTx(ctx context.Context, tx pgx.Tx, entry *audit.Entry) (values.SequenceNumber, error) {
	if err := entry.Validate(); err != nil {
		return values.SequenceNumber{}, err
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, auditChainLockID); err != nil {
		return values.SequenceNumber{}, errors.NewStorageError("failed to acquire chain lock").WithCause(err)
	}

	var lastSeq uint64
	var lastHash string
	err := tx.QueryRow(ctx, `
		SELECT sequence, entry_hash FROM audit_entries
		ORDER BY sequence DESC LIMIT 1
	`).Scan(&lastSeq, &lastHash)
	if err != nil && err != pgx.ErrNoRows {
		return values.SequenceNumber{}, errors.NewStorageError("failed to read chain tail").WithCause(err)
	}

	var next values.SequenceNumber
	if err == pgx.ErrNoRows {
		next = values.FirstSequenceNumber()
		lastHash = ""
	} else {
		tail, serr := values.NewSequenceNumber(lastSeq)
		if serr != nil {
			return values.SequenceNumber{}, errors.NewStorageError("corrupt chain tail sequence").WithCause(serr)
		}
		next, serr = tail.Next()
		if serr != nil {
			return values.SequenceNumber{}, errors.NewStorageError("sequence space exhausted").WithCause(serr)
		}
	}

	if _, err := entry.Seal(next, lastHash); err != nil {
		return values.SequenceNumber{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_entries (
			id, sequence, timestamp, action, result,
			evidence_id, case_id, actor_id, actor_role, from_actor, to_actor,
			detail, origin, anchor_ref, previous_hash, entry_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		entry.ID, entry.Sequence.Value(), entry.Timestamp,
		string(entry.Action), entry.Result,
		entry.EvidenceID, entry.CaseID, entry.ActorID, entry.ActorRole,
		entry.FromActor, entry.ToActor,
		entry.Detail, entry.Origin, entry.AnchorRef,
		entry.PreviousHash, entry.EntryHash,
	)
	if err != nil {
		return values.SequenceNumber{}, errors.NewStorageError("failed to append audit entry").WithCause(err)
	}
	return next, nil
}

func (r *auditRepository) Query(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	addCondition := func(clause string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(clause, argNum))
		args = append(args, value)
		argNum++
	}

	if filter.EvidenceID != nil {
		addCondition("evidence_id = $%d", *filter.EvidenceID)
	}
	if filter.CaseID != nil {
		addCondition("case_id = $%d", *filter.CaseID)
	}
	if filter.ActorID != nil {
		addCondition("actor_id = $%d", *filter.ActorID)
	}
	if filter.Action != "" {
		addCondition("action = $%d", string(filter.Action))
	}
	if filter.Result != "" {
		addCondition("result = $%d", filter.Result)
	}
	if !filter.Since.IsZero() {
		addCondition("timestamp >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		addCondition("timestamp <= $%d", filter.Until)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	order := "DESC"
	if filter.Ascending {
		order = "ASC"
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s FROM audit_entries
		%s
		ORDER BY sequence %s
		LIMIT %d OFFSET %d
	`, auditColumns, where, order, limit, filter.Offset)

	return r.queryEntries(ctx, query, args...)
}

func (r *auditRepository) ByEvidence(ctx context.Context, evidenceID uuid.UUID) ([]*audit.Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM audit_entries
		WHERE evidence_id = $1
		ORDER BY sequence ASC
	`, auditColumns)
	return r.queryEntries(ctx, query, evidenceID)
}

func (r *auditRepository) Range(ctx context.Context, from, to values.SequenceNumber) ([]*audit.Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM audit_entries
		WHERE sequence >= $1 AND sequence <= $2
		ORDER BY sequence ASC
	`, auditColumns)
	return r.queryEntries(ctx, query, from.Value(), to.Value())
}

func (r *auditRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*audit.Entry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStorageError("failed to query audit ledger").WithCause(err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to iterate audit ledger").WithCause(err)
	}
	return entries, nil
}

func scanAuditEntry(row pgx.Row) (*audit.Entry, error) {
	var e audit.Entry
	var seq uint64
	var action string

	err := row.Scan(
		&e.ID, &seq, &e.Timestamp, &action, &e.Result,
		&e.EvidenceID, &e.CaseID, &e.ActorID, &e.ActorRole, &e.FromActor, &e.ToActor,
		&e.Detail, &e.Origin, &e.AnchorRef, &e.PreviousHash, &e.EntryHash,
	)
	if err != nil {
		return nil, errors.NewStorageError("failed to scan audit entry").WithCause(err)
	}

	sequence, err := values.NewSequenceNumber(seq)
	if err != nil {
		return nil, errors.NewStorageError("corrupt sequence number").WithCause(err)
	}
	e.Sequence = sequence
	e.Action = audit.Action(action)

	return audit.Restore(e), nil
}
