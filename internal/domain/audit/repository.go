package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

// Repository is the append-only ledger store. Append assigns the next
// sequence number, links the hash chain, and persists the entry in one
// atomic operation; there is no update and no delete.
type Repository interface {
	// Append seals and persists the entry, returning its sequence.
	Append(ctx context.Context, entry *Entry) (values.SequenceNumber, error)

	// Query returns entries matching all given filters, most recent
	// first unless Filter.Ascending is set.
	Query(ctx context.Context, filter Filter) ([]*Entry, error)

	// ByEvidence returns the full ordered trail for one evidence item.
	ByEvidence(ctx context.Context, evidenceID uuid.UUID) ([]*Entry, error)

	// Range returns entries with sequence in [from, to] ascending, for
	// chain verification.
	Range(ctx context.Context, from, to values.SequenceNumber) ([]*Entry, error)
}

// Filter restricts a ledger query. Zero values mean "any".
type Filter struct {
	EvidenceID *uuid.UUID
	CaseID     *uuid.UUID
	ActorID    *uuid.UUID
	Action     Action
	Result     string
	Since      time.Time
	Until      time.Time
	Ascending  bool
	Limit      int
	Offset     int
}
