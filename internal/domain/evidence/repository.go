package evidence

import (
	"context"

	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/domain/audit"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

// Repository persists evidence records. Status updates are guarded by
// compare-and-swap on the expected current status: under concurrent
// transitions exactly one writer succeeds and the loser observes the
// post-transition state.
type Repository interface {
	// Create inserts a new record; a duplicate content hash fails with
	// DuplicateEvidence.
	Create(ctx context.Context, e *Evidence) error

	GetByID(ctx context.Context, id uuid.UUID) (*Evidence, error)
	GetByHash(ctx context.Context, hash values.HashValue) (*Evidence, error)
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Evidence, error)

	// UpdateWithStatusCheck persists the full record only if the stored
	// status still equals expected. Returns false without mutating
	// anything when the check fails.
	UpdateWithStatusCheck(ctx context.Context, e *Evidence, expected Status) (bool, error)

	// UpdateWithStatusCheckAndAppend runs the same status check and the
	// ledger append in one transaction: the transition and its audit
	// entry land together or not at all. Returns false without writing
	// anything when the check fails.
	UpdateWithStatusCheckAndAppend(ctx context.Context, e *Evidence, expected Status, entry *audit.Entry) (bool, error)

	// Update persists non-workflow fields (integrity counters, external
	// references).
	Update(ctx context.Context, e *Evidence) error
}
