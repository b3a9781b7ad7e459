package casefile

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists cases and their append-only timelines.
type Repository interface {
	Create(ctx context.Context, c *Case) error
	GetByID(ctx context.Context, id uuid.UUID) (*Case, error)
	GetByNumber(ctx context.Context, number string) (*Case, error)
	Update(ctx context.Context, c *Case) error
	List(ctx context.Context, limit, offset int) ([]*Case, error)

	// AppendTimeline adds one narrative entry; entries are never
	// rewritten.
	AppendTimeline(ctx context.Context, caseID uuid.UUID, entry TimelineEntry) error

	// IncrementEvidenceCount reconciles the evidence-count cache on
	// upload. The count never decreases.
	IncrementEvidenceCount(ctx context.Context, caseID uuid.UUID) error
}
