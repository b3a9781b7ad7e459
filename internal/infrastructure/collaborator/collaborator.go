package collaborator

import (
	"context"

	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

// The core treats all external services as best-effort collaborators:
// their failure is logged and never propagated as a core-operation
// failure, because none of them is authoritative for the record.

// Notifier delivers OTP codes and workflow notifications.
type Notifier interface {
	Send(ctx context.Context, recipient Contact, message string) error
}

// Contact is a delivery address for the notifier.
type Contact struct {
	Email string
	Phone string
}

// ContentStore publishes artifact bytes to content-addressed storage
// and returns an opaque reference. The content hash, not the
// reference, remains the integrity anchor.
type ContentStore interface {
	Publish(ctx context.Context, data []byte) (string, error)
}

// LedgerAnchor anchors an evidence hash externally. Purely additive:
// absence of an anchor blocks nothing.
type LedgerAnchor interface {
	Anchor(ctx context.Context, evidenceID uuid.UUID, hash values.HashValue, caseID uuid.UUID) (string, error)
}

// Classifier suggests a category for an uploaded file. Advisory
// metadata only; never gates authorization or workflow.
type Classifier interface {
	Classify(ctx context.Context, filename, mimeType string) (string, error)
}
