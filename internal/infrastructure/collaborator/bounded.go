package collaborator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

// BoundedNotifier wraps a Notifier with a timeout and an in-process
// dispatch rate limit so a slow provider cannot back up request
// handling.
type BoundedNotifier struct {
	inner   Notifier
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewBoundedNotifier wraps the notifier. dispatchRate is messages per
// second; bursts up to the same size are allowed.
func NewBoundedNotifier(inner Notifier, timeout time.Duration, dispatchRate int, logger *zap.Logger) *BoundedNotifier {
	if dispatchRate <= 0 {
		dispatchRate = 50
	}
	return &BoundedNotifier{
		inner:   inner,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(dispatchRate), dispatchRate),
		logger:  logger,
	}
}

func (n *BoundedNotifier) Send(ctx context.Context, recipient Contact, message string) error {
	if !n.limiter.Allow() {
		n.logger.Warn("notification dropped by dispatch limiter")
		return errors.NewExternalError("notifier", "dispatch rate exceeded")
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.inner.Send(ctx, recipient, message); err != nil {
		n.logger.Warn("notification delivery failed", zap.Error(err))
		return errors.NewExternalError("notifier", "delivery failed").WithCause(err)
	}
	return nil
}

// BoundedAnchor wraps a LedgerAnchor with a timeout.
type BoundedAnchor struct {
	inner   LedgerAnchor
	timeout time.Duration
	logger  *zap.Logger
}

func NewBoundedAnchor(inner LedgerAnchor, timeout time.Duration, logger *zap.Logger) *BoundedAnchor {
	return &BoundedAnchor{inner: inner, timeout: timeout, logger: logger}
}

func (a *BoundedAnchor) Anchor(ctx context.Context, evidenceID uuid.UUID, hash values.HashValue, caseID uuid.UUID) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ref, err := a.inner.Anchor(ctx, evidenceID, hash, caseID)
	if err != nil {
		a.logger.Warn("ledger anchoring failed",
			zap.String("evidence_id", evidenceID.String()),
			zap.Error(err))
		return "", errors.NewExternalError("anchor", "anchoring failed").WithCause(err)
	}
	return ref, nil
}

// BoundedContentStore wraps a ContentStore with a timeout.
type BoundedContentStore struct {
	inner   ContentStore
	timeout time.Duration
	logger  *zap.Logger
}

func NewBoundedContentStore(inner ContentStore, timeout time.Duration, logger *zap.Logger) *BoundedContentStore {
	return &BoundedContentStore{inner: inner, timeout: timeout, logger: logger}
}

func (s *BoundedContentStore) Publish(ctx context.Context, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ref, err := s.inner.Publish(ctx, data)
	if err != nil {
		s.logger.Warn("content publication failed", zap.Error(err))
		return "", errors.NewExternalError("storage", "publication failed").WithCause(err)
	}
	return ref, nil
}

// BoundedClassifier wraps a Classifier with a timeout.
type BoundedClassifier struct {
	inner   Classifier
	timeout time.Duration
	logger  *zap.Logger
}

func NewBoundedClassifier(inner Classifier, timeout time.Duration, logger *zap.Logger) *BoundedClassifier {
	return &BoundedClassifier{inner: inner, timeout: timeout, logger: logger}
}

func (c *BoundedClassifier) Classify(ctx context.Context, filename, mimeType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	label, err := c.inner.Classify(ctx, filename, mimeType)
	if err != nil {
		c.logger.Warn("classification failed",
			zap.String("filename", filename),
			zap.Error(err))
		return "", errors.NewExternalError("classifier", "classification failed").WithCause(err)
	}
	return label, nil
}
