package ledger

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/custodia-platform/custodia-backend/internal/domain/audit"
	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/evidence"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
	"github.com/custodia-platform/custodia-backend/internal/service/access"
)

// Service is the read side of the audit ledger: custody reports,
// filtered queries, and chain verification. Appends happen inside the
// operations that generate them, never here.
type Service struct {
	entries   audit.Repository
	evidence  evidence.Repository
	operators operator.Repository
	access    *access.Service
	verifier  audit.ChainVerifier
	logger    *zap.Logger
}

// NewService wires the ledger reader.
func NewService(entries audit.Repository, evidenceRepo evidence.Repository, operators operator.Repository, accessSvc *access.Service, logger *zap.Logger) *Service {
	return &Service{
		entries:   entries,
		evidence:  evidenceRepo,
		operators: operators,
		access:    accessSvc,
		verifier:  audit.NewHashChainVerifier(),
		logger:    logger,
	}
}

// CustodyReport is the court-ready export for one evidence item: the
// item snapshot, its full ordered trail, and the integrity verdict
// over that trail.
type CustodyReport struct {
	Evidence *evidence.Evidence             `json:"evidence"`
	Trail    []*audit.Entry                 `json:"trail"`
	Chain    *audit.ChainVerificationResult `json:"chain"`
}

// Report builds the custody report for one item. Requires read access
// to the item's case; the trail itself is never filtered by role.
func (s *Service) Report(ctx context.Context, operatorID, caseID, evidenceID uuid.UUID) (*CustodyReport, error) {
	item, err := s.evidence.GetByID(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if item.CaseID != caseID {
		return nil, errors.NewNoCaseAccessError()
	}
	if _, err := s.access.AuthorizeView(ctx, operatorID, item); err != nil {
		return nil, err
	}

	trail, err := s.entries.ByEvidence(ctx, evidenceID)
	if err != nil {
		return nil, err
	}

	chain, err := s.verifier.VerifySequential(trail)
	if err != nil {
		return nil, err
	}
	if !chain.IsValid {
		s.logger.Error("custody trail failed chain verification",
			zap.String("evidence_id", evidenceID.String()),
			zap.Int("breaks", len(chain.ChainBreaks)))
	}

	return &CustodyReport{Evidence: item, Trail: trail, Chain: chain}, nil
}

// Query returns ledger entries under the caller's case scope. Non-admin
// callers are always pinned to their session case.
func (s *Service) Query(ctx context.Context, operatorID, caseID uuid.UUID, filter audit.Filter) ([]*audit.Entry, error) {
	op, err := s.access.RequireLevel(ctx, operatorID, caseID, values.AccessRead)
	if err != nil {
		return nil, err
	}

	if op.Role != operator.RoleAdmin {
		filter.CaseID = &caseID
	} else if filter.CaseID == nil {
		filter.CaseID = &caseID
	}

	return s.entries.Query(ctx, filter)
}

// VerifyChain checks hash-chain integrity over a sequence range.
// Admin-only: the result reveals ledger internals across cases.
func (s *Service) VerifyChain(ctx context.Context, operatorID uuid.UUID, from, to uint64) (*audit.ChainVerificationResult, error) {
	op, err := s.operators.GetByID(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	if op.Role != operator.RoleAdmin {
		return nil, errors.NewForbiddenError("ROLE_FORBIDDEN",
			"chain verification requires the admin role")
	}

	fromSeq, err := values.NewSequenceNumber(from)
	if err != nil {
		return nil, err
	}
	toSeq, err := values.NewSequenceNumber(to)
	if err != nil {
		return nil, err
	}
	if toSeq.Before(fromSeq) {
		return nil, errors.NewValidationError("INVALID_RANGE",
			"range end precedes range start")
	}

	entries, err := s.entries.Range(ctx, fromSeq, toSeq)
	if err != nil {
		return nil, err
	}
	return s.verifier.VerifySequential(entries)
}
