package casemgmt

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/custodia-platform/custodia-backend/internal/domain/audit"
	"github.com/custodia-platform/custodia-backend/internal/domain/casefile"
	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
	"github.com/custodia-platform/custodia-backend/internal/service/access"
)

// Service manages the case lifecycle. Cases are administrative
// containers; evidence semantics live in the workflow engine.
type Service struct {
	cases     casefile.Repository
	operators operator.Repository
	ledger    audit.Repository
	access    *access.Service
	logger    *zap.Logger
}

// NewService wires the case manager.
func NewService(cases casefile.Repository, operators operator.Repository, ledger audit.Repository, accessSvc *access.Service, logger *zap.Logger) *Service {
	return &Service{cases: cases, operators: operators, ledger: ledger, access: accessSvc, logger: logger}
}

// CreateCase registers a new active case. Admin only; the creating
// admin is recorded but needs no grant of their own.
func (s *Service) CreateCase(ctx context.Context, adminID uuid.UUID, number, name, description string) (*casefile.Case, error) {
	admin, err := s.operators.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.Role != operator.RoleAdmin {
		return nil, errors.NewForbiddenError("ROLE_FORBIDDEN",
			"case creation requires the admin role")
	}

	c, err := casefile.NewCase(number, name, description, adminID)
	if err != nil {
		return nil, err
	}
	if err := s.cases.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetCase returns a case the operator can access.
func (s *Service) GetCase(ctx context.Context, operatorID, caseID uuid.UUID) (*casefile.Case, error) {
	if _, err := s.access.RequireLevel(ctx, operatorID, caseID, values.AccessRead); err != nil {
		return nil, err
	}
	return s.cases.GetByID(ctx, caseID)
}

// ListCases returns the case roster. Admin only; everyone else works
// inside a single case per session and has no use for the roster.
func (s *Service) ListCases(ctx context.Context, adminID uuid.UUID, limit, offset int) ([]*casefile.Case, error) {
	admin, err := s.operators.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.Role != operator.RoleAdmin {
		return nil, errors.NewForbiddenError("ROLE_FORBIDDEN",
			"case listing requires the admin role")
	}
	return s.cases.List(ctx, limit, offset)
}

// CloseCase closes an active case. Evidence writes and logins against
// the case fail afterwards; existing trails remain queryable.
func (s *Service) CloseCase(ctx context.Context, adminID, caseID uuid.UUID) (*casefile.Case, error) {
	return s.adminTransition(ctx, adminID, caseID, "close", func(c *casefile.Case) error {
		return c.Close()
	})
}

// ReopenCase makes a closed case active again.
func (s *Service) ReopenCase(ctx context.Context, adminID, caseID uuid.UUID) (*casefile.Case, error) {
	return s.adminTransition(ctx, adminID, caseID, "reopen", func(c *casefile.Case) error {
		return c.Reopen()
	})
}

// ArchiveCase moves a closed case to long-term storage status.
func (s *Service) ArchiveCase(ctx context.Context, adminID, caseID uuid.UUID) (*casefile.Case, error) {
	return s.adminTransition(ctx, adminID, caseID, "archive", func(c *casefile.Case) error {
		return c.Archive()
	})
}

func (s *Service) adminTransition(ctx context.Context, adminID, caseID uuid.UUID, detail string, apply func(*casefile.Case) error) (*casefile.Case, error) {
	admin, err := s.operators.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.Role != operator.RoleAdmin {
		return nil, errors.NewForbiddenError("ROLE_FORBIDDEN",
			"case lifecycle changes require the admin role")
	}

	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := apply(c); err != nil {
		return nil, err
	}
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, err
	}

	entry, err := audit.NewEntry(audit.ActionClose, adminID)
	if err != nil {
		return nil, err
	}
	entry.ForCase(caseID).WithActorRole(admin.Role.String()).WithDetail("case " + detail)
	if _, err := s.ledger.Append(ctx, entry); err != nil {
		return nil, err
	}
	return c, nil
}
