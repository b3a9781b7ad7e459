package access

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/custodia-platform/custodia-backend/internal/domain/audit"
	"github.com/custodia-platform/custodia-backend/internal/domain/casefile"
	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/evidence"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

// Service is the authorization layer. Every operation passes two
// independent gates: a case gate (does the operator hold a sufficient
// grant for this case) and a role gate (is the operator's role allowed
// to perform this action). Denials are written to the ledger before
// the error is returned.
type Service struct {
	operators operator.Repository
	cases     casefile.Repository
	ledger    audit.Repository
	logger    *zap.Logger
}

// NewService wires the access controller.
func NewService(operators operator.Repository, cases casefile.Repository, ledger audit.Repository, logger *zap.Logger) *Service {
	return &Service{operators: operators, cases: cases, ledger: ledger, logger: logger}
}

// CaseLevel returns the operator's effective access level for a case.
// Admins hold admin level everywhere; everyone else holds exactly what
// their grant says, or nothing.
func (s *Service) CaseLevel(op *operator.Operator, caseID uuid.UUID) values.AccessLevel {
	if op.Role == operator.RoleAdmin {
		return values.AccessAdmin
	}
	if g, ok := op.GrantFor(caseID); ok {
		return g.Level
	}
	return values.AccessNone
}

// RequireLevel loads the operator and enforces the case gate at the
// given minimum level. The case must also be active for write-level
// requirements.
func (s *Service) RequireLevel(ctx context.Context, operatorID, caseID uuid.UUID, min values.AccessLevel) (*operator.Operator, error) {
	op, err := s.operators.GetByID(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	level := s.CaseLevel(op, caseID)
	if !level.AtLeast(min) {
		if aerr := s.recordCaseDenial(ctx, op, caseID, "insufficient case access"); aerr != nil {
			return nil, aerr
		}
		return nil, errors.NewNoCaseAccessError()
	}

	if min.AtLeast(values.AccessWrite) {
		c, err := s.cases.GetByID(ctx, caseID)
		if err != nil {
			return nil, err
		}
		if !c.IsActive() {
			return nil, errors.NewCaseInactiveError()
		}
	}

	return op, nil
}

// RequireRole enforces the role gate. The case gate must already have
// passed; role denials are recorded separately so the two failure
// modes stay distinguishable in the ledger.
func (s *Service) RequireRole(ctx context.Context, op *operator.Operator, caseID uuid.UUID, allowed ...operator.Role) error {
	for _, r := range allowed {
		if op.Role == r {
			return nil
		}
	}
	if aerr := s.recordRoleDenial(ctx, op, caseID, "role not permitted for action"); aerr != nil {
		return aerr
	}
	return errors.NewForbiddenError("ROLE_FORBIDDEN", "role is not permitted to perform this action")
}

// AuthorizeView enforces the case gate plus the per-role view
// predicate: uploaders see only their own uploads, verifiers see the
// full pool for triage, forensic operators only their assignment,
// court officials only what approval disclosed. Visibility alone is
// never enough: losing case access hides every item regardless of its
// disclosure state.
func (s *Service) AuthorizeView(ctx context.Context, operatorID uuid.UUID, e *evidence.Evidence) (*operator.Operator, error) {
	op, err := s.RequireLevel(ctx, operatorID, e.CaseID, values.AccessRead)
	if err != nil {
		return nil, err
	}

	if !e.CanBeViewedBy(op) {
		if aerr := s.recordRoleDenial(ctx, op, e.CaseID, "item not disclosed to role"); aerr != nil {
			return nil, aerr
		}
		return nil, errors.NewForbiddenError("NOT_VISIBLE",
			"item is not disclosed to this role")
	}
	return op, nil
}

// GrantCaseAccess records an admin-issued grant on both the operator
// and the case assignment list.
func (s *Service) GrantCaseAccess(ctx context.Context, adminID, operatorID, caseID uuid.UUID, level values.AccessLevel) error {
	admin, err := s.operators.GetByID(ctx, adminID)
	if err != nil {
		return err
	}
	if err := s.RequireRole(ctx, admin, caseID, operator.RoleAdmin); err != nil {
		return err
	}

	target, err := s.operators.GetByID(ctx, operatorID)
	if err != nil {
		return err
	}

	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return err
	}
	if c.IsTerminal() {
		return errors.NewCaseInactiveError()
	}

	if err := s.operators.AddGrant(ctx, operatorID, operator.CaseGrant{
		CaseID: caseID,
		Level:  level,
	}); err != nil {
		return err
	}

	c.Assign(operatorID, target.Role)
	if err := s.cases.Update(ctx, c); err != nil {
		return err
	}

	entry, err := audit.NewEntry(audit.ActionAssign, adminID)
	if err != nil {
		return err
	}
	entry.ForCase(caseID).WithActorRole(admin.Role.String()).
		WithDetail("granted " + level.String() + " to " + target.Username)
	if _, err := s.ledger.Append(ctx, entry); err != nil {
		return err
	}
	return nil
}

func (s *Service) recordCaseDenial(ctx context.Context, op *operator.Operator, caseID uuid.UUID, detail string) error {
	entry, err := audit.NewEntry(audit.ActionUnauthorizedCaseAccess, op.ID)
	if err != nil {
		return err
	}
	entry.AsFailure(detail).ForCase(caseID).WithActorRole(op.Role.String())
	_, err = s.ledger.Append(ctx, entry)
	return err
}

func (s *Service) recordRoleDenial(ctx context.Context, op *operator.Operator, caseID uuid.UUID, detail string) error {
	entry, err := audit.NewEntry(audit.ActionUnauthorizedRoleAccess, op.ID)
	if err != nil {
		return err
	}
	entry.AsFailure(detail).ForCase(caseID).WithActorRole(op.Role.String())
	_, err = s.ledger.Append(ctx, entry)
	return err
}
