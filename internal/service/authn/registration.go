package authn

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
)

// RegisterRequest enrolls a new operator. The account stays pending
// until an admin verifies identity.
type RegisterRequest struct {
	Username string
	Email    string
	Phone    string
	Password string
	Role     string
}

// Register creates a pending operator account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*operator.Operator, error) {
	role, ok := operator.ParseRole(req.Role)
	if !ok {
		return nil, errors.NewValidationError("INVALID_ROLE", "unknown role: "+req.Role)
	}
	if len(req.Password) < 12 {
		return nil, errors.NewValidationError("WEAK_PASSWORD",
			"password must be at least 12 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.NewInternalError("failed to hash password").WithCause(err)
	}

	op, err := operator.NewOperator(req.Username, req.Email, req.Phone, string(hash), role)
	if err != nil {
		return nil, err
	}
	if err := s.operators.Create(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

// VerifyKYC records an admin's identity-verification decision and, on
// approval, activates the account.
func (s *Service) VerifyKYC(ctx context.Context, adminID, operatorID uuid.UUID, approve bool) (*operator.Operator, error) {
	admin, err := s.operators.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.Role != operator.RoleAdmin {
		return nil, errors.NewForbiddenError("ROLE_FORBIDDEN",
			"identity verification requires the admin role")
	}

	op, err := s.operators.GetByID(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	if approve {
		err = op.VerifyKYC(adminID)
	} else {
		err = op.RejectKYC(adminID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.operators.Update(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}
