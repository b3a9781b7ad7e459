package fixtures

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

// DefaultPassword is the plaintext behind every fixture operator's
// hash unless overridden.
const DefaultPassword = "correct horse battery"

// OperatorBuilder builds test Operator entities.
type OperatorBuilder struct {
	op *operator.Operator
}

// NewOperatorBuilder creates a builder for an active, KYC-verified
// uploader with a unique username.
func NewOperatorBuilder() *OperatorBuilder {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	now := time.Now().UTC()
	suffix := uuid.NewString()[:8]
	verifier := uuid.New()
	return &OperatorBuilder{op: &operator.Operator{
		ID:           uuid.New(),
		Username:     fmt.Sprintf("operator-%s", suffix),
		Email:        fmt.Sprintf("operator-%s@example.org", suffix),
		Phone:        "+15550000000",
		PasswordHash: string(hash),
		Role:         operator.RoleUploader,
		Status:       operator.StatusActive,
		KYC: operator.KYCRecord{
			Status:     operator.KYCVerified,
			VerifiedBy: &verifier,
			VerifiedAt: &now,
		},
		Grants:    []operator.CaseGrant{},
		Sessions:  []operator.Session{},
		CreatedAt: now,
		UpdatedAt: now,
	}}
}

func (b *OperatorBuilder) WithID(id uuid.UUID) *OperatorBuilder {
	b.op.ID = id
	return b
}

func (b *OperatorBuilder) WithUsername(username string) *OperatorBuilder {
	b.op.Username = username
	return b
}

func (b *OperatorBuilder) WithRole(role operator.Role) *OperatorBuilder {
	b.op.Role = role
	return b
}

func (b *OperatorBuilder) WithStatus(status operator.Status) *OperatorBuilder {
	b.op.Status = status
	return b
}

func (b *OperatorBuilder) WithPendingKYC() *OperatorBuilder {
	b.op.Status = operator.StatusPending
	b.op.KYC = operator.KYCRecord{Status: operator.KYCPending}
	return b
}

func (b *OperatorBuilder) WithPassword(plaintext string) *OperatorBuilder {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	b.op.PasswordHash = string(hash)
	return b
}

func (b *OperatorBuilder) WithGrant(caseID uuid.UUID, level values.AccessLevel) *OperatorBuilder {
	b.op.AddGrant(caseID, level)
	return b
}

func (b *OperatorBuilder) WithFailedLogins(count int) *OperatorBuilder {
	b.op.FailedLogins = count
	return b
}

func (b *OperatorBuilder) WithLockUntil(t time.Time) *OperatorBuilder {
	b.op.LockedUntil = &t
	return b
}

func (b *OperatorBuilder) WithOTP(code values.OTPCode, caseID uuid.UUID, expiresAt time.Time) *OperatorBuilder {
	b.op.OTP = &operator.OTPRecord{
		Code:      code,
		CaseID:    caseID,
		ExpiresAt: expiresAt,
		SentAt:    time.Now().UTC(),
	}
	return b
}

func (b *OperatorBuilder) WithSession(s operator.Session) *OperatorBuilder {
	b.op.Sessions = append(b.op.Sessions, s)
	return b
}

// Build returns the operator.
func (b *OperatorBuilder) Build() *operator.Operator {
	return b.op
}
