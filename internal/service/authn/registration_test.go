package authn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
	"github.com/custodia-platform/custodia-backend/internal/testutil/fixtures"
)

func TestRegister(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	op, err := env.svc.Register(ctx, RegisterRequest{
		Username: "new-operator",
		Email:    "new@example.org",
		Phone:    "+15550000002",
		Password: "a long enough password",
		Role:     "verifier",
	})
	require.NoError(t, err)
	assert.Equal(t, operator.StatusPending, op.Status)
	assert.Equal(t, operator.RoleVerifier, op.Role)
	assert.NotEqual(t, "a long enough password", op.PasswordHash)

	// Duplicate usernames are rejected.
	_, err = env.svc.Register(ctx, RegisterRequest{
		Username: "new-operator",
		Email:    "other@example.org",
		Password: "a long enough password",
		Role:     "verifier",
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
}

func TestRegisterValidation(t *testing.T) {
	env := newAuthEnv(t)

	_, err := env.svc.Register(context.Background(), RegisterRequest{
		Username: "x", Email: "x@example.org", Password: "long enough password", Role: "superuser",
	})
	assert.True(t, errors.IsCode(err, "INVALID_ROLE"))

	_, err = env.svc.Register(context.Background(), RegisterRequest{
		Username: "x", Email: "x@example.org", Password: "short", Role: "uploader",
	})
	assert.True(t, errors.IsCode(err, "WEAK_PASSWORD"))
}

func TestVerifyKYC(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	admin := fixtures.NewOperatorBuilder().WithRole(operator.RoleAdmin).Build()
	env.operators.Seed(admin)
	pending := fixtures.NewOperatorBuilder().WithPendingKYC().Build()
	env.operators.Seed(pending)

	verified, err := env.svc.VerifyKYC(ctx, admin.ID, pending.ID, true)
	require.NoError(t, err)
	assert.Equal(t, operator.StatusActive, verified.Status)
	assert.True(t, verified.IsKYCVerified())
}

func TestVerifyKYCRejection(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	admin := fixtures.NewOperatorBuilder().WithRole(operator.RoleAdmin).Build()
	env.operators.Seed(admin)
	pending := fixtures.NewOperatorBuilder().WithPendingKYC().Build()
	env.operators.Seed(pending)

	rejected, err := env.svc.VerifyKYC(ctx, admin.ID, pending.ID, false)
	require.NoError(t, err)
	assert.Equal(t, operator.StatusBlocked, rejected.Status)
}

func TestVerifyKYCRequiresAdmin(t *testing.T) {
	env := newAuthEnv(t)

	notAdmin := fixtures.NewOperatorBuilder().WithRole(operator.RoleVerifier).Build()
	env.operators.Seed(notAdmin)
	pending := fixtures.NewOperatorBuilder().WithPendingKYC().Build()
	env.operators.Seed(pending)

	_, err := env.svc.VerifyKYC(context.Background(), notAdmin.ID, pending.ID, true)
	assert.True(t, errors.IsCode(err, "ROLE_FORBIDDEN"))
}
