package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/custodia-platform/custodia-backend/internal/domain/audit"
	"github.com/custodia-platform/custodia-backend/internal/domain/casefile"
	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/evidence"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
	"github.com/custodia-platform/custodia-backend/internal/testutil/fixtures"
	"github.com/custodia-platform/custodia-backend/internal/testutil/memory"
)

type accessEnv struct {
	svc       *Service
	operators *memory.OperatorRepository
	cases     *memory.CaseRepository
	ledger    *memory.AuditRepository
}

func newAccessEnv(t *testing.T) *accessEnv {
	t.Helper()
	env := &accessEnv{
		operators: memory.NewOperatorRepository(),
		cases:     memory.NewCaseRepository(),
		ledger:    memory.NewAuditRepository(),
	}
	env.svc = NewService(env.operators, env.cases, env.ledger, zap.NewNop())
	return env
}

func TestCaseLevel(t *testing.T) {
	env := newAccessEnv(t)
	c := fixtures.NewCaseBuilder().Build()

	admin := fixtures.NewOperatorBuilder().WithRole(operator.RoleAdmin).Build()
	granted := fixtures.NewOperatorBuilder().WithGrant(c.ID, values.AccessRead).Build()
	stranger := fixtures.NewOperatorBuilder().Build()

	assert.Equal(t, values.AccessAdmin, env.svc.CaseLevel(admin, c.ID))
	assert.Equal(t, values.AccessRead, env.svc.CaseLevel(granted, c.ID))
	assert.Equal(t, values.AccessNone, env.svc.CaseLevel(stranger, c.ID))
}

func TestRequireLevel(t *testing.T) {
	env := newAccessEnv(t)
	ctx := context.Background()

	c := fixtures.NewCaseBuilder().Build()
	env.cases.Seed(c)

	reader := fixtures.NewOperatorBuilder().WithGrant(c.ID, values.AccessRead).Build()
	env.operators.Seed(reader)

	_, err := env.svc.RequireLevel(ctx, reader.ID, c.ID, values.AccessRead)
	assert.NoError(t, err)

	// Read does not satisfy write, and the denial lands on the ledger.
	_, err = env.svc.RequireLevel(ctx, reader.ID, c.ID, values.AccessWrite)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "NO_CASE_ACCESS"))
	assert.Equal(t, audit.ActionUnauthorizedCaseAccess, env.ledger.LastAction())
}

func TestRequireLevelWriteNeedsActiveCase(t *testing.T) {
	env := newAccessEnv(t)
	ctx := context.Background()

	closed := fixtures.NewCaseBuilder().WithStatus(casefile.StatusClosed).Build()
	env.cases.Seed(closed)

	writer := fixtures.NewOperatorBuilder().WithGrant(closed.ID, values.AccessWrite).Build()
	env.operators.Seed(writer)

	// Reads against an inactive case stay possible; writes do not.
	_, err := env.svc.RequireLevel(ctx, writer.ID, closed.ID, values.AccessRead)
	assert.NoError(t, err)

	_, err = env.svc.RequireLevel(ctx, writer.ID, closed.ID, values.AccessWrite)
	assert.True(t, errors.IsCode(err, "CASE_INACTIVE"))
}

func TestRequireRole(t *testing.T) {
	env := newAccessEnv(t)
	ctx := context.Background()
	c := fixtures.NewCaseBuilder().Build()

	verifier := fixtures.NewOperatorBuilder().WithRole(operator.RoleVerifier).Build()

	assert.NoError(t, env.svc.RequireRole(ctx, verifier, c.ID,
		operator.RoleVerifier, operator.RoleAdmin))

	err := env.svc.RequireRole(ctx, verifier, c.ID, operator.RoleAdmin)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "ROLE_FORBIDDEN"))
	assert.Equal(t, audit.ActionUnauthorizedRoleAccess, env.ledger.LastAction())
}

func TestAuthorizeView(t *testing.T) {
	env := newAccessEnv(t)
	ctx := context.Background()

	c := fixtures.NewCaseBuilder().Build()
	env.cases.Seed(c)

	seedOp := func(role operator.Role) *operator.Operator {
		op := fixtures.NewOperatorBuilder().WithRole(role).
			WithGrant(c.ID, values.AccessRead).Build()
		env.operators.Seed(op)
		return op
	}
	owner := seedOp(operator.RoleUploader)
	otherUploader := seedOp(operator.RoleUploader)
	verifier := seedOp(operator.RoleVerifier)
	analyst := seedOp(operator.RoleForensic)
	courtOfficial := seedOp(operator.RoleCourt)

	item := fixtures.NewEvidenceBuilder(c.ID).WithUploader(owner.ID).Build()

	// Uploaders see their own uploads only.
	_, err := env.svc.AuthorizeView(ctx, owner.ID, item)
	assert.NoError(t, err)
	_, err = env.svc.AuthorizeView(ctx, otherUploader.ID, item)
	assert.True(t, errors.IsCode(err, "NOT_VISIBLE"))

	// Verifiers review the whole pool, disclosed or not.
	_, err = env.svc.AuthorizeView(ctx, verifier.ID, item)
	assert.NoError(t, err)

	// Forensic analysts see only items assigned to them.
	_, err = env.svc.AuthorizeView(ctx, analyst.ID, item)
	assert.True(t, errors.IsCode(err, "NOT_VISIBLE"))
	assigned := fixtures.NewEvidenceBuilder(c.ID).
		WithForensic(evidence.ForensicState{
			Status:     evidence.ForensicInProgress,
			AssigneeID: &analyst.ID,
		}).Build()
	_, err = env.svc.AuthorizeView(ctx, analyst.ID, assigned)
	assert.NoError(t, err)

	// Court officials wait for disclosure.
	_, err = env.svc.AuthorizeView(ctx, courtOfficial.ID, item)
	assert.True(t, errors.IsCode(err, "NOT_VISIBLE"))
	disclosed := fixtures.NewEvidenceBuilder(c.ID).
		WithVisibleTo(operator.RoleUploader, operator.RoleAdmin, operator.RoleCourt).Build()
	_, err = env.svc.AuthorizeView(ctx, courtOfficial.ID, disclosed)
	assert.NoError(t, err)

	// No case grant hides the item regardless of role.
	stranger := fixtures.NewOperatorBuilder().Build()
	env.operators.Seed(stranger)
	_, err = env.svc.AuthorizeView(ctx, stranger.ID, item)
	assert.True(t, errors.IsCode(err, "NO_CASE_ACCESS"))
}

func TestAuthorizeViewAdminBypassesVisibility(t *testing.T) {
	env := newAccessEnv(t)

	c := fixtures.NewCaseBuilder().Build()
	env.cases.Seed(c)
	item := fixtures.NewEvidenceBuilder(c.ID).WithVisibleTo(operator.RoleUploader).Build()

	admin := fixtures.NewOperatorBuilder().WithRole(operator.RoleAdmin).Build()
	env.operators.Seed(admin)

	_, err := env.svc.AuthorizeView(context.Background(), admin.ID, item)
	assert.NoError(t, err)
}

func TestGrantCaseAccess(t *testing.T) {
	env := newAccessEnv(t)
	ctx := context.Background()

	c := fixtures.NewCaseBuilder().Build()
	env.cases.Seed(c)
	admin := fixtures.NewOperatorBuilder().WithRole(operator.RoleAdmin).Build()
	env.operators.Seed(admin)
	target := fixtures.NewOperatorBuilder().Build()
	env.operators.Seed(target)

	require.NoError(t, env.svc.GrantCaseAccess(ctx, admin.ID, target.ID, c.ID, values.AccessWrite))

	stored, err := env.operators.GetByID(ctx, target.ID)
	require.NoError(t, err)
	g, ok := stored.GrantFor(c.ID)
	require.True(t, ok)
	assert.Equal(t, values.AccessWrite, g.Level)

	storedCase, err := env.cases.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, storedCase.Assigned, 1)
	assert.Equal(t, target.ID, storedCase.Assigned[0].OperatorID)

	assert.Equal(t, audit.ActionAssign, env.ledger.LastAction())
}

func TestGrantCaseAccessRequiresAdmin(t *testing.T) {
	env := newAccessEnv(t)

	c := fixtures.NewCaseBuilder().Build()
	env.cases.Seed(c)
	notAdmin := fixtures.NewOperatorBuilder().Build()
	env.operators.Seed(notAdmin)
	target := fixtures.NewOperatorBuilder().Build()
	env.operators.Seed(target)

	err := env.svc.GrantCaseAccess(context.Background(), notAdmin.ID, target.ID, c.ID, values.AccessRead)
	assert.True(t, errors.IsCode(err, "ROLE_FORBIDDEN"))
}

func TestGrantCaseAccessOnTerminalCase(t *testing.T) {
	env := newAccessEnv(t)

	archived := fixtures.NewCaseBuilder().WithStatus(casefile.StatusArchived).Build()
	env.cases.Seed(archived)
	admin := fixtures.NewOperatorBuilder().WithRole(operator.RoleAdmin).Build()
	env.operators.Seed(admin)
	target := fixtures.NewOperatorBuilder().Build()
	env.operators.Seed(target)

	err := env.svc.GrantCaseAccess(context.Background(), admin.ID, target.ID, archived.ID, values.AccessRead)
	assert.True(t, errors.IsCode(err, "CASE_INACTIVE"))
}
