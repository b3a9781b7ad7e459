package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/custodia-platform/custodia-backend/internal/domain/audit"
	"github.com/custodia-platform/custodia-backend/internal/domain/casefile"
	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/evidence"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
	"github.com/custodia-platform/custodia-backend/internal/service/access"
	"github.com/custodia-platform/custodia-backend/internal/testutil/fixtures"
	"github.com/custodia-platform/custodia-backend/internal/testutil/memory"
)

type ledgerEnv struct {
	svc       *Service
	entries   *memory.AuditRepository
	evidence  *memory.EvidenceRepository
	operators *memory.OperatorRepository
	cases     *memory.CaseRepository

	theCase *casefile.Case
	item    *evidence.Evidence
}

func newLedgerEnv(t *testing.T) *ledgerEnv {
	t.Helper()
	env := &ledgerEnv{
		entries:   memory.NewAuditRepository(),
		evidence:  memory.NewEvidenceRepository(),
		operators: memory.NewOperatorRepository(),
		cases:     memory.NewCaseRepository(),
	}
	accessSvc := access.NewService(env.operators, env.cases, env.entries, zap.NewNop())
	env.svc = NewService(env.entries, env.evidence, env.operators, accessSvc, zap.NewNop())

	env.theCase = fixtures.NewCaseBuilder().Build()
	env.cases.Seed(env.theCase)
	env.item = fixtures.NewEvidenceBuilder(env.theCase.ID).Build()
	env.evidence.Seed(env.item)
	return env
}

// appendTrail writes a short custody trail for the environment's item.
func (env *ledgerEnv) appendTrail(t *testing.T, actions ...audit.Action) {
	t.Helper()
	actor := uuid.New()
	for _, a := range actions {
		entry, err := audit.NewEntry(a, actor)
		require.NoError(t, err)
		entry.ForEvidence(env.item.ID).ForCase(env.theCase.ID)
		_, err = env.entries.Append(context.Background(), entry)
		require.NoError(t, err)
	}
}

func TestCustodyReport(t *testing.T) {
	env := newLedgerEnv(t)
	env.appendTrail(t, audit.ActionUpload, audit.ActionVerify, audit.ActionApprove)

	reader := fixtures.NewOperatorBuilder().WithGrant(env.theCase.ID, values.AccessRead).Build()
	env.operators.Seed(reader)

	report, err := env.svc.Report(context.Background(), reader.ID, env.theCase.ID, env.item.ID)
	require.NoError(t, err)

	assert.Equal(t, env.item.ID, report.Evidence.ID)
	require.Len(t, report.Trail, 3)
	assert.Equal(t, audit.ActionUpload, report.Trail[0].Action)
	assert.True(t, report.Chain.IsValid)
	assert.Equal(t, 3, report.Chain.EntriesVerified)
}

func TestCustodyReportCrossCase(t *testing.T) {
	env := newLedgerEnv(t)

	otherCase := fixtures.NewCaseBuilder().Build()
	env.cases.Seed(otherCase)
	reader := fixtures.NewOperatorBuilder().WithGrant(otherCase.ID, values.AccessRead).Build()
	env.operators.Seed(reader)

	_, err := env.svc.Report(context.Background(), reader.ID, otherCase.ID, env.item.ID)
	assert.True(t, errors.IsCode(err, "NO_CASE_ACCESS"))
}

func TestQueryPinsNonAdminToSessionCase(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()
	env.appendTrail(t, audit.ActionUpload)

	// An entry on a different case must not leak into the result.
	otherCase := fixtures.NewCaseBuilder().Build()
	env.cases.Seed(otherCase)
	foreign, err := audit.NewEntry(audit.ActionUpload, uuid.New())
	require.NoError(t, err)
	foreign.ForCase(otherCase.ID)
	_, err = env.entries.Append(ctx, foreign)
	require.NoError(t, err)

	reader := fixtures.NewOperatorBuilder().WithGrant(env.theCase.ID, values.AccessRead).Build()
	env.operators.Seed(reader)

	// Even an explicit foreign-case filter is overridden by the session
	// case for non-admins.
	got, err := env.svc.Query(ctx, reader.ID, env.theCase.ID, audit.Filter{CaseID: &otherCase.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, env.theCase.ID, *got[0].CaseID)
}

func TestQueryAdminMayFilterAnyCase(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	otherCase := fixtures.NewCaseBuilder().Build()
	env.cases.Seed(otherCase)
	foreign, err := audit.NewEntry(audit.ActionUpload, uuid.New())
	require.NoError(t, err)
	foreign.ForCase(otherCase.ID)
	_, err = env.entries.Append(ctx, foreign)
	require.NoError(t, err)

	admin := fixtures.NewOperatorBuilder().WithRole(operator.RoleAdmin).Build()
	env.operators.Seed(admin)

	got, err := env.svc.Query(ctx, admin.ID, env.theCase.ID, audit.Filter{CaseID: &otherCase.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, otherCase.ID, *got[0].CaseID)
}

func TestVerifyChain(t *testing.T) {
	env := newLedgerEnv(t)
	env.appendTrail(t, audit.ActionUpload, audit.ActionVerify, audit.ActionApprove)

	admin := fixtures.NewOperatorBuilder().WithRole(operator.RoleAdmin).Build()
	env.operators.Seed(admin)

	result, err := env.svc.VerifyChain(context.Background(), admin.ID, 1, 3)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, 3, result.EntriesVerified)
}

func TestVerifyChainRequiresAdmin(t *testing.T) {
	env := newLedgerEnv(t)

	reader := fixtures.NewOperatorBuilder().Build()
	env.operators.Seed(reader)

	_, err := env.svc.VerifyChain(context.Background(), reader.ID, 1, 10)
	assert.True(t, errors.IsCode(err, "ROLE_FORBIDDEN"))
}

func TestVerifyChainValidatesRange(t *testing.T) {
	env := newLedgerEnv(t)
	admin := fixtures.NewOperatorBuilder().WithRole(operator.RoleAdmin).Build()
	env.operators.Seed(admin)
	ctx := context.Background()

	_, err := env.svc.VerifyChain(ctx, admin.ID, 0, 10)
	assert.Error(t, err, "zero start")

	_, err = env.svc.VerifyChain(ctx, admin.ID, 5, 2)
	assert.True(t, errors.IsCode(err, "INVALID_RANGE"))
}
