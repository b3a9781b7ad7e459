package workflow

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/custodia-platform/custodia-backend/internal/domain/audit"
	"github.com/custodia-platform/custodia-backend/internal/domain/casefile"
	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/evidence"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
	"github.com/custodia-platform/custodia-backend/internal/infrastructure/collaborator"
	"github.com/custodia-platform/custodia-backend/internal/infrastructure/telemetry"
	"github.com/custodia-platform/custodia-backend/internal/service/access"
	"github.com/custodia-platform/custodia-backend/internal/testutil/fixtures"
	"github.com/custodia-platform/custodia-backend/internal/testutil/memory"
)

type workflowEnv struct {
	svc       *Service
	evidence  *memory.EvidenceRepository
	cases     *memory.CaseRepository
	operators *memory.OperatorRepository
	ledger    *memory.AuditRepository
	store     *memory.ContentStore
	notifier  *memory.Notifier

	theCase *casefile.Case
}

func newWorkflowEnv(t *testing.T) *workflowEnv {
	t.Helper()
	env := &workflowEnv{
		evidence:  memory.NewEvidenceRepository(),
		cases:     memory.NewCaseRepository(),
		operators: memory.NewOperatorRepository(),
		ledger:    memory.NewAuditRepository(),
		store:     memory.NewContentStore(),
		notifier:  memory.NewNotifier(),
	}
	env.evidence.BindLedger(env.ledger)
	accessSvc := access.NewService(env.operators, env.cases, env.ledger, zap.NewNop())
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	env.svc = NewService(env.evidence, env.cases, env.ledger, env.operators,
		accessSvc, env.store, collaborator.NullAnchor{}, collaborator.ExtensionClassifier{},
		env.notifier, metrics, zap.NewNop())

	env.theCase = fixtures.NewCaseBuilder().Build()
	env.cases.Seed(env.theCase)
	return env
}

// seedActor stores an operator with the given role and write access to
// the environment's case, returning an Actor bound to that case.
func (env *workflowEnv) seedActor(role operator.Role) Actor {
	op := fixtures.NewOperatorBuilder().WithRole(role).
		WithGrant(env.theCase.ID, values.AccessWrite).Build()
	env.operators.Seed(op)
	return Actor{OperatorID: op.ID, CaseID: env.theCase.ID, Origin: "203.0.113.7"}
}

func (env *workflowEnv) seedItem(t *testing.T, status evidence.Status) *evidence.Evidence {
	t.Helper()
	item := fixtures.NewEvidenceBuilder(env.theCase.ID).WithStatus(status).Build()
	env.evidence.Seed(item)
	return item
}

func TestUpload(t *testing.T) {
	env := newWorkflowEnv(t)
	actor := env.seedActor(operator.RoleUploader)
	ctx := context.Background()

	item, err := env.svc.Upload(ctx, actor, UploadRequest{
		Content:  []byte("captured traffic"),
		Filename: "capture.pcap",
		MimeType: "application/octet-stream",
		Tags:     []string{"network"},
	})
	require.NoError(t, err)

	assert.Equal(t, evidence.StatusUploaded, item.Status)
	assert.Equal(t, actor.OperatorID, item.UploadedBy)
	assert.Equal(t, actor.OperatorID, item.CustodianID)
	assert.Equal(t, "network_capture", item.Category)
	assert.Equal(t, 1, env.store.Published())

	// The hash is computed server-side.
	expected, err := values.ComputeHashValue([]byte("captured traffic"))
	require.NoError(t, err)
	assert.True(t, item.ContentHash.Equal(expected))

	// Case bookkeeping and the ledger entry are in place.
	c, err := env.cases.GetByID(ctx, env.theCase.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.EvidenceCount)
	require.Len(t, c.Timeline, 1)
	assert.Equal(t, audit.ActionUpload, env.ledger.LastAction())
}

func TestUploadRejectsDuplicateContent(t *testing.T) {
	env := newWorkflowEnv(t)
	actor := env.seedActor(operator.RoleUploader)
	ctx := context.Background()

	req := UploadRequest{Content: []byte("same bytes"), Filename: "a.bin", MimeType: "application/octet-stream"}
	_, err := env.svc.Upload(ctx, actor, req)
	require.NoError(t, err)

	req.Filename = "b.bin"
	_, err = env.svc.Upload(ctx, actor, req)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "DUPLICATE_EVIDENCE"))
}

func TestUploadRoleGate(t *testing.T) {
	env := newWorkflowEnv(t)
	verifier := env.seedActor(operator.RoleVerifier)

	_, err := env.svc.Upload(context.Background(), verifier, UploadRequest{
		Content: []byte("x"), Filename: "x.bin", MimeType: "application/octet-stream",
	})
	assert.True(t, errors.IsCode(err, "ROLE_FORBIDDEN"))
	assert.Equal(t, audit.ActionUnauthorizedRoleAccess, env.ledger.LastAction())
}

func TestUploadRequiresWriteAccess(t *testing.T) {
	env := newWorkflowEnv(t)

	reader := fixtures.NewOperatorBuilder().WithGrant(env.theCase.ID, values.AccessRead).Build()
	env.operators.Seed(reader)

	_, err := env.svc.Upload(context.Background(),
		Actor{OperatorID: reader.ID, CaseID: env.theCase.ID},
		UploadRequest{Content: []byte("x"), Filename: "x.bin", MimeType: "application/octet-stream"})
	assert.True(t, errors.IsCode(err, "NO_CASE_ACCESS"))
}

func TestViewRecordsLedgerEntry(t *testing.T) {
	env := newWorkflowEnv(t)
	actor := env.seedActor(operator.RoleUploader)
	item := fixtures.NewEvidenceBuilder(env.theCase.ID).
		WithUploader(actor.OperatorID).Build()
	env.evidence.Seed(item)

	got, err := env.svc.View(context.Background(), actor, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)

	entries := env.ledger.All()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionView, entries[0].Action)
	require.NotNil(t, entries[0].EvidenceID)
	assert.Equal(t, item.ID, *entries[0].EvidenceID)
}

func TestViewCrossCaseIsScopeViolation(t *testing.T) {
	env := newWorkflowEnv(t)
	actor := env.seedActor(operator.RoleUploader)

	otherCase := fixtures.NewCaseBuilder().Build()
	env.cases.Seed(otherCase)
	foreign := fixtures.NewEvidenceBuilder(otherCase.ID).Build()
	env.evidence.Seed(foreign)

	_, err := env.svc.View(context.Background(), actor, foreign.ID)
	assert.True(t, errors.IsCode(err, "NO_CASE_ACCESS"))
}

func TestListByCaseScopesToRole(t *testing.T) {
	env := newWorkflowEnv(t)
	ctx := context.Background()

	uploader := env.seedActor(operator.RoleUploader)
	own := fixtures.NewEvidenceBuilder(env.theCase.ID).
		WithUploader(uploader.OperatorID).Build()
	foreign := fixtures.NewEvidenceBuilder(env.theCase.ID).Build()
	env.evidence.Seed(own)
	env.evidence.Seed(foreign)

	// An uploader lists only their own uploads.
	items, err := env.svc.ListByCase(ctx, uploader, 50, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, own.ID, items[0].ID)

	// A verifier reviews the whole pool.
	verifier := env.seedActor(operator.RoleVerifier)
	items, err = env.svc.ListByCase(ctx, verifier, 50, 0)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// A forensic analyst sees nothing until assigned.
	forensic := env.seedActor(operator.RoleForensic)
	items, err = env.svc.ListByCase(ctx, forensic, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	// A court official sees only disclosed items.
	court := env.seedActor(operator.RoleCourt)
	disclosed := fixtures.NewEvidenceBuilder(env.theCase.ID).
		WithStatus(evidence.StatusApproved).
		WithVisibleTo(operator.RoleUploader, operator.RoleAdmin, operator.RoleCourt).Build()
	env.evidence.Seed(disclosed)
	items, err = env.svc.ListByCase(ctx, court, 50, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, disclosed.ID, items[0].ID)

	admin := env.seedActor(operator.RoleAdmin)
	items, err = env.svc.ListByCase(ctx, admin, 50, 0)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestVerifyTransition(t *testing.T) {
	env := newWorkflowEnv(t)
	verifier := env.seedActor(operator.RoleVerifier)
	item := env.seedItem(t, evidence.StatusUploaded)

	got, err := env.svc.Verify(context.Background(), verifier, item.ID)
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusPendingApproval, got.Status)
	assert.Equal(t, audit.ActionVerify, env.ledger.LastAction())

	// The persisted record moved too.
	stored, err := env.evidence.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusPendingApproval, stored.Status)
}

func TestVerifyRoleGate(t *testing.T) {
	env := newWorkflowEnv(t)
	uploader := env.seedActor(operator.RoleUploader)
	item := env.seedItem(t, evidence.StatusUploaded)

	_, err := env.svc.Verify(context.Background(), uploader, item.ID)
	assert.True(t, errors.IsCode(err, "ROLE_FORBIDDEN"))
}

func TestConcurrentVerifyHasOneWinner(t *testing.T) {
	env := newWorkflowEnv(t)
	item := env.seedItem(t, evidence.StatusUploaded)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		verifier := env.seedActor(operator.RoleVerifier)
		wg.Add(1)
		go func(i int, a Actor) {
			defer wg.Done()
			_, errs[i] = env.svc.Verify(context.Background(), a, item.ID)
		}(i, verifier)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.IsCode(err, "INVALID_STATE"):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)

	stored, err := env.evidence.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusPendingApproval, stored.Status)

	// Every loser left a failure entry behind; the winner's entry is
	// the only success.
	var failures int
	for _, e := range env.ledger.All() {
		if e.Result == "failure" {
			failures++
		}
	}
	assert.Equal(t, racers-1, failures)
}

func TestRejectVerification(t *testing.T) {
	env := newWorkflowEnv(t)
	verifier := env.seedActor(operator.RoleVerifier)
	item := env.seedItem(t, evidence.StatusUploaded)

	got, err := env.svc.RejectVerification(context.Background(), verifier, item.ID, "corrupted archive")
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusRejected, got.Status)
	assert.Equal(t, "corrupted archive", got.RejectionReason)

	// Terminal: nothing further applies.
	admin := env.seedActor(operator.RoleAdmin)
	_, err = env.svc.Verify(context.Background(), admin, item.ID)
	assert.True(t, errors.IsCode(err, "INVALID_STATE"))
}

func TestApproveAndSubmitToCourt(t *testing.T) {
	env := newWorkflowEnv(t)
	admin := env.seedActor(operator.RoleAdmin)
	item := env.seedItem(t, evidence.StatusPendingApproval)
	ctx := context.Background()

	got, err := env.svc.Approve(ctx, admin, item.ID)
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusApproved, got.Status)
	assert.True(t, got.IsVisibleToRole(operator.RoleCourt))

	got, err = env.svc.SubmitToCourt(ctx, admin, item.ID)
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusCourtSubmitted, got.Status)
	assert.Equal(t, audit.ActionCourtSubmit, env.ledger.LastAction())
}

func TestApproveRequiresAdmin(t *testing.T) {
	env := newWorkflowEnv(t)
	verifier := env.seedActor(operator.RoleVerifier)
	item := env.seedItem(t, evidence.StatusPendingApproval)

	_, err := env.svc.Approve(context.Background(), verifier, item.ID)
	assert.True(t, errors.IsCode(err, "ROLE_FORBIDDEN"))
}

func TestForensicAssignmentFlow(t *testing.T) {
	env := newWorkflowEnv(t)
	admin := env.seedActor(operator.RoleAdmin)
	item := env.seedItem(t, evidence.StatusUploaded)
	ctx := context.Background()

	analyst := fixtures.NewOperatorBuilder().WithRole(operator.RoleForensic).
		WithGrant(env.theCase.ID, values.AccessWrite).Build()
	env.operators.Seed(analyst)

	got, err := env.svc.AssignForensic(ctx, admin, item.ID, analyst.ID)
	require.NoError(t, err)
	assert.Equal(t, evidence.ForensicInProgress, got.Forensic.Status)

	analystActor := Actor{OperatorID: analyst.ID, CaseID: env.theCase.ID}
	got, err = env.svc.SubmitAnalysis(ctx, analystActor, item.ID, "no manipulation found", "report-12")
	require.NoError(t, err)
	assert.Equal(t, evidence.ForensicCompleted, got.Forensic.Status)
	assert.Equal(t, audit.ActionSubmitAnalysis, env.ledger.LastAction())
}

func TestAssignForensicValidatesAssignee(t *testing.T) {
	env := newWorkflowEnv(t)
	admin := env.seedActor(operator.RoleAdmin)
	item := env.seedItem(t, evidence.StatusUploaded)
	ctx := context.Background()

	// Assignee without case access.
	noAccess := fixtures.NewOperatorBuilder().WithRole(operator.RoleForensic).Build()
	env.operators.Seed(noAccess)
	_, err := env.svc.AssignForensic(ctx, admin, item.ID, noAccess.ID)
	assert.True(t, errors.IsCode(err, "INVALID_ASSIGNEE"))

	// Assignee with access but the wrong role.
	wrongRole := fixtures.NewOperatorBuilder().WithRole(operator.RoleVerifier).
		WithGrant(env.theCase.ID, values.AccessWrite).Build()
	env.operators.Seed(wrongRole)
	_, err = env.svc.AssignForensic(ctx, admin, item.ID, wrongRole.ID)
	assert.True(t, errors.IsCode(err, "INVALID_ASSIGNEE"))
}

func TestTransferCustody(t *testing.T) {
	env := newWorkflowEnv(t)
	ctx := context.Background()

	custodian := fixtures.NewOperatorBuilder().WithGrant(env.theCase.ID, values.AccessWrite).Build()
	env.operators.Seed(custodian)
	receiver := fixtures.NewOperatorBuilder().WithGrant(env.theCase.ID, values.AccessRead).Build()
	env.operators.Seed(receiver)

	item := fixtures.NewEvidenceBuilder(env.theCase.ID).WithUploader(custodian.ID).Build()
	env.evidence.Seed(item)

	actor := Actor{OperatorID: custodian.ID, CaseID: env.theCase.ID}
	got, err := env.svc.Transfer(ctx, actor, item.ID, receiver.ID)
	require.NoError(t, err)
	assert.Equal(t, receiver.ID, got.CustodianID)

	// The ledger entry names both sides of the handover.
	entries := env.ledger.All()
	last := entries[len(entries)-1]
	assert.Equal(t, audit.ActionTransfer, last.Action)
	require.NotNil(t, last.FromActor)
	require.NotNil(t, last.ToActor)
	assert.Equal(t, custodian.ID, *last.FromActor)
	assert.Equal(t, receiver.ID, *last.ToActor)
}

func TestTransferRequiresCustodianOrAdmin(t *testing.T) {
	env := newWorkflowEnv(t)
	ctx := context.Background()

	item := env.seedItem(t, evidence.StatusUploaded)

	outsider := fixtures.NewOperatorBuilder().WithGrant(env.theCase.ID, values.AccessWrite).Build()
	env.operators.Seed(outsider)
	receiver := fixtures.NewOperatorBuilder().WithGrant(env.theCase.ID, values.AccessRead).Build()
	env.operators.Seed(receiver)

	_, err := env.svc.Transfer(ctx, Actor{OperatorID: outsider.ID, CaseID: env.theCase.ID},
		item.ID, receiver.ID)
	assert.True(t, errors.IsCode(err, "NOT_CUSTODIAN"))

	// An admin may transfer on anyone's behalf.
	admin := env.seedActor(operator.RoleAdmin)
	_, err = env.svc.Transfer(ctx, admin, item.ID, receiver.ID)
	assert.NoError(t, err)
}

func TestTransferTargetNeedsCaseAccess(t *testing.T) {
	env := newWorkflowEnv(t)
	admin := env.seedActor(operator.RoleAdmin)
	item := env.seedItem(t, evidence.StatusUploaded)

	stranger := fixtures.NewOperatorBuilder().Build()
	env.operators.Seed(stranger)

	_, err := env.svc.Transfer(context.Background(), admin, item.ID, stranger.ID)
	assert.True(t, errors.IsCode(err, "INVALID_CUSTODIAN"))
}

func TestCheckIntegrity(t *testing.T) {
	env := newWorkflowEnv(t)
	actor := env.seedActor(operator.RoleUploader)
	ctx := context.Background()

	content := []byte("original bytes")
	item := fixtures.NewEvidenceBuilder(env.theCase.ID).
		WithUploader(actor.OperatorID).WithContent(content).Build()
	env.evidence.Seed(item)

	got, err := env.svc.CheckIntegrity(ctx, actor, item.ID, content)
	require.NoError(t, err)
	assert.False(t, got.TamperFlag)
	assert.Equal(t, 1, got.VerificationCount)

	got, err = env.svc.CheckIntegrity(ctx, actor, item.ID, []byte("altered bytes"))
	require.NoError(t, err)
	assert.True(t, got.TamperFlag)

	// The mismatch is recorded as a failed verify on the ledger.
	entries := env.ledger.All()
	last := entries[len(entries)-1]
	assert.Equal(t, audit.ActionVerify, last.Action)
	assert.Equal(t, "failure", last.Result)

	// The flag survives in the store.
	stored, err := env.evidence.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, stored.TamperFlag)
}

func TestCloseEvidence(t *testing.T) {
	env := newWorkflowEnv(t)
	admin := env.seedActor(operator.RoleAdmin)

	item := env.seedItem(t, evidence.StatusUploaded)
	got, err := env.svc.Close(context.Background(), admin, item.ID, "investigation concluded")
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusClosed, got.Status)

	_, err = env.svc.Close(context.Background(), admin, item.ID, "")
	assert.True(t, errors.IsCode(err, "INVALID_STATE"))
}

func TestVerifierMayAssignForensic(t *testing.T) {
	env := newWorkflowEnv(t)
	verifier := env.seedActor(operator.RoleVerifier)
	item := env.seedItem(t, evidence.StatusUploaded)

	analyst := fixtures.NewOperatorBuilder().WithRole(operator.RoleForensic).
		WithGrant(env.theCase.ID, values.AccessWrite).Build()
	env.operators.Seed(analyst)

	got, err := env.svc.AssignForensic(context.Background(), verifier, item.ID, analyst.ID)
	require.NoError(t, err)
	assert.Equal(t, evidence.ForensicInProgress, got.Forensic.Status)
}

func TestTransitionsDispatchNotifications(t *testing.T) {
	env := newWorkflowEnv(t)
	ctx := context.Background()

	uploader := fixtures.NewOperatorBuilder().
		WithGrant(env.theCase.ID, values.AccessWrite).Build()
	verifier := fixtures.NewOperatorBuilder().WithRole(operator.RoleVerifier).
		WithGrant(env.theCase.ID, values.AccessWrite).Build()
	admin := fixtures.NewOperatorBuilder().WithRole(operator.RoleAdmin).
		WithGrant(env.theCase.ID, values.AccessWrite).Build()
	analyst := fixtures.NewOperatorBuilder().WithRole(operator.RoleForensic).
		WithGrant(env.theCase.ID, values.AccessWrite).Build()
	for _, op := range []*operator.Operator{uploader, verifier, admin, analyst} {
		env.operators.Seed(op)
	}
	verifierActor := Actor{OperatorID: verifier.ID, CaseID: env.theCase.ID}
	adminActor := Actor{OperatorID: admin.ID, CaseID: env.theCase.ID}
	analystActor := Actor{OperatorID: analyst.ID, CaseID: env.theCase.ID}

	seed := func() *evidence.Evidence {
		item := fixtures.NewEvidenceBuilder(env.theCase.ID).
			WithUploader(uploader.ID).Build()
		env.evidence.Seed(item)
		return item
	}
	lastSent := func(t *testing.T) memory.SentMessage {
		t.Helper()
		sent := env.notifier.Sent()
		require.NotEmpty(t, sent)
		return sent[len(sent)-1]
	}

	// Accepted verification alerts the approving admins.
	item := seed()
	_, err := env.svc.Verify(ctx, verifierActor, item.ID)
	require.NoError(t, err)
	msg := lastSent(t)
	assert.Equal(t, admin.Email, msg.Recipient.Email)
	assert.Contains(t, msg.Message, "awaits approval")

	// Rejected verification alerts the uploader.
	item = seed()
	_, err = env.svc.RejectVerification(ctx, verifierActor, item.ID, "corrupted archive")
	require.NoError(t, err)
	msg = lastSent(t)
	assert.Equal(t, uploader.Email, msg.Recipient.Email)
	assert.Contains(t, msg.Message, "rejected")

	// Assignment alerts the analyst; their findings alert the
	// verifier pool.
	item = seed()
	_, err = env.svc.AssignForensic(ctx, adminActor, item.ID, analyst.ID)
	require.NoError(t, err)
	msg = lastSent(t)
	assert.Equal(t, analyst.Email, msg.Recipient.Email)

	_, err = env.svc.SubmitAnalysis(ctx, analystActor, item.ID, "no manipulation found", "report-3")
	require.NoError(t, err)
	msg = lastSent(t)
	assert.Equal(t, verifier.Email, msg.Recipient.Email)

	// Approval alerts the uploader.
	item = seed()
	_, err = env.svc.Verify(ctx, verifierActor, item.ID)
	require.NoError(t, err)
	_, err = env.svc.Approve(ctx, adminActor, item.ID)
	require.NoError(t, err)
	msg = lastSent(t)
	assert.Equal(t, uploader.Email, msg.Recipient.Email)
	assert.Contains(t, msg.Message, "approved")
}

func TestNotificationFailureDoesNotFailTransition(t *testing.T) {
	env := newWorkflowEnv(t)
	verifier := env.seedActor(operator.RoleVerifier)
	item := env.seedItem(t, evidence.StatusUploaded)

	env.notifier.Err = errors.NewInternalError("smtp down")
	got, err := env.svc.Verify(context.Background(), verifier, item.ID)
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusPendingApproval, got.Status)
}

func TestRefusedTransitionLeavesFailureEntry(t *testing.T) {
	env := newWorkflowEnv(t)
	verifier := env.seedActor(operator.RoleVerifier)
	item := env.seedItem(t, evidence.StatusRejected)

	_, err := env.svc.Verify(context.Background(), verifier, item.ID)
	require.True(t, errors.IsCode(err, "INVALID_STATE"))

	entries := env.ledger.All()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionVerify, entries[0].Action)
	assert.Equal(t, "failure", entries[0].Result)
	require.NotNil(t, entries[0].EvidenceID)
	assert.Equal(t, item.ID, *entries[0].EvidenceID)
}

func TestTransitionAtomicWithLedgerAppend(t *testing.T) {
	env := newWorkflowEnv(t)
	verifier := env.seedActor(operator.RoleVerifier)
	item := env.seedItem(t, evidence.StatusUploaded)
	ctx := context.Background()

	env.ledger.Err = errors.NewStorageError("ledger unavailable")
	_, err := env.svc.Verify(ctx, verifier, item.ID)
	require.Error(t, err)

	// The status swap rolled back with the failed append.
	stored, err := env.evidence.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusUploaded, stored.Status)

	env.ledger.Err = nil
	got, err := env.svc.Verify(ctx, verifier, item.ID)
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusPendingApproval, got.Status)
}
