package workflow

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
	"github.com/custodia-platform/custodia-backend/internal/infrastructure/collaborator"
	"github.com/custodia-platform/custodia-backend/internal/infrastructure/telemetry"
	"github.com/custodia-platform/custodia-backend/internal/service/access"
)

// Actor identifies the authenticated operator behind a request. The
// case binding comes from the session, not from the request body.
type Actor struct {
	OperatorID uuid.UUID
	CaseID     uuid.UUID
	Origin     string
}

// Service drives the evidence lifecycle. Transitions are persisted
// with a status compare-and-swap: when two operators race the same
// transition, exactly one write lands and the loser sees the
// post-transition state as an invalid-state error. The matching audit
// entry is durably appended before any success is reported.
type Service struct {
	evidence  evidence.Repository
	cases     casefile.Repository
	ledger    audit.Repository
	operators operator.Repository
	access    *access.Service

	store      collaborator.ContentStore
	anchor     collaborator.LedgerAnchor
	classifier collaborator.Classifier
	notifier   collaborator.Notifier

	metrics *telemetry.Metrics
	logger  *zap.Logger
}

// NewService wires the workflow engine.
func NewService(
	evidenceRepo evidence.Repository,
	cases casefile.Repository,
	ledger audit.Repository,
	operators operator.Repository,
	accessSvc *access.Service,
	store collaborator.ContentStore,
	anchor collaborator.LedgerAnchor,
	classifier collaborator.Classifier,
	notifier collaborator.Notifier,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		evidence:   evidenceRepo,
		cases:      cases,
		ledger:     ledger,
		operators:  operators,
		access:     accessSvc,
		store:      store,
		anchor:     anchor,
		classifier: classifier,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
	}
}

// UploadRequest carries a new artifact and its declared metadata.
type UploadRequest struct {
	Content     []byte
	Filename    string
	MimeType    string
	Description string
	Tags        []string
	DeviceInfo  string
	Geolocation string
}

// Upload ingests an artifact into the actor's session case. The
// content hash is computed here, never taken from the client, and a
// duplicate hash anywhere in the store rejects the upload.
func (s *Service) Upload(ctx context.Context, actor Actor, req UploadRequest) (*evidence.Evidence, error) {
	op, err := s.access.RequireLevel(ctx, actor.OperatorID, actor.CaseID, values.AccessWrite)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireRole(ctx, op, actor.CaseID, operator.RoleUploader, operator.RoleAdmin); err != nil {
		return nil, err
	}

	c, err := s.cases.GetByID(ctx, actor.CaseID)
	if err != nil {
		return nil, err
	}

	hash, err := values.ComputeHashValue(req.Content)
	if err != nil {
		return nil, err
	}

	item, err := evidence.NewEvidence(hash, c.ID, c.Number, req.Filename, req.MimeType,
		int64(len(req.Content)), op.ID)
	if err != nil {
		return nil, err
	}
	item.Description = req.Description
	item.Tags = req.Tags
	item.DeviceInfo = req.DeviceInfo
	item.Geolocation = req.Geolocation
	item.UploadOrigin = actor.Origin

	// Advisory collaborators run before the insert so their references
	// land in the record, but none of their failures blocks the upload.
	if label, cerr := s.classifier.Classify(ctx, req.Filename, req.MimeType); cerr == nil {
		item.Category = label
	}
	if ref, serr := s.store.Publish(ctx, req.Content); serr == nil {
		item.StorageRef = ref
	}
	if ref, aerr := s.anchor.Anchor(ctx, item.ID, hash, c.ID); aerr == nil {
		item.AnchorRef = ref
	}

	if err := s.evidence.Create(ctx, item); err != nil {
		s.metrics.Transitions.WithLabelValues(string(audit.ActionUpload), "failure").Inc()
		return nil, err
	}

	if err := s.cases.IncrementEvidenceCount(ctx, c.ID); err != nil {
		s.logger.Warn("evidence count increment failed",
			zap.String("case_id", c.ID.String()), zap.Error(err))
	}
	if err := s.cases.AppendTimeline(ctx, c.ID, casefile.TimelineEntry{
		Action:  string(audit.ActionUpload),
		ActorID: op.ID,
		Detail:  req.Filename,
	}); err != nil {
		s.logger.Warn("case timeline append failed",
			zap.String("case_id", c.ID.String()), zap.Error(err))
	}

	entry, err := audit.NewEntry(audit.ActionUpload, op.ID)
	if err != nil {
		return nil, err
	}
	entry.ForEvidence(item.ID).ForCase(c.ID).
		WithActorRole(op.Role.String()).WithOrigin(actor.Origin).
		WithDetail(req.Filename).WithAnchorRef(item.AnchorRef)
	if _, err := s.ledger.Append(ctx, entry); err != nil {
		return nil, err
	}

	s.metrics.Transitions.WithLabelValues(string(audit.ActionUpload), "success").Inc()
	s.metrics.AuditAppends.Inc()
	return item, nil
}

// View returns one evidence item after the visibility gates pass, and
// records the read in the ledger. Views are part of the custody trail.
func (s *Service) View(ctx context.Context, actor Actor, evidenceID uuid.UUID) (*evidence.Evidence, error) {
	item, err := s.loadScoped(ctx, actor, evidenceID)
	if err != nil {
		return nil, err
	}

	op, err := s.access.AuthorizeView(ctx, actor.OperatorID, item)
	if err != nil {
		return nil, err
	}

	entry, err := audit.NewEntry(audit.ActionView, op.ID)
	if err != nil {
		return nil, err
	}
	entry.ForEvidence(item.ID).ForCase(item.CaseID).
		WithActorRole(op.Role.String()).WithOrigin(actor.Origin)
	if _, err := s.ledger.Append(ctx, entry); err != nil {
		return nil, err
	}
	s.metrics.AuditAppends.Inc()
	return item, nil
}

// ListByCase returns the case's evidence filtered down to what the
// actor's role may see. Listing is not a view; individual reads are
// what the ledger records.
func (s *Service) ListByCase(ctx context.Context, actor Actor, limit, offset int) ([]*evidence.Evidence, error) {
	op, err := s.access.RequireLevel(ctx, actor.OperatorID, actor.CaseID, values.AccessRead)
	if err != nil {
		return nil, err
	}

	items, err := s.evidence.ListByCase(ctx, actor.CaseID, limit, offset)
	if err != nil {
		return nil, err
	}

	visible := items[:0]
	for _, item := range items {
		if item.CanBeViewedBy(op) {
			visible = append(visible, item)
		}
	}
	return visible, nil
}

// Verify applies the verifier's accept decision. Admins are told a new
// item awaits their approval.
func (s *Service) Verify(ctx context.Context, actor Actor, evidenceID uuid.UUID) (*evidence.Evidence, error) {
	item, err := s.transition(ctx, actor, evidenceID, audit.ActionVerify, "",
		[]operator.Role{operator.RoleVerifier, operator.RoleAdmin},
		func(e *evidence.Evidence, op *operator.Operator) error {
			return e.Verify(op.ID)
		})
	if err != nil {
		return nil, err
	}
	s.notifyRole(ctx, operator.RoleAdmin,
		"evidence "+item.Filename+" in case "+item.CaseNumber+" awaits approval")
	return item, nil
}

// RejectVerification applies the verifier's reject decision. The item
// is terminal afterwards; a corrected artifact is a fresh upload.
func (s *Service) RejectVerification(ctx context.Context, actor Actor, evidenceID uuid.UUID, reason string) (*evidence.Evidence, error) {
	item, err := s.transition(ctx, actor, evidenceID, audit.ActionReject, reason,
		[]operator.Role{operator.RoleVerifier, operator.RoleAdmin},
		func(e *evidence.Evidence, op *operator.Operator) error {
			return e.RejectVerification(op.ID, reason)
		})
	if err != nil {
		return nil, err
	}
	s.notifyOperator(ctx, item.UploadedBy,
		"evidence "+item.Filename+" was rejected: "+reason)
	return item, nil
}

// AssignForensic opens the analysis sub-state for a named forensic
// operator. The assignee needs their own grant on the case.
func (s *Service) AssignForensic(ctx context.Context, actor Actor, evidenceID, assigneeID uuid.UUID) (*evidence.Evidence, error) {
	assignee, err := s.access.RequireLevel(ctx, assigneeID, actor.CaseID, values.AccessRead)
	if err != nil {
		return nil, errors.NewValidationError("INVALID_ASSIGNEE",
			"assignee has no access to the case").WithCause(err)
	}
	if assignee.Role != operator.RoleForensic {
		return nil, errors.NewValidationError("INVALID_ASSIGNEE",
			"assignee must hold the forensic role")
	}

	item, err := s.transition(ctx, actor, evidenceID, audit.ActionAssign, "assigned to "+assignee.Username,
		[]operator.Role{operator.RoleVerifier, operator.RoleAdmin},
		func(e *evidence.Evidence, op *operator.Operator) error {
			return e.AssignForensic(assigneeID)
		})
	if err != nil {
		return nil, err
	}
	s.notifyOperator(ctx, assigneeID,
		"evidence "+item.Filename+" in case "+item.CaseNumber+" assigned to you for analysis")
	return item, nil
}

// SubmitAnalysis records the assignee's findings and tells the verifier
// pool the item is back in their queue.
func (s *Service) SubmitAnalysis(ctx context.Context, actor Actor, evidenceID uuid.UUID, findings, reportRef string) (*evidence.Evidence, error) {
	item, err := s.transition(ctx, actor, evidenceID, audit.ActionSubmitAnalysis, "",
		[]operator.Role{operator.RoleForensic},
		func(e *evidence.Evidence, op *operator.Operator) error {
			return e.SubmitAnalysis(op.ID, findings, reportRef)
		})
	if err != nil {
		return nil, err
	}
	s.notifyRole(ctx, operator.RoleVerifier,
		"analysis submitted for evidence "+item.Filename+" in case "+item.CaseNumber)
	return item, nil
}

// Approve applies the admin's accept decision and discloses the item
// to court officials.
func (s *Service) Approve(ctx context.Context, actor Actor, evidenceID uuid.UUID) (*evidence.Evidence, error) {
	item, err := s.transition(ctx, actor, evidenceID, audit.ActionApprove, "",
		[]operator.Role{operator.RoleAdmin},
		func(e *evidence.Evidence, op *operator.Operator) error {
			return e.Approve(op.ID)
		})
	if err != nil {
		return nil, err
	}
	s.notifyOperator(ctx, item.UploadedBy,
		"evidence "+item.Filename+" was approved for court submission")
	return item, nil
}

// RejectApproval applies the admin's reject decision. Terminal.
func (s *Service) RejectApproval(ctx context.Context, actor Actor, evidenceID uuid.UUID, reason string) (*evidence.Evidence, error) {
	return s.transition(ctx, actor, evidenceID, audit.ActionReject, reason,
		[]operator.Role{operator.RoleAdmin},
		func(e *evidence.Evidence, op *operator.Operator) error {
			return e.RejectApproval(op.ID, reason)
		})
}

// SubmitToCourt moves an approved item to its court-submitted terminal
// state.
func (s *Service) SubmitToCourt(ctx context.Context, actor Actor, evidenceID uuid.UUID) (*evidence.Evidence, error) {
	return s.transition(ctx, actor, evidenceID, audit.ActionCourtSubmit, "",
		[]operator.Role{operator.RoleAdmin},
		func(e *evidence.Evidence, op *operator.Operator) error {
			return e.SubmitToCourt(op.ID)
		})
}

// Close applies the administrative terminal close.
func (s *Service) Close(ctx context.Context, actor Actor, evidenceID uuid.UUID, reason string) (*evidence.Evidence, error) {
	return s.transition(ctx, actor, evidenceID, audit.ActionClose, reason,
		[]operator.Role{operator.RoleAdmin},
		func(e *evidence.Evidence, op *operator.Operator) error {
			return e.Close(op.ID)
		})
}

// Transfer hands custody to another operator on the same case. The
// ledger entry names both sides of the handover.
func (s *Service) Transfer(ctx context.Context, actor Actor, evidenceID, toOperatorID uuid.UUID) (*evidence.Evidence, error) {
	item, err := s.loadScoped(ctx, actor, evidenceID)
	if err != nil {
		return nil, err
	}

	op, err := s.access.RequireLevel(ctx, actor.OperatorID, item.CaseID, values.AccessWrite)
	if err != nil {
		return nil, err
	}
	if op.Role != operator.RoleAdmin && item.CustodianID != op.ID {
		return nil, errors.NewForbiddenError("NOT_CUSTODIAN",
			"only the current custodian or an admin may transfer custody")
	}

	if _, err := s.access.RequireLevel(ctx, toOperatorID, item.CaseID, values.AccessRead); err != nil {
		return nil, errors.NewValidationError("INVALID_CUSTODIAN",
			"transfer target has no access to the case").WithCause(err)
	}

	from := item.CustodianID
	expected := item.Status
	if err := item.Transfer(toOperatorID); err != nil {
		return nil, err
	}

	entry, err := audit.NewEntry(audit.ActionTransfer, op.ID)
	if err != nil {
		return nil, err
	}
	entry.ForEvidence(item.ID).ForCase(item.CaseID).
		WithActorRole(op.Role.String()).WithOrigin(actor.Origin).
		WithTransfer(from, toOperatorID)

	swapped, err := s.evidence.UpdateWithStatusCheckAndAppend(ctx, item, expected, entry)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, s.loseRace(ctx, actor, op, evidenceID, audit.ActionTransfer)
	}

	s.metrics.Transitions.WithLabelValues(string(audit.ActionTransfer), "success").Inc()
	s.metrics.AuditAppends.Inc()
	return item, nil
}

// CheckIntegrity recomputes the digest of the supplied content against
// the stored hash and records the result. A divergence raises the
// tamper flag permanently.
func (s *Service) CheckIntegrity(ctx context.Context, actor Actor, evidenceID uuid.UUID, content []byte) (*evidence.Evidence, error) {
	item, err := s.loadScoped(ctx, actor, evidenceID)
	if err != nil {
		return nil, err
	}
	op, err := s.access.AuthorizeView(ctx, actor.OperatorID, item)
	if err != nil {
		return nil, err
	}

	observed, err := values.ComputeHashValue(content)
	if err != nil {
		return nil, err
	}
	item.RecordIntegrityCheck(observed)
	if err := s.evidence.Update(ctx, item); err != nil {
		return nil, err
	}

	detail := "digest match"
	entry, err := audit.NewEntry(audit.ActionVerify, op.ID)
	if err != nil {
		return nil, err
	}
	if item.TamperFlag {
		detail = "digest mismatch, tamper flag raised"
		entry.AsFailure(detail)
		s.logger.Error("evidence integrity check failed",
			zap.String("evidence_id", item.ID.String()),
			zap.String("expected", item.ContentHash.String()),
			zap.String("observed", observed.String()))
	} else {
		entry.WithDetail(detail)
	}
	entry.ForEvidence(item.ID).ForCase(item.CaseID).
		WithActorRole(op.Role.String()).WithOrigin(actor.Origin)
	if _, err := s.ledger.Append(ctx, entry); err != nil {
		return nil, err
	}
	s.metrics.AuditAppends.Inc()
	return item, nil
}

// transition is the common compare-and-swap path for status-changing
// operations.
func (s *Service) transition(
	ctx context.Context,
	actor Actor,
	evidenceID uuid.UUID,
	action audit.Action,
	detail string,
	roles []operator.Role,
	apply func(*evidence.Evidence, *operator.Operator) error,
) (*evidence.Evidence, error) {
	item, err := s.loadScoped(ctx, actor, evidenceID)
	if err != nil {
		return nil, err
	}

	op, err := s.access.RequireLevel(ctx, actor.OperatorID, item.CaseID, values.AccessWrite)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireRole(ctx, op, item.CaseID, roles...); err != nil {
		return nil, err
	}

	expected := item.Status
	if err := apply(item, op); err != nil {
		s.metrics.Transitions.WithLabelValues(string(action), "rejected").Inc()
		if errors.IsCode(err, "INVALID_STATE") {
			s.recordDeniedTransition(ctx, actor, op, item.ID, item.CaseID, action,
				"transition refused in status "+expected.String())
		}
		return nil, err
	}

	entry, err := audit.NewEntry(action, op.ID)
	if err != nil {
		return nil, err
	}
	entry.ForEvidence(item.ID).ForCase(item.CaseID).
		WithActorRole(op.Role.String()).WithOrigin(actor.Origin)
	if detail != "" {
		entry.WithDetail(detail)
	}

	swapped, err := s.evidence.UpdateWithStatusCheckAndAppend(ctx, item, expected, entry)
	if err != nil {
		return nil, err
	}
	if !swapped {
		s.metrics.Transitions.WithLabelValues(string(action), "conflict").Inc()
		return nil, s.loseRace(ctx, actor, op, evidenceID, action)
	}

	if err := s.cases.AppendTimeline(ctx, item.CaseID, casefile.TimelineEntry{
		Action:  string(action),
		ActorID: op.ID,
		Detail:  detail,
	}); err != nil {
		s.logger.Warn("case timeline append failed",
			zap.String("case_id", item.CaseID.String()), zap.Error(err))
	}

	s.metrics.Transitions.WithLabelValues(string(action), "success").Inc()
	s.metrics.AuditAppends.Inc()
	return item, nil
}

// loseRace reloads the record a concurrent writer just changed, leaves
// a failure entry on the ledger, and reports the invalid-state error
// against the current status.
func (s *Service) loseRace(ctx context.Context, actor Actor, op *operator.Operator, evidenceID uuid.UUID, action audit.Action) error {
	current, err := s.evidence.GetByID(ctx, evidenceID)
	if err != nil {
		return err
	}
	s.recordDeniedTransition(ctx, actor, op, current.ID, current.CaseID, action,
		"lost transition race, status now "+current.Status.String())
	return errors.NewInvalidStateError(current.Status.String(), string(action))
}

// recordDeniedTransition appends a failure-result entry for a
// transition the state machine refused. Refusals are part of the
// custody trail; a ledger outage here is logged, not surfaced, since
// the caller already has the real error to return.
func (s *Service) recordDeniedTransition(ctx context.Context, actor Actor, op *operator.Operator, evidenceID, caseID uuid.UUID, action audit.Action, detail string) {
	entry, err := audit.NewEntry(action, op.ID)
	if err != nil {
		s.logger.Warn("denied transition audit failed", zap.Error(err))
		return
	}
	entry.ForEvidence(evidenceID).ForCase(caseID).
		WithActorRole(op.Role.String()).WithOrigin(actor.Origin).
		AsFailure(detail)
	if _, err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.Warn("denied transition audit failed",
			zap.String("evidence_id", evidenceID.String()), zap.Error(err))
		return
	}
	s.metrics.AuditAppends.Inc()
}

// notifyOperator sends a best-effort message to one operator. Delivery
// failures never fail the transition that triggered them.
func (s *Service) notifyOperator(ctx context.Context, operatorID uuid.UUID, message string) {
	op, err := s.operators.GetByID(ctx, operatorID)
	if err != nil {
		s.logger.Warn("notification recipient lookup failed",
			zap.String("operator_id", operatorID.String()), zap.Error(err))
		return
	}
	contact := collaborator.Contact{Email: op.Email, Phone: op.Phone}
	if err := s.notifier.Send(ctx, contact, message); err != nil {
		s.logger.Warn("notification dispatch failed",
			zap.String("operator_id", operatorID.String()), zap.Error(err))
	}
}

// notifyRole fans a best-effort message out to every active holder of
// the role.
func (s *Service) notifyRole(ctx context.Context, role operator.Role, message string) {
	ops, err := s.operators.ListByRole(ctx, role)
	if err != nil {
		s.logger.Warn("notification fan-out lookup failed",
			zap.String("role", role.String()), zap.Error(err))
		return
	}
	for _, op := range ops {
		contact := collaborator.Contact{Email: op.Email, Phone: op.Phone}
		if err := s.notifier.Send(ctx, contact, message); err != nil {
			s.logger.Warn("notification dispatch failed",
				zap.String("operator_id", op.ID.String()), zap.Error(err))
		}
	}
}

// loadScoped fetches the item and confirms it belongs to the session's
// case. Cross-case access through a valid token is a scope violation,
// not a lookup miss.
func (s *Service) loadScoped(ctx context.Context, actor Actor, evidenceID uuid.UUID) (*evidence.Evidence, error) {
	item, err := s.evidence.GetByID(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if item.CaseID != actor.CaseID {
		return nil, errors.NewNoCaseAccessError()
	}
	return item, nil
}
