package evidence

import (
	"time"

	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

// Evidence is one content-hashed artifact with its own workflow state.
// The content hash is globally unique; the store is content-addressed
// for deduplication. Status and visibility are only ever mutated by
// the transition methods below, never by direct field edits.
type Evidence struct {
	ID          uuid.UUID        `json:"id"`
	ContentHash values.HashValue `json:"content_hash"`
	CaseID      uuid.UUID        `json:"case_id"`
	CaseNumber  string           `json:"case_number"`

	// Descriptive
	Filename    string   `json:"filename"`
	MimeType    string   `json:"mime_type"`
	Category    string   `json:"category,omitempty"`
	Size        int64    `json:"size"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// Provenance
	UploadedBy   uuid.UUID `json:"uploaded_by"`
	CustodianID  uuid.UUID `json:"custodian_id"`
	UploadOrigin string    `json:"upload_origin,omitempty"`
	DeviceInfo   string    `json:"device_info,omitempty"`
	Geolocation  string    `json:"geolocation,omitempty"`

	// External references (best-effort, never authoritative)
	StorageRef string `json:"storage_ref,omitempty"`
	AnchorRef  string `json:"anchor_ref,omitempty"`

	// Workflow sub-state
	Status          Status     `json:"status"`
	VerifiedBy      *uuid.UUID `json:"verified_by,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedBy      *uuid.UUID `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	ClosedBy        *uuid.UUID `json:"closed_by,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`

	Forensic ForensicState `json:"forensic"`

	// Integrity sub-state
	TamperFlag        bool       `json:"tamper_flag"`
	VerificationCount int        `json:"verification_count"`
	LastVerifiedAt    *time.Time `json:"last_verified_at,omitempty"`

	// Visibility is the monotonically growing set of roles permitted
	// to view the item. Roles are added by transitions, never removed.
	VisibleTo []operator.Role `json:"visible_to"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ForensicState is the analysis assignment sub-record.
type ForensicState struct {
	Status     ForensicStatus `json:"status,omitempty"`
	AssigneeID *uuid.UUID     `json:"assignee_id,omitempty"`
	AssignedAt *time.Time     `json:"assigned_at,omitempty"`
	Findings   string         `json:"findings,omitempty"`
	ReportRef  string         `json:"report_ref,omitempty"`
	DoneAt     *time.Time     `json:"done_at,omitempty"`
}

// NewEvidence creates an evidence record in the uploaded state. The
// uploader is the initial custodian.
func NewEvidence(hash values.HashValue, caseID uuid.UUID, caseNumber, filename, mimeType string, size int64, uploader uuid.UUID) (*Evidence, error) {
	if hash.IsZero() {
		return nil, errors.NewValidationError("MISSING_CONTENT_HASH", "content hash is required")
	}
	if caseID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_CASE_ID", "case reference is required")
	}
	if filename == "" {
		return nil, errors.NewValidationError("MISSING_FILENAME", "filename is required")
	}
	if size <= 0 {
		return nil, errors.NewValidationError("INVALID_SIZE", "size must be positive")
	}

	now := time.Now().UTC()
	return &Evidence{
		ID:          uuid.New(),
		ContentHash: hash,
		CaseID:      caseID,
		CaseNumber:  caseNumber,
		Filename:    filename,
		MimeType:    mimeType,
		Size:        size,
		UploadedBy:  uploader,
		CustodianID: uploader,
		Status:      StatusUploaded,
		VisibleTo:   []operator.Role{operator.RoleUploader, operator.RoleAdmin},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsVisibleToRole reports whether the role is in the visibility set.
// Case-scoped access must hold independently; both gates are required.
func (e *Evidence) IsVisibleToRole(r operator.Role) bool {
	for _, v := range e.VisibleTo {
		if v == r {
			return true
		}
	}
	return false
}

// CanBeViewedBy applies the per-role view predicate on top of the
// disclosure set. Uploaders see only their own uploads, verifiers see
// the whole pool for triage, forensic operators see only the item
// assigned to them, and court officials see what approval disclosed.
// Admins see everything. Case-scoped access must hold independently.
func (e *Evidence) CanBeViewedBy(op *operator.Operator) bool {
	switch op.Role {
	case operator.RoleAdmin:
		return true
	case operator.RoleUploader:
		return e.UploadedBy == op.ID
	case operator.RoleVerifier:
		return true
	case operator.RoleForensic:
		return e.Forensic.AssigneeID != nil && *e.Forensic.AssigneeID == op.ID
	case operator.RoleCourt:
		return e.IsVisibleToRole(operator.RoleCourt)
	default:
		return false
	}
}

// grantVisibility adds a role to the visibility set. Additions are
// monotonic: once disclosed, disclosure is not revoked.
func (e *Evidence) grantVisibility(r operator.Role) {
	if e.IsVisibleToRole(r) {
		return
	}
	e.VisibleTo = append(e.VisibleTo, r)
}

// Verify applies the verify(accept) transition. Re-invoking an already
// applied transition fails rather than silently succeeding.
func (e *Evidence) Verify(verifier uuid.UUID) error {
	if !e.Status.AwaitingVerification() {
		return errors.NewInvalidStateError(e.Status.String(), "verify")
	}
	now := time.Now().UTC()
	e.VerifiedBy = &verifier
	e.VerifiedAt = &now
	e.Status = StatusPendingApproval
	e.grantVisibility(operator.RoleVerifier)
	e.UpdatedAt = now
	return nil
}

// RejectVerification applies the verify(reject) transition. Terminal:
// a corrected artifact is a new upload with its own identity.
func (e *Evidence) RejectVerification(verifier uuid.UUID, reason string) error {
	if !e.Status.AwaitingVerification() {
		return errors.NewInvalidStateError(e.Status.String(), "reject")
	}
	if reason == "" {
		return errors.NewValidationError("MISSING_REASON", "rejection reason is required")
	}
	now := time.Now().UTC()
	e.RejectedBy = &verifier
	e.RejectedAt = &now
	e.RejectionReason = reason
	e.Status = StatusRejected
	e.UpdatedAt = now
	return nil
}

// AssignForensic sets the analysis assignment and opens the forensic
// sub-state. Re-assignment while analysis is in progress is rejected.
func (e *Evidence) AssignForensic(assignee uuid.UUID) error {
	if e.Status.IsTerminal() {
		return errors.NewInvalidStateError(e.Status.String(), "assign")
	}
	if e.Forensic.Status == ForensicInProgress {
		return errors.NewInvalidStateError(string(e.Forensic.Status), "assign")
	}
	now := time.Now().UTC()
	e.Forensic = ForensicState{
		Status:     ForensicInProgress,
		AssigneeID: &assignee,
		AssignedAt: &now,
	}
	e.grantVisibility(operator.RoleForensic)
	e.UpdatedAt = now
	return nil
}

// SubmitAnalysis records findings from the assigned forensic operator.
func (e *Evidence) SubmitAnalysis(actor uuid.UUID, findings, reportRef string) error {
	if e.Forensic.Status != ForensicInProgress {
		return errors.NewInvalidStateError(string(e.Forensic.Status), "submit_analysis")
	}
	if e.Forensic.AssigneeID == nil || *e.Forensic.AssigneeID != actor {
		return errors.NewForbiddenError("NOT_ASSIGNEE", "analysis must be submitted by the assignee")
	}
	if findings == "" {
		return errors.NewValidationError("MISSING_FINDINGS", "findings are required")
	}
	now := time.Now().UTC()
	e.Forensic.Status = ForensicCompleted
	e.Forensic.Findings = findings
	e.Forensic.ReportRef = reportRef
	e.Forensic.DoneAt = &now
	e.UpdatedAt = now
	return nil
}

// Approve applies the approve(accept) transition and discloses the
// item to court officials.
func (e *Evidence) Approve(admin uuid.UUID) error {
	if e.Status != StatusPendingApproval {
		return errors.NewInvalidStateError(e.Status.String(), "approve")
	}
	now := time.Now().UTC()
	e.ApprovedBy = &admin
	e.ApprovedAt = &now
	e.Status = StatusApproved
	e.grantVisibility(operator.RoleCourt)
	e.UpdatedAt = now
	return nil
}

// RejectApproval applies the approve(reject) transition. Terminal.
func (e *Evidence) RejectApproval(admin uuid.UUID, reason string) error {
	if e.Status != StatusPendingApproval {
		return errors.NewInvalidStateError(e.Status.String(), "reject")
	}
	if reason == "" {
		return errors.NewValidationError("MISSING_REASON", "rejection reason is required")
	}
	now := time.Now().UTC()
	e.RejectedBy = &admin
	e.RejectedAt = &now
	e.RejectionReason = reason
	e.Status = StatusRejected
	e.UpdatedAt = now
	return nil
}

// SubmitToCourt applies the court-submission terminal transition.
func (e *Evidence) SubmitToCourt(admin uuid.UUID) error {
	if e.Status != StatusApproved {
		return errors.NewInvalidStateError(e.Status.String(), "court_submit")
	}
	e.Status = StatusCourtSubmitted
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// Close applies the administrative terminal close.
func (e *Evidence) Close(admin uuid.UUID) error {
	if e.Status.IsTerminal() {
		return errors.NewInvalidStateError(e.Status.String(), "close")
	}
	now := time.Now().UTC()
	e.ClosedBy = &admin
	e.ClosedAt = &now
	e.Status = StatusClosed
	e.UpdatedAt = now
	return nil
}

// Transfer changes the current custodian. Terminal items keep their
// final custodian.
func (e *Evidence) Transfer(to uuid.UUID) error {
	if e.Status.IsTerminal() {
		return errors.NewInvalidStateError(e.Status.String(), "transfer")
	}
	if to == uuid.Nil {
		return errors.NewValidationError("MISSING_CUSTODIAN", "transfer target is required")
	}
	e.CustodianID = to
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordIntegrityCheck bumps the verification counter after a hash
// recomputation, flagging the item when the digests diverge.
func (e *Evidence) RecordIntegrityCheck(observed values.HashValue) {
	now := time.Now().UTC()
	e.VerificationCount++
	e.LastVerifiedAt = &now
	if !observed.Equal(e.ContentHash) {
		e.TamperFlag = true
	}
	e.UpdatedAt = now
}
