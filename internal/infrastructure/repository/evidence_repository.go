package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-platform/custodia-backend/internal/domain/audit"
	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/evidence"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

type evidenceRepository struct {
	pool *pgxpool.Pool
}

// NewEvidenceRepository creates a new evidence repository.
func NewEvidenceRepository(pool *pgxpool.Pool) evidence.Repository {
	return &evidenceRepository{pool: pool}
}

const evidenceColumns = `
	id, content_hash, case_id, case_number,
	filename, mime_type, category, size, description, tags,
	uploaded_by, custodian_id, upload_origin, device_info, geolocation,
	storage_ref, anchor_ref,
	status, workflow, forensic,
	tamper_flag, verification_count, last_verified_at,
	visible_to, created_at, updated_at
`

// workflowRecord groups the actor/timestamp transition fields into one
// JSONB column so the row stays readable.
type workflowRecord struct {
	VerifiedBy      *uuid.UUID `json:"verified_by,omitempty"`
	VerifiedAt      *string    `json:"verified_at,omitempty"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt      *string    `json:"approved_at,omitempty"`
	RejectedBy      *uuid.UUID `json:"rejected_by,omitempty"`
	RejectedAt      *string    `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	ClosedBy        *uuid.UUID `json:"closed_by,omitempty"`
	ClosedAt        *string    `json:"closed_at,omitempty"`
}

func (r *evidenceRepository) Create(ctx context.Context, e *evidence.Evidence) error {
	workflowJSON, forensicJSON, tagsJSON, visibleJSON, err := marshalEvidence(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO evidence (
			id, content_hash, case_id, case_number,
			filename, mime_type, category, size, description, tags,
			uploaded_by, custodian_id, upload_origin, device_info, geolocation,
			storage_ref, anchor_ref,
			status, workflow, forensic,
			tamper_flag, verification_count, last_verified_at,
			visible_to, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26
		)
	`
	_, err = r.pool.Exec(ctx, query,
		e.ID, e.ContentHash.String(), e.CaseID, e.CaseNumber,
		e.Filename, e.MimeType, e.Category, e.Size, e.Description, tagsJSON,
		e.UploadedBy, e.CustodianID, e.UploadOrigin, e.DeviceInfo, e.Geolocation,
		e.StorageRef, e.AnchorRef,
		e.Status.String(), workflowJSON, forensicJSON,
		e.TamperFlag, e.VerificationCount, e.LastVerifiedAt,
		visibleJSON, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewDuplicateEvidenceError(e.ContentHash.String()).WithCause(err)
		}
		return errors.NewStorageError("failed to create evidence").WithCause(err)
	}
	return nil
}

func (r *evidenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*evidence.Evidence, error) {
	query := fmt.Sprintf(`SELECT %s FROM evidence WHERE id = $1`, evidenceColumns)
	e, err := scanEvidence(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewNotFoundError("evidence")
		}
		return nil, err
	}
	return e, nil
}

func (r *evidenceRepository) GetByHash(ctx context.Context, hash values.HashValue) (*evidence.Evidence, error) {
	query := fmt.Sprintf(`SELECT %s FROM evidence WHERE content_hash = $1`, evidenceColumns)
	e, err := scanEvidence(r.pool.QueryRow(ctx, query, hash.String()))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewNotFoundError("evidence")
		}
		return nil, err
	}
	return e, nil
}

func (r *evidenceRepository) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*evidence.Evidence, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM evidence
		WHERE case_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, evidenceColumns)

	rows, err := r.pool.Query(ctx, query, caseID, limit, offset)
	if err != nil {
		return nil, errors.NewStorageError("failed to list evidence").WithCause(err)
	}
	defer rows.Close()

	var items []*evidence.Evidence
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to iterate evidence").WithCause(err)
	}
	return items, nil
}

const statusCheckedUpdate = `
	UPDATE evidence
	SET category = $3, description = $4, tags = $5,
	    custodian_id = $6, storage_ref = $7, anchor_ref = $8,
	    status = $9, workflow = $10, forensic = $11,
	    tamper_flag = $12, verification_count = $13, last_verified_at = $14,
	    visible_to = $15, updated_at = NOW()
	WHERE id = $1 AND status = $2
`

// UpdateWithStatusCheck writes the full record only when the stored
// status still matches. RowsAffected distinguishes a lost race from a
// missing row.
func (r *evidenceRepository) UpdateWithStatusCheck(ctx context.Context, e *evidence.Evidence, expected evidence.Status) (bool, error) {
	workflowJSON, forensicJSON, tagsJSON, visibleJSON, err := marshalEvidence(e)
	if err != nil {
		return false, err
	}

	tag, err := r.pool.Exec(ctx, statusCheckedUpdate, statusCheckedArgs(e, expected,
		workflowJSON, forensicJSON, tagsJSON, visibleJSON)...)
	if err != nil {
		return false, errors.NewStorageError("failed to update evidence").WithCause(err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateWithStatusCheckAndAppend runs the status-checked update and the
// ledger append in one transaction so a committed transition always has
// its entry and a failed append rolls the transition back.
func (r *evidenceRepository) UpdateWithStatusCheckAndAppend(ctx context.Context, e *evidence.Evidence, expected evidence.Status, entry *audit.Entry) (bool, error) {
	workflowJSON, forensicJSON, tagsJSON, visibleJSON, err := marshalEvidence(e)
	if err != nil {
		return false, err
	}

	swapped := false
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, statusCheckedUpdate, statusCheckedArgs(e, expected,
			workflowJSON, forensicJSON, tagsJSON, visibleJSON)...)
		if err != nil {
			return errors.NewStorageError("failed to update evidence").WithCause(err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		swapped = true
		_, err = appendEntryTx(ctx, tx, entry)
		return err
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

func statusCheckedArgs(e *evidence.Evidence, expected evidence.Status,
	workflowJSON, forensicJSON, tagsJSON, visibleJSON []byte) []interface{} {
	return []interface{}{
		e.ID, expected.String(),
		e.Category, e.Description, tagsJSON,
		e.CustodianID, e.StorageRef, e.AnchorRef,
		e.Status.String(), workflowJSON, forensicJSON,
		e.TamperFlag, e.VerificationCount, e.LastVerifiedAt,
		visibleJSON,
	}
}

func (r *evidenceRepository) Update(ctx context.Context, e *evidence.Evidence) error {
	forensicJSON, err := json.Marshal(e.Forensic)
	if err != nil {
		return errors.NewStorageError("failed to marshal forensic record").WithCause(err)
	}

	query := `
		UPDATE evidence
		SET category = $2, description = $3, storage_ref = $4, anchor_ref = $5,
		    forensic = $6, tamper_flag = $7, verification_count = $8,
		    last_verified_at = $9, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		e.ID, e.Category, e.Description, e.StorageRef, e.AnchorRef,
		forensicJSON, e.TamperFlag, e.VerificationCount, e.LastVerifiedAt,
	)
	if err != nil {
		return errors.NewStorageError("failed to update evidence").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("evidence")
	}
	return nil
}

func marshalEvidence(e *evidence.Evidence) (workflowJSON, forensicJSON, tagsJSON, visibleJSON []byte, err error) {
	wf := workflowRecord{
		VerifiedBy:      e.VerifiedBy,
		VerifiedAt:      timePtr(e.VerifiedAt),
		ApprovedBy:      e.ApprovedBy,
		ApprovedAt:      timePtr(e.ApprovedAt),
		RejectedBy:      e.RejectedBy,
		RejectedAt:      timePtr(e.RejectedAt),
		RejectionReason: e.RejectionReason,
		ClosedBy:        e.ClosedBy,
		ClosedAt:        timePtr(e.ClosedAt),
	}
	if workflowJSON, err = json.Marshal(wf); err != nil {
		return nil, nil, nil, nil, errors.NewStorageError("failed to marshal workflow record").WithCause(err)
	}
	if forensicJSON, err = json.Marshal(e.Forensic); err != nil {
		return nil, nil, nil, nil, errors.NewStorageError("failed to marshal forensic record").WithCause(err)
	}
	if tagsJSON, err = json.Marshal(e.Tags); err != nil {
		return nil, nil, nil, nil, errors.NewStorageError("failed to marshal tags").WithCause(err)
	}
	roles := make([]string, len(e.VisibleTo))
	for i, role := range e.VisibleTo {
		roles[i] = role.String()
	}
	if visibleJSON, err = json.Marshal(roles); err != nil {
		return nil, nil, nil, nil, errors.NewStorageError("failed to marshal visibility set").WithCause(err)
	}
	return workflowJSON, forensicJSON, tagsJSON, visibleJSON, nil
}

func scanEvidence(row pgx.Row) (*evidence.Evidence, error) {
	var e evidence.Evidence
	var hashStr, statusStr string
	var workflowJSON, forensicJSON, tagsJSON, visibleJSON []byte

	err := row.Scan(
		&e.ID, &hashStr, &e.CaseID, &e.CaseNumber,
		&e.Filename, &e.MimeType, &e.Category, &e.Size, &e.Description, &tagsJSON,
		&e.UploadedBy, &e.CustodianID, &e.UploadOrigin, &e.DeviceInfo, &e.Geolocation,
		&e.StorageRef, &e.AnchorRef,
		&statusStr, &workflowJSON, &forensicJSON,
		&e.TamperFlag, &e.VerificationCount, &e.LastVerifiedAt,
		&visibleJSON, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, errors.NewStorageError("failed to get evidence").WithCause(err)
	}

	hash, err := values.NewHashValue(hashStr)
	if err != nil {
		return nil, errors.NewStorageError("corrupt content hash").WithCause(err)
	}
	e.ContentHash = hash

	status, ok := evidence.ParseStatus(statusStr)
	if !ok {
		return nil, errors.NewStorageError("corrupt evidence status: " + statusStr)
	}
	e.Status = status

	var wf workflowRecord
	if err := json.Unmarshal(workflowJSON, &wf); err != nil {
		return nil, errors.NewStorageError("failed to unmarshal workflow record").WithCause(err)
	}
	e.VerifiedBy = wf.VerifiedBy
	e.VerifiedAt = parseTimePtr(wf.VerifiedAt)
	e.ApprovedBy = wf.ApprovedBy
	e.ApprovedAt = parseTimePtr(wf.ApprovedAt)
	e.RejectedBy = wf.RejectedBy
	e.RejectedAt = parseTimePtr(wf.RejectedAt)
	e.RejectionReason = wf.RejectionReason
	e.ClosedBy = wf.ClosedBy
	e.ClosedAt = parseTimePtr(wf.ClosedAt)

	if err := json.Unmarshal(forensicJSON, &e.Forensic); err != nil {
		return nil, errors.NewStorageError("failed to unmarshal forensic record").WithCause(err)
	}
	if err := json.Unmarshal(tagsJSON, &e.Tags); err != nil {
		return nil, errors.NewStorageError("failed to unmarshal tags").WithCause(err)
	}

	var roles []string
	if err := json.Unmarshal(visibleJSON, &roles); err != nil {
		return nil, errors.NewStorageError("failed to unmarshal visibility set").WithCause(err)
	}
	e.VisibleTo = make([]operator.Role, 0, len(roles))
	for _, rs := range roles {
		role, ok := operator.ParseRole(rs)
		if !ok {
			return nil, errors.NewStorageError("corrupt visibility role: " + rs)
		}
		e.VisibleTo = append(e.VisibleTo, role)
	}

	return &e, nil
}
