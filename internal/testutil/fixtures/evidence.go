package fixtures

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/domain/evidence"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

// EvidenceBuilder builds test Evidence entities.
type EvidenceBuilder struct {
	e *evidence.Evidence
}

// NewEvidenceBuilder creates a builder for a freshly uploaded item
// with unique content.
func NewEvidenceBuilder(caseID uuid.UUID) *EvidenceBuilder {
	content := []byte("fixture content " + uuid.NewString())
	hash, err := values.ComputeHashValue(content)
	if err != nil {
		panic(err)
	}

	uploader := uuid.New()
	now := time.Now().UTC()
	return &EvidenceBuilder{e: &evidence.Evidence{
		ID:          uuid.New(),
		ContentHash: hash,
		CaseID:      caseID,
		CaseNumber:  fmt.Sprintf("CASE-%s", uuid.NewString()[:8]),
		Filename:    "capture.pcap",
		MimeType:    "application/octet-stream",
		Size:        int64(len(content)),
		UploadedBy:  uploader,
		CustodianID: uploader,
		Status:      evidence.StatusUploaded,
		VisibleTo:   []operator.Role{operator.RoleUploader, operator.RoleAdmin},
		CreatedAt:   now,
		UpdatedAt:   now,
	}}
}

func (b *EvidenceBuilder) WithID(id uuid.UUID) *EvidenceBuilder {
	b.e.ID = id
	return b
}

func (b *EvidenceBuilder) WithUploader(id uuid.UUID) *EvidenceBuilder {
	b.e.UploadedBy = id
	b.e.CustodianID = id
	return b
}

func (b *EvidenceBuilder) WithStatus(status evidence.Status) *EvidenceBuilder {
	b.e.Status = status
	return b
}

func (b *EvidenceBuilder) WithContent(content []byte) *EvidenceBuilder {
	hash, err := values.ComputeHashValue(content)
	if err != nil {
		panic(err)
	}
	b.e.ContentHash = hash
	b.e.Size = int64(len(content))
	return b
}

func (b *EvidenceBuilder) WithVisibleTo(roles ...operator.Role) *EvidenceBuilder {
	b.e.VisibleTo = roles
	return b
}

func (b *EvidenceBuilder) WithForensic(state evidence.ForensicState) *EvidenceBuilder {
	b.e.Forensic = state
	return b
}

// Build returns the evidence item.
func (b *EvidenceBuilder) Build() *evidence.Evidence {
	return b.e
}
