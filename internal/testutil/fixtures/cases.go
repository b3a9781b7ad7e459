package fixtures

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/domain/casefile"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
)

// CaseBuilder builds test Case entities.
type CaseBuilder struct {
	c *casefile.Case
}

// NewCaseBuilder creates a builder for an active case with a unique
// case number.
func NewCaseBuilder() *CaseBuilder {
	now := time.Now().UTC()
	suffix := uuid.NewString()[:8]
	return &CaseBuilder{c: &casefile.Case{
		ID:          uuid.New(),
		Number:      fmt.Sprintf("CASE-%s", suffix),
		Name:        "Test investigation",
		Description: "fixture case",
		Status:      casefile.StatusActive,
		Assigned:    []casefile.Assignment{},
		Timeline:    []casefile.TimelineEntry{},
		CreatedBy:   uuid.New(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}}
}

func (b *CaseBuilder) WithID(id uuid.UUID) *CaseBuilder {
	b.c.ID = id
	return b
}

func (b *CaseBuilder) WithNumber(number string) *CaseBuilder {
	b.c.Number = number
	return b
}

func (b *CaseBuilder) WithStatus(status casefile.Status) *CaseBuilder {
	b.c.Status = status
	return b
}

func (b *CaseBuilder) WithAssignment(operatorID uuid.UUID, role operator.Role) *CaseBuilder {
	b.c.Assign(operatorID, role)
	return b
}

// Build returns the case.
func (b *CaseBuilder) Build() *casefile.Case {
	return b.c
}
