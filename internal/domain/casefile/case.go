package casefile

import (
	"time"

	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
)

// Case is the investigation container that scopes evidence, access
// grants, and its own timeline.
type Case struct {
	ID          uuid.UUID `json:"id"`
	Number      string    `json:"number"`
	Name        string    `json:"name"`
	Description string    `json:"description"`

	Status        Status       `json:"status"`
	Assigned      []Assignment `json:"assigned"`
	Timeline      []TimelineEntry `json:"timeline"`
	EvidenceCount int          `json:"evidence_count"`

	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status is the case lifecycle status. Closed and archived are
// inactive: logins and writes against the case must fail.
type Status int

const (
	StatusActive Status = iota
	StatusPending
	StatusClosed
	StatusArchived
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPending:
		return "pending"
	case StatusClosed:
		return "closed"
	case StatusArchived:
		return "archived"
	default:
		return "unknown"
	}
}

// ParseStatus converts a stored status string to a Status
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "active":
		return StatusActive, true
	case "pending":
		return StatusPending, true
	case "closed":
		return StatusClosed, true
	case "archived":
		return StatusArchived, true
	default:
		return StatusPending, false
	}
}

// Assignment records one operator attached to the case.
type Assignment struct {
	OperatorID uuid.UUID     `json:"operator_id"`
	Role       operator.Role `json:"role"`
	AssignedAt time.Time     `json:"assigned_at"`
}

// TimelineEntry is one item of the append-only per-case narrative. It
// feeds, but is distinct from, the audit ledger.
type TimelineEntry struct {
	Action    string    `json:"action"`
	ActorID   uuid.UUID `json:"actor_id"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewCase creates an active case. The identifier is generated, never
// operator-supplied.
func NewCase(number, name, description string, createdBy uuid.UUID) (*Case, error) {
	if number == "" {
		return nil, errors.NewValidationError("MISSING_CASE_NUMBER", "case number is required")
	}
	if name == "" {
		return nil, errors.NewValidationError("MISSING_CASE_NAME", "case name is required")
	}

	now := time.Now().UTC()
	return &Case{
		ID:          uuid.New(),
		Number:      number,
		Name:        name,
		Description: description,
		Status:      StatusActive,
		Assigned:    []Assignment{},
		Timeline:    []TimelineEntry{},
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsActive reports whether the case accepts logins and writes.
func (c *Case) IsActive() bool {
	return c.Status == StatusActive
}

// IsTerminal reports whether the case has been closed or archived.
func (c *Case) IsTerminal() bool {
	return c.Status == StatusClosed || c.Status == StatusArchived
}

// Assign attaches an operator to the case. Re-assigning is idempotent.
func (c *Case) Assign(operatorID uuid.UUID, role operator.Role) {
	for _, a := range c.Assigned {
		if a.OperatorID == operatorID {
			return
		}
	}
	now := time.Now().UTC()
	c.Assigned = append(c.Assigned, Assignment{
		OperatorID: operatorID,
		Role:       role,
		AssignedAt: now,
	})
	c.UpdatedAt = now
}

// AppendTimeline adds an entry to the per-case narrative.
func (c *Case) AppendTimeline(action string, actorID uuid.UUID, detail string) {
	now := time.Now().UTC()
	c.Timeline = append(c.Timeline, TimelineEntry{
		Action:    action,
		ActorID:   actorID,
		Detail:    detail,
		Timestamp: now,
	})
	c.UpdatedAt = now
}

// Close moves the case to its closed terminal status. Further writes
// against the case are rejected.
func (c *Case) Close() error {
	if c.IsTerminal() {
		return errors.NewInvalidStateError(c.Status.String(), "close")
	}
	c.Status = StatusClosed
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Archive moves a closed case to archived.
func (c *Case) Archive() error {
	if c.Status != StatusClosed {
		return errors.NewInvalidStateError(c.Status.String(), "archive")
	}
	c.Status = StatusArchived
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Reopen makes a closed case active again. Archived cases stay archived.
func (c *Case) Reopen() error {
	if c.Status != StatusClosed {
		return errors.NewInvalidStateError(c.Status.String(), "reopen")
	}
	c.Status = StatusActive
	c.UpdatedAt = time.Now().UTC()
	return nil
}
