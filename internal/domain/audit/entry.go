package audit

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

// Entry is one immutable record in the chain-of-custody ledger. Once
// the hash is computed the entry never changes; the store supports no
// update and no delete.
type Entry struct {
	ID          uuid.UUID             `json:"id"`
	Sequence    values.SequenceNumber `json:"sequence"`
	Timestamp   time.Time             `json:"timestamp"`

	Action Action `json:"action"`
	Result string `json:"result"` // success, failure

	// Subject references; the ledger stores references only, never
	// denormalized copies.
	EvidenceID *uuid.UUID `json:"evidence_id,omitempty"`
	CaseID     *uuid.UUID `json:"case_id,omitempty"`

	ActorID   uuid.UUID  `json:"actor_id"`
	ActorRole string     `json:"actor_role,omitempty"`
	FromActor *uuid.UUID `json:"from_actor,omitempty"`
	ToActor   *uuid.UUID `json:"to_actor,omitempty"`

	Detail    string `json:"detail,omitempty"`
	Origin    string `json:"origin,omitempty"`
	AnchorRef string `json:"anchor_ref,omitempty"`

	// Hash chain
	PreviousHash string `json:"previous_hash"`
	EntryHash    string `json:"entry_hash"`

	immutable bool
}

// NewEntry creates a ledger entry with validation. The sequence is
// assigned by the store on append.
func NewEntry(action Action, actor uuid.UUID) (*Entry, error) {
	if err := action.Validate(); err != nil {
		return nil, errors.NewValidationError("INVALID_ACTION",
			"action must come from the fixed vocabulary").WithCause(err)
	}
	if actor == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_ACTOR", "actor is required")
	}

	return &Entry{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Result:    "success",
		ActorID:   actor,
	}, nil
}

// Builder-style setters used before the entry is sealed.

func (e *Entry) ForEvidence(id uuid.UUID) *Entry {
	e.EvidenceID = &id
	return e
}

func (e *Entry) ForCase(id uuid.UUID) *Entry {
	e.CaseID = &id
	return e
}

func (e *Entry) WithActorRole(role string) *Entry {
	e.ActorRole = role
	return e
}

func (e *Entry) WithTransfer(from, to uuid.UUID) *Entry {
	e.FromActor = &from
	e.ToActor = &to
	return e
}

func (e *Entry) WithDetail(detail string) *Entry {
	e.Detail = detail
	return e
}

func (e *Entry) WithOrigin(origin string) *Entry {
	e.Origin = origin
	return e
}

func (e *Entry) WithAnchorRef(ref string) *Entry {
	e.AnchorRef = ref
	return e
}

func (e *Entry) AsFailure(detail string) *Entry {
	e.Result = "failure"
	if detail != "" {
		e.Detail = detail
	}
	return e
}

// Seal assigns the sequence, links the entry to the previous hash, and
// computes the entry hash. The entry is immutable afterwards.
func (e *Entry) Seal(seq values.SequenceNumber, previousHash string) (string, error) {
	if e.immutable {
		return "", errors.NewStateError("ENTRY_IMMUTABLE", "entry is already sealed")
	}
	if seq.IsZero() {
		return "", errors.NewValidationError("MISSING_SEQUENCE", "sequence is required to seal")
	}

	e.Sequence = seq
	e.PreviousHash = previousHash

	hashData := map[string]interface{}{
		"id":            e.ID.String(),
		"sequence":      e.Sequence.Value(),
		"timestamp":     e.Timestamp.UnixNano(),
		"action":        string(e.Action),
		"result":        e.Result,
		"actor_id":      e.ActorID.String(),
		"detail":        e.Detail,
		"previous_hash": e.PreviousHash,
	}
	if e.EvidenceID != nil {
		hashData["evidence_id"] = e.EvidenceID.String()
	}
	if e.CaseID != nil {
		hashData["case_id"] = e.CaseID.String()
	}

	jsonBytes, err := json.Marshal(hashData)
	if err != nil {
		return "", errors.NewInternalError("failed to marshal hash data").WithCause(err)
	}

	hash := sha256.Sum256(jsonBytes)
	e.EntryHash = fmt.Sprintf("%x", hash)
	e.immutable = true

	return e.EntryHash, nil
}

// IsSealed reports whether the entry has been made immutable.
func (e *Entry) IsSealed() bool {
	return e.immutable
}

// Validate performs comprehensive validation of the entry.
func (e *Entry) Validate() error {
	if err := e.Action.Validate(); err != nil {
		return errors.NewValidationError("INVALID_ACTION",
			"action validation failed").WithCause(err)
	}
	if e.ActorID == uuid.Nil {
		return errors.NewValidationError("MISSING_ACTOR", "actor is required")
	}
	if e.Result != "success" && e.Result != "failure" {
		return errors.NewValidationError("INVALID_RESULT",
			"result must be 'success' or 'failure'")
	}
	if e.immutable && e.EntryHash == "" {
		return errors.NewValidationError("MISSING_HASH",
			"sealed entry must have a hash")
	}
	return nil
}

// Restore rebuilds a sealed entry from storage without recomputing the
// hash. Used by repositories only.
func Restore(e Entry) *Entry {
	restored := e
	restored.immutable = true
	return &restored
}
