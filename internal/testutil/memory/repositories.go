// Package memory provides in-memory repository implementations for
// service-level tests. Semantics mirror the Postgres implementations,
// including atomic counters and the status compare-and-swap.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/domain/audit"
	"github.com/custodia-platform/custodia-backend/internal/domain/casefile"
	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/evidence"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

// OperatorRepository is an in-memory operator.Repository.
type OperatorRepository struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*operator.Operator
	names map[string]uuid.UUID
}

func NewOperatorRepository() *OperatorRepository {
	return &OperatorRepository{
		byID:  make(map[uuid.UUID]*operator.Operator),
		names: make(map[string]uuid.UUID),
	}
}

// Seed stores an operator without the uniqueness checks.
func (r *OperatorRepository) Seed(op *operator.Operator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[op.ID] = cloneOperator(op)
	r.names[op.Username] = op.ID
}

func (r *OperatorRepository) Create(ctx context.Context, op *operator.Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[op.Username]; exists {
		return errors.NewConflictError("OPERATOR_EXISTS", "username already registered")
	}
	r.byID[op.ID] = cloneOperator(op)
	r.names[op.Username] = op.ID
	return nil
}

func (r *OperatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*operator.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.byID[id]
	if !ok {
		return nil, errors.NewNotFoundError("operator")
	}
	return cloneOperator(op), nil
}

func (r *OperatorRepository) GetByUsername(ctx context.Context, username string) (*operator.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.names[username]
	if !ok {
		return nil, errors.NewNotFoundError("operator")
	}
	return cloneOperator(r.byID[id]), nil
}

func (r *OperatorRepository) ListByRole(ctx context.Context, role operator.Role) ([]*operator.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ops []*operator.Operator
	for _, op := range r.byID {
		if op.Role == role && op.IsActive() {
			ops = append(ops, cloneOperator(op))
		}
	}
	return ops, nil
}

func (r *OperatorRepository) Update(ctx context.Context, op *operator.Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[op.ID]
	if !ok {
		return errors.NewNotFoundError("operator")
	}
	// Security counters stay under repository control, as in the real
	// store.
	updated := cloneOperator(op)
	updated.FailedLogins = stored.FailedLogins
	updated.LockedUntil = stored.LockedUntil
	updated.OTP = stored.OTP
	r.byID[op.ID] = updated
	return nil
}

func (r *OperatorRepository) IncrementFailedLogins(ctx context.Context, id uuid.UUID, threshold int, lockout time.Duration) (int, *time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.byID[id]
	if !ok {
		return 0, nil, errors.NewNotFoundError("operator")
	}
	now := time.Now().UTC()
	if op.LockedUntil != nil && now.Before(*op.LockedUntil) {
		return op.FailedLogins, op.LockedUntil, nil
	}
	op.FailedLogins++
	if op.FailedLogins >= threshold {
		until := now.Add(lockout)
		op.LockedUntil = &until
	}
	return op.FailedLogins, op.LockedUntil, nil
}

func (r *OperatorRepository) ResetFailedLogins(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if op, ok := r.byID[id]; ok {
		op.FailedLogins = 0
		op.LockedUntil = nil
	}
	return nil
}

func (r *OperatorRepository) SetOTP(ctx context.Context, id uuid.UUID, otp *operator.OTPRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.byID[id]
	if !ok {
		return errors.NewNotFoundError("operator")
	}
	rec := *otp
	op.OTP = &rec
	return nil
}

func (r *OperatorRepository) IncrementOTPAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.byID[id]
	if !ok || op.OTP == nil {
		return 0, errors.NewNotFoundError("pending login")
	}
	op.OTP.Attempts++
	return op.OTP.Attempts, nil
}

func (r *OperatorRepository) ClearOTP(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if op, ok := r.byID[id]; ok {
		op.OTP = nil
	}
	return nil
}

func (r *OperatorRepository) AppendSession(ctx context.Context, id uuid.UUID, s operator.Session, cap int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.byID[id]
	if !ok {
		return errors.NewNotFoundError("operator")
	}
	op.Sessions = append(op.Sessions, s)
	if len(op.Sessions) > cap {
		op.Sessions = op.Sessions[len(op.Sessions)-cap:]
	}
	return nil
}

func (r *OperatorRepository) RevokeSession(ctx context.Context, operatorID, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.byID[operatorID]
	if !ok {
		return errors.NewNotFoundError("operator")
	}
	for i := range op.Sessions {
		if op.Sessions[i].ID == sessionID {
			op.Sessions[i].Active = false
		}
	}
	return nil
}

func (r *OperatorRepository) GetSession(ctx context.Context, operatorID, sessionID uuid.UUID) (*operator.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.byID[operatorID]
	if !ok {
		return nil, errors.NewNotFoundError("operator")
	}
	for i := range op.Sessions {
		if op.Sessions[i].ID == sessionID {
			s := op.Sessions[i]
			return &s, nil
		}
	}
	return nil, errors.NewNotFoundError("session")
}

func (r *OperatorRepository) AddGrant(ctx context.Context, id uuid.UUID, grant operator.CaseGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.byID[id]
	if !ok {
		return errors.NewNotFoundError("operator")
	}
	op.AddGrant(grant.CaseID, grant.Level)
	return nil
}

func cloneOperator(op *operator.Operator) *operator.Operator {
	c := *op
	c.Grants = append([]operator.CaseGrant(nil), op.Grants...)
	c.Sessions = append([]operator.Session(nil), op.Sessions...)
	if op.OTP != nil {
		rec := *op.OTP
		c.OTP = &rec
	}
	return &c
}

// CaseRepository is an in-memory casefile.Repository.
type CaseRepository struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*casefile.Case
	numbers map[string]uuid.UUID
}

func NewCaseRepository() *CaseRepository {
	return &CaseRepository{
		byID:    make(map[uuid.UUID]*casefile.Case),
		numbers: make(map[string]uuid.UUID),
	}
}

func (r *CaseRepository) Seed(c *casefile.Case) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = cloneCase(c)
	r.numbers[c.Number] = c.ID
}

func (r *CaseRepository) Create(ctx context.Context, c *casefile.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.numbers[c.Number]; exists {
		return errors.NewConflictError("CASE_EXISTS", "case number already registered")
	}
	r.byID[c.ID] = cloneCase(c)
	r.numbers[c.Number] = c.ID
	return nil
}

func (r *CaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*casefile.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, errors.NewCaseNotFoundError()
	}
	return cloneCase(c), nil
}

func (r *CaseRepository) GetByNumber(ctx context.Context, number string) (*casefile.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.numbers[number]
	if !ok {
		return nil, errors.NewCaseNotFoundError()
	}
	return cloneCase(r.byID[id]), nil
}

func (r *CaseRepository) Update(ctx context.Context, c *casefile.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[c.ID]
	if !ok {
		return errors.NewCaseNotFoundError()
	}
	updated := cloneCase(c)
	updated.Timeline = stored.Timeline
	updated.EvidenceCount = stored.EvidenceCount
	r.byID[c.ID] = updated
	return nil
}

func (r *CaseRepository) List(ctx context.Context, limit, offset int) ([]*casefile.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*casefile.Case, 0, len(r.byID))
	for _, c := range r.byID {
		all = append(all, cloneCase(c))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *CaseRepository) AppendTimeline(ctx context.Context, caseID uuid.UUID, entry casefile.TimelineEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[caseID]
	if !ok {
		return errors.NewCaseNotFoundError()
	}
	c.Timeline = append(c.Timeline, entry)
	return nil
}

func (r *CaseRepository) IncrementEvidenceCount(ctx context.Context, caseID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[caseID]
	if !ok {
		return errors.NewCaseNotFoundError()
	}
	c.EvidenceCount++
	return nil
}

func cloneCase(c *casefile.Case) *casefile.Case {
	clone := *c
	clone.Assigned = append([]casefile.Assignment(nil), c.Assigned...)
	clone.Timeline = append([]casefile.TimelineEntry(nil), c.Timeline...)
	return &clone
}

// EvidenceRepository is an in-memory evidence.Repository with the same
// compare-and-swap behavior as the Postgres store.
type EvidenceRepository struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*evidence.Evidence
	hashes map[string]uuid.UUID
	ledger *AuditRepository
}

// BindLedger attaches the ledger used by UpdateWithStatusCheckAndAppend,
// mirroring the shared transaction of the Postgres store.
func (r *EvidenceRepository) BindLedger(l *AuditRepository) { r.ledger = l }

func NewEvidenceRepository() *EvidenceRepository {
	return &EvidenceRepository{
		byID:   make(map[uuid.UUID]*evidence.Evidence),
		hashes: make(map[string]uuid.UUID),
	}
}

func (r *EvidenceRepository) Seed(e *evidence.Evidence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[e.ID] = cloneEvidence(e)
	r.hashes[e.ContentHash.String()] = e.ID
}

func (r *EvidenceRepository) Create(ctx context.Context, e *evidence.Evidence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hashes[e.ContentHash.String()]; exists {
		return errors.NewDuplicateEvidenceError(e.ContentHash.String())
	}
	r.byID[e.ID] = cloneEvidence(e)
	r.hashes[e.ContentHash.String()] = e.ID
	return nil
}

func (r *EvidenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*evidence.Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, errors.NewNotFoundError("evidence")
	}
	return cloneEvidence(e), nil
}

func (r *EvidenceRepository) GetByHash(ctx context.Context, hash values.HashValue) (*evidence.Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.hashes[hash.String()]
	if !ok {
		return nil, errors.NewNotFoundError("evidence")
	}
	return cloneEvidence(r.byID[id]), nil
}

func (r *EvidenceRepository) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*evidence.Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*evidence.Evidence
	for _, e := range r.byID {
		if e.CaseID == caseID {
			items = append(items, cloneEvidence(e))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if offset >= len(items) {
		return nil, nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (r *EvidenceRepository) UpdateWithStatusCheck(ctx context.Context, e *evidence.Evidence, expected evidence.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[e.ID]
	if !ok {
		return false, errors.NewNotFoundError("evidence")
	}
	if stored.Status != expected {
		return false, nil
	}
	r.byID[e.ID] = cloneEvidence(e)
	return true, nil
}

// UpdateWithStatusCheckAndAppend appends the entry before swapping the
// record, so an append failure leaves the stored status untouched.
func (r *EvidenceRepository) UpdateWithStatusCheckAndAppend(ctx context.Context, e *evidence.Evidence, expected evidence.Status, entry *audit.Entry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[e.ID]
	if !ok {
		return false, errors.NewNotFoundError("evidence")
	}
	if stored.Status != expected {
		return false, nil
	}
	if r.ledger == nil {
		return false, errors.NewStorageError("no ledger bound")
	}
	if _, err := r.ledger.Append(ctx, entry); err != nil {
		return false, err
	}
	r.byID[e.ID] = cloneEvidence(e)
	return true, nil
}

func (r *EvidenceRepository) Update(ctx context.Context, e *evidence.Evidence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[e.ID]; !ok {
		return errors.NewNotFoundError("evidence")
	}
	r.byID[e.ID] = cloneEvidence(e)
	return nil
}

func cloneEvidence(e *evidence.Evidence) *evidence.Evidence {
	clone := *e
	clone.Tags = append([]string(nil), e.Tags...)
	clone.VisibleTo = append([]operator.Role(nil), e.VisibleTo...)
	return &clone
}

// AuditRepository is an in-memory audit.Repository that seals entries
// against an internal chain tail exactly like the Postgres store.
type AuditRepository struct {
	mu      sync.Mutex
	entries []*audit.Entry

	// Err, when set, fails every Append to simulate a ledger outage.
	Err error
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Append(ctx context.Context, entry *audit.Entry) (values.SequenceNumber, error) {
	if err := entry.Validate(); err != nil {
		return values.SequenceNumber{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return values.SequenceNumber{}, r.Err
	}

	next := values.FirstSequenceNumber()
	previousHash := ""
	if n := len(r.entries); n > 0 {
		tail := r.entries[n-1]
		var err error
		next, err = tail.Sequence.Next()
		if err != nil {
			return values.SequenceNumber{}, err
		}
		previousHash = tail.EntryHash
	}

	if _, err := entry.Seal(next, previousHash); err != nil {
		return values.SequenceNumber{}, err
	}
	r.entries = append(r.entries, entry)
	return next, nil
}

func (r *AuditRepository) Query(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*audit.Entry
	for _, e := range r.entries {
		if matchesFilter(e, filter) {
			out = append(out, e)
		}
	}
	if !filter.Ascending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *AuditRepository) ByEvidence(ctx context.Context, evidenceID uuid.UUID) ([]*audit.Entry, error) {
	return r.Query(ctx, audit.Filter{EvidenceID: &evidenceID, Ascending: true})
}

func (r *AuditRepository) Range(ctx context.Context, from, to values.SequenceNumber) ([]*audit.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*audit.Entry
	for _, e := range r.entries {
		v := e.Sequence.Value()
		if v >= from.Value() && v <= to.Value() {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every stored entry in append order.
func (r *AuditRepository) All() []*audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*audit.Entry(nil), r.entries...)
}

// LastAction returns the most recent entry's action, or "".
func (r *AuditRepository) LastAction() audit.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return ""
	}
	return r.entries[len(r.entries)-1].Action
}

func matchesFilter(e *audit.Entry, f audit.Filter) bool {
	if f.EvidenceID != nil && (e.EvidenceID == nil || *e.EvidenceID != *f.EvidenceID) {
		return false
	}
	if f.CaseID != nil && (e.CaseID == nil || *e.CaseID != *f.CaseID) {
		return false
	}
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Result != "" && e.Result != f.Result {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}
