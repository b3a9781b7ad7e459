package operator

import (
	"time"

	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

// Security policy constants. Lockout is per-operator, not per-case.
const (
	MaxFailedLogins   = 5
	LockoutDuration   = 30 * time.Minute
	MaxActiveSessions = 5
	OTPMaxAttempts    = 3
	OTPResendCooldown = 60 * time.Second
)

// Operator is the credential/identity entity. It owns the security state
// (failed logins, lockout, OTP, sessions) so lockout and OTP semantics
// survive process restarts and horizontal scaling.
type Operator struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`

	Role   Role   `json:"role"`
	Status Status `json:"status"`

	KYC    KYCRecord   `json:"kyc"`
	Grants []CaseGrant `json:"grants"`

	// Security state
	FailedLogins int        `json:"failed_logins"`
	LockedUntil  *time.Time `json:"locked_until,omitempty"`
	OTP          *OTPRecord `json:"-"`
	Sessions     []Session  `json:"sessions"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// KYCRecord tracks identity verification. An operator cannot
// authenticate until the status is verified.
type KYCRecord struct {
	Status       KYCStatus  `json:"status"`
	DocumentRefs []string   `json:"document_refs,omitempty"`
	VerifiedBy   *uuid.UUID `json:"verified_by,omitempty"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
}

// CaseGrant is a per-case access grant, distinct from the system role.
type CaseGrant struct {
	CaseID    uuid.UUID          `json:"case_id"`
	Level     values.AccessLevel `json:"level"`
	GrantedAt time.Time          `json:"granted_at"`
}

// OTPRecord is the pending one-time-code state for a login in progress.
type OTPRecord struct {
	Code      values.OTPCode `json:"-"`
	CaseID    uuid.UUID      `json:"case_id"`
	ExpiresAt time.Time      `json:"expires_at"`
	Attempts  int            `json:"attempts"`
	SentAt    time.Time      `json:"sent_at"`
}

// Session is one active case-scoped login.
type Session struct {
	ID        uuid.UUID `json:"id"`
	CaseID    uuid.UUID `json:"case_id"`
	Origin    string    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    bool      `json:"active"`
}

// NewOperator creates an operator in the pending state. Activation
// happens after KYC verification by an admin.
func NewOperator(username, email, phone, passwordHash string, role Role) (*Operator, error) {
	if username == "" {
		return nil, errors.NewValidationError("MISSING_USERNAME", "username is required")
	}
	if email == "" {
		return nil, errors.NewValidationError("MISSING_EMAIL", "email is required")
	}
	if passwordHash == "" {
		return nil, errors.NewValidationError("MISSING_PASSWORD_HASH", "password hash is required")
	}
	if !role.IsValid() {
		return nil, errors.NewValidationError("INVALID_ROLE", "unknown role")
	}

	now := time.Now().UTC()
	return &Operator{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash,
		Role:         role,
		Status:       StatusPending,
		KYC:          KYCRecord{Status: KYCPending},
		Grants:       []CaseGrant{},
		Sessions:     []Session{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsActive reports whether the operator may authenticate at all.
func (o *Operator) IsActive() bool {
	return o.Status == StatusActive
}

// IsKYCVerified reports whether identity verification is complete.
func (o *Operator) IsKYCVerified() bool {
	return o.KYC.Status == KYCVerified
}

// VerifyKYC records a successful identity verification and activates
// the account.
func (o *Operator) VerifyKYC(verifier uuid.UUID) error {
	if o.KYC.Status == KYCVerified {
		return errors.NewInvalidStateError(string(o.KYC.Status), "verify_kyc")
	}
	now := time.Now().UTC()
	o.KYC.Status = KYCVerified
	o.KYC.VerifiedBy = &verifier
	o.KYC.VerifiedAt = &now
	o.Status = StatusActive
	o.UpdatedAt = now
	return nil
}

// RejectKYC records a failed identity verification.
func (o *Operator) RejectKYC(verifier uuid.UUID) error {
	if o.KYC.Status == KYCVerified {
		return errors.NewInvalidStateError(string(o.KYC.Status), "reject_kyc")
	}
	now := time.Now().UTC()
	o.KYC.Status = KYCRejected
	o.KYC.VerifiedBy = &verifier
	o.KYC.VerifiedAt = &now
	o.UpdatedAt = now
	return nil
}

// IsLockedAt reports whether the account is under a lockout window at t,
// and the remaining wait when it is.
func (o *Operator) IsLockedAt(t time.Time) (bool, time.Duration) {
	if o.LockedUntil == nil || !t.Before(*o.LockedUntil) {
		return false, 0
	}
	return true, o.LockedUntil.Sub(t)
}

// GrantFor returns the operator's grant for the case, if any. Admins do
// not rely on grants; callers must check the role first.
func (o *Operator) GrantFor(caseID uuid.UUID) (CaseGrant, bool) {
	for _, g := range o.Grants {
		if g.CaseID == caseID {
			return g, true
		}
	}
	return CaseGrant{}, false
}

// AddGrant records a case-access grant, replacing any existing grant
// for the same case.
func (o *Operator) AddGrant(caseID uuid.UUID, level values.AccessLevel) {
	now := time.Now().UTC()
	for i, g := range o.Grants {
		if g.CaseID == caseID {
			o.Grants[i].Level = level
			o.Grants[i].GrantedAt = now
			o.UpdatedAt = now
			return
		}
	}
	o.Grants = append(o.Grants, CaseGrant{CaseID: caseID, Level: level, GrantedAt: now})
	o.UpdatedAt = now
}

// AddSession appends a session, evicting the oldest beyond the cap.
func (o *Operator) AddSession(s Session) {
	o.Sessions = append(o.Sessions, s)
	if len(o.Sessions) > MaxActiveSessions {
		o.Sessions = o.Sessions[len(o.Sessions)-MaxActiveSessions:]
	}
	o.UpdatedAt = time.Now().UTC()
}

// SessionByID returns the named session.
func (o *Operator) SessionByID(id uuid.UUID) (*Session, bool) {
	for i := range o.Sessions {
		if o.Sessions[i].ID == id {
			return &o.Sessions[i], true
		}
	}
	return nil, false
}

// RevokeSession marks the named session inactive. Revoking an unknown
// or already-inactive session is not an error.
func (o *Operator) RevokeSession(id uuid.UUID) {
	for i := range o.Sessions {
		if o.Sessions[i].ID == id {
			o.Sessions[i].Active = false
		}
	}
	o.UpdatedAt = time.Now().UTC()
}

// IsLive reports whether the session is active and unexpired at t. A
// structurally valid credential can still be revoked server-side, so
// both checks are required.
func (s *Session) IsLive(t time.Time) bool {
	return s.Active && t.Before(s.ExpiresAt)
}

// IsExpiredAt reports whether the pending code is past its expiry.
func (r *OTPRecord) IsExpiredAt(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

// AttemptsExhausted reports whether the per-code attempt budget is spent.
func (r *OTPRecord) AttemptsExhausted() bool {
	return r.Attempts >= OTPMaxAttempts
}

// InResendCooldown reports whether a resend at t would be too soon.
func (r *OTPRecord) InResendCooldown(t time.Time) bool {
	return t.Sub(r.SentAt) < OTPResendCooldown
}
