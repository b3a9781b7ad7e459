package operator

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists operators and their security state. The counter
// and session mutations are atomic at the store level: two concurrent
// failed logins must not lose an increment.
type Repository interface {
	Create(ctx context.Context, op *Operator) error
	GetByID(ctx context.Context, id uuid.UUID) (*Operator, error)
	GetByUsername(ctx context.Context, username string) (*Operator, error)
	Update(ctx context.Context, op *Operator) error

	// ListByRole returns the active operators holding the role, for
	// notification fan-out.
	ListByRole(ctx context.Context, role Role) ([]*Operator, error)

	// IncrementFailedLogins atomically bumps the counter and applies
	// the lockout window when the threshold is reached. Returns the
	// new counter value and the lockout expiry, if any.
	IncrementFailedLogins(ctx context.Context, id uuid.UUID, threshold int, lockout time.Duration) (int, *time.Time, error)

	// ResetFailedLogins clears the counter and any lockout.
	ResetFailedLogins(ctx context.Context, id uuid.UUID) error

	// SetOTP stores the pending one-time-code record, replacing any
	// previous one.
	SetOTP(ctx context.Context, id uuid.UUID, otp *OTPRecord) error

	// IncrementOTPAttempts atomically bumps the per-code attempt
	// counter, returning the new value.
	IncrementOTPAttempts(ctx context.Context, id uuid.UUID) (int, error)

	// ClearOTP removes the pending code.
	ClearOTP(ctx context.Context, id uuid.UUID) error

	// AppendSession adds a session under the cap, evicting the oldest,
	// atomically with respect to concurrent logins.
	AppendSession(ctx context.Context, id uuid.UUID, s Session, cap int) error

	// RevokeSession marks a session inactive. Idempotent.
	RevokeSession(ctx context.Context, operatorID, sessionID uuid.UUID) error

	// GetSession returns one stored session for liveness checking.
	GetSession(ctx context.Context, operatorID, sessionID uuid.UUID) (*Session, error)

	// AddGrant records or replaces a case-access grant.
	AddGrant(ctx context.Context, id uuid.UUID, grant CaseGrant) error
}
