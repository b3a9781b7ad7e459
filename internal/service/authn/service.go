package authn

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/custodia-platform/custodia-backend/internal/domain/audit"
	"github.com/custodia-platform/custodia-backend/internal/domain/casefile"
	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
	"github.com/custodia-platform/custodia-backend/internal/infrastructure/cache"
	"github.com/custodia-platform/custodia-backend/internal/infrastructure/collaborator"
	"github.com/custodia-platform/custodia-backend/internal/infrastructure/config"
)

// Service implements the two-step case-scoped login flow. Every
// security-relevant outcome, success or failure, is written to the
// ledger before the response is returned.
type Service struct {
	operators operator.Repository
	cases     casefile.Repository
	ledger    audit.Repository
	limiter   cache.RateLimiter
	sessions  cache.SessionIndex
	notifier  collaborator.Notifier
	tokens    *TokenIssuer
	cfg       config.SecurityConfig
	logger    *zap.Logger
}

// NewService wires the authenticator.
func NewService(
	operators operator.Repository,
	cases casefile.Repository,
	ledger audit.Repository,
	limiter cache.RateLimiter,
	sessions cache.SessionIndex,
	notifier collaborator.Notifier,
	cfg config.SecurityConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		operators: operators,
		cases:     cases,
		ledger:    ledger,
		limiter:   limiter,
		sessions:  sessions,
		notifier:  notifier,
		tokens:    NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL),
		cfg:       cfg,
		logger:    logger,
	}
}

// Step1Request carries the credential + case half of the login.
type Step1Request struct {
	Username   string
	Password   string
	CaseNumber string
	Origin     string
}

// Step1Result reports that a code was dispatched.
type Step1Result struct {
	OperatorID uuid.UUID
	CaseID     uuid.UUID
	ExpiresAt  time.Time
}

// Step2Request carries the code half of the login.
type Step2Request struct {
	Username string
	Code     string
	Origin   string
}

// TokenResult is the issued session credential.
type TokenResult struct {
	Token      string
	ExpiresAt  time.Time
	SessionID  uuid.UUID
	OperatorID uuid.UUID
	CaseID     uuid.UUID
	Role       string
}

// LoginStep1 validates credentials against a specific case and
// dispatches a one-time code. The checks are ordered so an attacker
// learns as little as possible from the failure shape: an unknown
// username and a wrong password are indistinguishable, and a case the
// operator cannot access is indistinguishable from one that does not
// exist.
func (s *Service) LoginStep1(ctx context.Context, req Step1Request) (*Step1Result, error) {
	if req.Origin != "" {
		allowed, err := s.limiter.Allow(ctx, "login:"+req.Origin, s.cfg.LoginRateLimit, s.cfg.LoginRateWindow)
		if err != nil {
			// Limiter outage must not take logins down with it.
			s.logger.Warn("login rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			return nil, errors.NewRateLimitError("too many login attempts").
				WithRetryAfter(s.cfg.LoginRateWindow)
		}
	}

	op, err := s.operators.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			// No counter to increment for an unknown username; the audit
			// record still names the attempted username.
			if aerr := s.recordLoginFailure(ctx, uuid.Nil, req, "unknown username"); aerr != nil {
				return nil, aerr
			}
			return nil, errors.NewInvalidCredentialsError()
		}
		return nil, err
	}

	now := time.Now().UTC()
	if locked, remaining := op.IsLockedAt(now); locked {
		if aerr := s.recordLoginFailure(ctx, op.ID, req, "account locked"); aerr != nil {
			return nil, aerr
		}
		return nil, errors.NewAccountLockedError(remaining)
	}

	if !op.IsActive() {
		if aerr := s.recordLoginFailure(ctx, op.ID, req, "account inactive"); aerr != nil {
			return nil, aerr
		}
		if !op.IsKYCVerified() {
			return nil, errors.NewKycPendingError()
		}
		return nil, errors.NewAccountInactiveError()
	}

	if bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)) != nil {
		count, lockedUntil, ierr := s.operators.IncrementFailedLogins(ctx, op.ID,
			operator.MaxFailedLogins, operator.LockoutDuration)
		if ierr != nil {
			return nil, ierr
		}
		if aerr := s.recordLoginFailure(ctx, op.ID, req,
			fmt.Sprintf("wrong password, attempt %d", count)); aerr != nil {
			return nil, aerr
		}
		if lockedUntil != nil && now.Before(*lockedUntil) {
			return nil, errors.NewAccountLockedError(lockedUntil.Sub(now))
		}
		return nil, errors.NewInvalidCredentialsError()
	}

	c, err := s.cases.GetByNumber(ctx, req.CaseNumber)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeForbidden) || errors.IsType(err, errors.ErrorTypeNotFound) {
			if lerr := s.penalizeCaseFailure(ctx, op, nil, req, "case not found: "+req.CaseNumber); lerr != nil {
				return nil, lerr
			}
			return nil, errors.NewCaseNotFoundError()
		}
		return nil, err
	}

	if !c.IsActive() {
		if lerr := s.penalizeCaseFailure(ctx, op, &c.ID, req, "case inactive"); lerr != nil {
			return nil, lerr
		}
		return nil, errors.NewCaseInactiveError()
	}

	if op.Role != operator.RoleAdmin {
		if _, ok := op.GrantFor(c.ID); !ok {
			if lerr := s.penalizeCaseFailure(ctx, op, &c.ID, req, "no grant for case"); lerr != nil {
				return nil, lerr
			}
			return nil, errors.NewNoCaseAccessError()
		}
	}

	code, err := values.GenerateOTPCode()
	if err != nil {
		return nil, errors.NewInternalError("failed to generate code").WithCause(err)
	}

	otp := &operator.OTPRecord{
		Code:      code,
		CaseID:    c.ID,
		ExpiresAt: now.Add(s.cfg.OTPTTL),
		SentAt:    now,
	}
	if err := s.operators.SetOTP(ctx, op.ID, otp); err != nil {
		return nil, err
	}

	s.dispatchCode(ctx, op, code)

	entry, err := audit.NewEntry(audit.ActionLoginStep1Success, op.ID)
	if err != nil {
		return nil, err
	}
	entry.ForCase(c.ID).WithActorRole(op.Role.String()).WithOrigin(req.Origin)
	if _, err := s.ledger.Append(ctx, entry); err != nil {
		return nil, err
	}

	return &Step1Result{
		OperatorID: op.ID,
		CaseID:     c.ID,
		ExpiresAt:  otp.ExpiresAt,
	}, nil
}

// LoginStep2 verifies the one-time code and issues the case-bound
// session token.
func (s *Service) LoginStep2(ctx context.Context, req Step2Request) (*TokenResult, error) {
	op, err := s.operators.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return nil, errors.NewInvalidCredentialsError()
		}
		return nil, err
	}

	if op.OTP == nil {
		return nil, errors.NewAuthError("NO_PENDING_LOGIN", "no login in progress")
	}

	now := time.Now().UTC()
	if op.OTP.IsExpiredAt(now) {
		if err := s.operators.ClearOTP(ctx, op.ID); err != nil {
			return nil, err
		}
		if aerr := s.recordOTPFailure(ctx, op, req.Origin, "code expired"); aerr != nil {
			return nil, aerr
		}
		return nil, errors.NewOtpExpiredError()
	}

	if op.OTP.AttemptsExhausted() {
		if aerr := s.recordOTPFailure(ctx, op, req.Origin, "attempts exhausted"); aerr != nil {
			return nil, aerr
		}
		return nil, errors.NewOtpAttemptsExceededError()
	}

	submitted, parseErr := values.NewOTPCode(req.Code)
	if parseErr != nil || !op.OTP.Code.Matches(submitted) {
		attempts, ierr := s.operators.IncrementOTPAttempts(ctx, op.ID)
		if ierr != nil {
			return nil, ierr
		}
		if aerr := s.recordOTPFailure(ctx, op, req.Origin,
			fmt.Sprintf("wrong code, attempt %d", attempts)); aerr != nil {
			return nil, aerr
		}
		if attempts >= operator.OTPMaxAttempts {
			return nil, errors.NewOtpAttemptsExceededError()
		}
		return nil, errors.NewOtpMismatchError()
	}

	caseID := op.OTP.CaseID
	if err := s.operators.ClearOTP(ctx, op.ID); err != nil {
		return nil, err
	}
	if err := s.operators.ResetFailedLogins(ctx, op.ID); err != nil {
		return nil, err
	}

	session := operator.Session{
		ID:        uuid.New(),
		CaseID:    caseID,
		Origin:    req.Origin,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		Active:    true,
	}
	if err := s.operators.AppendSession(ctx, op.ID, session, operator.MaxActiveSessions); err != nil {
		return nil, err
	}
	if err := s.sessions.MarkLive(ctx, session.ID, s.cfg.SessionTTL); err != nil {
		// Index is an optimization; the store remains authoritative.
		s.logger.Warn("session index mark failed",
			zap.String("session_id", session.ID.String()), zap.Error(err))
	}

	token, expiresAt, err := s.tokens.Issue(op.ID, session.ID, caseID, op.Role.String(), now)
	if err != nil {
		return nil, err
	}

	op.LastLoginAt = &now
	if err := s.operators.Update(ctx, op); err != nil {
		return nil, err
	}

	entry, err := audit.NewEntry(audit.ActionLoginSuccess, op.ID)
	if err != nil {
		return nil, err
	}
	entry.ForCase(caseID).WithActorRole(op.Role.String()).WithOrigin(req.Origin).
		WithDetail("session " + session.ID.String())
	if _, err := s.ledger.Append(ctx, entry); err != nil {
		return nil, err
	}

	return &TokenResult{
		Token:      token,
		ExpiresAt:  expiresAt,
		SessionID:  session.ID,
		OperatorID: op.ID,
		CaseID:     caseID,
		Role:       op.Role.String(),
	}, nil
}

// ResendOTP issues a fresh code for a login in progress, subject to the
// resend cooldown. The fresh code gets a full attempt budget.
func (s *Service) ResendOTP(ctx context.Context, username, origin string) (*Step1Result, error) {
	op, err := s.operators.GetByUsername(ctx, username)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return nil, errors.NewInvalidCredentialsError()
		}
		return nil, err
	}
	if op.OTP == nil {
		return nil, errors.NewAuthError("NO_PENDING_LOGIN", "no login in progress")
	}

	now := time.Now().UTC()
	if op.OTP.InResendCooldown(now) {
		wait := operator.OTPResendCooldown - now.Sub(op.OTP.SentAt)
		return nil, errors.NewRateLimitError("code was sent recently").WithRetryAfter(wait)
	}

	code, err := values.GenerateOTPCode()
	if err != nil {
		return nil, errors.NewInternalError("failed to generate code").WithCause(err)
	}

	otp := &operator.OTPRecord{
		Code:      code,
		CaseID:    op.OTP.CaseID,
		ExpiresAt: now.Add(s.cfg.OTPTTL),
		SentAt:    now,
	}
	if err := s.operators.SetOTP(ctx, op.ID, otp); err != nil {
		return nil, err
	}

	s.dispatchCode(ctx, op, code)

	return &Step1Result{
		OperatorID: op.ID,
		CaseID:     otp.CaseID,
		ExpiresAt:  otp.ExpiresAt,
	}, nil
}

// Logout revokes the session server-side. The token itself cannot be
// recalled, so the revocation must be visible to every later check.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if err := s.operators.RevokeSession(ctx, claims.OperatorID, claims.SessionID); err != nil {
		return err
	}
	if err := s.sessions.MarkRevoked(ctx, claims.SessionID, s.cfg.SessionTTL); err != nil {
		s.logger.Warn("session index revoke failed",
			zap.String("session_id", claims.SessionID.String()), zap.Error(err))
	}

	entry, err := audit.NewEntry(audit.ActionLogout, claims.OperatorID)
	if err != nil {
		return err
	}
	entry.ForCase(claims.CaseID).WithActorRole(claims.Role)
	if _, err := s.ledger.Append(ctx, entry); err != nil {
		return err
	}
	return nil
}

// ValidateSession checks the token signature and expiry, then confirms
// the session it names is still live. The dual check is what makes
// server-side revocation effective.
func (s *Service) ValidateSession(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.tokens.Parse(tokenString)
	if err != nil {
		return nil, err
	}

	live, known, err := s.sessions.Check(ctx, claims.SessionID)
	if err == nil && known {
		if !live {
			return nil, errors.NewSessionInvalidError()
		}
		return claims, nil
	}

	session, err := s.operators.GetSession(ctx, claims.OperatorID, claims.SessionID)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return nil, errors.NewSessionInvalidError()
		}
		return nil, err
	}
	now := time.Now().UTC()
	if !session.IsLive(now) {
		if !session.Active {
			return nil, errors.NewSessionInvalidError()
		}
		return nil, errors.NewSessionExpiredError()
	}

	if err := s.sessions.MarkLive(ctx, claims.SessionID, session.ExpiresAt.Sub(now)); err != nil {
		s.logger.Debug("session index refill failed", zap.Error(err))
	}
	return claims, nil
}

func (s *Service) dispatchCode(ctx context.Context, op *operator.Operator, code values.OTPCode) {
	contact := collaborator.Contact{Email: op.Email, Phone: op.Phone}
	if err := s.notifier.Send(ctx, contact, "Your verification code is "+code.String()); err != nil {
		// Delivery is best-effort; the operator can request a resend.
		s.logger.Warn("code delivery failed",
			zap.String("operator_id", op.ID.String()), zap.Error(err))
	}
}

func (s *Service) recordLoginFailure(ctx context.Context, operatorID uuid.UUID, req Step1Request, detail string) error {
	actor := operatorID
	if actor == uuid.Nil {
		// The ledger requires an actor; unknown usernames are recorded
		// under a fixed sentinel identity.
		actor = unknownActorID
		detail = detail + " (" + req.Username + ")"
	}
	entry, err := audit.NewEntry(audit.ActionLoginFailed, actor)
	if err != nil {
		return err
	}
	entry.AsFailure(detail).WithOrigin(req.Origin)
	_, err = s.ledger.Append(ctx, entry)
	return err
}

// penalizeCaseFailure counts a wrong or inaccessible case choice
// against the operator's failed-login counter, exactly like a wrong
// password, and records the denial. Returns the lockout error when the
// counter crosses the threshold.
func (s *Service) penalizeCaseFailure(ctx context.Context, op *operator.Operator, caseID *uuid.UUID, req Step1Request, detail string) error {
	_, lockedUntil, err := s.operators.IncrementFailedLogins(ctx, op.ID,
		operator.MaxFailedLogins, operator.LockoutDuration)
	if err != nil {
		return err
	}
	if aerr := s.recordCaseDenial(ctx, op, caseID, req.Origin, detail); aerr != nil {
		return aerr
	}
	if lockedUntil != nil {
		if now := time.Now().UTC(); now.Before(*lockedUntil) {
			return errors.NewAccountLockedError(lockedUntil.Sub(now))
		}
	}
	return nil
}

func (s *Service) recordCaseDenial(ctx context.Context, op *operator.Operator, caseID *uuid.UUID, origin, detail string) error {
	entry, err := audit.NewEntry(audit.ActionUnauthorizedCaseAccess, op.ID)
	if err != nil {
		return err
	}
	entry.AsFailure(detail).WithActorRole(op.Role.String()).WithOrigin(origin)
	if caseID != nil {
		entry.ForCase(*caseID)
	}
	_, err = s.ledger.Append(ctx, entry)
	return err
}

func (s *Service) recordOTPFailure(ctx context.Context, op *operator.Operator, origin, detail string) error {
	entry, err := audit.NewEntry(audit.ActionOtpFailed, op.ID)
	if err != nil {
		return err
	}
	entry.AsFailure(detail).WithOrigin(origin)
	if op.OTP != nil {
		entry.ForCase(op.OTP.CaseID)
	}
	_, err = s.ledger.Append(ctx, entry)
	return err
}

// unknownActorID is the sentinel actor for failures that cannot be
// attributed to a stored operator.
var unknownActorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
