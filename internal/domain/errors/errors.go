package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeAuth        ErrorType = "authentication"
	ErrorTypeForbidden   ErrorType = "forbidden"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeState       ErrorType = "invalid_state"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeExternal    ErrorType = "external"
	ErrorTypeRateLimited ErrorType = "rate_limited"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithRetryAfter attaches the remaining wait time for lockout and
// rate-limit responses.
func (e *AppError) WithRetryAfter(d time.Duration) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details["retry_after_seconds"] = int(d.Seconds())
	return e
}

// Error constructors

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewAuthError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeAuth,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 401,
	}
}

func NewForbiddenError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 403,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewConflictError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

func NewStateError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeState,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

func NewExternalError(service, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       "COLLABORATOR_UNAVAILABLE",
		Message:    fmt.Sprintf("%s collaborator error: %s", service, message),
		Retryable:  true,
		StatusCode: 502,
		Details:    map[string]interface{}{"service": service},
	}
}

func NewRateLimitError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimited,
		Code:       "RATE_LIMITED",
		Message:    message,
		Retryable:  true,
		StatusCode: 429,
	}
}

// NewInvalidCredentialsError is returned for both a wrong password and an
// unknown username so the caller cannot distinguish the two.
func NewInvalidCredentialsError() *AppError {
	return NewAuthError("INVALID_CREDENTIALS", "invalid username or password")
}

func NewAccountLockedError(remaining time.Duration) *AppError {
	return NewAuthError("ACCOUNT_LOCKED", "account is temporarily locked").
		WithRetryAfter(remaining)
}

func NewAccountInactiveError() *AppError {
	return NewAuthError("ACCOUNT_INACTIVE", "account is not active")
}

func NewKycPendingError() *AppError {
	return NewAuthError("KYC_PENDING", "identity verification is not complete")
}

// NewCaseNotFoundError has the same shape as NewNoCaseAccessError so case
// existence is not leaked to callers without access.
func NewCaseNotFoundError() *AppError {
	return NewForbiddenError("NO_CASE_ACCESS", "no access to the requested case")
}

func NewCaseInactiveError() *AppError {
	return NewForbiddenError("CASE_INACTIVE", "case is not active")
}

func NewNoCaseAccessError() *AppError {
	return NewForbiddenError("NO_CASE_ACCESS", "no access to the requested case")
}

func NewOtpExpiredError() *AppError {
	return NewAuthError("OTP_EXPIRED", "verification code has expired")
}

func NewOtpAttemptsExceededError() *AppError {
	return NewAuthError("OTP_ATTEMPTS_EXCEEDED", "too many incorrect codes, request a new one")
}

func NewOtpMismatchError() *AppError {
	return NewAuthError("OTP_MISMATCH", "incorrect verification code")
}

func NewSessionExpiredError() *AppError {
	return NewAuthError("SESSION_EXPIRED", "session has expired")
}

func NewSessionInvalidError() *AppError {
	return NewAuthError("SESSION_INVALID", "session is not valid")
}

// Workflow failures

func NewInvalidStateError(current, requested string) *AppError {
	return NewStateError("INVALID_STATE",
		fmt.Sprintf("cannot apply %s from status %s", requested, current)).
		WithDetails(map[string]interface{}{"current_status": current, "transition": requested})
}

func NewDuplicateEvidenceError(hash string) *AppError {
	return NewConflictError("DUPLICATE_EVIDENCE",
		"evidence with identical content hash already exists").
		WithDetails(map[string]interface{}{"content_hash": hash})
}

func NewStorageError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "STORAGE_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsCode checks if an error carries a specific stable error code
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}
